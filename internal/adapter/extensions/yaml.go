// Package extensions reads and writes data-extension YAML documents: a
// mapping from external API signature to its user-authored model.
package extensions

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"qlmodel/internal/domain"
)

type document struct {
	Extensions map[string]yaml.Node `yaml:"extensions"`
}

type outDocument struct {
	Extensions map[string]domain.ModeledMethod `yaml:"extensions"`
}

// LoadDataExtensionYaml parses a persisted extension document into a
// signature-to-model mapping. Malformed or unknown entries are skipped,
// not fatal; only an unparseable document is an error.
func LoadDataExtensionYaml(data []byte) (map[string]domain.ModeledMethod, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse extension document: %w", err)
	}

	models := make(map[string]domain.ModeledMethod, len(doc.Extensions))
	for signature, node := range doc.Extensions {
		var m domain.ModeledMethod
		if err := node.Decode(&m); err != nil {
			continue
		}
		if !m.Type.Valid() {
			continue
		}
		models[signature] = m
	}
	return models, nil
}

// CreateDataExtensionYaml serializes the models for the given usages. An
// entry is emitted only when a model exists for the usage's signature and
// its type is not "none".
func CreateDataExtensionYaml(usages []domain.ExternalAPIUsage, models map[string]domain.ModeledMethod) ([]byte, error) {
	out := outDocument{Extensions: make(map[string]domain.ModeledMethod)}
	for _, usage := range usages {
		m, ok := models[usage.Signature]
		if !ok || m.Type == domain.ModelNone {
			continue
		}
		out.Extensions[usage.Signature] = m
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("serialize extension document: %w", err)
	}
	return data, nil
}
