// Package packgen materializes the ephemeral query pack used to fetch
// external API usages. The pack lives in a temp directory for one
// generation run and is discarded afterwards.
package packgen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedLanguage is returned before any side effect when the
// database language cannot be modeled.
var ErrUnsupportedLanguage = errors.New("language not supported for modeling")

const (
	packName      = "codeql/external-api-usage"
	packVersion   = "0.0.0"
	queryFileName = "FetchExternalApis.ql"
)

type manifest struct {
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	Dependencies map[string]string `yaml:"dependencies"`
}

// usageQueries holds the per-language query source fetching
// (signature, supported, call) rows.
var usageQueries = map[string]string{
	"java": `import java
import semmle.code.java.dataflow.ExternalFlow

from ExternalApi api, Call c
where c = api.getACall()
select api.getSignature(), api.isSupported(), c
`,
	"csharp": `import csharp
import semmle.code.csharp.dataflow.ExternalFlow

from ExternalApi api, Call c
where c = api.getACall()
select api.getSignature(), api.isSupported(), c
`,
}

// Pack is a generated query pack on disk.
type Pack struct {
	Dir       string
	QueryPath string
}

// Generate writes a synthetic query pack for the given language into a
// fresh temp directory. The returned cleanup removes the directory. The
// language must be in both the configured set and the set this tool ships
// queries for; the check happens before anything touches the filesystem.
func Generate(language string, configured []string) (*Pack, func(), error) {
	if !contains(configured, language) {
		return nil, nil, fmt.Errorf("%q: %w", language, ErrUnsupportedLanguage)
	}
	query, ok := usageQueries[language]
	if !ok {
		return nil, nil, fmt.Errorf("%q: %w", language, ErrUnsupportedLanguage)
	}

	dir, err := os.MkdirTemp("", "external-api-usage-")
	if err != nil {
		return nil, nil, fmt.Errorf("create pack directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	m := manifest{
		Name:    packName,
		Version: packVersion,
		Dependencies: map[string]string{
			fmt.Sprintf("codeql/%s-all", language): "*",
		},
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("serialize pack manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "qlpack.yml"), data, 0644); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("write pack manifest: %w", err)
	}

	queryPath := filepath.Join(dir, queryFileName)
	if err := os.WriteFile(queryPath, []byte(query), 0644); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("write usage query: %w", err)
	}

	return &Pack{Dir: dir, QueryPath: queryPath}, cleanup, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
