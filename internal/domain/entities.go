package domain

// ColumnKind tags how cells in a result column are interpreted.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindEntity
)

// String returns the kind name as it appears in result-set schemas.
func (k ColumnKind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBoolean:
		return "Boolean"
	case KindEntity:
		return "Entity"
	default:
		return "Unknown"
	}
}

// Column describes one column of a result set.
type Column struct {
	Name string
	Kind ColumnKind
}

// Location is a source position inside an analyzed database.
type Location struct {
	URI         string `json:"uri"`
	StartLine   int    `json:"startLine"`
	StartColumn int    `json:"startColumn"`
	EndLine     int    `json:"endLine"`
	EndColumn   int    `json:"endColumn"`
}

// EntityRef is a database entity cell: a label plus its source location.
type EntityRef struct {
	Label    string
	Location Location
}

// Value is one decoded cell. Kind selects which field is populated.
type Value struct {
	Kind   ColumnKind
	Str    string
	Int    int64
	Float  float64
	Bool   bool
	Entity EntityRef
}

// Chunk is one decoded page of a result set. NextPageOffset is nil on the
// final page; otherwise it is the row offset to request next.
type Chunk struct {
	Columns        []Column
	Tuples         [][]Value
	NextPageOffset *int
}

// Severity classifies a compiler diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// CompileMessage is one ordered diagnostic from query compilation.
type CompileMessage struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Position Location `json:"position"`
}

// QueryMetadata describes how a query's results are interpreted. An empty
// Kind means the query declares no result interpretation.
type QueryMetadata struct {
	Kind string `json:"kind,omitempty"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// DatabaseItem identifies one analyzed database on disk.
type DatabaseItem struct {
	DatabaseDir     string
	DatasetDir      string
	Language        string
	HasMetadataFile bool
}

// Capabilities reports what the connected evaluation backend supports.
// Resolved once per session from the backend's reported version.
type Capabilities struct {
	Version                      string
	SupportsDatabaseRegistration bool
	SupportsQueryPacks           bool
}

// Call is one call site of an external API, attached to its owning usage.
type Call struct {
	Label    string   `json:"label"`
	Location Location `json:"location"`
}

// ExternalAPIUsage groups every observed call of one external API
// signature. Rebuilt from decoded results on every analysis run, never
// persisted.
type ExternalAPIUsage struct {
	Signature        string
	PackageName      string
	TypeName         string
	MethodName       string
	MethodParameters string
	Supported        bool
	Usages           []Call
}

// ModeledMethodType is the tagged variant of a user-authored model.
type ModeledMethodType string

const (
	ModelNone    ModeledMethodType = "none"
	ModelSource  ModeledMethodType = "source"
	ModelSink    ModeledMethodType = "sink"
	ModelSummary ModeledMethodType = "summary"
	ModelNeutral ModeledMethodType = "neutral"
)

// Valid reports whether t is one of the known model variants.
func (t ModeledMethodType) Valid() bool {
	switch t {
	case ModelNone, ModelSource, ModelSink, ModelSummary, ModelNeutral:
		return true
	default:
		return false
	}
}

// ModeledMethod is a user-authored (or freshly generated) model for one
// external API signature.
type ModeledMethod struct {
	Type       ModeledMethodType `yaml:"type"`
	Input      string            `yaml:"input,omitempty"`
	Output     string            `yaml:"output,omitempty"`
	Kind       string            `yaml:"kind,omitempty"`
	Provenance string            `yaml:"provenance,omitempty"`
}
