package layout

import (
	"path/filepath"

	"qlmodel/internal/domain"
)

// QueryRun derives the file layout of one query run from its save
// directory. Pure path construction, no I/O.
type QueryRun struct {
	dir string
}

// NewQueryRun creates a layout rooted at the given save directory.
func NewQueryRun(saveDir string) QueryRun {
	return QueryRun{dir: filepath.Clean(saveDir)}
}

// SaveDir returns the cleaned save directory.
func (q QueryRun) SaveDir() string {
	return q.dir
}

// CompiledQueryPath is where the compiled query object is written.
func (q QueryRun) CompiledQueryPath() string {
	return filepath.Join(q.dir, "compiledQuery.qlo")
}

// ResultsPath is where raw binary results are written.
func (q QueryRun) ResultsPath() string {
	return filepath.Join(q.dir, "results.bqrs")
}

// DilPath is where the debug intermediate language dump is written.
func (q QueryRun) DilPath() string {
	return filepath.Join(q.dir, "results.dil")
}

// InterpretedResultsPath is where interpreted (SARIF) results are written.
func (q QueryRun) InterpretedResultsPath() string {
	return filepath.Join(q.dir, "interpretedResults.sarif")
}

// CanHaveInterpretedResults reports whether interpreted results are
// meaningful for a query run: the database must carry a metadata file, the
// query must declare a result kind, and "graph" kinds are only surfaced
// when the canary flag is set.
func CanHaveInterpretedResults(metadata domain.QueryMetadata, databaseHasMetadataFile bool, canary bool) bool {
	if !databaseHasMetadataFile {
		return false
	}
	if metadata.Kind == "" {
		return false
	}
	if metadata.Kind == "graph" && !canary {
		return false
	}
	return true
}
