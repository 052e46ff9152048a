package usecase

import (
	"context"
	"fmt"
	"os"

	"qlmodel/internal/adapter/bqrs"
	"qlmodel/internal/adapter/extensions"
	"qlmodel/internal/adapter/layout"
	"qlmodel/internal/adapter/packgen"
	"qlmodel/internal/domain"
	"qlmodel/internal/port"
)

// AnalyzeUseCase drives one analysis run end to end: generate the usage
// query pack, compile and evaluate it, decode the results, aggregate
// usages, and merge fresh candidates into the modeling session.
type AnalyzeUseCase struct {
	server    port.QueryServer
	sessions  port.SessionStore
	store     *ModelingStore
	compile   domain.CompilationOptions
	languages []string
	pageSize  int
}

// NewAnalyzeUseCase creates a new analyze use case.
func NewAnalyzeUseCase(
	server port.QueryServer,
	sessions port.SessionStore,
	store *ModelingStore,
	compile domain.CompilationOptions,
	languages []string,
	pageSize int,
) *AnalyzeUseCase {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &AnalyzeUseCase{
		server:    server,
		sessions:  sessions,
		store:     store,
		compile:   compile,
		languages: languages,
		pageSize:  pageSize,
	}
}

// GenerateResult summarizes one analysis run.
type GenerateResult struct {
	Usages           []domain.ExternalAPIUsage
	CompileMessages  []domain.CompileMessage
	SupportedPercent float64
}

// Generate runs the external-API usage analysis for a database, writing
// run artifacts under saveDir, and merges the outcome into the session.
func (u *AnalyzeUseCase) Generate(ctx context.Context, db domain.DatabaseItem, saveDir string, progress port.ProgressSink) (*GenerateResult, error) {
	if progress == nil {
		progress = port.NopProgress
	}

	pack, cleanup, err := packgen.Generate(db.Language, u.languages)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	progress.Progress(1, 4, "Generated usage query pack")

	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return nil, fmt.Errorf("create save directory: %w", err)
	}
	run := layout.NewQueryRun(saveDir)

	if err := u.server.RegisterDatabase(ctx, db); err != nil {
		return nil, fmt.Errorf("register database: %w", err)
	}

	req := domain.CompileRequest{
		CompilationOptions: u.compile,
		QueryToCheck:       pack.QueryPath,
		ResultPath:         run.CompiledQueryPath(),
		Target:             compileTarget(u.server.Capabilities(), pack),
	}
	messages, err := u.server.Compile(ctx, req, progress)
	if err != nil {
		return nil, fmt.Errorf("compile usage query: %w", err)
	}
	result := &GenerateResult{CompileMessages: messages}
	for _, m := range messages {
		if m.Severity == domain.SeverityError {
			return result, fmt.Errorf("usage query failed to compile: %s", m.Message)
		}
	}
	progress.Progress(2, 4, "Compiled usage query")

	runReq := domain.RunRequest{
		QloPath:    run.CompiledQueryPath(),
		DatasetDir: db.DatasetDir,
		OutputPath: run.ResultsPath(),
	}
	if err := u.server.Run(ctx, runReq, progress); err != nil {
		return nil, fmt.Errorf("evaluate usage query: %w", err)
	}
	progress.Progress(3, 4, "Evaluated usage query")

	tuples, err := u.decodeAll(ctx, run.ResultsPath())
	if err != nil {
		return nil, err
	}

	result.Usages = AggregateUsages(tuples)
	result.SupportedPercent = SupportedPercentage(result.Usages)

	u.store.ApplyFresh(FreshCandidates(result.Usages))

	saved, err := u.sessions.LoadModels(db.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("load autosaved session: %w", err)
	}
	if len(saved) > 0 {
		u.store.ApplyExisting(saved)
	}
	if err := u.sessions.SaveModels(db.DatabaseDir, u.store.Models()); err != nil {
		return nil, fmt.Errorf("autosave session: %w", err)
	}
	progress.Progress(4, 4, "Merged analysis results")

	return result, nil
}

// compileTarget prefers the query-pack target when the backend supports
// it, otherwise falls back to compiling the bare query file.
func compileTarget(caps domain.Capabilities, pack *packgen.Pack) domain.CompileTarget {
	if caps.SupportsQueryPacks {
		return domain.CompileTarget{
			QueryPack: &domain.QueryPackRef{PackDir: pack.Dir, QueryPath: pack.QueryPath},
		}
	}
	return domain.CompileTarget{Query: &domain.QueryToCheck{QueryPath: pack.QueryPath}}
}

// decodeAll pages through the primary result set. A relation with zero
// result sets yields zero tuples.
func (u *AnalyzeUseCase) decodeAll(ctx context.Context, resultsPath string) ([][]domain.Value, error) {
	reader, err := bqrs.Open(resultsPath)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	names := reader.ResultSets()
	if len(names) == 0 {
		return nil, nil
	}
	name := names[0]
	for _, n := range names {
		if n == "#select" || n == "select" {
			name = n
			break
		}
	}

	var tuples [][]domain.Value
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := reader.Decode(name, offset, u.pageSize)
		if err != nil {
			return nil, fmt.Errorf("decode results at row %d: %w", offset, err)
		}
		tuples = append(tuples, chunk.Tuples...)
		if chunk.NextPageOffset == nil {
			return tuples, nil
		}
		offset = *chunk.NextPageOffset
	}
}

// ImportExtensions loads every model file under an extension pack
// directory into the session, preserving local edits per the overlay
// rules.
func (u *AnalyzeUseCase) ImportExtensions(packDir string, globs []string) (int, error) {
	files, err := extensions.FindModelFiles(packDir, globs)
	if err != nil {
		return 0, fmt.Errorf("discover model files: %w", err)
	}

	imported := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return imported, fmt.Errorf("read %s: %w", file, err)
		}
		models, err := extensions.LoadDataExtensionYaml(data)
		if err != nil {
			return imported, fmt.Errorf("load %s: %w", file, err)
		}
		u.store.ApplyExisting(models)
		imported += len(models)
	}
	return imported, nil
}

// ExportExtensions writes the session's models for the given usages to an
// extension file.
func (u *AnalyzeUseCase) ExportExtensions(path string, usages []domain.ExternalAPIUsage) error {
	data, err := extensions.CreateDataExtensionYaml(usages, u.store.Models())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
