package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"qlmodel/internal/adapter/bqrs"
	"qlmodel/internal/adapter/packgen"
	"qlmodel/internal/adapter/store"
	"qlmodel/internal/domain"
	"qlmodel/internal/port"
)

// fakeServer implements port.QueryServer; Run materializes a canned
// result file at the requested output path.
type fakeServer struct {
	caps       domain.Capabilities
	messages   []domain.CompileMessage
	resultSets []bqrs.ResultSet

	registered []string
	compiled   []domain.CompileRequest
	ran        []domain.RunRequest
}

func (f *fakeServer) Capabilities() domain.Capabilities { return f.caps }

func (f *fakeServer) Compile(ctx context.Context, req domain.CompileRequest, progress port.ProgressSink) ([]domain.CompileMessage, error) {
	f.compiled = append(f.compiled, req)
	return f.messages, nil
}

func (f *fakeServer) Run(ctx context.Context, req domain.RunRequest, progress port.ProgressSink) error {
	f.ran = append(f.ran, req)
	return bqrs.Write(req.OutputPath, f.resultSets)
}

func (f *fakeServer) RegisterDatabase(ctx context.Context, db domain.DatabaseItem) error {
	f.registered = append(f.registered, db.DatasetDir)
	return nil
}

func (f *fakeServer) DeregisterDatabase(ctx context.Context, db domain.DatabaseItem) error {
	return nil
}

func usageResultSets() []bqrs.ResultSet {
	cols := []domain.Column{
		{Name: "sig", Kind: domain.KindString},
		{Name: "supported", Kind: domain.KindBoolean},
		{Name: "call", Kind: domain.KindEntity},
	}
	row := func(sig string, supported bool, label string) []domain.Value {
		return []domain.Value{
			{Kind: domain.KindString, Str: sig},
			{Kind: domain.KindBoolean, Bool: supported},
			{Kind: domain.KindEntity, Entity: domain.EntityRef{Label: label}},
		}
	}
	return []bqrs.ResultSet{{
		Name:    "#select",
		Columns: cols,
		Tuples: [][]domain.Value{
			row("com.foo.Bar#baz(int)", true, "c1"),
			row("com.foo.Bar#baz(int)", true, "c2"),
			row("com.foo.Bar#qux()", false, "c3"),
		},
	}}
}

func newAnalyze(t *testing.T, srv *fakeServer) (*AnalyzeUseCase, *ModelingStore, *store.SessionStore) {
	t.Helper()
	sessions, err := store.NewSessionStore(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sessions.Close() })

	modeling := NewModelingStore()
	uc := NewAnalyzeUseCase(srv, sessions, modeling, domain.CompilationOptions{}, []string{"java", "csharp"}, 2)
	return uc, modeling, sessions
}

func TestGenerateEndToEnd(t *testing.T) {
	srv := &fakeServer{
		caps:       domain.Capabilities{Version: "2.12.0", SupportsDatabaseRegistration: true, SupportsQueryPacks: true},
		resultSets: usageResultSets(),
	}
	uc, modeling, _ := newAnalyze(t, srv)
	db := domain.DatabaseItem{DatabaseDir: "/db/j", DatasetDir: "/db/j/ds", Language: "java"}
	saveDir := filepath.Join(t.TempDir(), "run")

	result, err := uc.Generate(context.Background(), db, saveDir, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(srv.registered) != 1 || srv.registered[0] != "/db/j/ds" {
		t.Errorf("database not registered: %v", srv.registered)
	}
	if len(srv.compiled) != 1 || srv.compiled[0].Target.QueryPack == nil {
		t.Errorf("expected one pack-target compile, got %+v", srv.compiled)
	}
	if len(result.Usages) != 2 {
		t.Fatalf("expected 2 usage records, got %d", len(result.Usages))
	}
	if result.Usages[0].Signature != "com.foo.Bar#baz(int)" || len(result.Usages[0].Usages) != 2 {
		t.Errorf("usage aggregation wrong: %+v", result.Usages[0])
	}
	if result.SupportedPercent != 50 {
		t.Errorf("supported percent = %v, want 50", result.SupportedPercent)
	}

	// Raw results landed at the layout path.
	if _, err := os.Stat(filepath.Join(saveDir, "results.bqrs")); err != nil {
		t.Errorf("raw results missing: %v", err)
	}

	// Fresh candidates entered the session as "none".
	if m, ok := modeling.Model("com.foo.Bar#qux()"); !ok || m.Type != domain.ModelNone {
		t.Errorf("fresh candidate missing: %+v", m)
	}
}

func TestGenerateMergesAutosavedEdits(t *testing.T) {
	srv := &fakeServer{
		caps:       domain.Capabilities{SupportsQueryPacks: true},
		resultSets: usageResultSets(),
	}
	uc, modeling, sessions := newAnalyze(t, srv)
	db := domain.DatabaseItem{DatabaseDir: "/db/j", DatasetDir: "/db/j/ds", Language: "java"}

	// A previous session modeled baz as a sink.
	if err := sessions.SaveModels("/db/j", map[string]domain.ModeledMethod{
		"com.foo.Bar#baz(int)": {Type: domain.ModelSink, Input: "Argument[0]", Provenance: "manual"},
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := uc.Generate(context.Background(), db, t.TempDir(), nil); err != nil {
		t.Fatal(err)
	}

	m, ok := modeling.Model("com.foo.Bar#baz(int)")
	if !ok || m.Type != domain.ModelSink {
		t.Errorf("autosaved edit lost on regeneration: %+v", m)
	}

	// The merged state was autosaved back, including the new candidate.
	saved, err := sessions.LoadModels("/db/j")
	if err != nil {
		t.Fatal(err)
	}
	if saved["com.foo.Bar#baz(int)"].Type != domain.ModelSink {
		t.Errorf("autosave lost the user edit: %+v", saved)
	}
	if _, ok := saved["com.foo.Bar#qux()"]; !ok {
		t.Error("autosave missing the fresh candidate")
	}
}

func TestGenerateUnsupportedLanguage(t *testing.T) {
	srv := &fakeServer{caps: domain.Capabilities{SupportsQueryPacks: true}}
	uc, _, _ := newAnalyze(t, srv)
	db := domain.DatabaseItem{DatabaseDir: "/db/r", DatasetDir: "/db/r/ds", Language: "ruby"}

	_, err := uc.Generate(context.Background(), db, t.TempDir(), nil)
	if !errors.Is(err, packgen.ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
	if len(srv.registered) != 0 || len(srv.compiled) != 0 {
		t.Error("side effects performed for unsupported language")
	}
}

func TestGenerateCompileErrorAborts(t *testing.T) {
	srv := &fakeServer{
		caps: domain.Capabilities{SupportsQueryPacks: true},
		messages: []domain.CompileMessage{
			{Message: "syntax error", Severity: domain.SeverityError},
		},
	}
	uc, _, _ := newAnalyze(t, srv)
	db := domain.DatabaseItem{DatabaseDir: "/db/j", DatasetDir: "/db/j/ds", Language: "java"}

	result, err := uc.Generate(context.Background(), db, t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected error for failed compilation")
	}
	if result == nil || len(result.CompileMessages) != 1 {
		t.Error("compile messages not returned alongside the failure")
	}
	if len(srv.ran) != 0 {
		t.Error("evaluation ran despite compile errors")
	}
}

func TestGenerateFallsBackToQueryTarget(t *testing.T) {
	srv := &fakeServer{
		caps:       domain.Capabilities{SupportsQueryPacks: false},
		resultSets: usageResultSets(),
	}
	uc, _, _ := newAnalyze(t, srv)
	db := domain.DatabaseItem{DatabaseDir: "/db/j", DatasetDir: "/db/j/ds", Language: "java"}

	if _, err := uc.Generate(context.Background(), db, t.TempDir(), nil); err != nil {
		t.Fatal(err)
	}
	if srv.compiled[0].Target.Query == nil || srv.compiled[0].Target.QueryPack != nil {
		t.Errorf("expected bare query target for old backend, got %+v", srv.compiled[0].Target)
	}
}

func TestImportExportExtensions(t *testing.T) {
	srv := &fakeServer{caps: domain.Capabilities{SupportsQueryPacks: true}}
	uc, modeling, _ := newAnalyze(t, srv)

	packDir := t.TempDir()
	doc := `
extensions:
  "com.foo.Bar#baz(int)":
    type: sink
    input: Argument[0]
    kind: sql
`
	if err := os.WriteFile(filepath.Join(packDir, "frameworks.model.yml"), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := uc.ImportExtensions(packDir, nil)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 imported model, got %d", n)
	}
	if m, _ := modeling.Model("com.foo.Bar#baz(int)"); m.Type != domain.ModelSink {
		t.Errorf("imported model missing: %+v", m)
	}

	out := filepath.Join(t.TempDir(), "out.model.yml")
	usages := []domain.ExternalAPIUsage{{Signature: "com.foo.Bar#baz(int)"}}
	if err := uc.ExportExtensions(out, usages); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("exported document is empty")
	}
}
