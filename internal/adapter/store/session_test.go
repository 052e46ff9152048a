package store

import (
	"path/filepath"
	"testing"

	"qlmodel/internal/domain"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := NewSessionStore(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadModels(t *testing.T) {
	s := newTestStore(t)

	models := map[string]domain.ModeledMethod{
		"a.B#x()": {Type: domain.ModelSink, Input: "Argument[0]", Kind: "sql", Provenance: "manual"},
		"a.B#y()": {Type: domain.ModelNone},
	}
	if err := s.SaveModels("/db/java1", models); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := s.LoadModels("/db/java1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 models, got %d", len(loaded))
	}
	if loaded["a.B#x()"] != models["a.B#x()"] {
		t.Errorf("model not preserved: %+v", loaded["a.B#x()"])
	}
}

func TestLoadUnknownDatabase(t *testing.T) {
	s := newTestStore(t)

	loaded, err := s.LoadModels("/db/never-seen")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty session, got %v", loaded)
	}
}

func TestSaveReplacesSession(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveModels("/db/x", map[string]domain.ModeledMethod{
		"old#entry()": {Type: domain.ModelSource},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveModels("/db/x", map[string]domain.ModeledMethod{
		"new#entry()": {Type: domain.ModelSink},
	}); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.LoadModels("/db/x")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := loaded["old#entry()"]; ok {
		t.Error("stale entry survived a save")
	}
	if loaded["new#entry()"].Type != domain.ModelSink {
		t.Error("replacement entry missing")
	}
}

func TestDeleteAndListSessions(t *testing.T) {
	s := newTestStore(t)

	for _, dir := range []string{"/db/a", "/db/b"} {
		if err := s.SaveModels(dir, map[string]domain.ModeledMethod{
			"sig#m()": {Type: domain.ModelNeutral},
		}); err != nil {
			t.Fatal(err)
		}
	}

	dirs, err := s.ListSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 {
		t.Fatalf("expected 2 sessions, got %v", dirs)
	}

	if err := s.DeleteSession("/db/a"); err != nil {
		t.Fatal(err)
	}
	dirs, err = s.ListSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 1 || dirs[0] != "/db/b" {
		t.Errorf("expected only /db/b to remain, got %v", dirs)
	}

	// Deleting a missing session is a no-op.
	if err := s.DeleteSession("/db/never"); err != nil {
		t.Errorf("delete of unknown session: %v", err)
	}
}
