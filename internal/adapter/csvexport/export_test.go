package csvexport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"qlmodel/internal/adapter/bqrs"
	"qlmodel/internal/domain"
)

func str(s string) domain.Value { return domain.Value{Kind: domain.KindString, Str: s} }
func boolV(b bool) domain.Value { return domain.Value{Kind: domain.KindBoolean, Bool: b} }
func intV(n int64) domain.Value { return domain.Value{Kind: domain.KindInteger, Int: n} }

func openReader(t *testing.T, sets []bqrs.ResultSet) *bqrs.Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.bqrs")
	if err := bqrs.Write(path, sets); err != nil {
		t.Fatal(err)
	}
	r, err := bqrs.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func export(t *testing.T, sets []bqrs.ResultSet, pageSize int) (bool, string) {
	t.Helper()
	r := openReader(t, sets)
	out := filepath.Join(t.TempDir(), "out.csv")

	ok, err := New(pageSize).Export(context.Background(), r, out, nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !ok {
		return false, ""
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	return true, string(data)
}

func TestExportQuotesStringColumnsOnly(t *testing.T) {
	sets := []bqrs.ResultSet{{
		Name: "#select",
		Columns: []domain.Column{
			{Name: "a", Kind: domain.KindInteger},
			{Name: "b", Kind: domain.KindString},
		},
		Tuples: [][]domain.Value{
			{intV(1), str("b")},
			{intV(2), str("d")},
		},
	}}

	ok, got := export(t, sets, 10)
	if !ok {
		t.Fatal("expected export to succeed")
	}
	want := "1,\"b\"\n2,\"d\"\n"
	if got != want {
		t.Errorf("export = %q, want %q", got, want)
	}
}

func TestExportDoublesEmbeddedQuotes(t *testing.T) {
	sets := []bqrs.ResultSet{{
		Name:    "#select",
		Columns: []domain.Column{{Name: "s", Kind: domain.KindString}},
		Tuples:  [][]domain.Value{{str(`say "hi"`)}},
	}}

	_, got := export(t, sets, 10)
	want := "\"say \"\"hi\"\"\"\n"
	if got != want {
		t.Errorf("export = %q, want %q", got, want)
	}
}

func TestExportBooleansByColumnKind(t *testing.T) {
	// A boolean in a non-string column is rendered bare; a boolean value
	// landing in a String column is stringified and quoted.
	sets := []bqrs.ResultSet{{
		Name: "#select",
		Columns: []domain.Column{
			{Name: "plain", Kind: domain.KindBoolean},
			{Name: "quoted", Kind: domain.KindBoolean},
		},
		Tuples: [][]domain.Value{{boolV(true), boolV(false)}},
	}}
	_, got := export(t, sets, 10)
	if got != "true,false\n" {
		t.Errorf("export = %q, want %q", got, "true,false\n")
	}

	if cell := formatCell(domain.KindString, boolV(false)); cell != `"false"` {
		t.Errorf("boolean in String column = %q, want %q", cell, `"false"`)
	}
	if cell := formatCell(domain.KindString, str("a")); cell != `"a"` {
		t.Errorf("string in String column = %q, want %q", cell, `"a"`)
	}
	if cell := formatCell(domain.KindInteger, str("a")); cell != "a" {
		t.Errorf("string in non-string column = %q, want %q", cell, "a")
	}
}

func TestExportMultiPage(t *testing.T) {
	set := bqrs.ResultSet{
		Name:    "#select",
		Columns: []domain.Column{{Name: "n", Kind: domain.KindInteger}},
	}
	for i := 0; i < 7; i++ {
		set.Tuples = append(set.Tuples, []domain.Value{intV(int64(i))})
	}

	_, got := export(t, []bqrs.ResultSet{set}, 3)
	want := "0\n1\n2\n3\n4\n5\n6\n"
	if got != want {
		t.Errorf("multi-page export = %q, want %q", got, want)
	}
}

func TestExportZeroResultSets(t *testing.T) {
	r := openReader(t, nil)
	out := filepath.Join(t.TempDir(), "out.csv")

	ok, err := New(10).Export(context.Background(), r, out, nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if ok {
		t.Error("expected false for a relation with zero result sets")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("expected no output file to be written")
	}
}

func TestExportFallsBackToFirstSet(t *testing.T) {
	sets := []bqrs.ResultSet{{
		Name:    "edges",
		Columns: []domain.Column{{Name: "n", Kind: domain.KindInteger}},
		Tuples:  [][]domain.Value{{intV(9)}},
	}}
	_, got := export(t, sets, 10)
	if got != "9\n" {
		t.Errorf("export = %q, want %q", got, "9\n")
	}
}

func TestExportCancelledLeavesNoFile(t *testing.T) {
	sets := []bqrs.ResultSet{{
		Name:    "#select",
		Columns: []domain.Column{{Name: "n", Kind: domain.KindInteger}},
		Tuples:  [][]domain.Value{{intV(1)}},
	}}
	r := openReader(t, sets)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.csv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(10).Export(ctx, r, out, nil); err == nil {
		t.Fatal("expected error from cancelled export")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files after cancelled export, found %v", entries)
	}
}
