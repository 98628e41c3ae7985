package deps

import (
	"os"
	"path/filepath"
	"testing"

	"forge/internal/graph"
)

func TestParseMakeUnionAcrossStanzas(t *testing.T) {
	data := "out.o: a.c b.h \\\n  c.h\nother.o: a.c d.h\n"
	got := ParseMake(data)
	want := map[string]bool{"a.c": true, "b.h": true, "c.h": true, "d.h": true}
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), got)
	}
	for _, tok := range got {
		if !want[tok] {
			t.Errorf("unexpected token %q", tok)
		}
	}
}

func TestParseMakeEscapedSpace(t *testing.T) {
	data := `out.o: my\ file.c`
	got := ParseMake(data)
	if len(got) != 1 || got[0] != "my file.c" {
		t.Fatalf("expected [\"my file.c\"], got %v", got)
	}
}

func TestParseMakeStripsComments(t *testing.T) {
	data := "# this whole line is a comment\nout.o: a.c b.h # trailing comment\nother.o: c.h\n"
	got := ParseMake(data)
	want := map[string]bool{"a.c": true, "b.h": true, "c.h": true}
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), got)
	}
	for _, tok := range got {
		if !want[tok] {
			t.Errorf("unexpected token %q", tok)
		}
	}
}

func TestParseD(t *testing.T) {
	data := "object.o (source.d) : (header1.h)\nobject.o (source.d) : (header2.h)\n"
	got := ParseD(data)
	want := map[string]bool{"header1.h": true, "header2.h": true}
	if len(got) != 2 {
		t.Fatalf("expected 2 dep-source tokens, got %v", got)
	}
	for _, tok := range got {
		if !want[tok] {
			t.Errorf("unexpected token %q", tok)
		}
	}
}

func TestReadDepsInternsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.c", "b.h"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	depFile := filepath.Join(dir, "out.d")
	content := "out.o: a.c b.h\n"
	if err := os.WriteFile(depFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	store := graph.NewStore()
	filter := func(tok string) bool { return tok != filepath.Join(dir, "a.c") }

	got, err := ReadDeps(store, depFile, Make, func(tok string) bool {
		full := filepath.Join(dir, tok)
		return filter(full)
	})
	if err != nil {
		t.Fatalf("read deps: %v", err)
	}
	if len(got) != 1 || got[0].Name() != "b.h" {
		t.Fatalf("expected only b.h to survive filtering, got %v", got)
	}
}
