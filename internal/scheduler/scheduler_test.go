package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"forge/internal/diag"
	"forge/internal/graph"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// collectSink gathers every event emitted during a Run for assertions.
type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *collectSink) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collectSink) kinds() []EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []EventKind
	for _, e := range c.events {
		out = append(out, e.Kind)
	}
	return out
}

func TestRunBuildsSimpleChain(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	touch(t, src, "hello")
	out := filepath.Join(dir, "a.out")

	s := graph.NewStore()
	srcArt, err := s.Intern(src, graph.Actual, graph.Input)
	if err != nil {
		t.Fatal(err)
	}
	outArt, err := s.Intern(out, graph.Actual, graph.Output)
	if err != nil {
		t.Fatal(err)
	}
	graph.NewRule([]*graph.Artifact{srcArt}, []*graph.Artifact{outArt}, func(ctx context.Context) (diag.Diagnostics, error) {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		return nil, os.WriteFile(out, data, 0644)
	})

	goal, err := s.Intern("build", graph.Phony, graph.Output)
	if err != nil {
		t.Fatal(err)
	}
	graph.NewRule([]*graph.Artifact{outArt}, []*graph.Artifact{goal}, func(ctx context.Context) (diag.Diagnostics, error) {
		return nil, nil
	})

	sink := &collectSink{}
	if err := Run(context.Background(), s, []string{"build"}, Options{Jobs: 2, Sink: sink}); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q want %q", got, "hello")
	}

	kinds := sink.kinds()
	if len(kinds) == 0 {
		t.Fatal("expected events")
	}
}

func TestRunDryRunSchedulesButDoesNotExecute(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	touch(t, src, "hello")
	out := filepath.Join(dir, "a.out")

	s := graph.NewStore()
	srcArt, err := s.Intern(src, graph.Actual, graph.Input)
	if err != nil {
		t.Fatal(err)
	}
	outArt, err := s.Intern(out, graph.Actual, graph.Output)
	if err != nil {
		t.Fatal(err)
	}
	ran := false
	graph.NewRule([]*graph.Artifact{srcArt}, []*graph.Artifact{outArt}, func(ctx context.Context) (diag.Diagnostics, error) {
		ran = true
		return nil, os.WriteFile(out, []byte("x"), 0644)
	})

	goal, err := s.Intern("build", graph.Phony, graph.Output)
	if err != nil {
		t.Fatal(err)
	}
	graph.NewRule([]*graph.Artifact{outArt}, []*graph.Artifact{goal}, func(ctx context.Context) (diag.Diagnostics, error) {
		return nil, nil
	})

	sink := &collectSink{}
	if err := Run(context.Background(), s, []string{"build"}, Options{DryRun: true, Sink: sink}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ran {
		t.Error("dry run must not invoke rules")
	}
	if len(sink.kinds()) == 0 {
		t.Error("expected Scheduled events even in dry run")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("dry run must not produce outputs")
	}
}

func TestRunCannotBeBuiltWhenInputRuleFails(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.c")
	touch(t, src, "int main(){}")
	mid := filepath.Join(dir, "mid.o")
	out := filepath.Join(dir, "out.bin")

	s := graph.NewStore()
	srcArt, err := s.Intern(src, graph.Actual, graph.Input)
	if err != nil {
		t.Fatal(err)
	}
	midArt, err := s.Intern(mid, graph.Actual, graph.Output)
	if err != nil {
		t.Fatal(err)
	}
	graph.NewRule([]*graph.Artifact{srcArt}, []*graph.Artifact{midArt}, func(ctx context.Context) (diag.Diagnostics, error) {
		return nil, errors.New("boom")
	})

	outArt, err := s.Intern(out, graph.Actual, graph.Output)
	if err != nil {
		t.Fatal(err)
	}
	graph.NewRule([]*graph.Artifact{midArt}, []*graph.Artifact{outArt}, func(ctx context.Context) (diag.Diagnostics, error) {
		return nil, nil
	})

	goal, err := s.Intern("build", graph.Phony, graph.Output)
	if err != nil {
		t.Fatal(err)
	}
	graph.NewRule([]*graph.Artifact{outArt}, []*graph.Artifact{goal}, func(ctx context.Context) (diag.Diagnostics, error) {
		return nil, nil
	})

	err = Run(context.Background(), s, []string{"build"}, Options{Jobs: 2})
	if !errors.Is(err, ErrCannotBeBuilt) {
		t.Fatalf("expected ErrCannotBeBuilt, got %v", err)
	}
}
