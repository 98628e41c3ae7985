package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"forge/internal/graph"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcherUpdatesSourceTimeOnWrite(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "a.c")
	if err := os.WriteFile(srcPath, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	store := graph.NewStore()
	art, err := store.Intern(srcPath, graph.Actual, graph.Input)
	if err != nil {
		t.Fatal(err)
	}
	before := art.Time()

	w, err := New(store, 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Add(dir); err != nil {
		t.Fatal(err)
	}

	var changedPaths []string
	done := make(chan struct{})
	w.OnChange = func(paths []string) {
		changedPaths = paths
		close(done)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	defer func() {
		cancel()
		w.Stop()
	}()

	time.Sleep(20 * time.Millisecond)
	newer := before.Add(time.Hour)
	if err := os.Chtimes(srcPath, newer, newer); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(srcPath, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnChange")
	}

	if len(changedPaths) != 1 || changedPaths[0] != srcPath {
		t.Errorf("unexpected changed paths: %v", changedPaths)
	}
	if !art.Time().After(before) {
		t.Errorf("expected artifact time to advance past %v, got %v", before, art.Time())
	}
}

func TestStartIsIdempotent(t *testing.T) {
	store := graph.NewStore()
	w, err := New(store, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	w.Start(ctx) // second call must be a no-op, not spawn a second goroutine
	cancel()
	w.Stop()
}
