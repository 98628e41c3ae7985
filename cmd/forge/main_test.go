package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkspaceDirDefaultsToCwd(t *testing.T) {
	workspace = ""
	defer func() { workspace = "" }()

	want, err := os.Getwd()
	require.NoError(t, err)
	got, err := workspaceDir()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestWorkspaceDirHonorsFlag(t *testing.T) {
	ws := t.TempDir()
	workspace = ws
	defer func() { workspace = "" }()

	got, err := workspaceDir()
	require.NoError(t, err)
	want, err := filepath.Abs(ws)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSetupEngineWithNoManifestYieldsEmptyScope(t *testing.T) {
	ws := t.TempDir()
	workspace = ws
	defer func() { workspace = "" }()

	buildCmd.SetContext(context.Background())
	eng, err := setupEngine(buildCmd)
	require.NoError(t, err)
	require.Empty(t, eng.sc.Goals())
	require.Positive(t, eng.cfg.Jobs)
}

func TestSetupEngineWithScriptManifest(t *testing.T) {
	ws := t.TempDir()
	workspace = ws
	defer func() { workspace = "" }()

	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".forge"), 0755))
	manifest := `{"targets":[{"name":"check","script":"func Run(ctx context.Context) (string, error) { return \"\", nil }"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".forge", "build.json"), []byte(manifest), 0644))

	buildCmd.SetContext(context.Background())
	eng, err := setupEngine(buildCmd)
	require.NoError(t, err)
	require.NotNil(t, eng.sc.Goal("check"))
}
