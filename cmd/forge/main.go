// Package main implements the forge CLI.
//
// # File Index
//
//   - main.go        - entry point, rootCmd, global flags, logging bootstrap
//   - cmd_build.go   - `forge build [goals...]`
//   - cmd_watch.go   - `forge watch [goals...]`
//   - cmd_graph.go   - `forge graph [goals...]`
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"forge/internal/config"
	"forge/internal/graph"
	"forge/internal/logging"
	"forge/internal/manifest"
	"forge/internal/scope"
	"forge/internal/script"
	"forge/internal/toolchain"
)

var (
	verbose   bool
	workspace string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "forge - a scriptable, incremental, parallel build engine",
	Long: `forge turns user-authored build rules into a directed acyclic graph
of artifacts and rules, then drives that graph to completion with a
bounded-parallelism scheduler, rebuilding only what is out of date.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func workspaceDir() (string, error) {
	if workspace == "" {
		return os.Getwd()
	}
	return filepath.Abs(workspace)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: current)")

	rootCmd.AddCommand(buildCmd, watchCmd, graphCmd)
}

// engine bundles the pieces every subcommand needs: the goal/scope tree,
// the store it is backed by, and the resolved engine configuration.
type engine struct {
	cfg *config.Config
	sc  *scope.Scope
}

// setupEngine resolves the workspace, loads its config, loads the
// declarative build manifest (if any), and wires it into a fresh scope
// tree - compile/link targets via internal/toolchain, script-callback
// targets via internal/script. A workspace with no manifest yields an
// empty scope tree rather than an error: there is simply nothing to build
// yet.
func setupEngine(cmd *cobra.Command) (*engine, error) {
	ws, err := workspaceDir()
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}

	cfg, err := config.Load(ws)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Jobs == 0 {
		cfg.Jobs = runtime.NumCPU()
	}

	store := graph.NewStore()
	sc := scope.New(store)

	mf, err := manifest.Load(ws)
	if err != nil {
		return nil, fmt.Errorf("load build manifest: %w", err)
	}
	if mf != nil {
		compiler := mf.Compiler
		if compiler == "" {
			compiler = "cc"
		}
		probe, err := toolchain.NewProbe(cmd.Context(), compiler, mf.Target)
		if err != nil {
			return nil, fmt.Errorf("probe toolchain: %w", err)
		}
		outDir := mf.OutDir
		if outDir == "" {
			outDir = cfg.OutDir
		}
		if err := mf.Populate(sc, probe, toolchain.ToolchainOpts{}, filepath.Join(ws, outDir), script.NewHost()); err != nil {
			return nil, fmt.Errorf("populate build graph: %w", err)
		}
	}

	return &engine{cfg: cfg, sc: sc}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
