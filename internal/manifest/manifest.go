// Package manifest reads a workspace's declarative build manifest
// (.forge/build.json or .forge/build.yaml) and populates a scope.Scope
// with the goals, compile/link rules and script-callback rules it
// describes. It is the concrete, data-driven front end the CLI uses to
// stand in for the embedded scripting host described in §1 as an opaque
// out-of-scope collaborator: a script-callback target's body is the
// snippet internal/script interprets, while compile/link targets drive
// internal/toolchain's rule constructors directly.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"forge/internal/diag"
	"forge/internal/graph"
	"forge/internal/scope"
	"forge/internal/script"
	"forge/internal/toolchain"
)

// Target is one buildable unit: either a compiled/linked executable (when
// Sources is non-empty) or a script-callback goal (when Script is set).
// Exactly one of the two must be populated.
type Target struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Sources     []string `json:"sources" yaml:"sources"`
	Script      string   `json:"script" yaml:"script"`
}

// Manifest is the top-level shape of .forge/build.json / build.yaml.
type Manifest struct {
	Compiler string   `json:"compiler" yaml:"compiler"`
	Target   string   `json:"target" yaml:"target"`
	OutDir   string   `json:"out_dir" yaml:"out_dir"`
	Targets  []Target `json:"targets" yaml:"targets"`
}

// Load reads the manifest from workspaceDir, preferring build.json over
// build.yaml. A missing manifest is not an error: it returns (nil, nil),
// meaning the workspace declares no goals yet.
func Load(workspaceDir string) (*Manifest, error) {
	jsonPath := filepath.Join(workspaceDir, ".forge", "build.json")
	if data, err := os.ReadFile(jsonPath); err == nil {
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", jsonPath, err)
		}
		return &m, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", jsonPath, err)
	}

	yamlPath := filepath.Join(workspaceDir, ".forge", "build.yaml")
	if data, err := os.ReadFile(yamlPath); err == nil {
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", yamlPath, err)
		}
		return &m, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", yamlPath, err)
	}

	return nil, nil
}

// Populate registers every manifest target as a goal under sc, wiring
// compile+link rules (via probe/opts) for source-based targets and an
// interpreted script-callback rule (via host) for script-based targets.
func (m *Manifest) Populate(sc *scope.Scope, probe *toolchain.Probe, opts toolchain.ToolchainOpts, outDir string, host *script.Host) error {
	for _, t := range m.Targets {
		goalArt, err := sc.NewGoal(t.Name, t.Description)
		if err != nil {
			return fmt.Errorf("target %s: %w", t.Name, err)
		}

		switch {
		case t.Script != "" && len(t.Sources) > 0:
			return fmt.Errorf("target %s: must set either sources or script, not both", t.Name)
		case t.Script != "":
			if err := wireScriptTarget(goalArt, t, host); err != nil {
				return fmt.Errorf("target %s: %w", t.Name, err)
			}
		case len(t.Sources) > 0:
			if err := wireCompileTarget(sc.Store(), goalArt, t, probe, opts, outDir); err != nil {
				return fmt.Errorf("target %s: %w", t.Name, err)
			}
		default:
			return fmt.Errorf("target %s: must set either sources or script", t.Name)
		}
	}
	return nil
}

func wireScriptTarget(goalArt *graph.Artifact, t Target, host *script.Host) error {
	cb, err := host.Compile(t.Script)
	if err != nil {
		return err
	}
	graph.NewRule(nil, []*graph.Artifact{goalArt}, host.InvokeFunc(cb))
	return nil
}

func wireCompileTarget(store *graph.Store, goalArt *graph.Artifact, t Target, probe *toolchain.Probe, opts toolchain.ToolchainOpts, outDir string) error {
	destDir := probe.OutDir(outDir, opts)

	var objs []string
	var objArtifacts []*graph.Artifact // strong refs, kept alive until LinkRule re-interns them by name
	for _, src := range t.Sources {
		rule, err := toolchain.CompileRule(store, probe, opts, src, destDir, toolchain.Object)
		if err != nil {
			return err
		}
		outs := rule.Outputs()
		if len(outs) != 1 {
			return fmt.Errorf("compile rule for %s: expected exactly one output", src)
		}
		objs = append(objs, outs[0].Name())
		objArtifacts = append(objArtifacts, outs[0])
	}

	linkRule, err := toolchain.LinkRule(store, probe, opts, objs, destDir, t.Name, "", toolchain.Executable, "")
	runtime.KeepAlive(objArtifacts)
	if err != nil {
		return err
	}
	binArt := linkRule.Outputs()[0]

	graph.NewRule([]*graph.Artifact{binArt}, []*graph.Artifact{goalArt}, func(ctx context.Context) (diag.Diagnostics, error) {
		return nil, nil
	})
	return nil
}
