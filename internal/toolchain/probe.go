package toolchain

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"forge/internal/hash"
	"forge/internal/logging"
)

// Family distinguishes GCC-style from LLVM-style command-line conventions.
type Family int

const (
	GCC Family = iota
	LLVM
)

// Platform is the coarse target-triple-derived OS family, used to adjust
// output filenames in the link rule.
type Platform int

const (
	Unix Platform = iota
	Darwin
	Windows
	None
)

func (p Platform) String() string {
	switch p {
	case Darwin:
		return "darwin"
	case Windows:
		return "windows"
	case None:
		return "none"
	default:
		return "unix"
	}
}

// Tools holds the companion binaries that ride alongside a compiler.
type Tools struct {
	Ar        string
	Nm        string
	Size      string
	Strip     string
	Objcopy   string
	Objdump   string
	Readelf   string
	DCompiler string // optional; empty if none found
}

// Probe is a probed compiler toolchain: its identity, target, companion
// tools, and the content-hash namespace derived from all of it plus the
// caller's ToolchainOpts.
type Probe struct {
	CompilerPath string
	Family       Family
	Version      string
	Target       string
	Platform     Platform
	Tools        Tools
}

// runOut runs a compiler invocation and returns trimmed stdout.
func runOut(ctx context.Context, path string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", path, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// familyOf derives GCC vs LLVM from the executable name: any base name
// containing "clang" is LLVM, everything else is GCC.
func familyOf(compilerPath string) Family {
	base := filepath.Base(compilerPath)
	if strings.Contains(base, "clang") {
		return LLVM
	}
	return GCC
}

// platformOf derives the coarse platform tag from a target triple.
func platformOf(triple string) Platform {
	switch {
	case strings.Contains(triple, "darwin") || strings.Contains(triple, "apple"):
		return Darwin
	case strings.Contains(triple, "windows") || strings.Contains(triple, "mingw"):
		return Windows
	case strings.Contains(triple, "none"):
		return None
	default:
		return Unix
	}
}

// companionName derives a companion tool's expected name from the
// compiler path: a target-triple-prefixed compiler ("x86_64-linux-gnu-gcc")
// yields a triple-prefixed companion ("x86_64-linux-gnu-ar"); otherwise the
// bare tool name is used.
func companionName(compilerPath, tool string) string {
	base := filepath.Base(compilerPath)
	for _, suffix := range []string{"-gcc", "-clang", "-g++", "-clang++"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix) + "-" + tool
		}
	}
	return tool
}

// NewProbe invokes compilerPath to determine its version and target triple,
// locates its companion tools with execute-access preflight, and deduces
// the platform tag. An explicit targetTriple overrides the probed one
// (used for cross-compilation where -dumpmachine reports the host).
func NewProbe(ctx context.Context, compilerPath, targetTriple string) (*Probe, error) {
	version, err := runOut(ctx, compilerPath, "-dumpversion")
	if err != nil {
		return nil, fmt.Errorf("probe compiler version: %w", err)
	}
	target := targetTriple
	if target == "" {
		target, err = runOut(ctx, compilerPath, "-dumpmachine")
		if err != nil {
			return nil, fmt.Errorf("probe compiler target: %w", err)
		}
	}

	p := &Probe{
		CompilerPath: compilerPath,
		Family:       familyOf(compilerPath),
		Version:      version,
		Target:       target,
		Platform:     platformOf(target),
	}

	tools := map[string]*string{
		"ar":      &p.Tools.Ar,
		"nm":      &p.Tools.Nm,
		"size":    &p.Tools.Size,
		"strip":   &p.Tools.Strip,
		"objcopy": &p.Tools.Objcopy,
		"objdump": &p.Tools.Objdump,
		"readelf": &p.Tools.Readelf,
	}
	for tool, slot := range tools {
		name := companionName(compilerPath, tool)
		path, err := exec.LookPath(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s (%v)", ErrToolNotFound, name, err)
		}
		*slot = path
	}

	dTool := "gdc"
	if p.Family == LLVM {
		dTool = "ldc2"
	}
	if path, err := exec.LookPath(companionName(compilerPath, dTool)); err == nil {
		p.Tools.DCompiler = path
	}

	logging.Toolchain("probed %s: version=%s target=%s platform=%s", compilerPath, version, target, p.Platform)
	return p, nil
}

// Namespace returns the content-hash directory name that namespaces this
// probe's intermediate outputs under an out_dir, combining the probe's own
// identity (tool paths, version, target, platform) with the given option
// set so that changing any option routes the build to a fresh directory.
func (p *Probe) Namespace(opts ToolchainOpts) string {
	return hash.ContentString(
		p.CompilerPath, p.Version, p.Target, p.Platform.String(),
		p.Tools.Ar, p.Tools.Nm, p.Tools.Size, p.Tools.Strip,
		p.Tools.Objcopy, p.Tools.Objdump, p.Tools.Readelf, p.Tools.DCompiler,
		opts.Hash(),
	)
}

// OutDir returns "<outDir>/<namespace>", the directory intermediate
// outputs for this probe+opts combination should live under.
func (p *Probe) OutDir(outDir string, opts ToolchainOpts) string {
	return filepath.Join(outDir, p.Namespace(opts))
}
