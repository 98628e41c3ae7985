package toolchain

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"forge/internal/deps"
	"forge/internal/diag"
	"forge/internal/graph"
	"forge/internal/logging"
)

// Language is a source language detected from a file extension.
type Language int

const (
	LangC Language = iota
	LangCXX
	LangD
	LangAsm
)

// LanguageOf determines a source language from its filename extension.
func LanguageOf(srcPath string) (Language, bool) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(srcPath), ".")) {
	case "c":
		return LangC, true
	case "cpp", "cxx", "c++":
		return LangCXX, true
	case "d":
		return LangD, true
	case "s", "asm":
		return LangAsm, true
	default:
		return 0, false
	}
}

func (l Language) flag() string {
	switch l {
	case LangCXX:
		return "c++"
	case LangD:
		return "d"
	case LangAsm:
		return "assembler-with-cpp"
	default:
		return "c"
	}
}

// OutputKind selects what a compile invocation produces.
type OutputKind int

const (
	Object OutputKind = iota
	Preprocessed
	Asm
	LLVMIR
	LLVMBC
)

// LinkKind selects the kind of artifact a link invocation produces.
type LinkKind int

const (
	Executable LinkKind = iota
	Dynamic
	StaticLib
	LinkObject
)

func runToolchain(ctx context.Context, name string, args ...string) (diag.Diagnostics, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	d := diag.Parse(string(out))
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok && d.IsFailed() {
			return d, nil
		}
		return d, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// CompileRule builds a compile rule for one source file: it determines the
// language from src's extension, rejects D+preprocessed and GCC+IR/BC
// combinations, constructs the object (or other) output under destDir
// namespaced by probe+opts, loads any pre-existing dependency file as
// extra inputs, and re-parses that file after a successful invocation so
// the scheduler observes fresh header dependencies on its next walk.
func CompileRule(store *graph.Store, probe *Probe, opts ToolchainOpts, src string, destDir string, kind OutputKind) (*graph.Rule, error) {
	lang, ok := LanguageOf(src)
	if !ok {
		return nil, fmt.Errorf("compile %s: unrecognised source language", src)
	}
	if lang == LangD && kind == Preprocessed {
		return nil, fmt.Errorf("compile %s: D has no preprocessed output kind", src)
	}
	if probe.Family == GCC && (kind == LLVMIR || kind == LLVMBC) {
		return nil, fmt.Errorf("compile %s: GCC cannot emit LLVM IR/bitcode", src)
	}

	base := filepath.Base(src)
	ext := outputExt(lang, kind)
	dst := filepath.Join(destDir, strings.TrimSuffix(base, filepath.Ext(base))+ext)
	depFormat := deps.Make
	depPath := dst + ".d"
	if lang == LangD && probe.Family == LLVM {
		depFormat = deps.D
	}

	srcArt, err := store.Intern(src, graph.Actual, graph.Input)
	if err != nil {
		return nil, err
	}
	outArt, err := store.Intern(dst, graph.Actual, graph.Output)
	if err != nil {
		return nil, err
	}

	inputs := []*graph.Artifact{srcArt}
	if extra, err := deps.ReadDeps(store, depPath, depFormat, func(tok string) bool { return tok != src }); err == nil {
		inputs = append(inputs, extra...)
	}

	invoke := func(ctx context.Context) (diag.Diagnostics, error) {
		args := compileArgs(probe, opts, lang, kind, src, dst, depPath, depFormat)
		d, err := runToolchain(ctx, probe.CompilerPath, args...)
		if err != nil {
			return d, err
		}
		if fresh, rerr := deps.ReadDeps(store, depPath, depFormat, func(tok string) bool { return tok != src }); rerr == nil {
			r := outArt.Rule()
			if r != nil {
				r.ReplaceInputs(append([]*graph.Artifact{srcArt}, fresh...))
			}
		}
		return d, nil
	}

	r := graph.NewRule(inputs, []*graph.Artifact{outArt}, invoke)
	r.SetDescription(fmt.Sprintf("compile %s -> %s", src, dst))
	logging.ToolchainDebug("compile rule %s -> %s (lang=%d kind=%d)", src, dst, lang, kind)
	return r, nil
}

func outputExt(lang Language, kind OutputKind) string {
	switch kind {
	case Preprocessed:
		if lang == LangCXX {
			return ".ii"
		}
		return ".i"
	case Asm:
		return ".s"
	case LLVMIR:
		return ".ll"
	case LLVMBC:
		return ".bc"
	default:
		return ".o"
	}
}

func compileArgs(probe *Probe, opts ToolchainOpts, lang Language, kind OutputKind, src, dst, depPath string, depFormat deps.Format) []string {
	var args []string
	args = append(args, opts.CompileArgs()...)

	switch kind {
	case Preprocessed:
		args = append(args, "-E")
	case Asm:
		args = append(args, "-S")
	case LLVMIR:
		args = append(args, "-emit-llvm", "-S")
	case LLVMBC:
		args = append(args, "-emit-llvm", "-c")
	default:
		args = append(args, "-c")
	}

	if lang != LangD {
		args = append(args, "-x"+lang.flag())
	}
	if probe.Family == LLVM {
		args = append(args, "--target="+probe.Target)
	}

	if depFormat == deps.D {
		args = append(args, "-deps="+depPath)
	} else {
		args = append(args, "-MMD", "-MF", depPath)
	}

	args = append(args, "-o", dst, src)
	return args
}

// LinkRule builds a link rule from a set of object inputs to a single
// platform-adjusted binary, plus a companion map file. Static archives use
// the archiver instead of the compiler driver.
func LinkRule(store *graph.Store, probe *Probe, opts ToolchainOpts, objs []string, destDir, baseName string, script string, kind LinkKind, version string) (*graph.Rule, error) {
	binName := linkFilename(probe.Platform, kind, baseName, version)
	binPath := filepath.Join(destDir, binName)
	mapPath := binPath + ".map"

	var inputs []*graph.Artifact
	for _, o := range objs {
		a, err := store.Intern(o, graph.Actual, graph.Input)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, a)
	}
	var scriptArt *graph.Artifact
	if script != "" {
		a, err := store.Intern(script, graph.Actual, graph.Input)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, a)
		scriptArt = a
	}

	binArt, err := store.Intern(binPath, graph.Actual, graph.Output)
	if err != nil {
		return nil, err
	}
	mapArt, err := store.Intern(mapPath, graph.Actual, graph.Output)
	if err != nil {
		return nil, err
	}

	invoke := func(ctx context.Context) (diag.Diagnostics, error) {
		if kind == StaticLib {
			args := append([]string{"cr", binPath}, objs...)
			return runToolchain(ctx, probe.Tools.Ar, args...)
		}
		args := append([]string{}, opts.LinkArgs()...)
		if kind == Dynamic {
			args = append(args, "-shared")
		}
		if scriptArt != nil {
			args = append(args, "-T", scriptArt.Name())
		}
		args = append(args, "-Wl,-Map,"+mapPath)
		args = append(args, objs...)
		args = append(args, "-o", binPath)
		return runToolchain(ctx, probe.CompilerPath, args...)
	}

	r := graph.NewRule(inputs, []*graph.Artifact{binArt, mapArt}, invoke)
	r.SetDescription(fmt.Sprintf("link %s", binPath))
	return r, nil
}

func linkFilename(p Platform, kind LinkKind, base, version string) string {
	switch kind {
	case Dynamic:
		switch p {
		case Darwin:
			if version != "" {
				return "lib" + base + ".dylib." + version
			}
			return "lib" + base + ".dylib"
		case Windows:
			return base + ".dll"
		default:
			if version != "" {
				return "lib" + base + ".so." + version
			}
			return "lib" + base + ".so"
		}
	case StaticLib:
		return "lib" + base + ".a"
	case LinkObject:
		return base + ".o"
	default:
		if p == Windows {
			return base + ".exe"
		}
		return base
	}
}

// StripRule builds a strip rule for a single object. If stripInfoDir is
// non-empty the object is stripped to destDir/name with the removed debug
// info written to stripInfoDir/name; otherwise it is stripped in place.
func StripRule(store *graph.Store, probe *Probe, opts StripOpts, obj, destDir, stripInfoDir string) (*graph.Rule, error) {
	name := filepath.Base(obj)
	inArt, err := store.Intern(obj, graph.Actual, graph.Input)
	if err != nil {
		return nil, err
	}

	var outPath string
	var infoPath string
	if stripInfoDir != "" {
		outPath = filepath.Join(destDir, name)
		infoPath = filepath.Join(stripInfoDir, name)
	} else {
		outPath = obj
	}
	outArt, err := store.Intern(outPath, graph.Actual, graph.Output)
	if err != nil {
		return nil, err
	}
	outputs := []*graph.Artifact{outArt}
	var infoArt *graph.Artifact
	if infoPath != "" {
		infoArt, err = store.Intern(infoPath, graph.Actual, graph.Output)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, infoArt)
	}

	invoke := func(ctx context.Context) (diag.Diagnostics, error) {
		args := append([]string{}, opts.Args()...)
		if infoPath != "" {
			args = append(args, "--only-keep-debug", "-o", infoPath, obj)
			if d, err := runToolchain(ctx, probe.Tools.Strip, args...); err != nil || d.IsFailed() {
				return d, err
			}
			copyArgs := append([]string{}, opts.Args()...)
			copyArgs = append(copyArgs, "-o", outPath, obj)
			return runToolchain(ctx, probe.Tools.Strip, copyArgs...)
		}
		args = append(args, "-o", outPath, obj)
		return runToolchain(ctx, probe.Tools.Strip, args...)
	}

	r := graph.NewRule([]*graph.Artifact{inArt}, outputs, invoke)
	r.SetDescription(fmt.Sprintf("strip %s", obj))
	return r, nil
}

// LinkerScriptRule serialises script into a linker-script file, treating
// any included script paths as inputs.
func LinkerScriptRule(store *graph.Store, script LdScript, dst string) (*graph.Rule, error) {
	var inputs []*graph.Artifact
	for _, inc := range script.Includes {
		a, err := store.Intern(resolveInclude(dst, inc), graph.Actual, graph.Input)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, a)
	}

	outArt, err := store.Intern(dst, graph.Actual, graph.Output)
	if err != nil {
		return nil, err
	}

	invoke := func(ctx context.Context) (diag.Diagnostics, error) {
		return diag.Diagnostics{}, os.WriteFile(dst, []byte(script.Format()), 0644)
	}

	r := graph.NewRule(inputs, []*graph.Artifact{outArt}, invoke)
	r.SetDescription(fmt.Sprintf("emit linker script %s", dst))
	return r, nil
}

func resolveInclude(scriptPath, inc string) string {
	if path.IsAbs(inc) {
		return inc
	}
	return filepath.Join(filepath.Dir(scriptPath), inc)
}
