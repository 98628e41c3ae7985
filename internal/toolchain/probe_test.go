package toolchain

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestFamilyOfDetectsClang(t *testing.T) {
	cases := map[string]Family{
		"/usr/bin/gcc":                GCC,
		"/usr/bin/cc":                 GCC,
		"/usr/bin/clang":              LLVM,
		"/usr/bin/clang++":            LLVM,
		"x86_64-linux-gnu-gcc":        GCC,
		"x86_64-pc-windows-gnu-clang": LLVM,
	}
	for path, want := range cases {
		if got := familyOf(path); got != want {
			t.Errorf("familyOf(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestPlatformOfDerivesFromTriple(t *testing.T) {
	cases := map[string]Platform{
		"x86_64-unknown-linux-gnu": Unix,
		"x86_64-apple-darwin":      Darwin,
		"aarch64-apple-ios":        Darwin,
		"x86_64-pc-windows-gnu":    Windows,
		"x86_64-w64-mingw32":       Windows,
		"arm-none-eabi":            None,
	}
	for triple, want := range cases {
		if got := platformOf(triple); got != want {
			t.Errorf("platformOf(%q) = %v, want %v", triple, got, want)
		}
	}
}

func TestPlatformString(t *testing.T) {
	cases := map[Platform]string{Unix: "unix", Darwin: "darwin", Windows: "windows", None: "none"}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("Platform(%d).String() = %q, want %q", p, got, want)
		}
	}
}

func TestCompanionNameStripsKnownSuffix(t *testing.T) {
	cases := map[[2]string]string{
		{"x86_64-linux-gnu-gcc", "ar"}: "x86_64-linux-gnu-ar",
		{"arm-none-eabi-clang++", "nm"}: "arm-none-eabi-nm",
		{"cc", "ar"}:                    "ar",
	}
	for in, want := range cases {
		if got := companionName(in[0], in[1]); got != want {
			t.Errorf("companionName(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}

func TestNewProbeWrapsErrToolNotFoundWhenCompanionMissing(t *testing.T) {
	trueBin, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no `true` binary on PATH to stand in for a compiler")
	}

	// Give "true" a compiler-shaped name with a bogus triple prefix, so
	// its derived companion names (e.g. "bogusnonexistent9999-ar") cannot
	// possibly resolve on PATH, exercising the ErrToolNotFound path
	// without depending on which binutils happen to be installed.
	dir := t.TempDir()
	fakeCC := filepath.Join(dir, "bogusnonexistent9999-gcc")
	data, err := os.ReadFile(trueBin)
	if err != nil {
		t.Skip("could not read `true` binary to copy it")
	}
	if err := os.WriteFile(fakeCC, data, 0755); err != nil {
		t.Fatal(err)
	}

	_, err = NewProbe(t.Context(), fakeCC, "x86_64-unknown-linux-gnu")
	if err == nil {
		t.Fatal("expected probe to fail locating companion tools for a fake compiler")
	}
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("got %v, want wrapped ErrToolNotFound", err)
	}
}

func TestNamespaceChangesWithOpts(t *testing.T) {
	p := &Probe{CompilerPath: "/usr/bin/gcc", Version: "13.2.0", Target: "x86_64-linux-gnu", Platform: Unix}
	a := p.Namespace(ToolchainOpts{Compile: CompileOpts{Std: "c11"}})
	b := p.Namespace(ToolchainOpts{Compile: CompileOpts{Std: "c11"}})
	c := p.Namespace(ToolchainOpts{Compile: CompileOpts{Std: "c17"}})
	if a != b {
		t.Error("same probe and opts should produce a stable namespace")
	}
	if a == c {
		t.Error("changing opts should change the namespace")
	}
}

func TestOutDirJoinsNamespace(t *testing.T) {
	p := &Probe{CompilerPath: "/usr/bin/gcc", Version: "13.2.0", Target: "x86_64-linux-gnu", Platform: Unix}
	opts := ToolchainOpts{}
	want := "build/" + p.Namespace(opts)
	if got := p.OutDir("build", opts); got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
