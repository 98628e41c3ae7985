package toolchain

import (
	"sort"

	"forge/internal/hash"
)

// CommonOpts holds the options shared across compile and link (-O, debug
// info, machine, feature flags).
type CommonOpts struct {
	Opt    string
	Stdlib string
	PIC    *bool
	Dbg    map[string]OptVal
	Mach   map[string]OptVal
	Feat   map[string]OptVal
	Flags  []string
}

// Args renders the common options to a flat argument vector.
func (c CommonOpts) Args() []string {
	var out []string
	if c.Opt != "" {
		out = append(out, "-O"+c.Opt)
	}
	if c.Stdlib != "" {
		out = append(out, "-stdlib="+c.Stdlib)
	}
	if c.PIC != nil && *c.PIC {
		out = append(out, "-fPIC", "-fpic")
	}
	out = append(out, formatMap("-g", c.Dbg)...)
	out = append(out, formatMap("-m", c.Mach)...)
	out = append(out, formatMap("-f", c.Feat)...)
	out = append(out, c.Flags...)
	return out
}

// CompileOpts holds compile-only options (standard, warnings, defines,
// include dirs).
type CompileOpts struct {
	Std   string
	Warn  map[string]OptVal
	Defs  map[string]string
	Dirs  []string
	Incs  []string
	No    []string
	Flags []string
}

// Args renders the compile-only options to a flat argument vector.
func (c CompileOpts) Args() []string {
	var out []string
	if c.Std != "" {
		out = append(out, "-std="+c.Std)
	}
	out = append(out, formatMap("-W", c.Warn)...)
	out = append(out, formatStrMap("-D", c.Defs)...)
	out = append(out, formatStrSet("-I", c.Dirs)...)
	out = append(out, formatStrSet("-i", c.Incs)...)
	out = append(out, formatStrSet("-no", c.No)...)
	out = append(out, c.Flags...)
	return out
}

// LinkOpts holds link-only options (library search/link, shared/static
// mode, pie).
type LinkOpts struct {
	Dirs      []string
	Libs      []string
	WholeLibs []string
	No        []string
	PIE       *OptVal
	Shared    *OptVal
	Shareds   []string
	Static    *OptVal
	Statics   []OptVal
	LinkFlags []string
	Flags     []string
}

// Args renders the link-only options to a flat argument vector.
func (l LinkOpts) Args() []string {
	var out []string
	out = append(out, formatStrSet("-L", l.Dirs)...)
	out = append(out, formatStrSet("-l", l.Libs)...)
	if len(l.WholeLibs) > 0 {
		out = append(out, "-Wl,--whole-archive")
		out = append(out, formatStrSet("-l", l.WholeLibs)...)
		out = append(out, "-Wl,--no-whole-archive")
	}
	out = append(out, formatStrSet("-no", l.No)...)
	if l.PIE != nil {
		switch l.PIE.kind {
		case Bool:
			if l.PIE.b {
				out = append(out, "-pie")
			} else {
				out = append(out, "-no-pie")
			}
		case Str:
			out = append(out, "-"+l.PIE.s+"-pie")
		}
	}
	if l.Shared != nil && l.Shared.kind == Bool && l.Shared.b {
		out = append(out, "-shared")
	}
	out = append(out, formatStrSet("-shared-", l.Shareds)...)
	if l.Static != nil && l.Static.kind == Bool && l.Static.b {
		out = append(out, "-static")
	}
	for _, v := range l.Statics {
		out = append(out, formatSet("-static-", []OptVal{v})...)
	}
	for _, o := range l.LinkFlags {
		out = append(out, "-Wl,"+o)
	}
	out = append(out, l.Flags...)
	return out
}

// DumpOpts holds objdump-style disassembly options.
type DumpOpts struct {
	Target  string
	Arch    string
	Disasm  []OptVal
	Flags   []string
}

// Args renders the dump options to a flat argument vector.
func (d DumpOpts) Args() []string {
	var out []string
	if d.Target != "" {
		out = append(out, "-b"+d.Target)
	}
	if d.Arch != "" {
		out = append(out, "-m"+d.Arch)
	}
	out = append(out, formatSet("-M", d.Disasm)...)
	out = append(out, d.Flags...)
	return out
}

// StripOpts holds strip's symbol-removal options.
type StripOpts struct {
	Strip   []string
	Keep    []string
	Discard []string
	Symbols map[string]bool
	Flags   []string
}

// Args renders the strip options to a flat argument vector.
func (s StripOpts) Args() []string {
	var out []string
	out = append(out, formatStrSet("--strip-", s.Strip)...)
	out = append(out, formatStrSet("--keep-", s.Keep)...)
	out = append(out, formatStrSet("--discard-", s.Discard)...)

	names := make([]string, 0, len(s.Symbols))
	for n := range s.Symbols {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		verb := "keep"
		if !s.Symbols[name] {
			verb = "strip"
		}
		out = append(out, "--"+verb+"-symbol="+name)
	}
	out = append(out, s.Flags...)
	return out
}

// ToolchainOpts aggregates every option sub-record used across the
// compile, link, dump and strip command lines.
type ToolchainOpts struct {
	Common  CommonOpts
	Compile CompileOpts
	Link    LinkOpts
	Dump    DumpOpts
	Strip   StripOpts
}

// CompileArgs renders the flags used for a compile invocation: common then
// compile-only options.
func (t ToolchainOpts) CompileArgs() []string {
	return append(t.Common.Args(), t.Compile.Args()...)
}

// LinkArgs renders the flags used for a link invocation: common then
// link-only options.
func (t ToolchainOpts) LinkArgs() []string {
	return append(t.Common.Args(), t.Link.Args()...)
}

// Hash returns a stable content hash over the rendered command lines this
// option set would produce, used to namespace intermediate output
// directories (see Probe.Namespace).
func (t ToolchainOpts) Hash() string {
	parts := append([]string{}, t.CompileArgs()...)
	parts = append(parts, t.LinkArgs()...)
	parts = append(parts, t.Dump.Args()...)
	parts = append(parts, t.Strip.Args()...)
	return hash.ContentString(parts...)
}

