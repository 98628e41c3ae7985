package toolchain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// LdRegion is one named MEMORY block entry.
type LdRegion struct {
	Name    string
	Read    bool
	Write   bool
	Exec    bool
	Address uint64
	Size    uint64
}

func (r LdRegion) format() string {
	perms := ""
	if r.Read {
		perms += "r"
	}
	if r.Write {
		perms += "w"
	}
	if r.Exec {
		perms += "x"
	}
	return fmt.Sprintf("    %s (%s) : ORIGIN = 0x%x, LENGTH = 0x%x", r.Name, perms, r.Address, r.Size)
}

// LdScript is the in-memory form of a linker script: memory regions, entry
// point, extern symbols, provide expressions (stored pre-formatted, since
// the expression grammar itself is opaque to forge), raw section blocks,
// and an include list.
type LdScript struct {
	Entry    string
	Memory   []LdRegion
	Externs  []string
	Provides map[string]string
	Sections []string
	Includes []string
}

// Format serialises the script to the textual linker-script syntax that
// Parse can read back.
func (s LdScript) Format() string {
	var b strings.Builder

	if len(s.Memory) > 0 {
		b.WriteString("MEMORY {\n")
		for _, r := range s.Memory {
			b.WriteString(r.format())
			b.WriteByte('\n')
		}
		b.WriteString("}\n")
	}
	if s.Entry != "" {
		fmt.Fprintf(&b, "ENTRY(%s);\n", s.Entry)
	}
	for _, name := range s.Externs {
		fmt.Fprintf(&b, "EXTERN(%s);\n", name)
	}
	names := make([]string, 0, len(s.Provides))
	for name := range s.Provides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "PROVIDE(%s = %s);\n", name, s.Provides[name])
	}
	for _, inc := range s.Includes {
		fmt.Fprintf(&b, "INCLUDE %s\n", inc)
	}
	if len(s.Sections) > 0 {
		b.WriteString("SECTIONS {\n")
		for _, sec := range s.Sections {
			b.WriteString(sec)
		}
		b.WriteString("}\n")
	}
	return b.String()
}

var (
	ldMemoryHeaderRe = regexp.MustCompile(`^MEMORY\s*\{$`)
	ldRegionRe       = regexp.MustCompile(`^(\S+)\s*\(([rwx]*)\)\s*:\s*ORIGIN\s*=\s*0x([0-9a-fA-F]+),\s*LENGTH\s*=\s*0x([0-9a-fA-F]+)$`)
	ldEntryRe        = regexp.MustCompile(`^ENTRY\((.+)\);$`)
	ldExternRe       = regexp.MustCompile(`^EXTERN\((.+)\);$`)
	ldProvideRe      = regexp.MustCompile(`^PROVIDE\((\S+)\s*=\s*(.+)\);$`)
	ldIncludeRe      = regexp.MustCompile(`^INCLUDE\s+(\S+)$`)
	ldSectionsHdrRe  = regexp.MustCompile(`^SECTIONS\s*\{$`)
)

// Parse reads a linker script back into an LdScript. It recognises exactly
// the subset Format emits: MEMORY, ENTRY, EXTERN, PROVIDE, INCLUDE and a
// raw SECTIONS block (kept verbatim, one string per body line).
func Parse(text string) (LdScript, error) {
	var script LdScript
	script.Provides = make(map[string]string)

	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		switch {
		case ldMemoryHeaderRe.MatchString(line):
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) != "}" {
				rline := strings.TrimSpace(lines[i])
				if rline != "" {
					m := ldRegionRe.FindStringSubmatch(rline)
					if m == nil {
						return LdScript{}, fmt.Errorf("ld script: malformed MEMORY entry %q", rline)
					}
					addr, err := strconv.ParseUint(m[3], 16, 64)
					if err != nil {
						return LdScript{}, err
					}
					size, err := strconv.ParseUint(m[4], 16, 64)
					if err != nil {
						return LdScript{}, err
					}
					script.Memory = append(script.Memory, LdRegion{
						Name:    m[1],
						Read:    strings.Contains(m[2], "r"),
						Write:   strings.Contains(m[2], "w"),
						Exec:    strings.Contains(m[2], "x"),
						Address: addr,
						Size:    size,
					})
				}
				i++
			}

		case ldEntryRe.MatchString(line):
			script.Entry = ldEntryRe.FindStringSubmatch(line)[1]

		case ldExternRe.MatchString(line):
			script.Externs = append(script.Externs, ldExternRe.FindStringSubmatch(line)[1])

		case ldProvideRe.MatchString(line):
			m := ldProvideRe.FindStringSubmatch(line)
			script.Provides[m[1]] = m[2]

		case ldIncludeRe.MatchString(line):
			script.Includes = append(script.Includes, ldIncludeRe.FindStringSubmatch(line)[1])

		case ldSectionsHdrRe.MatchString(line):
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) != "}" {
				script.Sections = append(script.Sections, lines[i]+"\n")
				i++
			}

		default:
			return LdScript{}, fmt.Errorf("ld script: unrecognised line %q", line)
		}
	}
	return script, nil
}
