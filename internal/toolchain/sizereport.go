package toolchain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SectionSize is one row of a SysV size-report table.
type SectionSize struct {
	Name    string
	Size    uint64
	Address uint64
}

// ObjectSize is one object's SysV size-report block: an optional archive
// clause, its sections, and the block's reported Total.
type ObjectSize struct {
	Name    string
	Archive string
	Size    uint64
	Sections []SectionSize
}

// SizeInfo is a full SysV size-report parse: the grand total and a
// per-section rollup across every object block.
type SizeInfo struct {
	Size     uint64
	Sections map[string]uint64
	Objects  []ObjectSize
}

var sizeHeadRe = regexp.MustCompile(`^(.*?)(?:\s*\(ex\s*(.*?)\))?\s*:$`)
var sizeRowRe = regexp.MustCompile(`^(\S+)\s+(\d+)\s+(\d+)$`)
var sizeTotalRe = regexp.MustCompile(`^Total\s+(\d+)$`)

// ParseSysVSize parses `size -A`-style SysV output: one or more blocks of
// "NAME (ex ARCHIVE): \n section size addr \n ... \n Total N", separated
// by a blank line.
func ParseSysVSize(input string) (SizeInfo, error) {
	blocks := strings.Split(strings.TrimRight(input, "\n"), "\n\n")

	info := SizeInfo{Sections: make(map[string]uint64)}
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		obj, err := parseObjectBlock(block)
		if err != nil {
			return SizeInfo{}, err
		}
		info.Size += obj.Size
		for _, sec := range obj.Sections {
			info.Sections[sec.Name] += sec.Size
		}
		info.Objects = append(info.Objects, obj)
	}
	return info, nil
}

func parseObjectBlock(block string) (ObjectSize, error) {
	lines := strings.Split(block, "\n")
	if len(lines) < 3 {
		return ObjectSize{}, fmt.Errorf("size report: truncated object block %q", block)
	}

	m := sizeHeadRe.FindStringSubmatch(strings.TrimSpace(lines[0]))
	if m == nil {
		return ObjectSize{}, fmt.Errorf("size report: malformed header %q", lines[0])
	}
	obj := ObjectSize{Name: strings.TrimSpace(m[1]), Archive: strings.TrimSpace(m[2])}

	// lines[1] is the "section size addr" column header, skipped.
	var total *uint64
	for _, line := range lines[2:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if tm := sizeTotalRe.FindStringSubmatch(line); tm != nil {
			v, err := strconv.ParseUint(tm[1], 10, 64)
			if err != nil {
				return ObjectSize{}, err
			}
			total = &v
			continue
		}
		rm := sizeRowRe.FindStringSubmatch(line)
		if rm == nil {
			return ObjectSize{}, fmt.Errorf("size report: malformed row %q", line)
		}
		size, err := strconv.ParseUint(rm[2], 10, 64)
		if err != nil {
			return ObjectSize{}, err
		}
		addr, err := strconv.ParseUint(rm[3], 10, 64)
		if err != nil {
			return ObjectSize{}, err
		}
		obj.Sections = append(obj.Sections, SectionSize{Name: rm[1], Size: size, Address: addr})
	}

	if total == nil {
		return ObjectSize{}, fmt.Errorf("size report: missing Total line for %q", obj.Name)
	}
	obj.Size = *total
	return obj, nil
}
