package toolchain

import "errors"

// ErrToolNotFound is returned by NewProbe when one of a compiler's
// companion binutils (ar, nm, size, strip, objcopy, objdump, readelf) is
// missing or not executable. A compiler that cannot be run fails with the
// wrapped exec error instead.
var ErrToolNotFound = errors.New("toolchain: tool not found")
