//go:build !linux

package sparse

import (
	"errors"
	"os"
)

// errHolePunchUnsupported causes Expand to fall back to a plain Seek (or,
// for non-seekable sinks, explicit zero-fill) on platforms without
// FALLOC_FL_PUNCH_HOLE.
var errHolePunchUnsupported = errors.New("hole punching unsupported on this platform")

func punchHole(f *os.File, offset, size int64) error {
	return errHolePunchUnsupported
}
