package fsx

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// SameDevice reports whether a and b (which need not exist yet for b)
// live on the same filesystem device. When it cannot be determined
// (stat failure on an existing path other than not-found), it returns
// false so the caller falls back to the safe copy+remove execution
// path rather than risking a cross-device rename.
//
// b is allowed to not exist: its nearest existing ancestor directory is
// checked instead, since destinations are lexically normalized but not
// required to exist at plan time.
func SameDevice(a, b string) bool {
	devA, ok := deviceOf(a)
	if !ok {
		return false
	}

	devB, ok := deviceOf(nearestExisting(b))
	if !ok {
		return false
	}

	return devA == devB
}

func deviceOf(path string) (uint64, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, false
	}

	return uint64(st.Dev), true
}

// nearestExisting walks up from path until it finds a directory that
// exists, returning "." if nothing along the way does.
func nearestExisting(path string) string {
	cur := path

	for {
		if _, err := os.Stat(cur); err == nil {
			return cur
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return "."
		}

		cur = parent
	}
}
