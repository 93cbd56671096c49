// Package pathutil implements the two path operations the rename-set
// builder needs: canonicalizing a source (filesystem-consulting) and
// normalizing a destination (purely lexical).
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ngrash/mmv/internal/fsx"
	"github.com/ngrash/mmv/internal/mmverrors"
)

// Canonicalize resolves s to its canonical, absolute, symlink-free form.
// It fails with mmverrors.ErrSourceMissing if s does not exist.
func Canonicalize(fsys fsx.FS, cwd, s string) (string, error) {
	abs := s
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(cwd, abs)
	}

	if exists, err := fsys.Exists(abs); err != nil {
		return "", fmt.Errorf("stat %s: %w", abs, err)
	} else if !exists {
		return "", fmt.Errorf("%w: %s", mmverrors.ErrSourceMissing, s)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", mmverrors.ErrSourceMissing, s)
		}

		return "", fmt.Errorf("resolving symlinks in %s: %w", abs, err)
	}

	return filepath.Clean(resolved), nil
}

// Normalize lexically simplifies d into an absolute path. It never
// touches the filesystem: consecutive separators are collapsed, "."
// components are dropped, and ".." pops the previous component, but
// never past the root. Any platform-specific volume prefix is
// preserved.
//
// The result never contains a "." or ".." component, and the function
// is idempotent: normalizing twice yields the same path.
func Normalize(cwd, d string) string {
	abs := d
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(cwd, abs)
	}

	vol := filepath.VolumeName(abs)
	rest := abs[len(vol):]

	sep := string(filepath.Separator)
	parts := strings.Split(rest, sep)

	var stack []string

	for _, p := range parts {
		switch p {
		case "", ".":
			// Skip empty (from consecutive separators / leading root)
			// and current-directory components.
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, p)
		}
	}

	return vol + sep + strings.Join(stack, sep)
}
