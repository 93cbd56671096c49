// Package backup snapshots sources into a timestamped cache directory
// before the executor's phase 1 runs, giving a failed run a recovery
// artifact.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/ngrash/mmv/internal/fsx"
	"github.com/ngrash/mmv/internal/mmverrors"
)

// Manager creates snapshots under XDG_CACHE_HOME/<product>/<timestamp>/.
type Manager struct {
	fsys    fsx.FS
	env     map[string]string
	product string
}

// New creates a Manager. product distinguishes the mmv/mcp variant in the
// backup path (MMV_NAME/MCP_NAME, see cmd/mmv and cmd/mcp).
func New(fsys fsx.FS, env map[string]string, product string) *Manager {
	return &Manager{fsys: fsys, env: env, product: product}
}

// Snapshot is a created backup directory, live until Remove is called.
type Snapshot struct {
	// Root is the backup directory's absolute path.
	Root string

	fsys fsx.FS
}

// Create snapshots every path in srcs under a fresh timestamped directory
// and returns it. On a partial failure the returned Snapshot is non-nil
// (its Root has already been created and partially populated) so the
// caller can still report and preserve it as the recovery artifact.
func (m *Manager) Create(srcs []string) (*Snapshot, error) {
	cacheHome := m.env["XDG_CACHE_HOME"]
	if cacheHome == "" {
		return nil, fmt.Errorf("%w: XDG_CACHE_HOME", mmverrors.ErrEnvMissing)
	}

	root := filepath.Join(cacheHome, m.product, strconv.FormatInt(time.Now().UnixNano(), 10))

	if err := m.fsys.MkdirAll(root, 0o700); err != nil {
		return nil, &mmverrors.FilesystemError{Op: "mkdir", Path: root, Err: err}
	}

	snap := &Snapshot{Root: root, fsys: m.fsys}

	for _, src := range srcs {
		if err := snap.copyOne(src); err != nil {
			return snap, err
		}
	}

	return snap, nil
}

// mirrorPath reproduces src's absolute path under the snapshot root by
// stripping its leading separator and joining.
func (s *Snapshot) mirrorPath(src string) string {
	rel := strings.TrimPrefix(filepath.Clean(src), string(filepath.Separator))

	return filepath.Join(s.Root, rel)
}

func (s *Snapshot) copyOne(src string) error {
	dest := s.mirrorPath(src)

	info, err := s.fsys.Stat(src)
	if err != nil {
		return &mmverrors.FilesystemError{Op: "stat", Path: src, Err: err}
	}

	// Directories get an empty skeleton, not a recursive copy: the real
	// source survives until phase 1 begins, so its contents are not at
	// risk until the move itself starts.
	if info.IsDir() {
		if err := s.fsys.MkdirAll(dest, info.Mode().Perm()); err != nil {
			return &mmverrors.FilesystemError{Op: "mkdir", Path: dest, Err: err}
		}

		return nil
	}

	return s.copyFile(src, dest)
}

func (s *Snapshot) copyFile(src, dest string) error {
	if err := s.fsys.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &mmverrors.FilesystemError{Op: "mkdir", Path: filepath.Dir(dest), Err: err}
	}

	r, err := s.fsys.Open(src)
	if err != nil {
		return &mmverrors.FilesystemError{Op: "open", Path: src, Err: err}
	}
	defer r.Close()

	if err := atomic.WriteFile(dest, r); err != nil {
		return &mmverrors.FilesystemError{Op: "write", Path: dest, Err: err}
	}

	info, err := s.fsys.Stat(src)
	if err == nil {
		_ = os.Chmod(dest, info.Mode().Perm())
	}

	return nil
}

// Remove deletes the snapshot. Callers invoke this only after a fully
// successful run; on failure the snapshot is left in place as the
// recovery artifact.
func (s *Snapshot) Remove() error {
	if err := s.fsys.RemoveAll(s.Root); err != nil {
		return &mmverrors.FilesystemError{Op: "remove", Path: s.Root, Err: err}
	}

	return nil
}
