// Package executor performs the two-phase move (or copy) that realizes a
// validated [renameset.Set] against the real filesystem.
package executor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ngrash/mmv/internal/fsx"
	"github.com/ngrash/mmv/internal/mmverrors"
	"github.com/ngrash/mmv/internal/renameset"
)

// PathKind distinguishes a file from a directory at the moment a move is
// executed; it governs which cross-device fallback primitive applies.
type PathKind int

const (
	KindFile PathKind = iota
	KindDir
)

// Options configures a single Run.
type Options struct {
	// Copy runs in copy mode: phase 1 is skipped and phase 2 copies src
	// directly to dst without removing src.
	Copy bool

	// DryRun performs no filesystem mutation; it only reports the
	// intended phase-2 actions to Out.
	DryRun bool

	// Verbose reports each phase-2 action to Out as it completes.
	Verbose bool

	// Out receives dry-run and verbose output lines. Required when
	// DryRun or Verbose is set.
	Out io.Writer
}

// Executor performs the moves/copies described by a [renameset.Set].
type Executor struct {
	fsys fsx.FS
}

// New creates an Executor that mutates fsys.
func New(fsys fsx.FS) *Executor {
	return &Executor{fsys: fsys}
}

// Run executes set according to opts. On success every src named in set
// has been moved (or, in copy mode, copied) to its dst.
//
// Any filesystem error during phase 1 or phase 2 is fatal; Run returns
// immediately, leaving the scratch directory (and backup, if the caller
// made one) in place as the recovery artifact.
func (e *Executor) Run(set renameset.Set, opts Options) error {
	if opts.DryRun {
		e.reportPhase2(set, opts)
		return nil
	}

	if !opts.Copy {
		for _, p := range set.Pairs {
			if err := e.transfer(p.Src, p.Scratch, true); err != nil {
				return err
			}
		}
	}

	for i := len(set.Pairs) - 1; i >= 0; i-- {
		p := set.Pairs[i]

		origin := p.Scratch
		if opts.Copy {
			origin = p.Src
		}

		if err := e.transfer(origin, p.Dst, !opts.Copy); err != nil {
			return err
		}

		if opts.Verbose {
			fmt.Fprintf(opts.Out, "%s '%s' -> '%s'\n", verb(opts.Copy), p.Src, p.Dst)
		}
	}

	return nil
}

func (e *Executor) reportPhase2(set renameset.Set, opts Options) {
	for i := len(set.Pairs) - 1; i >= 0; i-- {
		p := set.Pairs[i]
		fmt.Fprintf(opts.Out, "%s '%s' -> '%s'\n", verb(opts.Copy), p.Src, p.Dst)
	}
}

func verb(copyMode bool) string {
	if copyMode {
		return "copied"
	}

	return "renamed"
}

// transfer moves (or, when removeOrigin is false, copies) origin to dest.
// If both paths share a device and removeOrigin is true, a plain rename
// suffices; otherwise it copies bytes/directory contents and, if
// removeOrigin, removes origin afterward.
func (e *Executor) transfer(origin, dest string, removeOrigin bool) error {
	kind, err := e.kindOf(origin)
	if err != nil {
		return &mmverrors.FilesystemError{Op: "stat", Path: origin, Err: err}
	}

	// The destination's parent may not exist, e.g. when an ancestor of
	// dest was itself the source of another pair in this batch and has
	// already been moved out from under it. Create it implicitly rather
	// than failing, per the documented S2 scenario.
	if parent := filepath.Dir(dest); parent != "." {
		if err := e.fsys.MkdirAll(parent, 0o755); err != nil {
			return &mmverrors.FilesystemError{Op: "mkdir", Path: parent, Err: err}
		}
	}

	if removeOrigin && fsx.SameDevice(origin, dest) {
		if err := e.fsys.Rename(origin, dest); err != nil {
			return &mmverrors.FilesystemError{Op: "rename", Path: origin, Err: err}
		}

		return nil
	}

	if kind == KindDir {
		if err := e.copyDir(origin, dest); err != nil {
			return err
		}
	} else {
		if err := e.copyFile(origin, dest); err != nil {
			return err
		}
	}

	if removeOrigin {
		if err := e.fsys.RemoveAll(origin); err != nil {
			return &mmverrors.FilesystemError{Op: "remove", Path: origin, Err: err}
		}
	}

	return nil
}

func (e *Executor) kindOf(path string) (PathKind, error) {
	info, err := e.fsys.Stat(path)
	if err != nil {
		return 0, err
	}

	if info.IsDir() {
		return KindDir, nil
	}

	return KindFile, nil
}

func (e *Executor) copyFile(origin, dest string) error {
	src, err := e.fsys.Open(origin)
	if err != nil {
		return &mmverrors.FilesystemError{Op: "open", Path: origin, Err: err}
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return &mmverrors.FilesystemError{Op: "stat", Path: origin, Err: err}
	}

	if err := durableWrite(e.fsys, dest, src, info.Mode().Perm()); err != nil {
		return err
	}

	return nil
}

// copyDir recursively copies the directory tree rooted at origin to dest.
// A symlink found anywhere under origin that resolves outside the origin
// subtree is rejected with ErrCrossDeviceSymlink rather than followed,
// since doing so could copy data from outside the intended tree.
func (e *Executor) copyDir(origin, dest string) error {
	return e.copyDirWithin(origin, origin, dest)
}

func (e *Executor) copyDirWithin(root, origin, dest string) error {
	info, err := e.fsys.Stat(origin)
	if err != nil {
		return &mmverrors.FilesystemError{Op: "stat", Path: origin, Err: err}
	}

	if err := e.fsys.MkdirAll(dest, info.Mode().Perm()); err != nil {
		return &mmverrors.FilesystemError{Op: "mkdir", Path: dest, Err: err}
	}

	entries, err := e.fsys.ReadDir(origin)
	if err != nil {
		return &mmverrors.FilesystemError{Op: "readdir", Path: origin, Err: err}
	}

	for _, ent := range entries {
		childOrigin := filepath.Join(origin, ent.Name())
		childDest := filepath.Join(dest, ent.Name())

		lst, err := e.fsys.Lstat(childOrigin)
		if err != nil {
			return &mmverrors.FilesystemError{Op: "lstat", Path: childOrigin, Err: err}
		}

		if lst.Mode()&os.ModeSymlink != 0 {
			if err := e.copySymlinkTarget(root, childOrigin, childDest); err != nil {
				return err
			}

			continue
		}

		if ent.IsDir() {
			if err := e.copyDirWithin(root, childOrigin, childDest); err != nil {
				return err
			}
		} else if err := e.copyFile(childOrigin, childDest); err != nil {
			return err
		}
	}

	return nil
}

func (e *Executor) copySymlinkTarget(root, linkPath, dest string) error {
	target, err := e.fsys.Readlink(linkPath)
	if err != nil {
		return &mmverrors.FilesystemError{Op: "readlink", Path: linkPath, Err: err}
	}

	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(linkPath), resolved)
	}

	resolved = filepath.Clean(resolved)

	if !isWithin(root, resolved) {
		return fmt.Errorf("%w: %s -> %s", mmverrors.ErrCrossDeviceSymlink, linkPath, target)
	}

	kind, err := e.kindOf(linkPath)
	if err != nil {
		return &mmverrors.FilesystemError{Op: "stat", Path: linkPath, Err: err}
	}

	if kind == KindDir {
		return e.copyDirWithin(root, linkPath, dest)
	}

	return e.copyFile(linkPath, dest)
}

func isWithin(base, candidate string) bool {
	base = filepath.Clean(base)
	candidate = filepath.Clean(candidate)

	if base == candidate {
		return true
	}

	return strings.HasPrefix(candidate, base+string(filepath.Separator))
}
