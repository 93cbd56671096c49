package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"io"

	"github.com/ngrash/mmv/internal/fsx"
	"github.com/ngrash/mmv/internal/mmverrors"
)

// durableWrite writes r to path atomically: it writes to a temp file in
// the same directory, syncs it, then renames it over path. Adapted from
// the atomic-write technique used for ticket files, generalized to drive
// an injected [fsx.FS] instead of the os package directly so executor
// tests can exercise it against a fake filesystem.
func durableWrite(fsys fsx.FS, path string, r io.Reader, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return &mmverrors.FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}

	tmpFile, tmpPath, err := createTempFile(fsys, dir, base, perm)
	if err != nil {
		return &mmverrors.FilesystemError{Op: "create temp file", Path: dir, Err: err}
	}

	cleanup := func() {
		_ = tmpFile.Close()
		_ = fsys.Remove(tmpPath)
	}

	if _, err := io.Copy(tmpFile, r); err != nil {
		cleanup()

		return &mmverrors.FilesystemError{Op: "write", Path: tmpPath, Err: err}
	}

	if err := tmpFile.Sync(); err != nil {
		cleanup()

		return &mmverrors.FilesystemError{Op: "sync", Path: tmpPath, Err: err}
	}

	if err := tmpFile.Close(); err != nil {
		_ = fsys.Remove(tmpPath)

		return &mmverrors.FilesystemError{Op: "close", Path: tmpPath, Err: err}
	}

	if err := fsys.Rename(tmpPath, path); err != nil {
		_ = fsys.Remove(tmpPath)

		return &mmverrors.FilesystemError{Op: "rename", Path: tmpPath, Err: err}
	}

	return nil
}

const maxTempFileAttempts = 10000

var tempFileCounter atomic.Uint64

func createTempFile(fsys fsx.FS, dir, base string, perm os.FileMode) (fsx.File, string, error) {
	for range maxTempFileAttempts {
		seq := tempFileCounter.Add(1)
		path := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, seq))

		file, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return file, path, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", err
	}

	return nil, "", fmt.Errorf("exhausted temp file attempts in %q", dir)
}
