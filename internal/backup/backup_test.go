package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ngrash/mmv/internal/fsx"
	"github.com/ngrash/mmv/internal/mmverrors"
)

func TestCreate_RequiresXDGCacheHome(t *testing.T) {
	t.Parallel()

	m := New(fsx.NewReal(), map[string]string{}, "mmv")

	_, err := m.Create(nil)
	if !errors.Is(err, mmverrors.ErrEnvMissing) {
		t.Fatalf("err=%v, want ErrEnvMissing", err)
	}
}

func TestCreate_MirrorsFileAndSkeletonDirectory(t *testing.T) {
	t.Parallel()

	cacheHome := t.TempDir()
	workDir := t.TempDir()

	filePath := filepath.Join(workDir, "a")
	require.NoError(t, os.WriteFile(filePath, []byte("A"), 0o644))

	dirPath := filepath.Join(workDir, "d")
	require.NoError(t, os.Mkdir(dirPath, 0o755))

	nestedFile := filepath.Join(dirPath, "nested")
	require.NoError(t, os.WriteFile(nestedFile, []byte("N"), 0o644))

	m := New(fsx.NewReal(), map[string]string{"XDG_CACHE_HOME": cacheHome}, "mmv")

	snap, err := m.Create([]string{filePath, dirPath})
	require.NoError(t, err)

	got, err := os.ReadFile(snap.mirrorPath(filePath))
	require.NoError(t, err)
	require.Equal(t, "A", string(got))

	if fi, err := os.Stat(snap.mirrorPath(dirPath)); err != nil || !fi.IsDir() {
		t.Fatalf("directory skeleton was not created: err=%v", err)
	}

	// The skeleton is not recursive: nested file contents are not copied.
	if _, err := os.Stat(filepath.Join(snap.mirrorPath(dirPath), "nested")); !os.IsNotExist(err) {
		t.Fatalf("nested file should not exist in the skeleton-only backup, err=%v", err)
	}

	require.Contains(t, snap.Root, cacheHome)
	require.Contains(t, snap.Root, "mmv")
}

func TestRemove_DeletesSnapshot(t *testing.T) {
	t.Parallel()

	cacheHome := t.TempDir()
	filePath := filepath.Join(t.TempDir(), "a")
	require.NoError(t, os.WriteFile(filePath, []byte("A"), 0o644))

	m := New(fsx.NewReal(), map[string]string{"XDG_CACHE_HOME": cacheHome}, "mmv")

	snap, err := m.Create([]string{filePath})
	require.NoError(t, err)
	require.NoError(t, snap.Remove())

	if _, err := os.Stat(snap.Root); !os.IsNotExist(err) {
		t.Fatalf("snapshot root should have been removed, err=%v", err)
	}
}
