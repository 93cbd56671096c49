package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func Test_RealFS_Exists_Returns_False_When_Path_Does_Not_Exist(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()

	exists, err := fs.Exists(filepath.Join(dir, "does-not-exist.txt"))

	if got, want := err, error(nil); !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := exists, false; got != want {
		t.Fatalf("exists=%v, want=%v", got, want)
	}
}

func Test_RealFS_Exists_Returns_True_When_Path_Is_A_File(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.txt")

	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	exists, err := fs.Exists(path)

	if got, want := err, error(nil); !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := exists, true; got != want {
		t.Fatalf("exists=%v, want=%v", got, want)
	}
}

func Test_RealFS_Rename_Moves_File(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")

	if err := os.WriteFile(src, []byte("hi"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := fs.Rename(src, dst); err != nil {
		t.Fatalf("Rename() err=%v", err)
	}

	if exists, _ := fs.Exists(src); exists {
		t.Fatalf("src still exists after rename")
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("reading dst: %v", err)
	}

	if string(data) != "hi" {
		t.Fatalf("dst content=%q, want %q", data, "hi")
	}
}

func Test_SameDevice_True_For_Two_Paths_In_Same_TempDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b", "c") // b doesn't exist; nearest existing ancestor is dir

	if err := os.WriteFile(a, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if !SameDevice(a, b) {
		t.Fatalf("SameDevice(%q, %q) = false, want true", a, b)
	}
}

func Test_SameDevice_False_When_Source_Missing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if SameDevice(filepath.Join(dir, "nope"), dir) {
		t.Fatalf("SameDevice should be false for a nonexistent source")
	}
}
