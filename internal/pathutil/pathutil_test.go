package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ngrash/mmv/internal/fsx"
	"github.com/ngrash/mmv/internal/mmverrors"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cwd  string
		in   string
		want string
	}{
		{name: "absolute clean", cwd: "/work", in: "/a/b", want: "/a/b"},
		{name: "relative joins cwd", cwd: "/work", in: "a/b", want: "/work/a/b"},
		{name: "collapses separators", cwd: "/work", in: "/a//b///c", want: "/a/b/c"},
		{name: "drops dot", cwd: "/work", in: "/a/./b", want: "/a/b"},
		{name: "parent pops", cwd: "/work", in: "/a/b/../c", want: "/a/c"},
		{name: "parent never escapes root", cwd: "/work", in: "/../../a", want: "/a"},
		{name: "trailing dotdot at relative root", cwd: "/work", in: "..", want: "/"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := Normalize(testCase.cwd, testCase.in)
			if got != testCase.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", testCase.cwd, testCase.in, got, testCase.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"/a//b/../c/./d", "/../x", "relative/path"}

	for _, in := range inputs {
		once := Normalize("/work", in)
		twice := Normalize("/work", once)

		if once != twice {
			t.Errorf("Normalize not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestCanonicalize_SourceMissing(t *testing.T) {
	t.Parallel()

	fsys := fsx.NewReal()
	dir := t.TempDir()

	_, err := Canonicalize(fsys, dir, "does-not-exist")
	if !errors.Is(err, mmverrors.ErrSourceMissing) {
		t.Fatalf("err=%v, want ErrSourceMissing", err)
	}
}

func TestCanonicalize_ResolvesSymlinks(t *testing.T) {
	t.Parallel()

	fsys := fsx.NewReal()
	dir := t.TempDir()

	real := filepath.Join(dir, "real.txt")
	if err := os.WriteFile(real, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(real, link); err != nil {
		t.Fatalf("setup symlink: %v", err)
	}

	got, err := Canonicalize(fsys, dir, "link.txt")
	if err != nil {
		t.Fatalf("Canonicalize() err=%v", err)
	}

	wantResolved, err := filepath.EvalSymlinks(real)
	if err != nil {
		t.Fatalf("setup eval: %v", err)
	}

	if got != wantResolved {
		t.Errorf("Canonicalize() = %q, want %q", got, wantResolved)
	}
}

func TestCanonicalize_RelativeJoinsCwd(t *testing.T) {
	t.Parallel()

	fsys := fsx.NewReal()
	dir := t.TempDir()

	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	got, err := Canonicalize(fsys, dir, "a.txt")
	if err != nil {
		t.Fatalf("Canonicalize() err=%v", err)
	}

	want, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("setup eval: %v", err)
	}

	if got != want {
		t.Errorf("Canonicalize() = %q, want %q", got, want)
	}
}
