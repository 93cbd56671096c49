// Package stage implements the staging planner: it picks a scratch
// root for a batch of renames and derives a deterministic, per-source
// scratch filename within it.
package stage

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/ngrash/mmv/internal/fsx"
)

// scratchDirPrefix names the per-run scratch directory under the
// chosen root, so stray process crashes leave an identifiable
// directory behind rather than loose files in a shared temp area.
const scratchDirPrefix = "mmv-scratch-"

// Planner picks a scratch root and names scratch paths within it.
type Planner struct {
	fsys fsx.FS
	root string
}

// New creates a Planner. envOverride, if non-empty, is used verbatim as
// the scratch root (this is the MMV_SCRATCH_DIR/MCP_SCRATCH_DIR escape
// hatch documented for tests and debugging, not a user-facing contract).
// Otherwise a fresh directory is created under os.TempDir().
func New(fsys fsx.FS, envOverride string) (*Planner, error) {
	root := envOverride
	if root == "" {
		dir, err := os.MkdirTemp("", scratchDirPrefix)
		if err != nil {
			return nil, fmt.Errorf("creating scratch root: %w", err)
		}

		root = dir
	} else if err := fsys.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating scratch root %s: %w", root, err)
	}

	return &Planner{fsys: fsys, root: root}, nil
}

// NewVirtual returns a Planner rooted at root without creating anything
// on disk. It exists for dry-run invocations, which need a deterministic
// ScratchNamer for renameset.Build but must not mutate the filesystem at
// all, not even a scratch directory.
func NewVirtual(root string) *Planner {
	return &Planner{root: root}
}

// Root returns the scratch root directory for this run.
func (p *Planner) Root() string {
	return p.root
}

// SameDeviceAs reports whether the scratch root can be used with an
// atomic rename against path — i.e. whether they share a device. When
// false, the executor must fall back to copy+remove.
func (p *Planner) SameDeviceAs(path string) bool {
	return fsx.SameDevice(p.root, path)
}

// ValidateDisjoint checks that the scratch root and each of the given
// src/dst paths are disjoint subtrees: the scratch root must not lie
// inside any of them, and none of them may lie inside the scratch root.
func (p *Planner) ValidateDisjoint(paths []string) error {
	for _, other := range paths {
		if isWithin(p.root, other) || isWithin(other, p.root) {
			return fmt.Errorf("scratch root %s overlaps %s", p.root, other)
		}
	}

	return nil
}

// ScratchPath returns the process-unique scratch path for canonicalSrc.
// Deterministic within a single Planner so tests and verbose output can
// rely on it, but otherwise opaque; a counter would be equally valid
// per spec, a hash just avoids needing shared mutable state across
// Namer calls.
func (p *Planner) ScratchPath(canonicalSrc string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(canonicalSrc))

	name := fmt.Sprintf("%016x", h.Sum64())

	return filepath.Join(p.root, name)
}

// isWithin reports whether candidate is equal to or a descendant of
// base.
func isWithin(base, candidate string) bool {
	base = filepath.Clean(base)
	candidate = filepath.Clean(candidate)

	if base == candidate {
		return true
	}

	return strings.HasPrefix(candidate, base+string(filepath.Separator))
}
