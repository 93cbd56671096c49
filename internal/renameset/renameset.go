// Package renameset builds a validated, ordered set of rename pairs
// from raw (source, destination) strings: it detects duplicate sources
// and destinations, assigns each pair a scratch path, and sorts the
// result so that deeper sources are processed first.
//
// The original implementation this is modeled on indexes paths with a
// per-component trie and a free-list-backed node arena so path strings
// can be borrowed by reference. Go can simply own its strings, and a
// rename set is small (at most thousands of pairs), so this package
// uses two flat hash sets for duplicate detection instead: the trie is
// not required for any behavior this package needs to produce.
package renameset

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/ngrash/mmv/internal/mmverrors"
)

// RawPair is an (source, destination) pair before normalization.
type RawPair struct {
	Src string
	Dst string
}

// Pair is one validated rename: Src is canonical and exists at plan
// time, Dst is lexically normalized, and Scratch is a unique path
// outside every Src and Dst subtree.
type Pair struct {
	Src     string
	Dst     string
	Scratch string
}

// Set is an ordered, validated sequence of Pair, sorted by descending
// number of path components of Src (deepest first). Ties keep their
// original input order.
type Set struct {
	Pairs []Pair
}

// ScratchNamer assigns a scratch path for a canonical source path. It is
// supplied by the staging planner so this package stays agnostic of how
// scratch names are derived.
type ScratchNamer func(canonicalSrc string) string

// Build validates pairs of already-normalized (src, dst) strings
// (produced by internal/pathutil) and returns a sorted Set.
//
// Every problem found — every duplicate source and every duplicate
// destination — is collected into a single *mmverrors.BuildError so a
// caller can fix every conflict in one pass, rather than one at a time.
func Build(pairs []RawPair, namer ScratchNamer) (Set, error) {
	seenSrc := make(map[string]struct{}, len(pairs))
	seenDst := make(map[string]struct{}, len(pairs))

	var (
		accepted []Pair
		problems []error
	)

	for _, p := range pairs {
		if _, dup := seenSrc[p.Src]; dup {
			problems = append(problems, &mmverrors.DuplicateSourceError{Path: p.Src})
			continue
		}

		seenSrc[p.Src] = struct{}{}

		if _, dup := seenDst[p.Dst]; dup {
			problems = append(problems, &mmverrors.DuplicateDestinationError{Path: p.Dst})
			continue
		}

		seenDst[p.Dst] = struct{}{}

		accepted = append(accepted, Pair{
			Src:     p.Src,
			Dst:     p.Dst,
			Scratch: namer(p.Src),
		})
	}

	if len(problems) > 0 {
		return Set{}, &mmverrors.BuildError{Errs: problems}
	}

	sortDeepestFirst(accepted)

	return Set{Pairs: accepted}, nil
}

// sortDeepestFirst orders pairs by descending path-component count of
// Src, preserving input order among equal depths (sort.SliceStable).
//
// This is the key design decision for nested rename sets: when both
// "a/b" and "a" are sources, "a/b" is moved to scratch before "a", so
// "a" is still an ordinary directory at the moment its own move runs.
func sortDeepestFirst(pairs []Pair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		return componentCount(pairs[i].Src) > componentCount(pairs[j].Src)
	})
}

func componentCount(p string) int {
	clean := filepath.Clean(p)
	if clean == string(filepath.Separator) {
		return 0
	}

	clean = strings.TrimPrefix(clean, string(filepath.Separator))

	return len(strings.Split(clean, string(filepath.Separator)))
}
