package tracker

import (
	"sort"
	"time"

	"github.com/dshills/dirrag/internal/fingerprint"
)

// State is the lifecycle state of a file relative to the ledger. It is
// derived on demand and never stored.
type State int

const (
	// StateNew means the path has no ledger row.
	StateNew State = iota
	// StateModified means the stored digest differs from the current one.
	StateModified
	// StateUnchanged means the stored digest matches the current one.
	StateUnchanged
	// StateDeleted means the path is tracked but no longer enumerated.
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateModified:
		return "modified"
	case StateUnchanged:
		return "unchanged"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// NeedsIndexing reports whether the file must be (re)indexed.
func (s State) NeedsIndexing() bool {
	return s == StateNew || s == StateModified
}

// TrackedFile is one ledger row.
type TrackedFile struct {
	Path      string
	Directory string
	Filename  string
	Digest    fingerprint.Digest
	IndexedAt time.Time
}

// PathSet is a set of absolute file paths.
type PathSet map[string]struct{}

// NewPathSet builds a set from paths.
func NewPathSet(paths ...string) PathSet {
	s := make(PathSet, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

// Add inserts path.
func (s PathSet) Add(path string) {
	s[path] = struct{}{}
}

// Has reports membership.
func (s PathSet) Has(path string) bool {
	_, ok := s[path]
	return ok
}

// Difference returns the paths in s that are not in other.
func (s PathSet) Difference(other PathSet) PathSet {
	out := make(PathSet)
	for p := range s {
		if !other.Has(p) {
			out.Add(p)
		}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s PathSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
