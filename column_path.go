package columnar

import "strings"

// ColumnPath is the ordered sequence of path components identifying a
// column in the file's schema tree. Two paths are equal iff their
// components are equal in order; ColumnPath is used as a projection key
// throughout the reader (index store lookups, range planning, predicate
// evaluation).
type ColumnPath []string

// String joins the path components with ".", matching how the teacher's
// columnPath.String formats paths in diagnostics.
func (p ColumnPath) String() string {
	return strings.Join(p, ".")
}

func (p ColumnPath) equal(other []string) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Projection is a set of column paths a caller wants materialized. A nil
// or empty Projection means "all columns".
type Projection struct {
	paths []ColumnPath
}

// NewProjection builds a Projection from the given column paths.
func NewProjection(paths ...[]string) Projection {
	p := Projection{paths: make([]ColumnPath, len(paths))}
	for i, path := range paths {
		p.paths[i] = ColumnPath(path)
	}
	return p
}

// All reports whether the projection selects every column (the zero value).
func (p Projection) All() bool { return len(p.paths) == 0 }

// Contains reports whether the given column path is selected by p.
func (p Projection) Contains(path []string) bool {
	if p.All() {
		return true
	}
	for _, cp := range p.paths {
		if cp.equal(path) {
			return true
		}
	}
	return false
}
