package columnar

import "github.com/localcol/columnar/format"

// Predicate is the compiled, column-oriented filter the row-group selector
// consults to prune row groups and, through column-index statistics, row
// ranges. Compiling an expression tree into a Predicate is the caller's
// job; this reader only ever evaluates one.
//
// Implementations are expected to be conservative: a MayMatch* method
// returning true never rules out a row group/page that actually matches,
// but returning false must only happen when no row in range could possibly
// satisfy the predicate. The interface has no row-level check; decoded
// values are not evaluated against it.
type Predicate interface {
	// Columns returns the leaf column paths the predicate reads from. The
	// selector only fetches statistics, dictionaries, and bloom filters for
	// columns a predicate actually touches.
	Columns() []ColumnPath

	// MayMatchStatistics reports whether the chunk/page described by stats
	// could contain a matching row. A nil Statistics.Min/Max combined with
	// a positive NullCount communicates an all-null page.
	MayMatchStatistics(path ColumnPath, stats format.Statistics) bool

	// MayMatchDictionary reports whether any value in a dictionary could
	// satisfy the predicate, given the column's decoded dictionary values
	// as raw encoded bytes.
	MayMatchDictionary(path ColumnPath, dictionary [][]byte) bool

	// MayMatchBloomFilter reports whether the predicate's equality probes
	// against path could possibly match, using test as the membership
	// check (test returns true when the bloom filter claims a value may be
	// present).
	MayMatchBloomFilter(path ColumnPath, test func(value []byte) bool) bool
}

// AcceptAll is the identity Predicate: every row group, page, and row
// matches. Readers configured without a record filter behave as though
// this predicate were installed.
func AcceptAll() Predicate { return acceptAllPredicate{} }

type acceptAllPredicate struct{}

func (acceptAllPredicate) Columns() []ColumnPath { return nil }
func (acceptAllPredicate) MayMatchStatistics(ColumnPath, format.Statistics) bool { return true }
func (acceptAllPredicate) MayMatchDictionary(ColumnPath, [][]byte) bool          { return true }
func (acceptAllPredicate) MayMatchBloomFilter(ColumnPath, func([]byte) bool) bool {
	return true
}

var _ Predicate = acceptAllPredicate{}
