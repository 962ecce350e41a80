package columnar

import (
	"context"
	"encoding/binary"

	"github.com/localcol/columnar/format"
)

// FilterLevel is one tier of metadata a row-group selector may consult,
// cheapest first.
type FilterLevel int

const (
	FilterStatistics FilterLevel = iota
	FilterDictionary
	FilterBloomFilter
	FilterColumnIndex
)

// selector decides which row groups survive predicate push-down, and
// optionally computes per-row-group RowRanges when column-index filtering
// and a record predicate are both enabled.
type selector struct {
	file       *File
	predicate  Predicate
	levels     map[FilterLevel]bool
}

func newSelector(file *File, predicate Predicate, levels map[FilterLevel]bool) *selector {
	if predicate == nil {
		predicate = AcceptAll()
	}
	return &selector{file: file, predicate: predicate, levels: levels}
}

func (s *selector) enabled(l FilterLevel) bool { return s.levels != nil && s.levels[l] }

// surviving returns the ordered sublist of row groups this selector keeps,
// preserving file order.
func (s *selector) surviving(ctx context.Context, groups []RowGroupMetadata) ([]RowGroupMetadata, error) {
	var kept []RowGroupMetadata
	for _, rg := range groups {
		ok, err := s.mayMatch(ctx, rg)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, rg)
		}
	}
	return kept, nil
}

// mayMatch reports whether rg could possibly contain a matching row,
// evaluating enabled filter levels cheapest-first. A row group is kept
// unless some enabled level proves it cannot match.
func (s *selector) mayMatch(ctx context.Context, rg RowGroupMetadata) (bool, error) {
	cols := s.predicate.Columns()
	if len(cols) == 0 {
		return true, nil
	}

	if s.enabled(FilterStatistics) {
		if !s.mayMatchStatistics(rg, cols) {
			return false, nil
		}
	}
	if s.enabled(FilterDictionary) {
		match, err := s.mayMatchDictionary(ctx, rg, cols)
		if err != nil {
			return false, err
		}
		if !match {
			return false, nil
		}
	}
	if s.enabled(FilterBloomFilter) {
		match, err := s.mayMatchBloomFilter(ctx, rg, cols)
		if err != nil {
			return false, err
		}
		if !match {
			return false, nil
		}
	}
	return true, nil
}

func (s *selector) mayMatchStatistics(rg RowGroupMetadata, cols []ColumnPath) bool {
	for _, path := range cols {
		col, ok := s.file.schema.ColumnByPath(path)
		if !ok {
			continue
		}
		cc, ok := rg.ColumnChunk(col.Ordinal)
		if !ok {
			continue
		}
		if !s.predicate.MayMatchStatistics(path, cc.Statistics()) {
			return false
		}
	}
	return true
}

func (s *selector) mayMatchDictionary(ctx context.Context, rg RowGroupMetadata, cols []ColumnPath) (bool, error) {
	for _, path := range cols {
		col, ok := s.file.schema.ColumnByPath(path)
		if !ok {
			continue
		}
		cc, ok := rg.ColumnChunk(col.Ordinal)
		if !ok || !cc.HasDictionaryPage() {
			continue
		}
		dict, err := s.file.readDictionary(ctx, cc)
		if err != nil {
			continue // dictionary unreadable: fall through, do not block on it
		}
		values := splitDictionaryValues(dict, col)
		if !s.predicate.MayMatchDictionary(path, values) {
			return false, nil
		}
	}
	return true, nil
}

func (s *selector) mayMatchBloomFilter(ctx context.Context, rg RowGroupMetadata, cols []ColumnPath) (bool, error) {
	for _, path := range cols {
		col, ok := s.file.schema.ColumnByPath(path)
		if !ok {
			continue
		}
		cc, ok := rg.ColumnChunk(col.Ordinal)
		if !ok || !cc.HasBloomFilter() {
			continue
		}
		bf, err := s.file.readBloomFilter(ctx, cc)
		if err != nil {
			return false, err
		}
		if bf == nil {
			continue // UnsupportedBloom: treated as "no filter available"
		}
		if !s.predicate.MayMatchBloomFilter(path, bf.MayContain) {
			return false, nil
		}
	}
	return true, nil
}

// rowRangesFor computes the RowRanges surviving column-index filtering for
// rg, or the identity (whole row group) RowRanges when column-index
// filtering is disabled or no predicate is installed.
func (s *selector) rowRangesFor(ctx context.Context, rg RowGroupMetadata) (RowRanges, error) {
	if !s.enabled(FilterColumnIndex) || len(s.predicate.Columns()) == 0 {
		return NewRowRanges(rg.NumRows()), nil
	}

	ranges := NewRowRanges(rg.NumRows())
	for _, path := range s.predicate.Columns() {
		col, ok := s.file.schema.ColumnByPath(path)
		if !ok {
			continue
		}
		cc, ok := rg.ColumnChunk(col.Ordinal)
		if !ok || !cc.HasColumnIndex() || !cc.HasOffsetIndex() {
			continue
		}
		ci, err := s.file.indexes.columnIndex(ctx, rg, cc)
		if err != nil {
			continue
		}
		oi, err := s.file.indexes.offsetIndex(ctx, rg, cc)
		if err != nil {
			continue
		}
		ranges = ranges.Intersection(rowRangesFromColumnIndex(path, ci, oi, rg.NumRows(), s.predicate))
	}
	return ranges, nil
}

// rowRangesFromColumnIndex evaluates predicate against each page's min/max
// statistics and returns the union of row ranges belonging to pages that
// may match.
func rowRangesFromColumnIndex(path ColumnPath, ci *format.ColumnIndex, oi *format.OffsetIndex, numRows int64, predicate Predicate) RowRanges {
	out := EmptyRowRanges()
	locs := oi.PageLocations
	for i := range locs {
		firstRow := locs[i].FirstRowIndex
		lastRow := numRows - 1
		if i+1 < len(locs) {
			lastRow = locs[i+1].FirstRowIndex - 1
		}

		var nullCount int64
		if i < len(ci.NullCounts) {
			nullCount = ci.NullCounts[i]
		}
		stats := format.Statistics{NullCount: nullCount}
		if i < len(ci.NullPages) && !ci.NullPages[i] {
			stats.MinValue = ci.MinValues[i]
			stats.MaxValue = ci.MaxValues[i]
		}

		if predicate.MayMatchStatistics(path, stats) {
			out = out.Union(RowRanges{ranges: []RowRange{{From: firstRow, To: lastRow}}})
		}
	}
	return out
}

// splitDictionaryValues splits a PLAIN-encoded dictionary page's raw bytes
// into its individual values, by the column's physical width: fixed-width
// types are sliced evenly, BYTE_ARRAY values are length-prefixed (4-byte LE
// length followed by that many bytes). A column whose width this reader
// cannot determine (a degenerate FixedLenByteArray with no recorded length)
// falls back to the whole page as one entry, so a Predicate that only ever
// probes BYTE_ARRAY-style dictionaries still behaves, just without pruning.
func splitDictionaryValues(dict *DictionaryPage, col ColumnDescriptor) [][]byte {
	if dict == nil || len(dict.Bytes) == 0 {
		return nil
	}
	switch width := physicalWidth(col.Type, col.TypeLength); {
	case width > 0:
		return splitFixedWidthValues(dict.Bytes, width)
	case col.Type == format.ByteArray:
		return splitLengthPrefixedValues(dict.Bytes)
	default:
		return [][]byte{dict.Bytes}
	}
}

// physicalWidth returns the fixed byte width of t's PLAIN encoding, or 0 for
// a variable-width type (BYTE_ARRAY) or a FixedLenByteArray whose length was
// not recorded.
func physicalWidth(t format.Type, typeLength int32) int {
	switch t {
	case format.Int32, format.Float:
		return 4
	case format.Int64, format.Double:
		return 8
	case format.Int96:
		return 12
	case format.FixedLenByteArray:
		return int(typeLength)
	default:
		return 0
	}
}

func splitFixedWidthValues(b []byte, width int) [][]byte {
	if width <= 0 || len(b)%width != 0 {
		return nil
	}
	out := make([][]byte, 0, len(b)/width)
	for i := 0; i < len(b); i += width {
		out = append(out, b[i:i+width])
	}
	return out
}

func splitLengthPrefixedValues(b []byte) [][]byte {
	var out [][]byte
	for len(b) >= 4 {
		n := int(binary.LittleEndian.Uint32(b[:4]))
		b = b[4:]
		if n < 0 || n > len(b) {
			return out
		}
		out = append(out, b[:n])
		b = b[n:]
	}
	return out
}
