package columnar

// MetadataFilter selects which row groups' metadata are kept once the
// trailer has been deserialized. The whole trailer is decoded first and the
// row groups a filter rejects are then dropped: their metadata is still
// decoded, but no later operation sees them — useful for very wide files
// with many row groups, or for readers that only ever look at a single
// row-group ordinal.
type MetadataFilter interface {
	keepRowGroup(ordinal int, fileOffset, totalByteSize int64) bool
}

type noMetadataFilter struct{}

func (noMetadataFilter) keepRowGroup(int, int64, int64) bool { return true }

// NoFilter keeps every row group's metadata.
func NoFilter() MetadataFilter { return noMetadataFilter{} }

type skipRowGroupsFilter struct{}

func (skipRowGroupsFilter) keepRowGroup(int, int64, int64) bool { return false }

// SkipRowGroups drops all row-group metadata, leaving only the schema and
// file-level counters. Useful when a caller only needs NumRows/Schema.
func SkipRowGroups() MetadataFilter { return skipRowGroupsFilter{} }

type rowGroupRangeFilter struct {
	startOffset, endOffset int64
}

// RowGroupRange keeps row groups whose starting file offset falls within
// [startOffset, endOffset). This is the filter a distributed scan planner
// uses to assign contiguous byte ranges of one file to multiple workers
// without double-reading a row group that straddles a boundary: a row
// group is kept by exactly one worker, the one whose range contains the
// row group's starting offset.
func RowGroupRange(startOffset, endOffset int64) MetadataFilter {
	return rowGroupRangeFilter{startOffset: startOffset, endOffset: endOffset}
}

func (f rowGroupRangeFilter) keepRowGroup(_ int, fileOffset, _ int64) bool {
	return fileOffset >= f.startOffset && fileOffset < f.endOffset
}

type rowGroupOrdinalsFilter struct {
	ordinals map[int]struct{}
}

// RowGroupOrdinals keeps only the row groups whose zero-based ordinal is in
// the given set.
func RowGroupOrdinals(ordinals ...int) MetadataFilter {
	set := make(map[int]struct{}, len(ordinals))
	for _, o := range ordinals {
		set[o] = struct{}{}
	}
	return rowGroupOrdinalsFilter{ordinals: set}
}

func (f rowGroupOrdinalsFilter) keepRowGroup(ordinal int, _, _ int64) bool {
	_, ok := f.ordinals[ordinal]
	return ok
}
