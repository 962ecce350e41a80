package columnar

import "github.com/localcol/columnar/format"

// OffsetRange is a byte range within the file, surviving offset-index
// filtering: the region a surviving page occupies.
type OffsetRange struct {
	Offset int64
	Length int64
}

// ChunkDescriptor names one physically contiguous byte run within a column
// chunk that the chunk decoder should read. In unfiltered planning mode a
// chunk has exactly one descriptor spanning its whole byte range. In
// filtered planning mode a chunk with surviving pages separated by an
// unselected page produces multiple descriptors, one per contiguous run of
// surviving bytes, so no descriptor's declared byte range ever straddles a
// page this reader was not asked to decode. Descriptors sharing a column
// path are reassembled into a single logical chunk stream before decoding.
type ChunkDescriptor struct {
	Column       ColumnDescriptor
	ChunkMeta    ColumnChunkMetadata
	FileOffset   int64
	Size         int64

	// FilteredRanges is non-nil only in filtered planning mode: the
	// surviving OffsetRanges making up this run, in file order.
	FilteredRanges []OffsetRange

	// FilteredPageOrdinals holds, parallel to FilteredRanges, each
	// surviving page's absolute ordinal within the chunk's full,
	// unfiltered offset index. The chunk decoder needs the absolute
	// ordinal (not its position in the filtered list) to derive correct
	// per-page AADs for encrypted chunks.
	FilteredPageOrdinals []int
}

func (d ChunkDescriptor) equal(other ChunkDescriptor) bool {
	return d.Column.Path.equal(other.Column.Path)
}

// ConsecutivePartList is a maximal run of chunk descriptors whose byte
// ranges are strictly contiguous, read with a single seek. Length always
// equals the sum of its children's sizes.
type ConsecutivePartList struct {
	Offset  int64
	Length  int64
	Columns []ChunkDescriptor
}

func (p *ConsecutivePartList) extend(d ChunkDescriptor) {
	p.Columns = append(p.Columns, d)
	p.Length += d.Size
}

// planUnfiltered groups a row group's projected columns into consecutive
// parts, one contiguous seek per part. In asynchronous mode every column
// starts its own part, since async I/O opens one stream per part.
func planUnfiltered(projection Projection, rg RowGroupMetadata, schema *Schema, async bool) []ConsecutivePartList {
	var parts []ConsecutivePartList

	for _, col := range schema.Columns {
		if !projection.Contains(col.Path) {
			continue
		}
		cc, ok := rg.ColumnChunk(col.Ordinal)
		if !ok {
			continue
		}
		desc := ChunkDescriptor{
			Column:     col,
			ChunkMeta:  cc,
			FileOffset: cc.DataPageOffset(),
			Size:       cc.TotalCompressedSize(),
		}

		if !async && len(parts) > 0 {
			last := &parts[len(parts)-1]
			if last.Offset+last.Length == desc.FileOffset {
				last.extend(desc)
				continue
			}
		}
		parts = append(parts, ConsecutivePartList{
			Offset:  desc.FileOffset,
			Length:  desc.Size,
			Columns: []ChunkDescriptor{desc},
		})
	}
	return parts
}

// planFiltered groups the surviving offset-index page ranges of a row
// group's projected columns into consecutive parts, given precomputed
// RowRanges per column's offset index. A chunk's surviving pages are split
// into maximal runs of physically adjacent bytes first (so a gap left by an
// unselected page never gets silently bridged), and each run then
// participates in the same extend-if-adjacent coalescing the unfiltered
// planner uses across chunks.
func planFiltered(projection Projection, rg RowGroupMetadata, schema *Schema, async bool, offsetIndexes map[int]*format.OffsetIndex, rowRanges map[int]RowRanges) []ConsecutivePartList {
	var parts []ConsecutivePartList

	for _, col := range schema.Columns {
		if !projection.Contains(col.Path) {
			continue
		}
		cc, ok := rg.ColumnChunk(col.Ordinal)
		if !ok {
			continue
		}
		oi := offsetIndexes[col.Ordinal]
		ranges := rowRanges[col.Ordinal]
		if oi == nil {
			continue
		}

		surviving, ordinals := survivingOffsetRanges(oi, ranges)
		if len(surviving) == 0 {
			continue
		}

		for _, run := range splitContiguousRuns(surviving, ordinals) {
			desc := ChunkDescriptor{
				Column:               col,
				ChunkMeta:            cc,
				FileOffset:           run.offset,
				Size:                 run.length,
				FilteredRanges:       run.ranges,
				FilteredPageOrdinals: run.ordinals,
			}

			if !async && len(parts) > 0 {
				last := &parts[len(parts)-1]
				if last.Offset+last.Length == desc.FileOffset {
					last.extend(desc)
					continue
				}
			}
			parts = append(parts, ConsecutivePartList{
				Offset:  desc.FileOffset,
				Length:  desc.Size,
				Columns: []ChunkDescriptor{desc},
			})
		}
	}
	return parts
}

// offsetRun is one maximal run of physically adjacent surviving OffsetRanges
// within a single chunk, readable with a single contiguous section read.
type offsetRun struct {
	offset   int64
	length   int64
	ranges   []OffsetRange
	ordinals []int
}

// splitContiguousRuns groups surviving, file-ordered offset ranges into
// maximal adjacent runs. A gap between two surviving ranges (an unselected
// page sitting between them) always starts a new run.
func splitContiguousRuns(surviving []OffsetRange, ordinals []int) []offsetRun {
	var runs []offsetRun
	for i, r := range surviving {
		if i > 0 {
			prev := &runs[len(runs)-1]
			if prev.offset+prev.length == r.Offset {
				prev.length += r.Length
				prev.ranges = append(prev.ranges, r)
				prev.ordinals = append(prev.ordinals, ordinals[i])
				continue
			}
		}
		runs = append(runs, offsetRun{
			offset:   r.Offset,
			length:   r.Length,
			ranges:   []OffsetRange{r},
			ordinals: []int{ordinals[i]},
		})
	}
	return runs
}

// survivingOffsetRanges returns the byte ranges of pages whose row range
// intersects ranges, in file order. A page's row span runs from its
// FirstRowIndex to the next page's FirstRowIndex−1 (or the row group's last
// row for the final page).
func survivingOffsetRanges(oi *format.OffsetIndex, ranges RowRanges) ([]OffsetRange, []int) {
	var out []OffsetRange
	var ordinals []int
	locs := oi.PageLocations
	for i, loc := range locs {
		firstRow := loc.FirstRowIndex
		lastRow := int64(1<<62 - 1)
		if i+1 < len(locs) {
			lastRow = locs[i+1].FirstRowIndex - 1
		}
		if pageIntersectsRanges(firstRow, lastRow, ranges) {
			out = append(out, OffsetRange{Offset: loc.Offset, Length: int64(loc.CompressedPageSize)})
			ordinals = append(ordinals, i)
		}
	}
	return out, ordinals
}

func pageIntersectsRanges(firstRow, lastRow int64, ranges RowRanges) bool {
	for _, r := range ranges.Ranges() {
		if r.From <= lastRow && firstRow <= r.To {
			return true
		}
	}
	return false
}
