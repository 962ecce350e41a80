package columnar

import (
	"io"

	"github.com/localcol/columnar/format"
)

// AppendTo copies every row group's raw, still-encoded bytes to w and
// returns their trailer entries rebased to the position they will occupy
// in the combined stream: writeOffset is the number of bytes already
// written to w before this call (the caller's running total across every
// file being concatenated).
//
// Only the byte-level merge is supported: the column chunk and
// dictionary/data page offsets are rebased, but a row group whose column
// chunks carry column-index, offset-index, or bloom-filter references is
// rejected with ErrUnsupportedAppend, since those auxiliary blobs often
// live outside a row group's own contiguous byte span and cannot be
// rebased from row-group metadata alone. Combining the returned row
// groups into a single trailer and writing the closing magic is the
// caller's responsibility.
func (f *File) AppendTo(w io.Writer, writeOffset int64) ([]format.RowGroup, error) {
	out := make([]format.RowGroup, len(f.rowGroupsMeta))

	for i, rg := range f.rowGroupsMeta {
		raw := rg.rg
		for _, cc := range raw.Columns {
			if cc.ColumnIndexOffset != 0 || cc.OffsetIndexOffset != 0 || cc.MetaData.BloomFilterOffset != 0 {
				return nil, ErrUnsupportedAppend
			}
		}

		start := rg.FileOffset()
		length := raw.TotalCompressedSize
		if length == 0 {
			length = sumChunkSizes(raw)
		}

		section := io.NewSectionReader(f.source, start, length)
		if _, err := io.Copy(w, section); err != nil {
			return nil, err
		}

		delta := writeOffset - start
		out[i] = rebaseRowGroup(raw, delta)
		writeOffset += length
	}

	return out, nil
}

func sumChunkSizes(rg *format.RowGroup) int64 {
	var n int64
	for _, cc := range rg.Columns {
		n += cc.MetaData.TotalCompressedSize
	}
	return n
}

func rebaseRowGroup(rg *format.RowGroup, delta int64) format.RowGroup {
	out := *rg
	out.Columns = make([]format.ColumnChunk, len(rg.Columns))
	for i, cc := range rg.Columns {
		out.Columns[i] = cc
		out.Columns[i].FileOffset += delta
		out.Columns[i].MetaData.DataPageOffset += delta
		if cc.MetaData.DictionaryPageOffset != 0 {
			out.Columns[i].MetaData.DictionaryPageOffset += delta
		}
		if cc.MetaData.IndexPageOffset != 0 {
			out.Columns[i].MetaData.IndexPageOffset += delta
		}
	}
	out.FileOffset += delta
	return out
}
