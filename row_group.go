package columnar

import "github.com/localcol/columnar/format"

// RowGroupMetadata is a read-only view over one row group's trailer entry,
// giving callers typed accessors instead of requiring them to poke at the
// raw thrift struct directly.
type RowGroupMetadata struct {
	file    *File
	ordinal int
	rg      *format.RowGroup
}

// Ordinal returns the row group's zero-based position within the file.
func (m RowGroupMetadata) Ordinal() int { return m.ordinal }

// NumRows returns the number of rows stored in the row group.
func (m RowGroupMetadata) NumRows() int64 { return m.rg.NumRows }

// TotalByteSize returns the row group's uncompressed size in bytes.
func (m RowGroupMetadata) TotalByteSize() int64 { return m.rg.TotalByteSize }

// FileOffset returns the file-relative byte offset of the row group's first
// column chunk, the same offset a MetadataFilter is given during trailer
// parsing.
func (m RowGroupMetadata) FileOffset() int64 {
	if m.rg.FileOffset != 0 {
		return m.rg.FileOffset
	}
	if len(m.rg.Columns) > 0 {
		return m.rg.Columns[0].FileOffset
	}
	return 0
}

// ColumnChunks returns one ColumnChunkMetadata per leaf column, in schema
// order.
func (m RowGroupMetadata) ColumnChunks() []ColumnChunkMetadata {
	out := make([]ColumnChunkMetadata, len(m.rg.Columns))
	for i := range m.rg.Columns {
		out[i] = ColumnChunkMetadata{file: m.file, rowGroup: m, ordinal: i, cc: &m.rg.Columns[i]}
	}
	return out
}

// ColumnChunk returns the column chunk at the given leaf ordinal.
func (m RowGroupMetadata) ColumnChunk(ordinal int) (ColumnChunkMetadata, bool) {
	if ordinal < 0 || ordinal >= len(m.rg.Columns) {
		return ColumnChunkMetadata{}, false
	}
	return ColumnChunkMetadata{file: m.file, rowGroup: m, ordinal: ordinal, cc: &m.rg.Columns[ordinal]}, true
}

// ColumnChunkMetadata is a read-only view over one column chunk's trailer
// entry within a row group.
type ColumnChunkMetadata struct {
	file     *File
	rowGroup RowGroupMetadata
	ordinal  int
	cc       *format.ColumnChunk
}

// Ordinal returns the column's leaf ordinal within the row group, matching
// Schema.Columns ordering.
func (c ColumnChunkMetadata) Ordinal() int { return c.ordinal }

// IsEncrypted reports whether the column chunk carries its own crypto
// metadata, meaning its ColumnMetaData must be decrypted separately from
// the footer.
func (c ColumnChunkMetadata) IsEncrypted() bool { return c.cc.CryptoMetaData != nil }

// NumValues returns the column chunk's total value count, including nulls.
func (c ColumnChunkMetadata) NumValues() int64 { return c.cc.MetaData.NumValues }

// Codec returns the compression codec applied to the chunk's pages.
func (c ColumnChunkMetadata) Codec() format.CompressionCodec { return c.cc.MetaData.Codec }

// TotalCompressedSize returns the on-disk size of the column chunk's pages.
func (c ColumnChunkMetadata) TotalCompressedSize() int64 { return c.cc.MetaData.TotalCompressedSize }

// DataPageOffset returns the file offset of the column chunk's first page
// (dictionary page, if present, otherwise the first data page).
func (c ColumnChunkMetadata) DataPageOffset() int64 {
	if c.cc.MetaData.DictionaryPageOffset != 0 {
		return c.cc.MetaData.DictionaryPageOffset
	}
	return c.cc.MetaData.DataPageOffset
}

// HasDictionaryPage reports whether the chunk begins with a dictionary
// page.
func (c ColumnChunkMetadata) HasDictionaryPage() bool {
	return c.cc.MetaData.DictionaryPageOffset != 0
}

// HasBloomFilter reports whether the chunk carries a bloom filter.
func (c ColumnChunkMetadata) HasBloomFilter() bool { return c.cc.MetaData.BloomFilterOffset != 0 }

// BloomFilterRange returns the byte range of the chunk's bloom filter, if
// present.
func (c ColumnChunkMetadata) BloomFilterRange() (offset int64, length int32, ok bool) {
	if !c.HasBloomFilter() {
		return 0, 0, false
	}
	return c.cc.MetaData.BloomFilterOffset, c.cc.MetaData.BloomFilterLength, true
}

// EncryptedWithFooterKey reports whether this chunk's modules are
// encrypted with the same key as the footer, as opposed to a per-column
// key resolved via its key metadata.
func (c ColumnChunkMetadata) EncryptedWithFooterKey() bool {
	return c.cc.CryptoMetaData != nil && c.cc.CryptoMetaData.EncryptedWithFooterKey
}

// KeyMetadata returns the opaque key-metadata blob a key-management
// service uses to resolve this chunk's decryption key, when the chunk
// does not use the footer key.
func (c ColumnChunkMetadata) KeyMetadata() []byte {
	if c.cc.CryptoMetaData == nil {
		return nil
	}
	return c.cc.CryptoMetaData.KeyMetadata
}

// HasColumnIndex reports whether the chunk has a column index recorded.
func (c ColumnChunkMetadata) HasColumnIndex() bool { return c.cc.ColumnIndexOffset != 0 }

// HasOffsetIndex reports whether the chunk has an offset index recorded.
func (c ColumnChunkMetadata) HasOffsetIndex() bool { return c.cc.OffsetIndexOffset != 0 }

// Statistics returns the chunk-level min/max/null-count statistics carried
// in the trailer.
func (c ColumnChunkMetadata) Statistics() format.Statistics { return c.cc.MetaData.Statistics }
