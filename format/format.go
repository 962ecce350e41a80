// Package format declares the thrift compact-protocol wire structures of the
// columnar file format: the file trailer, row-group and column-chunk
// metadata, page headers, and the page/column indexes.
//
// These types are decoded with github.com/segmentio/encoding/thrift; field
// tags follow the thrift field identifiers assigned by the format's IDL.
package format

// Type is the physical encoding of a column's values.
type Type int32

const (
	Boolean Type = iota
	Int32
	Int64
	Int96
	Float
	Double
	ByteArray
	FixedLenByteArray
)

// FieldRepetitionType describes whether a schema element is required,
// optional, or repeated.
type FieldRepetitionType int32

const (
	Required FieldRepetitionType = iota
	Optional
	Repeated
)

// CompressionCodec identifies the compression algorithm applied to a page's
// serialized bytes.
type CompressionCodec int32

const (
	Uncompressed CompressionCodec = iota
	Snappy
	Gzip
	Lzo
	Brotli
	Lz4
	Zstd
	Lz4Raw
)

func (c CompressionCodec) String() string {
	switch c {
	case Uncompressed:
		return "UNCOMPRESSED"
	case Snappy:
		return "SNAPPY"
	case Gzip:
		return "GZIP"
	case Lzo:
		return "LZO"
	case Brotli:
		return "BROTLI"
	case Lz4:
		return "LZ4"
	case Zstd:
		return "ZSTD"
	case Lz4Raw:
		return "LZ4_RAW"
	default:
		return "UNKNOWN"
	}
}

// Encoding identifies how values (or repetition/definition levels) were
// encoded within a page.
type Encoding int32

const (
	Plain Encoding = iota
	_
	PlainDictionary
	RLE
	BitPacked
	DeltaBinaryPacked
	DeltaLengthByteArray
	DeltaByteArray
	RLEDictionary
	ByteStreamSplit
)

// PageType identifies the kind of page described by a PageHeader.
type PageType int32

const (
	DataPage PageType = iota
	IndexPage
	DictionaryPage
	DataPageV2
)

// BoundaryOrder describes the sort order of min/max values recorded in a
// ColumnIndex.
type BoundaryOrder int32

const (
	Unordered BoundaryOrder = iota
	Ascending
	Descending
)

// KeyValue is a single entry of a file's free-form key/value metadata.
type KeyValue struct {
	Key   string `thrift:"1,required"`
	Value string `thrift:"2"`
}

// SortingColumn records that a row group's rows are sorted by a column.
type SortingColumn struct {
	ColumnIdx  int32 `thrift:"1,required"`
	Descending bool  `thrift:"2,required"`
	NullsFirst bool  `thrift:"3,required"`
}

// Statistics carries optional per-column-chunk or per-page value bounds.
type Statistics struct {
	Max           []byte `thrift:"1"`
	Min           []byte `thrift:"2"`
	NullCount     int64  `thrift:"3"`
	DistinctCount int64  `thrift:"4"`
	MaxValue      []byte `thrift:"5"`
	MinValue      []byte `thrift:"6"`
}

// SchemaElement is one node of the flattened schema tree.
type SchemaElement struct {
	Type           *Type                `thrift:"1"`
	TypeLength     *int32               `thrift:"2"`
	RepetitionType *FieldRepetitionType `thrift:"3"`
	Name           string               `thrift:"4,required"`
	NumChildren    *int32               `thrift:"5"`
	LogicalType    *LogicalType         `thrift:"10"`
}

// UUIDType marks a 16-byte FixedLenByteArray column as holding RFC 4122
// UUID values.
type UUIDType struct{}

// LogicalType refines how a physical column type's bytes should be
// interpreted; only the UUID annotation is modeled, since it is the only
// logical type a reader-only module has a third-party type for
// (github.com/google/uuid).
type LogicalType struct {
	UUID *UUIDType `thrift:"1"`
}

// ColumnCryptoMetaData records how an individual column chunk is encrypted,
// when modular encryption is in use.
type ColumnCryptoMetaData struct {
	EncryptedWithFooterKey bool   `thrift:"1"`
	PathInSchema           []string `thrift:"2"`
	KeyMetadata            []byte `thrift:"3"`
}

// ColumnMetaData is the per-column-chunk metadata stored inline in the file
// trailer (or, for encrypted columns, recovered after decrypting the
// column's metadata blob).
type ColumnMetaData struct {
	Type                  Type             `thrift:"1,required"`
	Encoding              []Encoding       `thrift:"2,required"`
	PathInSchema          []string         `thrift:"3,required"`
	Codec                 CompressionCodec `thrift:"4,required"`
	NumValues             int64            `thrift:"5,required"`
	TotalUncompressedSize int64            `thrift:"6,required"`
	TotalCompressedSize   int64            `thrift:"7,required"`
	KeyValueMetadata      []KeyValue       `thrift:"8"`
	DataPageOffset        int64            `thrift:"9,required"`
	IndexPageOffset       int64            `thrift:"10"`
	DictionaryPageOffset  int64            `thrift:"11"`
	Statistics            Statistics       `thrift:"12"`
	BloomFilterOffset     int64            `thrift:"14"`
	BloomFilterLength     int32            `thrift:"15"`
}

// ColumnChunk is the entry a row group carries per projected/stored column.
type ColumnChunk struct {
	FilePath            string                 `thrift:"1"`
	FileOffset           int64                  `thrift:"2,required"`
	MetaData             ColumnMetaData         `thrift:"3"`
	OffsetIndexOffset    int64                  `thrift:"4"`
	OffsetIndexLength    int32                  `thrift:"5"`
	ColumnIndexOffset    int64                  `thrift:"6"`
	ColumnIndexLength    int32                  `thrift:"7"`
	CryptoMetaData       *ColumnCryptoMetaData  `thrift:"8"`
	EncryptedColumnMeta  []byte                 `thrift:"9"`
}

// RowGroup is one horizontal partition of the file's rows.
type RowGroup struct {
	Columns             []ColumnChunk   `thrift:"1,required"`
	TotalByteSize       int64           `thrift:"2,required"`
	NumRows             int64           `thrift:"3,required"`
	SortingColumns      []SortingColumn `thrift:"4"`
	FileOffset          int64           `thrift:"5"`
	TotalCompressedSize int64           `thrift:"6"`
	Ordinal             int16           `thrift:"7"`
}

// EncryptionAlgorithm names the cipher and parameters used for modular
// encryption of a file.
type EncryptionAlgorithm struct {
	AESGCMV1 *AesGcmV1 `thrift:"1"`
	AESGCMCTRV1 *AesGcmCtrV1 `thrift:"2"`
}

type AesGcmV1 struct {
	AADPrefix             []byte `thrift:"1"`
	AADFileUnique         []byte `thrift:"2"`
	SupplyAADPrefix       bool   `thrift:"3"`
}

type AesGcmCtrV1 struct {
	AADPrefix             []byte `thrift:"1"`
	AADFileUnique         []byte `thrift:"2"`
	SupplyAADPrefix       bool   `thrift:"3"`
}

// FileMetaData is the deserialized file trailer.
type FileMetaData struct {
	Version          int32          `thrift:"1,required"`
	Schema           []SchemaElement `thrift:"2,required"`
	NumRows          int64          `thrift:"3,required"`
	RowGroups        []RowGroup     `thrift:"4,required"`
	KeyValueMetadata []KeyValue     `thrift:"5"`
	CreatedBy        string         `thrift:"6"`
	ColumnOrders     []struct{}     `thrift:"7"`
	EncryptionAlgorithm *EncryptionAlgorithm `thrift:"8"`
	FooterSigningKeyMetadata []byte `thrift:"9"`
}

// FileCryptoMetaData is the plaintext header of an encrypted-footer file,
// read before the (encrypted) FileMetaData.
type FileCryptoMetaData struct {
	EncryptionAlgorithm EncryptionAlgorithm `thrift:"1,required"`
	KeyMetadata         []byte              `thrift:"2"`
}

// PageLocation is one entry of an OffsetIndex: where a page starts in the
// file, how many compressed bytes it occupies, and the row-group-relative
// index of its first row.
type PageLocation struct {
	Offset             int64 `thrift:"1,required"`
	CompressedPageSize int32 `thrift:"2,required"`
	FirstRowIndex      int64 `thrift:"3,required"`
}

// OffsetIndex is the per-column-chunk list of page locations.
type OffsetIndex struct {
	PageLocations []PageLocation `thrift:"1,required"`
}

// ColumnIndex is the per-column-chunk list of page-level min/max/null
// statistics, aligned 1-1 with the chunk's OffsetIndex.
type ColumnIndex struct {
	NullPages                []bool        `thrift:"1,required"`
	MinValues                [][]byte      `thrift:"2,required"`
	MaxValues                [][]byte      `thrift:"3,required"`
	BoundaryOrder            BoundaryOrder `thrift:"4,required"`
	NullCounts               []int64       `thrift:"5"`
	RepetitionLevelHistogram []int64       `thrift:"6"`
	DefinitionLevelHistogram []int64       `thrift:"7"`
}

// DataPageHeader is the type-specific sub-header of a version-1 data page.
type DataPageHeader struct {
	NumValues               int32      `thrift:"1,required"`
	Encoding                Encoding   `thrift:"2,required"`
	DefinitionLevelEncoding Encoding   `thrift:"3,required"`
	RepetitionLevelEncoding Encoding   `thrift:"4,required"`
	Statistics              Statistics `thrift:"5"`
}

// DataPageHeaderV2 is the type-specific sub-header of a version-2 data page.
type DataPageHeaderV2 struct {
	NumValues                  int32      `thrift:"1,required"`
	NumNulls                   int32      `thrift:"2,required"`
	NumRows                    int32      `thrift:"3,required"`
	Encoding                   Encoding   `thrift:"4,required"`
	DefinitionLevelsByteLength int32      `thrift:"5,required"`
	RepetitionLevelsByteLength int32      `thrift:"6,required"`
	IsCompressed               *bool      `thrift:"7"`
	Statistics                 Statistics `thrift:"8"`
}

// DictionaryPageHeader is the type-specific sub-header of a dictionary page.
type DictionaryPageHeader struct {
	NumValues int32    `thrift:"1,required"`
	Encoding  Encoding `thrift:"2,required"`
	IsSorted  bool     `thrift:"3"`
}

// PageHeader precedes every page's compressed bytes within a column chunk.
type PageHeader struct {
	Type                 PageType              `thrift:"1,required"`
	UncompressedPageSize int32                 `thrift:"2,required"`
	CompressedPageSize   int32                 `thrift:"3,required"`
	CRC                  int32                 `thrift:"4"`
	DataPageHeader       *DataPageHeader       `thrift:"5"`
	DictionaryPageHeader *DictionaryPageHeader `thrift:"7"`
	DataPageHeaderV2     *DataPageHeaderV2     `thrift:"8"`
}

// SplitBlockAlgorithm selects the split-block bloom filter layout.
type SplitBlockAlgorithm struct{}

// BloomFilterAlgorithm names the bloom filter's internal layout.
type BloomFilterAlgorithm struct {
	Block *SplitBlockAlgorithm `thrift:"1"`
}

// XxHash selects the xxHash64 hash function for bloom filter probing.
type XxHash struct{}

// BloomFilterHash names the hash function used by a bloom filter.
type BloomFilterHash struct {
	XxHash *XxHash `thrift:"1"`
}

// BloomFilterUncompressed marks a bloom filter bitset as stored uncompressed.
type BloomFilterUncompressed struct{}

// BloomFilterCompression names the compression (if any) of a bloom filter's
// bitset.
type BloomFilterCompression struct {
	Uncompressed *BloomFilterUncompressed `thrift:"1"`
}

// BloomFilterHeader precedes a column's bloom filter bitset in the file.
type BloomFilterHeader struct {
	NumBytes    int32                  `thrift:"1,required"`
	Algorithm   BloomFilterAlgorithm   `thrift:"2,required"`
	Hash        BloomFilterHash        `thrift:"3,required"`
	Compression BloomFilterCompression `thrift:"4,required"`
}
