package columnar

import "github.com/localcol/columnar/format"

// DictionaryPage carries a column chunk's dictionary of distinct encoded
// values, decoded from a DICTIONARY_PAGE.
type DictionaryPage struct {
	Bytes            []byte
	UncompressedSize int32
	NumValues        int32
	Encoding         format.Encoding
	CRC              *int32
}

// DataPageV1 is a version-1 data page: one undivided, possibly compressed
// region covering repetition levels, definition levels, and values.
type DataPageV1 struct {
	Bytes                   []byte
	NumValues               int32
	UncompressedSize        int32
	Statistics              format.Statistics
	RepetitionLevelEncoding format.Encoding
	DefinitionLevelEncoding format.Encoding
	Encoding                format.Encoding
	CRC                     *int32
}

// DataPageV2 is a version-2 data page: repetition levels, definition
// levels, and values are stored as three consecutive, independently
// addressable byte regions; only the values region is ever compressed.
type DataPageV2 struct {
	NumRows                    int32
	NumNulls                   int32
	NumValues                  int32
	RepetitionLevels           []byte
	DefinitionLevels           []byte
	Data                       []byte
	DataEncoding               format.Encoding
	UncompressedSize           int32
	Statistics                 format.Statistics
	IsCompressed               bool
}

// Page is the sum type the page pipeline moves between the chunk decoder
// and its consumer. Exactly one field besides Ordinal is non-nil.
type Page struct {
	Ordinal    int
	Dictionary *DictionaryPage
	DataV1     *DataPageV1
	DataV2     *DataPageV2
}

// IsDictionary reports whether the page carries a column's dictionary.
func (p Page) IsDictionary() bool { return p.Dictionary != nil }
