package columnar

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/segmentio/encoding/thrift"

	"github.com/localcol/columnar/codec"
	"github.com/localcol/columnar/format"
)

// buildDataPageV1 encodes one uncompressed version-1 data page: a thrift
// PageHeader immediately followed by its raw (uncompressed) bytes, matching
// the on-disk layout a chunk decoder reads.
func buildDataPageV1(t *testing.T, values []byte) []byte {
	t.Helper()
	header := &format.PageHeader{
		Type:                 format.DataPage,
		UncompressedPageSize: int32(len(values)),
		CompressedPageSize:   int32(len(values)),
		DataPageHeader: &format.DataPageHeader{
			NumValues: int32(len(values)),
			Encoding:  format.Plain,
		},
	}
	protocol := thrift.CompactProtocol{}
	encoded, err := thrift.Marshal(&protocol, header)
	if err != nil {
		t.Fatalf("thrift.Marshal(PageHeader) error = %v", err)
	}
	return append(encoded, values...)
}

func TestChunkDecoderReadsUncompressedDataPageV1(t *testing.T) {
	values := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	stream := buildDataPageV1(t, values)

	ctx := &chunkDecoderContext{codecs: codec.NewRegistry()}
	desc := ChunkDescriptor{
		Column:    ColumnDescriptor{Path: ColumnPath{"v"}, Ordinal: 0},
		ChunkMeta: ColumnChunkMetadata{cc: &format.ColumnChunk{MetaData: format.ColumnMetaData{NumValues: int64(len(values)), Codec: format.Uncompressed}}},
	}
	dec := newChunkDecoder(ctx, desc, bytes.NewReader(stream))

	page, err := dec.next()
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}
	if page.DataV1 == nil {
		t.Fatal("page.DataV1 = nil, want a data page")
	}
	if !bytes.Equal(page.DataV1.Bytes, values) {
		t.Fatalf("page.DataV1.Bytes = %v, want %v", page.DataV1.Bytes, values)
	}
	if page.DataV1.NumValues != int32(len(values)) {
		t.Fatalf("NumValues = %d, want %d", page.DataV1.NumValues, len(values))
	}

	if _, err := dec.next(); err != io.EOF {
		t.Fatalf("second next() error = %v, want io.EOF", err)
	}
}

func TestSyncPagePipelineDeliversPagesInOrder(t *testing.T) {
	first := buildDataPageV1(t, []byte{1, 2, 3})
	second := buildDataPageV1(t, []byte{4, 5})
	stream := append(append([]byte{}, first...), second...)

	ctx := &chunkDecoderContext{codecs: codec.NewRegistry()}
	desc := ChunkDescriptor{
		Column:    ColumnDescriptor{Path: ColumnPath{"v"}, Ordinal: 0},
		ChunkMeta: ColumnChunkMetadata{cc: &format.ColumnChunk{MetaData: format.ColumnMetaData{NumValues: 5, Codec: format.Uncompressed}}},
	}
	dec := newChunkDecoder(ctx, desc, bytes.NewReader(stream))
	pp := newSyncPagePipeline(dec)
	bg := context.Background()

	page1, ok, err := pp.Take(bg)
	if err != nil || !ok {
		t.Fatalf("Take() #1 = (%v, %v, %v)", page1, ok, err)
	}
	if !bytes.Equal(page1.DataV1.Bytes, []byte{1, 2, 3}) {
		t.Fatalf("page1.Bytes = %v, want [1 2 3]", page1.DataV1.Bytes)
	}

	page2, ok, err := pp.Take(bg)
	if err != nil || !ok {
		t.Fatalf("Take() #2 = (%v, %v, %v)", page2, ok, err)
	}
	if !bytes.Equal(page2.DataV1.Bytes, []byte{4, 5}) {
		t.Fatalf("page2.Bytes = %v, want [4 5]", page2.DataV1.Bytes)
	}

	_, ok, err = pp.Take(bg)
	if ok || err != nil {
		t.Fatalf("Take() #3 = (ok=%v, err=%v), want ok=false, err=nil", ok, err)
	}
}

func TestChunkDecoderDecompressesGzipDataPage(t *testing.T) {
	plain := bytes.Repeat([]byte{9}, 64)
	var compressed bytes.Buffer
	w := gzip.NewWriter(&compressed)
	if _, err := w.Write(plain); err != nil {
		t.Fatalf("gzip write error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close error = %v", err)
	}

	header := &format.PageHeader{
		Type:                 format.DataPage,
		UncompressedPageSize: int32(len(plain)),
		CompressedPageSize:   int32(compressed.Len()),
		DataPageHeader: &format.DataPageHeader{
			NumValues: int32(len(plain)),
			Encoding:  format.Plain,
		},
	}
	protocol := thrift.CompactProtocol{}
	encoded, err := thrift.Marshal(&protocol, header)
	if err != nil {
		t.Fatalf("thrift.Marshal() error = %v", err)
	}
	stream := append(encoded, compressed.Bytes()...)

	ctx := &chunkDecoderContext{codecs: codec.NewRegistry()}
	desc := ChunkDescriptor{
		Column:    ColumnDescriptor{Path: ColumnPath{"v"}, Ordinal: 0},
		ChunkMeta: ColumnChunkMetadata{cc: &format.ColumnChunk{MetaData: format.ColumnMetaData{NumValues: int64(len(plain)), Codec: format.Gzip}}},
	}
	dec := newChunkDecoder(ctx, desc, bytes.NewReader(stream))

	page, err := dec.next()
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}
	if !bytes.Equal(page.DataV1.Bytes, plain) {
		t.Fatalf("decompressed mismatch: got %d bytes, want %d", len(page.DataV1.Bytes), len(plain))
	}
}

// TestChunkDecoderSkipsUnselectedPageBetweenSurvivingRuns mirrors what
// openParts assembles for a filtered chunk split by planFiltered into two
// non-adjacent runs: the decoder is handed a stream concatenating only the
// surviving pages' bytes (via io.MultiReader, exactly as openParts builds
// it), with the unselected middle page's bytes never appearing in the
// stream at all. Decoding must yield the two surviving pages in order and
// stop after them, using the merged FilteredPageOrdinals to know the chunk
// is exhausted.
func TestChunkDecoderSkipsUnselectedPageBetweenSurvivingRuns(t *testing.T) {
	page0 := buildDataPageV1(t, []byte{1, 2, 3})
	page2 := buildDataPageV1(t, []byte{4, 5})
	// page1's bytes ({99, 99}) are deliberately never added to the stream:
	// openParts assembles one run per contiguous surviving byte range, so
	// the unselected middle page's bytes never reach the decoder at all.

	stream := io.MultiReader(bytes.NewReader(page0), bytes.NewReader(page2))

	ctx := &chunkDecoderContext{codecs: codec.NewRegistry()}
	desc := ChunkDescriptor{
		Column:               ColumnDescriptor{Path: ColumnPath{"v"}, Ordinal: 0},
		ChunkMeta:            ColumnChunkMetadata{cc: &format.ColumnChunk{MetaData: format.ColumnMetaData{NumValues: 10, Codec: format.Uncompressed}}},
		FilteredPageOrdinals: []int{0, 2},
	}
	dec := newChunkDecoder(ctx, desc, stream)

	page, err := dec.next()
	if err != nil {
		t.Fatalf("next() #1 error = %v", err)
	}
	if !bytes.Equal(page.DataV1.Bytes, []byte{1, 2, 3}) {
		t.Fatalf("page #1 = %v, want [1 2 3]", page.DataV1.Bytes)
	}
	if page.Ordinal != 0 {
		t.Fatalf("page #1 Ordinal = %d, want 0", page.Ordinal)
	}

	page, err = dec.next()
	if err != nil {
		t.Fatalf("next() #2 error = %v", err)
	}
	if !bytes.Equal(page.DataV1.Bytes, []byte{4, 5}) {
		t.Fatalf("page #2 = %v, want [4 5] (page1's bytes must never surface)", page.DataV1.Bytes)
	}
	if page.Ordinal != 2 {
		t.Fatalf("page #2 Ordinal = %d, want 2", page.Ordinal)
	}

	if _, err := dec.next(); err != io.EOF {
		t.Fatalf("next() #3 error = %v, want io.EOF (two-page FilteredPageOrdinals must bound the chunk)", err)
	}
}
