package columnar

import (
	"context"
	"fmt"
	"io"

	"github.com/segmentio/encoding/thrift"

	"github.com/localcol/columnar/codec"
	"github.com/localcol/columnar/crypto"
	"github.com/localcol/columnar/format"
)

// ChunkPageStore is the per-row-group container a row-group read returns:
// one page pipeline per projected column, plus the row-range context the
// pages were planned against (the whole row group, in unfiltered mode).
type ChunkPageStore struct {
	rowGroup RowGroupMetadata
	pages    map[string]*pagePipeline
	ranges   RowRanges
	closer   func() error
}

// Pages returns the page pipeline for the given column path, or false if
// the column was not part of the requested projection.
func (s *ChunkPageStore) Pages(path []string) (*pagePipeline, bool) {
	p, ok := s.pages[ColumnPath(path).String()]
	return p, ok
}

// RowRanges returns the row ranges this store's pages were filtered
// against.
func (s *ChunkPageStore) RowRanges() RowRanges { return s.ranges }

// Close releases any chunk-source streams opened to build this store.
func (s *ChunkPageStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// File is the top-level row-group reader: it owns the base seekable
// source, the parsed trailer, and every collaborator (codec registry,
// decryptors, index cache, selector, chunk source) needed to materialize
// projected row groups as page pipelines.
type File struct {
	source SeekableSource
	config *ReaderConfig

	trailer       *parsedTrailer
	schema        *Schema
	rowGroupsMeta []RowGroupMetadata

	indexes         *indexStore
	codecs          *codec.Registry
	footerDecryptor crypto.Decryptor
	aadBuilder      *crypto.AADBuilder
	logger          Logger
	sel             *selector

	chunkSource        ChunkSource
	processingExecutor ProcessingExecutor
	async              bool

	projection   Projection
	currentBlock int
	current      *ChunkPageStore
	dictCursor   int
	closed       bool
}

// Open parses source's trailer and constructs a File ready to iterate row
// groups. The base stream is closed automatically if parsing fails.
func Open(source SeekableSource, options ...ReaderOption) (*File, error) {
	config := DefaultReaderConfig()
	config.Apply(options...)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = defaultLogger
	}

	trailer, err := parseTrailer(source, config.MetadataFilter, config.DecryptionProperties)
	if err != nil {
		if c, ok := source.(io.Closer); ok {
			c.Close()
		}
		return nil, err
	}

	schema, err := newSchema(trailer.metadata.Schema)
	if err != nil {
		if c, ok := source.(io.Closer); ok {
			c.Close()
		}
		return nil, err
	}

	f := &File{
		source:     source,
		config:     config,
		trailer:    trailer,
		schema:     schema,
		codecs:     codec.Default,
		logger:     config.Logger,
		projection: NewProjection(),
	}

	if trailer.encrypted {
		f.aadBuilder = trailer.aadBuilder
		if config.DecryptionProperties != nil {
			f.footerDecryptor = config.DecryptionProperties.FooterDecryptor
		}
	}

	f.indexes = newIndexStore(f)

	f.rowGroupsMeta = make([]RowGroupMetadata, len(trailer.metadata.RowGroups))
	for i := range trailer.metadata.RowGroups {
		f.rowGroupsMeta[i] = RowGroupMetadata{file: f, ordinal: i, rg: &trailer.metadata.RowGroups[i]}
	}

	f.sel = newSelector(f, config.RecordFilter, config.filterLevels())

	async := config.AsyncReaderEnabled
	if async && config.IOExecutor == nil {
		f.logger.Printf("columnar: async reader requested without an I/O executor; falling back to synchronous mode")
		async = false
	}
	f.async = async
	f.processingExecutor = config.ProcessingExecutor

	if async {
		f.chunkSource = newAsyncChunkSource(source, config.IOExecutor, config.MaxAllocationSize)
	} else {
		f.chunkSource = newSyncChunkSource(source)
	}

	return f, nil
}

// FileMetadata returns the deserialized trailer.
func (f *File) FileMetadata() *format.FileMetaData { return f.trailer.metadata }

// Schema returns the file's flattened leaf-column schema.
func (f *File) Schema() *Schema { return f.schema }

// RecordCount returns the file's total, unfiltered row count.
func (f *File) RecordCount() int64 { return f.trailer.metadata.NumRows }

// FilteredRecordCount returns the sum of RowRanges.RowCount over surviving
// row groups when column-index filtering and a predicate are both active,
// or the unfiltered count otherwise.
func (f *File) FilteredRecordCount(ctx context.Context) (int64, error) {
	groups, err := f.RowGroups(ctx)
	if err != nil {
		return 0, err
	}
	if !f.sel.enabled(FilterColumnIndex) || len(f.sel.predicate.Columns()) == 0 {
		var n int64
		for _, rg := range groups {
			n += rg.NumRows()
		}
		return n, nil
	}
	var n int64
	for _, rg := range groups {
		ranges, err := f.sel.rowRangesFor(ctx, rg)
		if err != nil {
			return 0, err
		}
		n += ranges.RowCount()
	}
	return n, nil
}

// RowGroups returns the row groups surviving predicate push-down, in file
// order.
func (f *File) RowGroups(ctx context.Context) ([]RowGroupMetadata, error) {
	return f.sel.surviving(ctx, f.rowGroupsMeta)
}

// SetRequestedSchema narrows which columns subsequent row-group reads
// materialize.
func (f *File) SetRequestedSchema(projection Projection) { f.projection = projection }

// ReadRowGroup reads row group i unconditionally (no predicate push-down).
func (f *File) ReadRowGroup(i int) (*ChunkPageStore, error) {
	if i < 0 || i >= len(f.rowGroupsMeta) {
		return nil, fmt.Errorf("columnar: row group %d out of range", i)
	}
	return f.openRowGroupUnfiltered(f.rowGroupsMeta[i])
}

// ReadNextRowGroup reads the next row group in file order, then closes the
// previously open one.
func (f *File) ReadNextRowGroup() (*ChunkPageStore, error) {
	if f.currentBlock >= len(f.rowGroupsMeta) {
		return nil, io.EOF
	}
	store, err := f.ReadRowGroup(f.currentBlock)
	if err != nil {
		return nil, err
	}
	f.advanceTo(f.currentBlock+1, store)
	return store, nil
}

// ReadFilteredRowGroup reads row group i applying column-index row
// filtering. If no row survives, it returns a store with no page pipelines
// and empty RowRanges.
func (f *File) ReadFilteredRowGroup(ctx context.Context, i int) (*ChunkPageStore, error) {
	if i < 0 || i >= len(f.rowGroupsMeta) {
		return nil, fmt.Errorf("columnar: row group %d out of range", i)
	}
	return f.openRowGroupFiltered(ctx, f.rowGroupsMeta[i])
}

// ReadNextFilteredRowGroup computes RowRanges for each row group starting
// at the current position, skipping any with zero surviving rows, and
// returns the first row group with at least one surviving row.
func (f *File) ReadNextFilteredRowGroup(ctx context.Context) (*ChunkPageStore, error) {
	for f.currentBlock < len(f.rowGroupsMeta) {
		rg := f.rowGroupsMeta[f.currentBlock]
		ranges, err := f.sel.rowRangesFor(ctx, rg)
		if err != nil {
			return nil, err
		}
		if ranges.IsEmpty() {
			f.advanceTo(f.currentBlock+1, nil)
			continue
		}

		var store *ChunkPageStore
		if ranges.RowCount() == rg.NumRows() {
			store, err = f.openRowGroupUnfiltered(rg)
		} else {
			store, err = f.openRowGroupFiltered(ctx, rg)
		}
		if err != nil {
			return nil, err
		}
		f.advanceTo(f.currentBlock+1, store)
		return store, nil
	}
	return nil, io.EOF
}

// SkipNextRowGroup advances past the current row group without reading it.
func (f *File) SkipNextRowGroup() {
	if f.currentBlock < len(f.rowGroupsMeta) {
		f.advanceTo(f.currentBlock+1, nil)
	}
}

func (f *File) advanceTo(block int, newCurrent *ChunkPageStore) {
	if f.current != nil {
		f.current.Close()
	}
	f.currentBlock = block
	f.current = newCurrent
	f.dictCursor = 0
}

// NextDictionaryReader returns the dictionary page of the next column
// chunk (in schema order) within the currently open row group that
// carries one, advancing an internal cursor. ok is false once every
// column chunk in the row group has been visited.
func (f *File) NextDictionaryReader(ctx context.Context) (page *DictionaryPage, ok bool, err error) {
	if f.current == nil {
		return nil, false, nil
	}
	chunks := f.current.rowGroup.ColumnChunks()
	for f.dictCursor < len(chunks) {
		cc := chunks[f.dictCursor]
		f.dictCursor++
		if !cc.HasDictionaryPage() {
			continue
		}
		page, err = f.readDictionary(ctx, cc)
		return page, true, err
	}
	return nil, false, nil
}

// DictionaryReader reads the dictionary page of a specific column chunk.
func (f *File) DictionaryReader(ctx context.Context, cc ColumnChunkMetadata) (*DictionaryPage, error) {
	return f.readDictionary(ctx, cc)
}

// ColumnIndex reads (and caches) a column chunk's column index.
func (f *File) ColumnIndex(ctx context.Context, rg RowGroupMetadata, cc ColumnChunkMetadata) (*format.ColumnIndex, error) {
	return f.indexes.columnIndex(ctx, rg, cc)
}

// OffsetIndex reads (and caches) a column chunk's offset index.
func (f *File) OffsetIndex(ctx context.Context, rg RowGroupMetadata, cc ColumnChunkMetadata) (*format.OffsetIndex, error) {
	return f.indexes.offsetIndex(ctx, rg, cc)
}

// ReadBloomFilter reads and validates a column chunk's bloom filter.
func (f *File) ReadBloomFilter(ctx context.Context, cc ColumnChunkMetadata) (*BloomFilter, error) {
	return f.readBloomFilter(ctx, cc)
}

// Close releases the currently open row group and every stream the chunk
// source opened, including asynchronous auxiliary streams.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	var first error
	if f.current != nil {
		if err := f.current.Close(); err != nil {
			first = err
		}
	}
	if err := f.chunkSource.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

func (f *File) openRowGroupUnfiltered(rg RowGroupMetadata) (*ChunkPageStore, error) {
	parts := planUnfiltered(f.projection, rg, f.schema, f.async)
	return f.openParts(rg, parts, NewRowRanges(rg.NumRows()))
}

func (f *File) openRowGroupFiltered(ctx context.Context, rg RowGroupMetadata) (*ChunkPageStore, error) {
	ranges, err := f.sel.rowRangesFor(ctx, rg)
	if err != nil {
		return nil, err
	}
	if ranges.IsEmpty() {
		return &ChunkPageStore{rowGroup: rg, pages: map[string]*pagePipeline{}, ranges: ranges}, nil
	}
	if ranges.RowCount() == rg.NumRows() {
		return f.openRowGroupUnfiltered(rg)
	}

	offsetIndexes := make(map[int]*format.OffsetIndex)
	rowRangesByCol := make(map[int]RowRanges)
	for _, col := range f.schema.Columns {
		if !f.projection.Contains(col.Path) {
			continue
		}
		cc, ok := rg.ColumnChunk(col.Ordinal)
		if !ok || !cc.HasOffsetIndex() {
			continue
		}
		oi, err := f.indexes.offsetIndex(ctx, rg, cc)
		if err != nil {
			continue
		}
		offsetIndexes[col.Ordinal] = oi
		rowRangesByCol[col.Ordinal] = ranges
	}

	parts := planFiltered(f.projection, rg, f.schema, f.async, offsetIndexes, rowRangesByCol)
	return f.openParts(rg, parts, ranges)
}

// columnAssembly accumulates every descriptor belonging to one column path
// across all parts, so a chunk split into several non-adjacent runs (by
// filtered planning) still decodes through a single chunkDecoder reading a
// single concatenated stream, in file order.
type columnAssembly struct {
	column    ColumnDescriptor
	chunkMeta ColumnChunkMetadata
	readers   []io.Reader
	ordinals  []int
}

func (f *File) openParts(rg RowGroupMetadata, parts []ConsecutivePartList, ranges RowRanges) (*ChunkPageStore, error) {
	if f.closed {
		return nil, ErrReaderClosed
	}
	store := &ChunkPageStore{rowGroup: rg, pages: make(map[string]*pagePipeline), ranges: ranges}
	var streams []io.Reader

	var order []string
	assemblies := make(map[string]*columnAssembly)

	for _, part := range parts {
		r, err := f.chunkSource.Open(part)
		if err != nil {
			store.Close()
			return nil, err
		}
		streams = append(streams, r)

		for i, desc := range part.Columns {
			var chunkReader io.Reader = io.LimitReader(r, desc.Size)
			if i == len(part.Columns)-1 {
				chunkReader = newLastChunkSource(chunkReader, f.source, desc.FileOffset+desc.Size)
			}

			key := desc.Column.Path.String()
			asm, ok := assemblies[key]
			if !ok {
				asm = &columnAssembly{column: desc.Column, chunkMeta: desc.ChunkMeta}
				assemblies[key] = asm
				order = append(order, key)
			}
			asm.readers = append(asm.readers, chunkReader)
			asm.ordinals = append(asm.ordinals, desc.FilteredPageOrdinals...)
		}
	}

	for _, key := range order {
		asm := assemblies[key]
		desc := ChunkDescriptor{Column: asm.column, ChunkMeta: asm.chunkMeta}
		if len(asm.ordinals) > 0 {
			desc.FilteredPageOrdinals = asm.ordinals
		}

		var chunkReader io.Reader = asm.readers[0]
		if len(asm.readers) > 1 {
			chunkReader = io.MultiReader(asm.readers...)
		}

		decCtx, err := f.decoderContextFor(desc.ChunkMeta)
		if err != nil {
			store.Close()
			return nil, err
		}
		dec := newChunkDecoder(decCtx, desc, chunkReader)

		var pipeline *pagePipeline
		if f.async {
			pipeline, err = newAsyncPagePipeline(context.Background(), dec, f.processingExecutor, 0)
		} else {
			pipeline = newSyncPagePipeline(dec)
		}
		if err != nil {
			store.Close()
			return nil, err
		}
		store.pages[key] = pipeline
	}

	store.closer = func() error {
		var first error
		for _, s := range streams {
			if c, ok := s.(io.Closer); ok {
				if err := c.Close(); err != nil && first == nil {
					first = err
				}
			}
		}
		return first
	}
	return store, nil
}

func (f *File) columnDecryptor(cc ColumnChunkMetadata) (crypto.Decryptor, error) {
	if !cc.IsEncrypted() {
		return nil, nil
	}
	if cc.EncryptedWithFooterKey() {
		if f.footerDecryptor == nil {
			return nil, ErrCryptoKeyMissing
		}
		return f.footerDecryptor, nil
	}
	if f.config.DecryptionProperties == nil || f.config.DecryptionProperties.ColumnDecryptor == nil {
		return nil, ErrCryptoKeyMissing
	}
	return f.config.DecryptionProperties.ColumnDecryptor(cc.KeyMetadata())
}

func (f *File) decoderContextFor(cc ColumnChunkMetadata) (*chunkDecoderContext, error) {
	ctx := &chunkDecoderContext{
		codecs:          f.codecs,
		verifyChecksums: f.config.UsePageChecksumVerification,
		rowGroupOrdinal: int16(cc.rowGroup.Ordinal()),
	}
	if cc.IsEncrypted() {
		dec, err := f.columnDecryptor(cc)
		if err != nil {
			return nil, err
		}
		ctx.decryptor = dec
		ctx.aadBuilder = f.aadBuilder
	}
	return ctx, nil
}

func (f *File) fetchColumnIndex(ctx context.Context, rg RowGroupMetadata, cc ColumnChunkMetadata) (*format.ColumnIndex, error) {
	buf := make([]byte, cc.cc.ColumnIndexLength)
	if _, err := f.source.ReadAt(buf, cc.cc.ColumnIndexOffset); err != nil {
		return nil, fmt.Errorf("columnar: reading column index: %w", err)
	}
	if cc.IsEncrypted() {
		dec, err := f.columnDecryptor(cc)
		if err != nil {
			return nil, err
		}
		buf, err = dec.Decrypt(buf, f.aadBuilder.ColumnIndexAAD(int16(rg.Ordinal()), int16(cc.Ordinal())).Bytes())
		if err != nil {
			return nil, err
		}
	}
	ci := new(format.ColumnIndex)
	protocol := thrift.CompactProtocol{}
	if err := thrift.Unmarshal(&protocol, buf, ci); err != nil {
		return nil, ErrCorruptTrailer
	}
	return ci, nil
}

func (f *File) fetchOffsetIndex(ctx context.Context, rg RowGroupMetadata, cc ColumnChunkMetadata) (*format.OffsetIndex, error) {
	buf := make([]byte, cc.cc.OffsetIndexLength)
	if _, err := f.source.ReadAt(buf, cc.cc.OffsetIndexOffset); err != nil {
		return nil, fmt.Errorf("columnar: reading offset index: %w", err)
	}
	if cc.IsEncrypted() {
		dec, err := f.columnDecryptor(cc)
		if err != nil {
			return nil, err
		}
		buf, err = dec.Decrypt(buf, f.aadBuilder.OffsetIndexAAD(int16(rg.Ordinal()), int16(cc.Ordinal())).Bytes())
		if err != nil {
			return nil, err
		}
	}
	oi := new(format.OffsetIndex)
	protocol := thrift.CompactProtocol{}
	if err := thrift.Unmarshal(&protocol, buf, oi); err != nil {
		return nil, ErrCorruptTrailer
	}
	return oi, nil
}

var _ indexFetcher = (*File)(nil)
