package columnar

import (
	"context"
	"sync"

	"github.com/localcol/columnar/format"
)

// indexFetcher performs the actual random-access read and deserialization of
// a column chunk's index structures. File implements this; it is factored
// out so indexStore can be exercised without a backing file.
type indexFetcher interface {
	fetchColumnIndex(ctx context.Context, rg RowGroupMetadata, cc ColumnChunkMetadata) (*format.ColumnIndex, error)
	fetchOffsetIndex(ctx context.Context, rg RowGroupMetadata, cc ColumnChunkMetadata) (*format.OffsetIndex, error)
}

type indexKey struct {
	rowGroup int
	column   int
}

type columnIndexEntry struct {
	once  sync.Once
	value *format.ColumnIndex
	err   error
}

type offsetIndexEntry struct {
	once  sync.Once
	value *format.OffsetIndex
	err   error
}

// indexStore caches column-index and offset-index blobs for the lifetime of
// a File. Each (row group, column) pair is fetched at most once: concurrent
// callers asking for the same index block on the once and share the single
// read, matching the random-access reader's statelessness requirement that
// a given byte range of the file is never re-requested once resolved.
type indexStore struct {
	fetcher indexFetcher

	mu            sync.Mutex
	columnIndexes map[indexKey]*columnIndexEntry
	offsetIndexes map[indexKey]*offsetIndexEntry
}

func newIndexStore(fetcher indexFetcher) *indexStore {
	return &indexStore{
		fetcher:       fetcher,
		columnIndexes: make(map[indexKey]*columnIndexEntry),
		offsetIndexes: make(map[indexKey]*offsetIndexEntry),
	}
}

func (s *indexStore) columnIndex(ctx context.Context, rg RowGroupMetadata, cc ColumnChunkMetadata) (*format.ColumnIndex, error) {
	if !cc.HasColumnIndex() {
		return nil, ErrMissingColumnIndex
	}
	key := indexKey{rowGroup: rg.Ordinal(), column: cc.Ordinal()}

	s.mu.Lock()
	entry, ok := s.columnIndexes[key]
	if !ok {
		entry = &columnIndexEntry{}
		s.columnIndexes[key] = entry
	}
	s.mu.Unlock()

	entry.once.Do(func() {
		entry.value, entry.err = s.fetcher.fetchColumnIndex(ctx, rg, cc)
	})
	return entry.value, entry.err
}

func (s *indexStore) offsetIndex(ctx context.Context, rg RowGroupMetadata, cc ColumnChunkMetadata) (*format.OffsetIndex, error) {
	if !cc.HasOffsetIndex() {
		return nil, ErrMissingOffsetIndex
	}
	key := indexKey{rowGroup: rg.Ordinal(), column: cc.Ordinal()}

	s.mu.Lock()
	entry, ok := s.offsetIndexes[key]
	if !ok {
		entry = &offsetIndexEntry{}
		s.offsetIndexes[key] = entry
	}
	s.mu.Unlock()

	entry.once.Do(func() {
		entry.value, entry.err = s.fetcher.fetchOffsetIndex(ctx, rg, cc)
	})
	return entry.value, entry.err
}
