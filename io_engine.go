package columnar

import (
	"io"
	"sync"
)

// SeekableSource is the byte source a File is opened against: random-access
// reads plus a known size, the way the teacher's file.go wraps an
// io.ReaderAt-backed *os.File.
type SeekableSource interface {
	io.ReaderAt
	Size() int64
}

// ChunkSource hands the chunk decoder one byte stream per consecutive
// part. Both implementations below share a contract: Open returns
// immediately and the returned io.Reader blocks on Read only for bytes not
// yet available, so a caller can start decoding the first bytes of a part
// before the rest has been fetched.
type ChunkSource interface {
	Open(part ConsecutivePartList) (io.Reader, error)
	Close() error
}

// syncChunkSource reads a part's bytes on the calling goroutine: one seek
// (one io.SectionReader) per part.
type syncChunkSource struct {
	source SeekableSource
}

func newSyncChunkSource(source SeekableSource) *syncChunkSource {
	return &syncChunkSource{source: source}
}

func (s *syncChunkSource) Open(part ConsecutivePartList) (io.Reader, error) {
	if err := checkPartBounds(part, s.source.Size()); err != nil {
		return nil, err
	}
	return io.NewSectionReader(s.source, part.Offset, part.Length), nil
}

func (s *syncChunkSource) Close() error { return nil }

var _ ChunkSource = (*syncChunkSource)(nil)

// asyncChunkSource opens one fresh stream per part, filled in the
// background by the injected I/O executor in maxAllocation-sized chunks so
// a single part never forces one oversized allocation.
type asyncChunkSource struct {
	source        SeekableSource
	executor      IOExecutor
	maxAllocation int64

	mu      sync.Mutex
	readers []io.Closer
}

func newAsyncChunkSource(source SeekableSource, executor IOExecutor, maxAllocation int64) *asyncChunkSource {
	if executor == nil {
		executor = goroutineExecutor{}
	}
	if maxAllocation <= 0 {
		maxAllocation = 1 << 20
	}
	return &asyncChunkSource{source: source, executor: executor, maxAllocation: maxAllocation}
}

func (s *asyncChunkSource) Open(part ConsecutivePartList) (io.Reader, error) {
	if err := checkPartBounds(part, s.source.Size()); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	s.mu.Lock()
	s.readers = append(s.readers, pr)
	s.mu.Unlock()

	section := io.NewSectionReader(s.source, part.Offset, part.Length)
	s.executor.Submit(func() {
		buf := make([]byte, s.maxAllocation)
		_, err := io.CopyBuffer(pw, section, buf)
		pw.CloseWithError(err)
	})
	return pr, nil
}

func (s *asyncChunkSource) Close() error {
	s.mu.Lock()
	readers := s.readers
	s.readers = nil
	s.mu.Unlock()

	var first error
	for _, r := range readers {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ ChunkSource = (*asyncChunkSource)(nil)

func checkPartBounds(part ConsecutivePartList, size int64) error {
	if part.Offset < 0 || part.Length < 0 || part.Offset+part.Length > size {
		return ErrSeekOutOfRange
	}
	return nil
}

// lastChunkSource wraps the reader for a part's final chunk descriptor,
// implementing the truncated-header workaround: some writers undercount
// the declared compressed_page_size of a chunk's last page by a handful of
// bytes. Once the wrapped reader is exhausted, further reads are satisfied
// directly from the underlying source past the part's declared boundary
// instead of failing with an early EOF.
type lastChunkSource struct {
	r      io.Reader
	source SeekableSource
	pos    int64
}

func newLastChunkSource(r io.Reader, source SeekableSource, boundary int64) *lastChunkSource {
	return &lastChunkSource{r: r, source: source, pos: boundary}
}

func (l *lastChunkSource) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if n > 0 || err == nil {
		return n, err
	}
	if err != io.EOF {
		return n, err
	}
	if l.pos >= l.source.Size() {
		return 0, io.EOF
	}
	m, rerr := l.source.ReadAt(p, l.pos)
	l.pos += int64(m)
	if rerr == io.EOF && m > 0 {
		rerr = nil
	}
	return m, rerr
}

var _ io.Reader = (*lastChunkSource)(nil)
