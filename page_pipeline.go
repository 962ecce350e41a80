package columnar

import (
	"context"
	"io"
)

// pagePipeline delivers one column chunk's pages to a consumer, in file
// order; once the chunk is exhausted Take returns ok=false. Sync and async
// construction model the two fill modes: sync fills completely before
// returning, async reads the chunk's first page (its dictionary, if any)
// inline and hands the remainder to a background task.
type pagePipeline struct {
	sync  *syncPageSource
	async *asyncPageSource
}

// syncPageSource holds every page the decoder produced, read eagerly
// before the pipeline is handed to its consumer. A bounded queue serves no
// purpose here since nothing is produced concurrently with consumption, so
// the "FIFO" degenerates to a plain slice.
type syncPageSource struct {
	pages []Page
	pos   int
	err   error
}

func newSyncPagePipeline(dec *chunkDecoder) *pagePipeline {
	src := &syncPageSource{}
	for {
		p, err := dec.next()
		if err != nil {
			if err != io.EOF {
				src.err = err
			}
			break
		}
		src.pages = append(src.pages, p)
	}
	return &pagePipeline{sync: src}
}

// asyncPageSource is a bounded channel-backed FIFO filled by a background
// task submitted to a ProcessingExecutor; Take blocks until a page (or the
// terminal marker) is available.
type asyncPageSource struct {
	ch  chan Page
	err chan error
}

func newAsyncPagePipeline(ctx context.Context, dec *chunkDecoder, executor ProcessingExecutor, capacity int) (*pagePipeline, error) {
	if capacity <= 0 {
		capacity = 16
	}
	src := &asyncPageSource{ch: make(chan Page, capacity), err: make(chan error, 1)}

	first, err := dec.next()
	if err != nil && err != io.EOF {
		return nil, err
	}
	firstIsEOF := err != nil

	if executor == nil {
		executor = goroutineExecutor{}
	}
	executor.Submit(func() {
		defer close(src.ch)
		if !firstIsEOF {
			if putErr := putPage(ctx, src.ch, first); putErr != nil {
				src.err <- putErr
				return
			}
		}
		for {
			p, err := dec.next()
			if err != nil {
				if err != io.EOF {
					src.err <- err
				}
				return
			}
			if putErr := putPage(ctx, src.ch, p); putErr != nil {
				src.err <- putErr
				return
			}
		}
	})

	return &pagePipeline{async: src}, nil
}

func putPage(ctx context.Context, ch chan<- Page, p Page) error {
	select {
	case ch <- p:
		return nil
	case <-ctx.Done():
		return ErrInterrupted
	}
}

// Take returns the next page, or ok=false once the chunk is exhausted
// (err is non-nil only if the chunk decoder failed before reaching its
// natural end).
func (pp *pagePipeline) Take(ctx context.Context) (page Page, ok bool, err error) {
	if pp.sync != nil {
		s := pp.sync
		if s.pos >= len(s.pages) {
			return Page{}, false, s.err
		}
		p := s.pages[s.pos]
		s.pos++
		return p, true, nil
	}

	select {
	case p, open := <-pp.async.ch:
		if !open {
			select {
			case err := <-pp.async.err:
				return Page{}, false, err
			default:
				return Page{}, false, nil
			}
		}
		return p, true, nil
	case <-ctx.Done():
		return Page{}, false, ErrInterrupted
	}
}
