// Package codec implements the codec registry collaborator: decompressors
// for the page bodies the chunk decoder reads. This is the default, concrete
// registry the reader is wired to, built the way the teacher
// (segmentio/parquet-go's compress.go and compress/<codec> subpackages)
// layers one small adapter per third-party codec library behind a common
// interface.
package codec

import (
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/localcol/columnar/format"
)

// Decompressor reads decompressed bytes from an underlying compressed
// reader. Reset rebinds the decompressor to a new source without
// reallocating internal buffers, matching the pooled compressedPageReader
// pattern in the teacher's compress.go.
type Decompressor interface {
	io.Reader
	Reset(r io.Reader) error
	Close() error
}

// Registry maps a wire compression codec to a pool of reusable
// decompressors.
type Registry struct {
	pools [8]sync.Pool
}

// Default is a ready-to-use Registry wired to klauspost/compress (gzip,
// zstd, snappy), github.com/pierrec/lz4/v4, and github.com/andybalholm/brotli.
var Default = NewRegistry()

// NewRegistry constructs an empty Registry; pools are populated lazily on
// first use per codec.
func NewRegistry() *Registry { return &Registry{} }

// Acquire returns a Decompressor for the given codec, reset to read from r.
// The returned value should be released back with Release once the caller
// is done with the page.
func (reg *Registry) Acquire(c format.CompressionCodec, r io.Reader) (Decompressor, error) {
	if int(c) < 0 || int(c) >= len(reg.pools) {
		return nil, fmt.Errorf("codec: unsupported compression codec %d", c)
	}
	if d, _ := reg.pools[c].Get().(Decompressor); d != nil {
		if err := d.Reset(r); err != nil {
			return nil, err
		}
		return d, nil
	}
	return newDecompressor(c, r)
}

// Release returns d to its codec's pool for reuse.
func (reg *Registry) Release(c format.CompressionCodec, d Decompressor) {
	if int(c) < 0 || int(c) >= len(reg.pools) {
		return
	}
	reg.pools[c].Put(d)
}

func newDecompressor(c format.CompressionCodec, r io.Reader) (Decompressor, error) {
	switch c {
	case format.Uncompressed:
		return &passthrough{Reader: r}, nil
	case format.Snappy:
		return &snappyDecompressor{r: snappy.NewReader(r)}, nil
	case format.Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("codec: gzip: %w", err)
		}
		return &gzipDecompressor{gr}, nil
	case format.Brotli:
		return &brotliDecompressor{brotli.NewReader(r)}, nil
	case format.Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("codec: zstd: %w", err)
		}
		return &zstdDecompressor{zr}, nil
	case format.Lz4Raw, format.Lz4:
		return &lz4Decompressor{r: lz4.NewReader(r)}, nil
	default:
		return nil, fmt.Errorf("codec: unsupported compression codec %s", c)
	}
}

type passthrough struct{ io.Reader }

func (p *passthrough) Reset(r io.Reader) error { p.Reader = r; return nil }
func (p *passthrough) Close() error            { return nil }

type snappyDecompressor struct{ r *snappy.Reader }

func (d *snappyDecompressor) Read(p []byte) (int, error) { return d.r.Read(p) }
func (d *snappyDecompressor) Reset(r io.Reader) error     { d.r.Reset(r); return nil }
func (d *snappyDecompressor) Close() error                { return nil }

type gzipDecompressor struct{ r *gzip.Reader }

func (d *gzipDecompressor) Read(p []byte) (int, error) { return d.r.Read(p) }
func (d *gzipDecompressor) Reset(r io.Reader) error     { return d.r.Reset(r) }
func (d *gzipDecompressor) Close() error                { return d.r.Close() }

type brotliDecompressor struct{ r *brotli.Reader }

func (d *brotliDecompressor) Read(p []byte) (int, error) { return d.r.Read(p) }
func (d *brotliDecompressor) Reset(r io.Reader) error     { return d.r.Reset(r) }
func (d *brotliDecompressor) Close() error                { return nil }

type zstdDecompressor struct{ r *zstd.Decoder }

func (d *zstdDecompressor) Read(p []byte) (int, error) { return d.r.Read(p) }
func (d *zstdDecompressor) Reset(r io.Reader) error     { return d.r.Reset(r) }
func (d *zstdDecompressor) Close() error                { d.r.Close(); return nil }

type lz4Decompressor struct{ r *lz4.Reader }

func (d *lz4Decompressor) Read(p []byte) (int, error) { return d.r.Read(p) }
func (d *lz4Decompressor) Reset(r io.Reader) error     { d.r.Reset(r); return nil }
func (d *lz4Decompressor) Close() error                { return nil }
