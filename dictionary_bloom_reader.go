package columnar

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/encoding/thrift"

	"github.com/localcol/columnar/format"
)

// bloomBlockSize is the byte size of one split-block bloom filter block:
// eight 32-bit words.
const bloomBlockSize = 32

// bloomSalt is the fixed set of odd multipliers a split-block bloom filter
// uses to spread one hash across a block's eight words.
var bloomSalt = [8]uint32{
	0x47b6137b, 0x44974d91, 0x8824ad5b, 0xa2b7289d,
	0x705495c7, 0x2df1424b, 0x9efc4947, 0x5c6bfb31,
}

// BloomFilter is a read-only split-block bloom filter backed by the raw
// bitset bytes read from a column chunk's bloom filter region.
type BloomFilter struct {
	bytes     []byte
	numBlocks uint64
}

func newBloomFilter(bitset []byte) *BloomFilter {
	return &BloomFilter{bytes: bitset, numBlocks: uint64(len(bitset)) / bloomBlockSize}
}

// MayContain reports whether value might be a member of the filter. False
// negatives never happen; false positives occur at the filter's configured
// rate.
func (f *BloomFilter) MayContain(value []byte) bool {
	if f.numBlocks == 0 {
		return false
	}
	h := xxhash.Sum64(value)
	blockIdx := ((h >> 32) * f.numBlocks) >> 32
	block := f.bytes[blockIdx*bloomBlockSize : blockIdx*bloomBlockSize+bloomBlockSize]
	lo := uint32(h)
	for i := 0; i < 8; i++ {
		word := binary.LittleEndian.Uint32(block[i*4 : i*4+4])
		mask := uint32(1) << (lo * bloomSalt[i] >> 27)
		if word&mask == 0 {
			return false
		}
	}
	return true
}

// readDictionary seeks to the start of a column chunk and reads its
// dictionary page, decrypting the page header (and body) with the
// DictionaryPageHeader/DictionaryPage AADs when the column is encrypted.
func (f *File) readDictionary(ctx context.Context, cc ColumnChunkMetadata) (*DictionaryPage, error) {
	if !cc.HasDictionaryPage() {
		return nil, nil
	}
	section := io.NewSectionReader(f.source, cc.DataPageOffset(), cc.TotalCompressedSize())
	dctx, err := f.decoderContextFor(cc)
	if err != nil {
		return nil, err
	}
	dec := newChunkDecoder(dctx, ChunkDescriptor{Column: ColumnDescriptor{Ordinal: cc.Ordinal()}, ChunkMeta: cc}, section)

	page, err := dec.next()
	if err != nil {
		return nil, err
	}
	if !page.IsDictionary() {
		return nil, ErrCorruptPage
	}
	return page.Dictionary, nil
}

// readBloomFilter reads and validates a column chunk's bloom filter header,
// then its bitset. An unsupported algorithm, hash, or compression scheme is
// not an error: it returns (nil, nil) after logging a warning, the same
// "absent" outcome as a chunk with no bloom filter at all.
func (f *File) readBloomFilter(ctx context.Context, cc ColumnChunkMetadata) (*BloomFilter, error) {
	offset, length, ok := cc.BloomFilterRange()
	if !ok {
		return nil, nil
	}

	section := io.NewSectionReader(f.source, offset, f.source.Size()-offset)
	protocol := thrift.CompactProtocol{}
	decoder := thrift.NewDecoder(protocol.NewReader(section))

	header := new(format.BloomFilterHeader)
	if err := decoder.Decode(header); err != nil {
		return nil, ErrCorruptPage
	}
	bitsetStart, _ := section.Seek(0, io.SeekCurrent)

	if header.Algorithm.Block == nil || header.Hash.XxHash == nil || header.Compression.Uncompressed == nil {
		f.logger.Printf("columnar: unsupported bloom filter algorithm/hash/compression, column %d", cc.Ordinal())
		return nil, nil
	}
	if header.NumBytes <= 0 || int64(header.NumBytes) > int64(length) {
		f.logger.Printf("columnar: implausible bloom filter size, column %d", cc.Ordinal())
		return nil, nil
	}

	bitset := make([]byte, header.NumBytes)
	if _, err := f.source.ReadAt(bitset, offset+bitsetStart); err != nil {
		return nil, err
	}

	if cc.IsEncrypted() {
		dec, err := f.columnDecryptor(cc)
		if err != nil {
			return nil, err
		}
		plain, err := dec.Decrypt(bitset, f.aadBuilder.BloomFilterBitsetAAD(int16(cc.rowGroup.Ordinal()), int16(cc.Ordinal())).Bytes())
		if err != nil {
			return nil, err
		}
		if int32(len(plain)) != header.NumBytes {
			return nil, ErrCryptoLengthMismatch
		}
		bitset = plain
	}

	return newBloomFilter(bitset), nil
}
