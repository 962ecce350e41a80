package columnar

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/segmentio/encoding/thrift"

	"github.com/localcol/columnar/codec"
	cryptopkg "github.com/localcol/columnar/crypto"
	"github.com/localcol/columnar/format"
)

// chunkDecoderContext carries the explicit, non-cyclic collaborators a
// chunk decoder needs: the codec registry, an optional decryptor plus the
// AAD builder bound to the file, and whether checksums are verified.
// Passing these by reference keeps PageReader/Chunk from holding onto each
// other the way a naive port of a cyclic object graph would.
type chunkDecoderContext struct {
	codecs          *codec.Registry
	decryptor       cryptopkg.Decryptor
	aadBuilder      *cryptopkg.AADBuilder
	verifyChecksums bool
	rowGroupOrdinal int16
}

// chunkDecoder reads pages from one column chunk's byte stream, in file
// order, yielding the chunk's dictionary page first when present.
type chunkDecoder struct {
	ctx  *chunkDecoderContext
	desc ChunkDescriptor
	r    io.Reader

	protocol thrift.CompactProtocol
	decoder  *thrift.Decoder

	headerAAD     *cryptopkg.ModuleAAD
	bodyAAD       *cryptopkg.ModuleAAD
	dictHeaderAAD *cryptopkg.ModuleAAD
	dictBodyAAD   *cryptopkg.ModuleAAD

	// absoluteOrdinals maps the i'th data page this decoder reads to its
	// absolute ordinal in the chunk's full, unfiltered page list; nil in
	// unfiltered mode, where the identity mapping applies.
	absoluteOrdinals []int

	valuesReadSoFar int64
	pagesReadSoFar  int
	sawDictionary   bool
}

func newChunkDecoder(ctx *chunkDecoderContext, desc ChunkDescriptor, r io.Reader) *chunkDecoder {
	d := &chunkDecoder{ctx: ctx, desc: desc, r: r, absoluteOrdinals: desc.FilteredPageOrdinals}
	d.protocol = thrift.CompactProtocol{}
	d.decoder = thrift.NewDecoder(d.protocol.NewReader(r))

	if ctx.decryptor != nil && ctx.aadBuilder != nil {
		col := int16(desc.Column.Ordinal)
		d.headerAAD = ctx.aadBuilder.DataPageHeaderAAD(ctx.rowGroupOrdinal, col)
		d.bodyAAD = ctx.aadBuilder.DataPageAAD(ctx.rowGroupOrdinal, col)
		d.dictHeaderAAD = ctx.aadBuilder.DictionaryPageHeaderAAD(ctx.rowGroupOrdinal, col)
		d.dictBodyAAD = ctx.aadBuilder.DictionaryPageAAD(ctx.rowGroupOrdinal, col)
	}
	return d
}

// done reports whether the chunk decoder has produced every page implied
// by the column's metadata.
func (d *chunkDecoder) done() (bool, error) {
	oi := d.offsetIndexPageCount()
	if oi >= 0 {
		return d.pagesReadSoFar >= oi, nil
	}
	if d.valuesReadSoFar > d.desc.ChunkMeta.NumValues() {
		return false, ErrCorruptPage
	}
	return d.valuesReadSoFar == d.desc.ChunkMeta.NumValues(), nil
}

func (d *chunkDecoder) offsetIndexPageCount() int {
	if d.absoluteOrdinals != nil {
		return len(d.absoluteOrdinals)
	}
	return -1
}

func (d *chunkDecoder) currentPageOrdinal() int {
	if d.absoluteOrdinals != nil {
		if d.pagesReadSoFar < len(d.absoluteOrdinals) {
			return d.absoluteOrdinals[d.pagesReadSoFar]
		}
		return d.pagesReadSoFar
	}
	return d.pagesReadSoFar
}

// next reads and returns the next page, or (Page{}, io.EOF) once the chunk
// is exhausted.
func (d *chunkDecoder) next() (Page, error) {
	finished, err := d.done()
	if err != nil {
		return Page{}, err
	}
	if finished {
		return Page{}, io.EOF
	}

	for {
		header, err := d.readHeader()
		if err != nil {
			return Page{}, err
		}

		switch header.Type {
		case format.DictionaryPage:
			if d.sawDictionary {
				return Page{}, ErrCorruptPage
			}
			d.sawDictionary = true
			page, err := d.decodeDictionaryPage(header)
			if err != nil {
				return Page{}, err
			}
			return page, nil

		case format.DataPage:
			page, err := d.decodeDataPageV1(header)
			if err != nil {
				return Page{}, err
			}
			d.afterDataPage(header.DataPageHeader.NumValues)
			return page, nil

		case format.DataPageV2:
			page, err := d.decodeDataPageV2(header)
			if err != nil {
				return Page{}, err
			}
			d.afterDataPage(header.DataPageHeaderV2.NumValues)
			return page, nil

		default:
			if err := d.skip(int64(header.CompressedPageSize)); err != nil {
				return Page{}, err
			}
			// Unknown page type: keep scanning for one this decoder
			// understands rather than surfacing it to the caller.
			continue
		}
	}
}

func (d *chunkDecoder) afterDataPage(numValues int32) {
	d.valuesReadSoFar += int64(numValues)
	d.pagesReadSoFar++
}

func (d *chunkDecoder) readHeader() (*format.PageHeader, error) {
	header := new(format.PageHeader)

	if d.headerAAD == nil {
		if err := d.decoder.Decode(header); err != nil {
			return nil, err
		}
		return header, nil
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	size := binary.LittleEndian.Uint32(lenBuf[:])
	ciphertext := make([]byte, size)
	if _, err := io.ReadFull(d.r, ciphertext); err != nil {
		return nil, ErrCorruptPage
	}

	aad := d.headerAAD
	if d.pagesReadSoFar == 0 && d.desc.ChunkMeta.HasDictionaryPage() && !d.sawDictionary {
		aad = d.dictHeaderAAD
	} else {
		aad.SetPageOrdinal(d.currentPageOrdinal())
	}

	plaintext, err := d.ctx.decryptor.Decrypt(ciphertext, aad.Bytes())
	if err != nil {
		return nil, err
	}
	if err := thrift.Unmarshal(&d.protocol, plaintext, header); err != nil {
		return nil, ErrCorruptPage
	}
	return header, nil
}

func (d *chunkDecoder) readBody(size int32, aad *cryptopkg.ModuleAAD) ([]byte, error) {
	if size < 0 {
		return nil, ErrCorruptPage
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, ErrCorruptPage
	}
	if d.ctx.decryptor != nil && aad != nil {
		aad.SetPageOrdinal(d.currentPageOrdinal())
		plain, err := d.ctx.decryptor.Decrypt(buf, aad.Bytes())
		if err != nil {
			return nil, err
		}
		return plain, nil
	}
	return buf, nil
}

func (d *chunkDecoder) skip(n int64) error {
	_, err := io.CopyN(io.Discard, d.r, n)
	return err
}

func (d *chunkDecoder) verifyCRC(compressed []byte, want *int32) error {
	if !d.ctx.verifyChecksums || want == nil {
		return nil
	}
	if crc32.ChecksumIEEE(compressed) != uint32(*want) {
		return ErrChecksumFailure
	}
	return nil
}

func (d *chunkDecoder) decompress(compressed []byte, uncompressedSize int32) ([]byte, error) {
	dec, err := d.ctx.codecs.Acquire(d.desc.ChunkMeta.Codec(), newByteReader(compressed))
	if err != nil {
		return nil, err
	}
	defer d.ctx.codecs.Release(d.desc.ChunkMeta.Codec(), dec)

	out := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(dec, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *chunkDecoder) decodeDictionaryPage(header *format.PageHeader) (Page, error) {
	if header.DictionaryPageHeader == nil {
		return Page{}, ErrCorruptPage
	}
	compressed, err := d.readBody(header.CompressedPageSize, d.dictBodyAAD)
	if err != nil {
		return Page{}, err
	}
	var crc *int32
	if header.CRC != 0 {
		v := header.CRC
		crc = &v
	}
	if err := d.verifyCRC(compressed, crc); err != nil {
		return Page{}, err
	}
	uncompressed, err := d.decompress(compressed, header.UncompressedPageSize)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Ordinal: d.currentPageOrdinal(),
		Dictionary: &DictionaryPage{
			Bytes:            uncompressed,
			UncompressedSize: header.UncompressedPageSize,
			NumValues:        header.DictionaryPageHeader.NumValues,
			Encoding:         header.DictionaryPageHeader.Encoding,
			CRC:              crc,
		},
	}, nil
}

func (d *chunkDecoder) decodeDataPageV1(header *format.PageHeader) (Page, error) {
	if header.DataPageHeader == nil {
		return Page{}, ErrCorruptPage
	}
	ordinal := d.currentPageOrdinal()
	compressed, err := d.readBody(header.CompressedPageSize, d.bodyAAD)
	if err != nil {
		return Page{}, err
	}
	var crc *int32
	if header.CRC != 0 {
		v := header.CRC
		crc = &v
	}
	if err := d.verifyCRC(compressed, crc); err != nil {
		return Page{}, err
	}
	uncompressed, err := d.decompress(compressed, header.UncompressedPageSize)
	if err != nil {
		return Page{}, err
	}
	h := header.DataPageHeader
	return Page{
		Ordinal: ordinal,
		DataV1: &DataPageV1{
			Bytes:                   uncompressed,
			NumValues:               h.NumValues,
			UncompressedSize:        header.UncompressedPageSize,
			Statistics:              h.Statistics,
			RepetitionLevelEncoding: h.RepetitionLevelEncoding,
			DefinitionLevelEncoding: h.DefinitionLevelEncoding,
			Encoding:                h.Encoding,
			CRC:                     crc,
		},
	}, nil
}

func (d *chunkDecoder) decodeDataPageV2(header *format.PageHeader) (Page, error) {
	h := header.DataPageHeaderV2
	if h == nil {
		return Page{}, ErrCorruptPage
	}
	ordinal := d.currentPageOrdinal()

	dataSize := header.CompressedPageSize - h.RepetitionLevelsByteLength - h.DefinitionLevelsByteLength
	if dataSize < 0 {
		return Page{}, ErrCorruptPage
	}

	rep, err := d.readBody(h.RepetitionLevelsByteLength, nil)
	if err != nil {
		return Page{}, err
	}
	def, err := d.readBody(h.DefinitionLevelsByteLength, nil)
	if err != nil {
		return Page{}, err
	}
	raw, err := d.readBody(dataSize, d.bodyAAD)
	if err != nil {
		return Page{}, err
	}

	isCompressed := h.IsCompressed == nil || *h.IsCompressed
	data := raw
	if isCompressed {
		data, err = d.decompress(raw, header.UncompressedPageSize-int32(len(rep))-int32(len(def)))
		if err != nil {
			return Page{}, err
		}
	}

	return Page{
		Ordinal: ordinal,
		DataV2: &DataPageV2{
			NumRows:          h.NumRows,
			NumNulls:         h.NumNulls,
			NumValues:        h.NumValues,
			RepetitionLevels: rep,
			DefinitionLevels: def,
			Data:             data,
			DataEncoding:     h.Encoding,
			UncompressedSize: header.UncompressedPageSize,
			Statistics:       h.Statistics,
			IsCompressed:     isCompressed,
		},
	}, nil
}

// byteReaderImpl adapts a []byte into an io.Reader the codec registry can
// Reset a pooled decompressor onto.
type byteReaderImpl struct {
	b   []byte
	pos int
}

func newByteReader(b []byte) io.Reader { return &byteReaderImpl{b: b} }

func (r *byteReaderImpl) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
