package columnar

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/segmentio/encoding/thrift"

	"github.com/localcol/columnar/crypto"
	"github.com/localcol/columnar/format"
)

const trailerTailLength = magicLength + footerLengthBytes

// parsedTrailer holds everything recovered from a file's tail: its
// metadata (with MetadataFilter already applied), whether its footer was
// encrypted, and the AAD builder derived from its encryption algorithm
// when applicable.
type parsedTrailer struct {
	metadata   *format.FileMetaData
	encrypted  bool
	aadBuilder *crypto.AADBuilder
}

// parseTrailer reads and validates a file's tail, dispatching to plaintext
// or encrypted-footer parsing based on the tail magic, and applies filter
// to the recovered row groups.
func parseTrailer(source SeekableSource, filter MetadataFilter, props *crypto.DecryptionProperties) (*parsedTrailer, error) {
	size := source.Size()
	if size < int64(magicLength+footerLengthBytes+magicLength) {
		return nil, ErrNotAColumnarFile
	}

	var tail [trailerTailLength]byte
	if _, err := source.ReadAt(tail[:], size-int64(trailerTailLength)); err != nil {
		return nil, fmt.Errorf("columnar: reading file tail: %w", err)
	}
	footerLength := int64(binary.LittleEndian.Uint32(tail[:footerLengthBytes]))
	var tailMagic [magicLength]byte
	copy(tailMagic[:], tail[footerLengthBytes:])

	switch tailMagic {
	case Magic:
		return parsePlaintextFooter(source, size, footerLength, filter)
	case EFMagic:
		if props == nil {
			return nil, ErrCryptoKeyMissing
		}
		return parseEncryptedFooter(source, size, footerLength, filter, props)
	default:
		return nil, ErrNotAColumnarFile
	}
}

func parsePlaintextFooter(source SeekableSource, size, footerLength int64, filter MetadataFilter) (*parsedTrailer, error) {
	footerOffset := size - int64(magicLength) - int64(footerLengthBytes) - footerLength
	if footerOffset < int64(magicLength) || footerOffset >= size-int64(trailerTailLength) {
		return nil, ErrCorruptTrailer
	}

	buf := make([]byte, footerLength)
	if _, err := source.ReadAt(buf, footerOffset); err != nil {
		return nil, fmt.Errorf("columnar: reading footer: %w", err)
	}

	metadata := new(format.FileMetaData)
	protocol := thrift.CompactProtocol{}
	if err := thrift.Unmarshal(&protocol, buf, metadata); err != nil {
		return nil, fmt.Errorf("columnar: %w: %v", ErrCorruptTrailer, err)
	}
	applyMetadataFilter(metadata, filter)
	return &parsedTrailer{metadata: metadata}, nil
}

func parseEncryptedFooter(source SeekableSource, size, footerLength int64, filter MetadataFilter, props *crypto.DecryptionProperties) (*parsedTrailer, error) {
	footerOffset := size - int64(magicLength) - int64(footerLengthBytes) - footerLength
	if footerOffset < int64(magicLength) || footerOffset >= size-int64(trailerTailLength) {
		return nil, ErrCorruptTrailer
	}

	section := io.NewSectionReader(source, footerOffset, footerLength)
	protocol := thrift.CompactProtocol{}
	decoder := thrift.NewDecoder(protocol.NewReader(section))

	cryptoMeta := new(format.FileCryptoMetaData)
	if err := decoder.Decode(cryptoMeta); err != nil {
		return nil, fmt.Errorf("columnar: %w: %v", ErrCorruptTrailer, err)
	}
	consumed, _ := section.Seek(0, io.SeekCurrent)

	encryptedLen := footerLength - consumed
	if encryptedLen <= 0 {
		return nil, ErrCorruptTrailer
	}
	ciphertext := make([]byte, encryptedLen)
	if _, err := source.ReadAt(ciphertext, footerOffset+consumed); err != nil {
		return nil, fmt.Errorf("columnar: reading encrypted footer: %w", err)
	}

	if props.FooterDecryptor == nil {
		return nil, ErrCryptoKeyMissing
	}

	algAADPrefix, algAADFileUnique, ok := footerEncryptionAAD(&cryptoMeta.EncryptionAlgorithm)
	if !ok {
		return nil, fmt.Errorf("columnar: %w: unrecognized encryption algorithm", ErrCorruptTrailer)
	}

	aadPrefix := algAADPrefix
	if props.AADPrefix != nil {
		aadPrefix = props.AADPrefix
	}
	aadBuilder := crypto.NewAADBuilder(aadPrefix, algAADFileUnique)

	plaintext, err := props.FooterDecryptor.Decrypt(ciphertext, aadBuilder.FileAAD())
	if err != nil {
		return nil, fmt.Errorf("columnar: decrypting footer: %w", err)
	}

	metadata := new(format.FileMetaData)
	if err := thrift.Unmarshal(&protocol, plaintext, metadata); err != nil {
		return nil, fmt.Errorf("columnar: %w: %v", ErrCorruptTrailer, err)
	}
	applyMetadataFilter(metadata, filter)
	return &parsedTrailer{metadata: metadata, encrypted: true, aadBuilder: aadBuilder}, nil
}

// footerEncryptionAAD extracts the AAD prefix and file-unique suffix common
// to both modular-encryption algorithm variants. AES_GCM_V1 and
// AES_GCM_CTR_V1 carry identical AAD fields; only their cipher mode
// differs, and the cipher mode itself is resolved by the Decryptor the
// caller supplied, not by this reader. ok is false when neither variant is
// set, which a valid file never produces but a corrupt one might.
func footerEncryptionAAD(alg *format.EncryptionAlgorithm) (aadPrefix, aadFileUnique []byte, ok bool) {
	switch {
	case alg.AESGCMV1 != nil:
		return alg.AESGCMV1.AADPrefix, alg.AESGCMV1.AADFileUnique, true
	case alg.AESGCMCTRV1 != nil:
		return alg.AESGCMCTRV1.AADPrefix, alg.AESGCMCTRV1.AADFileUnique, true
	default:
		return nil, nil, false
	}
}

// applyMetadataFilter drops row groups the filter rejects, in place. A
// metadata filter is allowed to read the trailer once fully parsed rather
// than intercepting the thrift decode itself: the observable result
// (uninteresting row groups never retained) is identical.
func applyMetadataFilter(metadata *format.FileMetaData, filter MetadataFilter) {
	if filter == nil {
		return
	}
	kept := metadata.RowGroups[:0]
	for i, rg := range metadata.RowGroups {
		offset := rg.FileOffset
		if offset == 0 && len(rg.Columns) > 0 {
			offset = rg.Columns[0].FileOffset
		}
		if filter.keepRowGroup(i, offset, rg.TotalByteSize) {
			kept = append(kept, rg)
		}
	}
	metadata.RowGroups = kept
}
