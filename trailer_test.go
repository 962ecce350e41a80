package columnar

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/segmentio/encoding/thrift"

	"github.com/localcol/columnar/crypto"
	"github.com/localcol/columnar/format"
)

// memSource is an in-memory columnar.SeekableSource backed by a byte slice,
// used throughout this package's tests instead of a real file.
type memSource []byte

func (m memSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m)) {
		return 0, ErrSeekOutOfRange
	}
	n := copy(p, m[off:])
	if n < len(p) {
		return n, ErrCorruptTrailer
	}
	return n, nil
}

func (m memSource) Size() int64 { return int64(len(m)) }

// buildPlainFile appends metadata's thrift-encoded bytes, its length, and
// Magic to the given prefix, producing a minimal valid plaintext-footer
// file.
func buildPlainFile(prefix []byte, metadata *format.FileMetaData) ([]byte, error) {
	protocol := thrift.CompactProtocol{}
	footer, err := thrift.Marshal(&protocol, metadata)
	if err != nil {
		return nil, err
	}
	buf := append([]byte{}, prefix...)
	buf = append(buf, footer...)
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(footer)))
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, Magic[:]...)
	return buf, nil
}

func minimalMetadata() *format.FileMetaData {
	return &format.FileMetaData{
		Version: 1,
		Schema: []format.SchemaElement{
			{Name: "root", NumChildren: int32p(1)},
			{Name: "id", Type: typep(format.Int64)},
		},
		NumRows: 3,
		RowGroups: []format.RowGroup{
			{NumRows: 3, TotalByteSize: 30, FileOffset: 4, Columns: []format.ColumnChunk{
				{FileOffset: 4, MetaData: format.ColumnMetaData{
					Type: format.Int64, Codec: format.Uncompressed, NumValues: 3,
					TotalCompressedSize: 10, DataPageOffset: 4,
				}},
			}},
		},
	}
}

func TestParseTrailerPlaintext(t *testing.T) {
	prefix := []byte("PAR1-body-bytes-") // arbitrary row-group payload
	raw, err := buildPlainFile(prefix, minimalMetadata())
	if err != nil {
		t.Fatalf("buildPlainFile() error = %v", err)
	}

	trailer, err := parseTrailer(memSource(raw), NoFilter(), nil)
	if err != nil {
		t.Fatalf("parseTrailer() error = %v", err)
	}
	if trailer.encrypted {
		t.Fatal("encrypted = true for a plaintext footer")
	}
	if trailer.metadata.NumRows != 3 {
		t.Fatalf("NumRows = %d, want 3", trailer.metadata.NumRows)
	}
	if len(trailer.metadata.RowGroups) != 1 {
		t.Fatalf("len(RowGroups) = %d, want 1", len(trailer.metadata.RowGroups))
	}
}

func TestParseTrailerAppliesMetadataFilter(t *testing.T) {
	metadata := minimalMetadata()
	metadata.RowGroups = append(metadata.RowGroups, format.RowGroup{NumRows: 1, FileOffset: 1000})

	raw, err := buildPlainFile([]byte("PAR1data"), metadata)
	if err != nil {
		t.Fatalf("buildPlainFile() error = %v", err)
	}

	trailer, err := parseTrailer(memSource(raw), RowGroupOrdinals(0), nil)
	if err != nil {
		t.Fatalf("parseTrailer() error = %v", err)
	}
	if len(trailer.metadata.RowGroups) != 1 {
		t.Fatalf("len(RowGroups) = %d, want 1", len(trailer.metadata.RowGroups))
	}
}

func TestParseTrailerRejectsGarbage(t *testing.T) {
	raw := make([]byte, 32)
	if _, err := parseTrailer(memSource(raw), NoFilter(), nil); err != ErrNotAColumnarFile {
		t.Fatalf("parseTrailer() error = %v, want %v", err, ErrNotAColumnarFile)
	}
}

func TestParseTrailerRejectsTooSmallFile(t *testing.T) {
	raw := make([]byte, 4)
	if _, err := parseTrailer(memSource(raw), NoFilter(), nil); err != ErrNotAColumnarFile {
		t.Fatalf("parseTrailer() error = %v, want %v", err, ErrNotAColumnarFile)
	}
}

// sealAESGCM seals plaintext the same way GCMDecryptor expects to open it: a
// random nonce prefixed to the AES-GCM sealed output.
func sealAESGCM(t *testing.T, key, plaintext, aad []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher() error = %v", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("cipher.NewGCM() error = %v", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		t.Fatalf("rand.Read(nonce) error = %v", err)
	}
	return aead.Seal(nonce, nonce, plaintext, aad)
}

// buildEncryptedFile assembles a minimal valid encrypted-footer file: a
// plaintext FileCryptoMetaData naming alg, followed by the AES-GCM sealed
// FileMetaData, the footer length, and EFMagic.
func buildEncryptedFile(t *testing.T, prefix []byte, metadata *format.FileMetaData, alg format.EncryptionAlgorithm, key []byte) []byte {
	t.Helper()
	protocol := thrift.CompactProtocol{}

	footerPlain, err := thrift.Marshal(&protocol, metadata)
	if err != nil {
		t.Fatalf("thrift.Marshal(metadata) error = %v", err)
	}

	cryptoMetaBytes, err := thrift.Marshal(&protocol, &format.FileCryptoMetaData{EncryptionAlgorithm: alg})
	if err != nil {
		t.Fatalf("thrift.Marshal(cryptoMeta) error = %v", err)
	}

	aadPrefix, aadFileUnique, ok := footerEncryptionAAD(&alg)
	if !ok {
		t.Fatalf("footerEncryptionAAD() ok = false, want true")
	}
	aadBuilder := crypto.NewAADBuilder(aadPrefix, aadFileUnique)
	ciphertext := sealAESGCM(t, key, footerPlain, aadBuilder.FileAAD())

	footer := append(append([]byte{}, cryptoMetaBytes...), ciphertext...)
	buf := append([]byte{}, prefix...)
	buf = append(buf, footer...)
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(footer)))
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, EFMagic[:]...)
	return buf
}

func TestParseTrailerEncryptedFooterAESGCMV1(t *testing.T) {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read(key) error = %v", err)
	}
	alg := format.EncryptionAlgorithm{AESGCMV1: &format.AesGcmV1{AADFileUnique: []byte("file-unique-v1")}}
	raw := buildEncryptedFile(t, []byte("PAR1"), minimalMetadata(), alg, key)

	decryptor, err := crypto.NewGCMDecryptor(key)
	if err != nil {
		t.Fatalf("crypto.NewGCMDecryptor() error = %v", err)
	}
	trailer, err := parseTrailer(memSource(raw), NoFilter(), &crypto.DecryptionProperties{FooterDecryptor: decryptor})
	if err != nil {
		t.Fatalf("parseTrailer() error = %v", err)
	}
	if !trailer.encrypted {
		t.Fatal("encrypted = false, want true")
	}
	if trailer.metadata.NumRows != 3 {
		t.Fatalf("NumRows = %d, want 3", trailer.metadata.NumRows)
	}
}

// TestParseTrailerEncryptedFooterAESGCMCTRV1 covers a valid encrypted-footer
// file whose algorithm is AES_GCM_CTR_V1 (AESGCMV1 left nil). This must not
// panic: a reader that only ever looks at cryptoMeta.EncryptionAlgorithm.AESGCMV1
// would dereference a nil pointer here.
func TestParseTrailerEncryptedFooterAESGCMCTRV1(t *testing.T) {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read(key) error = %v", err)
	}
	alg := format.EncryptionAlgorithm{AESGCMCTRV1: &format.AesGcmCtrV1{AADFileUnique: []byte("file-unique-ctr")}}
	raw := buildEncryptedFile(t, []byte("PAR1"), minimalMetadata(), alg, key)

	decryptor, err := crypto.NewGCMDecryptor(key)
	if err != nil {
		t.Fatalf("crypto.NewGCMDecryptor() error = %v", err)
	}
	trailer, err := parseTrailer(memSource(raw), NoFilter(), &crypto.DecryptionProperties{FooterDecryptor: decryptor})
	if err != nil {
		t.Fatalf("parseTrailer() error = %v", err)
	}
	if !trailer.encrypted {
		t.Fatal("encrypted = false, want true")
	}
	if trailer.metadata.NumRows != 3 {
		t.Fatalf("NumRows = %d, want 3", trailer.metadata.NumRows)
	}
}

func TestParseTrailerEncryptedFooterRejectsUnrecognizedAlgorithm(t *testing.T) {
	protocol := thrift.CompactProtocol{}
	cryptoMetaBytes, err := thrift.Marshal(&protocol, &format.FileCryptoMetaData{})
	if err != nil {
		t.Fatalf("thrift.Marshal(cryptoMeta) error = %v", err)
	}
	// The ciphertext bytes are never decrypted: the algorithm check must
	// fail before a decryptor is even consulted.
	footer := append(append([]byte{}, cryptoMetaBytes...), []byte("irrelevant-ciphertext")...)

	buf := append([]byte("PAR1"), footer...)
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(footer)))
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, EFMagic[:]...)

	decryptor, err := crypto.NewGCMDecryptor(make([]byte, 16))
	if err != nil {
		t.Fatalf("crypto.NewGCMDecryptor() error = %v", err)
	}
	if _, err := parseTrailer(memSource(buf), NoFilter(), &crypto.DecryptionProperties{FooterDecryptor: decryptor}); err == nil {
		t.Fatal("parseTrailer() error = nil, want an error for an unrecognized encryption algorithm")
	}
}

func TestParseTrailerEncryptedFooterRequiresProperties(t *testing.T) {
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], 4)
	full := append([]byte("xxxxxxxx"), lenBytes[:]...)
	full = append(full, EFMagic[:]...)

	if _, err := parseTrailer(memSource(full), NoFilter(), nil); err != ErrCryptoKeyMissing {
		t.Fatalf("parseTrailer() error = %v, want %v", err, ErrCryptoKeyMissing)
	}
}
