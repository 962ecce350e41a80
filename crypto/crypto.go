// Package crypto declares the decryption collaborators the row-group reader
// consumes for modular encryption support, plus a default AES-GCM
// implementation.
//
// Cryptographic primitives are an external collaborator of the core reader:
// the reader only ever calls Decryptor.Decrypt with an AAD it builds from a
// Module, never touches key material or cipher state directly.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

// Module identifies which part of the file a ciphertext belongs to, one of
// the components folded into the module's AAD.
type Module byte

const (
	ModuleFooter               Module = 0
	ModuleColumnMetaData       Module = 1
	ModuleDataPageHeader       Module = 2
	ModuleDataPage             Module = 3
	ModuleDictionaryPageHeader Module = 4
	ModuleDictionaryPage       Module = 5
	ModuleColumnIndex          Module = 6
	ModuleOffsetIndex          Module = 7
	ModuleBloomFilterHeader    Module = 8
	ModuleBloomFilterBitset    Module = 9
)

// Decryptor decrypts a ciphertext buffer bound to the given additional
// authenticated data. Implementations must be safe for concurrent use by
// distinct goroutines against distinct buffers (no shared mutable state
// beyond the key).
type Decryptor interface {
	Decrypt(ciphertext, aad []byte) ([]byte, error)
}

// AADBuilder derives per-module additional authenticated data from a file's
// AAD prefix/suffix and the ordinals identifying a particular row group,
// column, and page. The page-ordinal suffix is designed to be
// overwritten in place between pages rather than reallocated, so DataPageAAD
// and DataPageHeaderAAD return buffers the caller owns and may mutate via
// SetPageOrdinal.
type AADBuilder struct {
	fileAAD []byte
}

// NewAADBuilder derives a builder from a file's AAD prefix and per-file
// unique suffix, concatenated the way the format's canonical helper does:
// fileAAD = prefix || fileUnique.
func NewAADBuilder(aadPrefix, aadFileUnique []byte) *AADBuilder {
	aad := make([]byte, 0, len(aadPrefix)+len(aadFileUnique))
	aad = append(aad, aadPrefix...)
	aad = append(aad, aadFileUnique...)
	return &AADBuilder{fileAAD: aad}
}

// FileAAD returns the file-level AAD used to decrypt the footer.
func (b *AADBuilder) FileAAD() []byte { return b.fileAAD }

// ModuleAAD is a mutable AAD buffer for one (module, row group, column)
// triple. Its page-ordinal suffix is rewritten in place by SetPageOrdinal,
// avoiding a per-page allocation in hot decode loops.
type ModuleAAD struct {
	buf       []byte
	pageIndex int // offset of the 2-byte page ordinal suffix, or -1
}

// Bytes returns the current AAD. The returned slice is only valid until the
// next call to SetPageOrdinal.
func (m *ModuleAAD) Bytes() []byte { return m.buf }

// SetPageOrdinal overwrites the page-ordinal suffix in place.
func (m *ModuleAAD) SetPageOrdinal(pageOrdinal int) {
	if m.pageIndex < 0 {
		return
	}
	binary.LittleEndian.PutUint16(m.buf[m.pageIndex:], uint16(pageOrdinal))
}

func (b *AADBuilder) moduleAAD(module Module, rowGroupOrdinal, columnOrdinal int16, withPageOrdinal bool) *ModuleAAD {
	buf := make([]byte, 0, len(b.fileAAD)+1+2+2+2)
	buf = append(buf, b.fileAAD...)
	buf = append(buf, byte(module))
	buf = appendInt16(buf, rowGroupOrdinal)
	buf = appendInt16(buf, columnOrdinal)
	m := &ModuleAAD{buf: buf, pageIndex: -1}
	if withPageOrdinal {
		m.pageIndex = len(buf)
		m.buf = appendInt16(buf, 0)
	}
	return m
}

// DataPageHeaderAAD builds the AAD for a data page header in the given row
// group/column, ready to have its page ordinal set per page.
func (b *AADBuilder) DataPageHeaderAAD(rowGroupOrdinal, columnOrdinal int16) *ModuleAAD {
	return b.moduleAAD(ModuleDataPageHeader, rowGroupOrdinal, columnOrdinal, true)
}

// DataPageAAD builds the AAD for a data page body.
func (b *AADBuilder) DataPageAAD(rowGroupOrdinal, columnOrdinal int16) *ModuleAAD {
	return b.moduleAAD(ModuleDataPage, rowGroupOrdinal, columnOrdinal, true)
}

// DictionaryPageHeaderAAD builds the AAD for a dictionary page header.
func (b *AADBuilder) DictionaryPageHeaderAAD(rowGroupOrdinal, columnOrdinal int16) *ModuleAAD {
	return b.moduleAAD(ModuleDictionaryPageHeader, rowGroupOrdinal, columnOrdinal, false)
}

// DictionaryPageAAD builds the AAD for a dictionary page body.
func (b *AADBuilder) DictionaryPageAAD(rowGroupOrdinal, columnOrdinal int16) *ModuleAAD {
	return b.moduleAAD(ModuleDictionaryPage, rowGroupOrdinal, columnOrdinal, false)
}

// ColumnIndexAAD builds the AAD for a column's ColumnIndex blob.
func (b *AADBuilder) ColumnIndexAAD(rowGroupOrdinal, columnOrdinal int16) *ModuleAAD {
	return b.moduleAAD(ModuleColumnIndex, rowGroupOrdinal, columnOrdinal, false)
}

// OffsetIndexAAD builds the AAD for a column's OffsetIndex blob.
func (b *AADBuilder) OffsetIndexAAD(rowGroupOrdinal, columnOrdinal int16) *ModuleAAD {
	return b.moduleAAD(ModuleOffsetIndex, rowGroupOrdinal, columnOrdinal, false)
}

// ColumnMetaDataAAD builds the AAD for an encrypted column's ColumnMetaData.
func (b *AADBuilder) ColumnMetaDataAAD(rowGroupOrdinal, columnOrdinal int16) *ModuleAAD {
	return b.moduleAAD(ModuleColumnMetaData, rowGroupOrdinal, columnOrdinal, false)
}

// BloomFilterBitsetAAD builds the AAD for a column's bloom filter bitset.
func (b *AADBuilder) BloomFilterBitsetAAD(rowGroupOrdinal, columnOrdinal int16) *ModuleAAD {
	return b.moduleAAD(ModuleBloomFilterBitset, rowGroupOrdinal, columnOrdinal, false)
}

func appendInt16(buf []byte, v int16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(v))
	return append(buf, tmp[:]...)
}

// GCMDecryptor is the default Decryptor implementation: AES-GCM with a
// 12-byte nonce prefixed to the ciphertext, the layout format.AesGcmV1
// specifies. No third-party AEAD implementation is wired anywhere else in
// this module, so the default implementation is built directly on
// crypto/aes and crypto/cipher.
type GCMDecryptor struct {
	aead cipher.AEAD
}

// NewGCMDecryptor constructs a Decryptor from a raw AES key (16, 24, or 32
// bytes, selecting AES-128/192/256).
func NewGCMDecryptor(key []byte) (*GCMDecryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: constructing AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: constructing AES-GCM: %w", err)
	}
	return &GCMDecryptor{aead: aead}, nil
}

// Decrypt removes and validates the leading nonce, then authenticates and
// decrypts the remainder against aad.
func (d *GCMDecryptor) Decrypt(ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < d.aead.NonceSize() {
		return nil, fmt.Errorf("crypto: ciphertext shorter than nonce size")
	}
	nonce, body := ciphertext[:d.aead.NonceSize()], ciphertext[d.aead.NonceSize():]
	plaintext, err := d.aead.Open(nil, nonce, body, aad)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypting: %w", err)
	}
	return plaintext, nil
}

var _ Decryptor = (*GCMDecryptor)(nil)

// DecryptionProperties carries the keys a reader needs to open an encrypted
// file: a footer decryptor, and a lookup for per-column decryptors keyed by
// the column's key-metadata blob (opaque to the reader, meaningful only to
// whatever key-management service minted it).
type DecryptionProperties struct {
	FooterDecryptor Decryptor
	ColumnDecryptor func(keyMetadata []byte) (Decryptor, error)
	AADPrefix       []byte
}
