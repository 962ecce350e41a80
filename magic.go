package columnar

// Magic is the 4-byte sequence that opens and closes a file with a
// plaintext footer. It is provided by the companion writer specification;
// the reader treats it as an opaque value it only ever compares for
// equality.
var Magic = [4]byte{'C', 'L', 'M', '1'}

// EFMagic is the 4-byte sequence that closes a file whose footer is
// encrypted. A file ending in EFMagic requires decryption properties to be
// supplied via WithDecryptionProperties, or Open returns
// ErrCryptoKeyMissing.
var EFMagic = [4]byte{'C', 'L', 'M', 'E'}

const (
	magicLength       = 4
	footerLengthBytes = 4
)
