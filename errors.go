package columnar

import "errors"

// Sentinel errors returned by the reader. Callers should use errors.Is to
// test for these, since most call sites wrap them with additional context
// via fmt.Errorf("...: %w", ...).
var (
	// ErrNotAColumnarFile is returned when the tail of the stream does not
	// carry a recognized magic sequence, or the stream is too small to hold
	// one.
	ErrNotAColumnarFile = errors.New("columnar: not a columnar file")

	// ErrCorruptTrailer is returned when the footer length recorded in the
	// trailer points outside of the file.
	ErrCorruptTrailer = errors.New("columnar: corrupt trailer")

	// ErrCorruptPage is returned when a chunk's page stream disagrees with
	// its own accounting: a duplicate dictionary page, a page count that
	// does not match the offset index, or a value count that does not match
	// the column metadata.
	ErrCorruptPage = errors.New("columnar: corrupt page")

	// ErrChecksumFailure is returned when page checksum verification is
	// enabled and a page's CRC-32 does not match its compressed bytes.
	ErrChecksumFailure = errors.New("columnar: checksum failure")

	// ErrCryptoKeyMissing is returned when a file has an encrypted footer
	// but no decryption properties were supplied.
	ErrCryptoKeyMissing = errors.New("columnar: decryption properties required for encrypted footer")

	// ErrCryptoLengthMismatch is returned when a decrypted buffer's length
	// does not match the length recorded in its (plaintext) header.
	ErrCryptoLengthMismatch = errors.New("columnar: decrypted length mismatch")

	// ErrSeekOutOfRange is returned when a chunk source is asked to open a
	// consecutive part whose byte range lies outside of the source.
	ErrSeekOutOfRange = errors.New("columnar: seek out of range")

	// ErrMissingColumnIndex is returned by ColumnIndex() when a column chunk
	// has no column index reference.
	ErrMissingColumnIndex = errors.New("columnar: column has no column index")

	// ErrMissingOffsetIndex is returned by OffsetIndex() when a column chunk
	// has no offset index reference.
	ErrMissingOffsetIndex = errors.New("columnar: column has no offset index")

	// ErrMissingRootColumn is returned when the file's schema has no
	// elements at all.
	ErrMissingRootColumn = errors.New("columnar: file metadata is missing its root column")

	// ErrReaderClosed is returned by row-group reads attempted on a File
	// after Close has been called.
	ErrReaderClosed = errors.New("columnar: reader is closed")

	// ErrInterrupted is surfaced when a page pipeline put/take is
	// interrupted by context cancellation.
	ErrInterrupted = errors.New("columnar: interrupted")

	// ErrUnsupportedAppend is returned by File.AppendTo when a row group
	// carries column-index, offset-index, or bloom-filter references that
	// cannot be rebased from row-group metadata alone.
	ErrUnsupportedAppend = errors.New("columnar: row group not appendable: auxiliary index references present")
)
