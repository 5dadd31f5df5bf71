package zipstream

import (
	"errors"
	"io"
)

var (
	// ErrFormat reports a structurally invalid archive: a missing zip64
	// extra field, a corrupt deflate stream, or sizes that disagree with
	// the bytes actually seen.
	ErrFormat = errors.New("zipstream: not a valid zip archive")

	// ErrTruncated reports an archive that ended in the middle of a
	// header, entry body or data descriptor.
	ErrTruncated = errors.New("zipstream: truncated archive")

	// ErrChecksum reports a CRC-32 mismatch over an entry's content.
	ErrChecksum = errors.New("zipstream: checksum error")

	// ErrUnsupported reports an entry the reader cannot decode: an
	// encrypted entry, a compression method with no registered
	// decompressor (only Store and Deflate are built in), or a stored entry with a data descriptor when the allowance was not
	// granted. Such entries can usually still be skipped.
	ErrUnsupported = errors.New("zipstream: unsupported zip feature")

	// ErrClosed is returned by NextEntry, Read and Skip on a closed Reader.
	// Close itself is idempotent and returns nil when called again.
	ErrClosed = errors.New("zipstream: reader is closed")

	// ErrNegativeSkip is returned by Skip when given a negative count.
	ErrNegativeSkip = errors.New("zipstream: negative skip count")
)

// asTruncated folds the EOF flavors an io source can report mid-record into
// the truncation sentinel. Genuine I/O errors pass through unchanged.
func asTruncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
