// Package zipstream reads ZIP archives from a forward-only byte stream.
//
// The standard library's archive/zip locates entries through the central
// directory at the end of the file, so it needs an io.ReaderAt and the total
// size up front. This package instead walks the local file headers as they
// arrive, which allows reading archives while they are still being
// downloaded or piped. Entries are visited strictly in order: NextEntry
// advances to the next file and the Reader then serves that file's
// decompressed content until io.EOF.
package zipstream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math"

	"github.com/klauspost/compress/flate"
	"golang.org/x/text/encoding"
)

const (
	headerIdentifierLen = 4
	fileHeaderLen       = 26 // after the signature

	// Data descriptor lengths exclude the optional leading marker.
	dataDescriptorLen      = 12 // uint32: crc32, compressed size, size
	zip64DataDescriptorLen = 20 // uint32: crc32 and uint64: compressed size, size

	fileHeaderSignature      = 0x04034b50
	directoryHeaderSignature = 0x02014b50
	directoryEndSignature    = 0x06054b50
	dataDescriptorSignature  = 0x08074b50

	zip64Magic      = 0xffffffff
	zip64MinVersion = 45

	readBufSize = 4096
)

// A Reader provides sequential access to the contents of a zip archive laid
// out as a byte stream. NextEntry advances to the next file in the archive
// (including the first), after which the Reader can be treated as an
// io.Reader over that file's decompressed content. A Reader is strictly
// single-owner: it must not be shared between goroutines, and it owns the
// source it was built on.
type Reader struct {
	src *pushbackReader
	raw io.Reader // the source as given, for Close
	buf []byte    // working buffer for the signature scan

	encoding          encoding.Encoding
	unicodeExtras     bool
	storedDescriptors bool

	cur          *Entry
	body         *entryReader
	localFileEnd bool // latched once a central-directory record appears
	closed       bool
	err          error // sticky fatal error
}

// NewReader creates a new Reader reading from r. The Reader takes ownership
// of r; if r implements io.Closer, Close closes it.
func NewReader(r io.Reader, opts ...Option) *Reader {
	z := &Reader{
		src: newPushbackReader(r),
		raw: r,
		buf: make([]byte, readBufSize),
	}
	for _, o := range opts {
		o(z)
	}
	return z
}

// Matches reports whether the leading bytes of p look like the start of a
// ZIP archive: a local file header, or the end-of-central-directory record
// of an empty archive.
func Matches(p []byte) bool {
	if len(p) < 4 {
		return false
	}
	sig := binary.LittleEndian.Uint32(p)
	return sig == fileHeaderSignature || sig == directoryEndSignature
}

// CanReadEntryData reports whether e is an entry this package decodes: an
// unencrypted STORED or DEFLATED entry, where a STORED entry that defers its
// sizes to a data descriptor additionally needs the WithStoredDataDescriptors
// allowance. Methods added with RegisterDecompressor are not counted here,
// although Read decodes them.
func (z *Reader) CanReadEntryData(e *Entry) bool {
	if e == nil || e.isEncrypted() {
		return false
	}
	switch e.Method {
	case Deflate:
		return true
	case Store:
		return !e.hasDataDescriptor() || z.storedDescriptors
	}
	return false
}

// NextEntry advances to the next entry in the archive, implicitly finishing
// the current one. It returns io.EOF once the central directory (or the end
// of the stream) is reached; hitting the central directory is the normal end
// of a well-formed archive, not a failure.
func (z *Reader) NextEntry() (*Entry, error) {
	if z.closed {
		return nil, ErrClosed
	}
	if z.err != nil {
		return nil, z.err
	}
	if err := z.closeEntry(); err != nil {
		z.err = err
		return nil, err
	}
	if z.localFileEnd {
		return nil, io.EOF
	}

	e, err := z.readEntry()
	if err != nil {
		if errors.Is(err, io.EOF) {
			z.localFileEnd = true
			return nil, io.EOF
		}
		z.err = err
		return nil, err
	}

	var raw byteCountReader
	switch {
	case e.IsDir():
		raw = countable(bytes.NewReader(nil))
	case !e.hasDataDescriptor():
		raw = countable(newLimitByteReader(z.src, int64(e.CompressedSize64)))
	default:
		// Sizes arrive in the trailing descriptor; the decompressor
		// itself determines where the entry ends.
		raw = countable(z.src)
	}
	z.cur = e
	z.body = &entryReader{z: z, entry: e, raw: raw, hash: crc32.NewIEEE()}
	return e, nil
}

// Read produces decompressed bytes of the current entry. It returns io.EOF
// at the end of that entry, not at the end of the archive; call NextEntry to
// move on. With no current entry, Read returns io.EOF.
func (z *Reader) Read(p []byte) (int, error) {
	if z.closed {
		return 0, ErrClosed
	}
	if z.body == nil {
		return 0, io.EOF
	}
	return z.body.Read(p)
}

// Skip discards up to n bytes of the current entry's content and reports how
// many were skipped; fewer than n means the entry ended first.
func (z *Reader) Skip(n int64) (int64, error) {
	if z.closed {
		return 0, ErrClosed
	}
	if n < 0 {
		return 0, ErrNegativeSkip
	}
	skipped, err := io.CopyN(io.Discard, z, n)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return skipped, err
}

// Close renders the reader unusable and closes the underlying source when it
// implements io.Closer. Close is idempotent.
func (z *Reader) Close() error {
	if z.closed {
		return nil
	}
	z.closed = true
	if z.body != nil && z.body.rc != nil {
		_ = z.body.rc.Close()
	}
	z.body, z.cur = nil, nil
	if c, ok := z.raw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// readEntry parses one local file header, name and extra area. It returns
// io.EOF for every benign end of the local-file section: a clean EOF, a
// central-directory record, or bytes that are no signature at all.
func (z *Reader) readEntry() (*Entry, error) {
	var sigBuf [headerIdentifierLen]byte
	if _, err := io.ReadFull(z.src, sigBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read header signature: %w", asTruncated(err))
	}
	switch binary.LittleEndian.Uint32(sigBuf[:]) {
	case fileHeaderSignature:
	case directoryHeaderSignature, directoryEndSignature:
		return nil, io.EOF
	default:
		// Garbage where a header should start is treated as the end of
		// the local-file section rather than a hard failure.
		return nil, io.EOF
	}

	buf := make([]byte, fileHeaderLen)
	if _, err := io.ReadFull(z.src, buf); err != nil {
		return nil, fmt.Errorf("read local file header: %w", asTruncated(err))
	}

	lr := readBuf(buf)
	e := &Entry{
		ReaderVersion: lr.uint16(),
		Flags:         lr.uint16(),
		Method:        lr.uint16(),
		ModifiedTime:  lr.uint16(),
		ModifiedDate:  lr.uint16(),
		CRC32:         lr.uint32(),
	}
	csize := lr.uint32()
	usize := lr.uint32()
	filenameLen := int(lr.uint16())
	extraLen := int(lr.uint16())

	e.zip64 = e.ReaderVersion&0xff >= zip64MinVersion
	e.CompressedSize64 = uint64(csize)
	e.UncompressedSize64 = uint64(usize)

	nameAndExtra := make([]byte, filenameLen+extraLen)
	if _, err := io.ReadFull(z.src, nameAndExtra); err != nil {
		return nil, fmt.Errorf("read entry name and extra area: %w", asTruncated(err))
	}
	e.RawName = nameAndExtra[:filenameLen]

	needCSize := csize == zip64Magic
	needUSize := usize == zip64Magic
	if e.hasDataDescriptor() {
		// Bit 3: the header's CRC and size fields are placeholders;
		// the real values arrive in the trailing data descriptor.
		e.CRC32 = 0
		e.CompressedSize64 = 0
		e.UncompressedSize64 = 0
		needCSize, needUSize = false, false
	}

	upath, ucomment, err := parseExtraFields(e, nameAndExtra[filenameLen:], &needCSize, &needUSize)
	if err != nil {
		return nil, err
	}
	if needCSize || (needUSize && e.zip64) {
		return nil, fmt.Errorf("header sizes deferred to a missing zip64 extra field: %w", ErrFormat)
	}

	e.Name, err = z.decodeText(e.RawName, e.utf8Name())
	if err != nil {
		return nil, err
	}
	if !e.utf8Name() && z.unicodeExtras {
		if s, ok := upath.override(e.RawName); ok {
			e.Name = s
		}
		if s, ok := ucomment.override(nil); ok {
			e.Comment = s
		}
	}
	return e, nil
}

func (z *Reader) decodeText(raw []byte, isUTF8 bool) (string, error) {
	if isUTF8 || z.encoding == nil {
		return string(raw), nil
	}
	decoded, err := z.encoding.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode entry name: %v: %w", err, ErrFormat)
	}
	return string(decoded), nil
}

// closeEntry finishes the current entry and leaves the source positioned at
// the first byte after its data descriptor, if any, ready for the next local
// file header.
func (z *Reader) closeEntry() error {
	er := z.body
	if er == nil {
		return nil
	}
	z.body, z.cur = nil, nil

	e := er.entry
	if !e.hasDataDescriptor() {
		// Whatever the decompressor did not consume of the declared
		// compressed size is skipped raw. This also disposes of entries
		// whose method or encryption we cannot decode.
		if remaining := int64(e.CompressedSize64) - int64(er.raw.NRead()); remaining > 0 {
			if _, err := io.CopyN(io.Discard, z.src, remaining); err != nil {
				return fmt.Errorf("skip entry body of %q: %w", e.Name, asTruncated(err))
			}
		}
		return er.close()
	}

	if er.eof {
		return er.close()
	}
	if er.err != nil {
		return er.err
	}
	// The boundary is only discoverable by reading the body to its end,
	// which also consumes the descriptor.
	if _, err := io.Copy(io.Discard, er); err != nil {
		return err
	}
	return er.close()
}

// An entryReader produces the decompressed content of a single entry and
// settles its CRC and sizes at the end.
type entryReader struct {
	z     *Reader
	entry *Entry

	raw byteCountReader // compressed-side view, counts bytes pulled from the stream
	rc  io.ReadCloser   // decompressed-side view, nil until the first read

	hash       hash.Hash32
	produced   uint64 // decompressed bytes handed to the caller
	ddConsumed bool
	eof        bool
	err        error // sticky
}

// open selects the execution mode for the entry body. Deferred until the
// first read so that unreadable entries surface their error from Read, while
// NextEntry still returns their metadata.
func (er *entryReader) open() error {
	e := er.entry
	if e.isEncrypted() {
		return fmt.Errorf("entry %q is encrypted: %w", e.Name, ErrUnsupported)
	}
	if e.Method == Store && e.hasDataDescriptor() && !e.IsDir() {
		if !er.z.storedDescriptors {
			return fmt.Errorf("stored entry %q defers its sizes to a data descriptor: %w", e.Name, ErrUnsupported)
		}
		data, err := er.z.readStoredEntry(e)
		if err != nil {
			return err
		}
		er.rc = io.NopCloser(bytes.NewReader(data))
		er.ddConsumed = true
		return nil
	}
	decomp := decompressor(e.Method)
	if decomp == nil {
		return fmt.Errorf("compression method %d of entry %q: %w", e.Method, e.Name, ErrUnsupported)
	}
	er.rc = decomp(er.raw)
	return nil
}

func (er *entryReader) Read(p []byte) (n int, err error) {
	if er.err != nil {
		return 0, er.err
	}
	if er.eof {
		return 0, io.EOF
	}
	if er.rc == nil {
		if err := er.open(); err != nil {
			er.err = err
			return 0, err
		}
	}

	n, err = er.rc.Read(p)
	if n > 0 {
		er.hash.Write(p[:n])
		er.produced += uint64(n)
	}
	if err == nil {
		return n, nil
	}
	if errors.Is(err, io.EOF) {
		if ferr := er.finish(); ferr != nil {
			er.err = ferr
			return n, ferr
		}
		er.eof = true
		return n, io.EOF
	}
	er.err = wrapInflateErr(err)
	return n, er.err
}

// finish runs at the decompressed end of the entry: it reads the trailing
// data descriptor when one is due, checks that the byte counts line up with
// the declared sizes, and verifies the CRC.
func (er *entryReader) finish() error {
	e := er.entry
	if e.hasDataDescriptor() && !er.ddConsumed {
		if er.raw.NRead() > math.MaxUint32 || er.produced > math.MaxUint32 {
			e.zip64 = true
		}
		if err := readDataDescriptor(er.z.src, e); err != nil {
			return err
		}
		er.ddConsumed = true
		if er.raw.NRead() != e.CompressedSize64 {
			return fmt.Errorf("entry %q: consumed %d compressed bytes but descriptor declares %d: %w",
				e.Name, er.raw.NRead(), e.CompressedSize64, ErrFormat)
		}
	}
	if er.produced != e.UncompressedSize64 {
		if er.produced < e.UncompressedSize64 {
			return fmt.Errorf("entry %q: produced %d of %d bytes: %w",
				e.Name, er.produced, e.UncompressedSize64, ErrTruncated)
		}
		return fmt.Errorf("entry %q: produced %d bytes but header declares %d: %w",
			e.Name, er.produced, e.UncompressedSize64, ErrFormat)
	}
	if e.CRC32 != 0 && er.hash.Sum32() != e.CRC32 {
		return fmt.Errorf("entry %q: %w", e.Name, ErrChecksum)
	}
	return nil
}

func (er *entryReader) close() error {
	if er.rc != nil {
		return er.rc.Close()
	}
	return nil
}

// wrapInflateErr classifies decompressor failures: corrupt deflate data is a
// malformed archive, an unexpected end of input a truncated one. Source I/O
// errors pass through unchanged.
func wrapInflateErr(err error) error {
	var corrupt flate.CorruptInputError
	var internal flate.InternalError
	switch {
	case errors.As(err, &corrupt), errors.As(err, &internal):
		return fmt.Errorf("inflate: %v: %w", err, ErrFormat)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("inflate: %w", ErrTruncated)
	}
	return err
}
