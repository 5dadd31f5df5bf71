package zipstream

import (
	"hash/crc32"
	"time"
)

// Compression methods.
const (
	Store   uint16 = 0 // no compression
	Deflate uint16 = 8 // DEFLATE compressed
)

// An ExtraField is one typed (id, payload) record from a local file header's
// extra area. The payloads of well-known records (zip64 sizes, timestamps,
// Info-ZIP Unicode names) are additionally folded into the Entry fields.
type ExtraField struct {
	ID   uint16
	Data []byte
}

// An Entry describes one file in the archive, as declared by its local file
// header. Entries whose header defers sizes to a data descriptor have zero
// CRC32, CompressedSize64 and UncompressedSize64 until the descriptor has
// been read: at the end of the body for a deflated entry, on the first read
// for a stored entry, whose payload is scanned in full at that point.
type Entry struct {
	// Name is the decoded file name. It is taken verbatim when the header
	// declares UTF-8, decoded with the configured fallback encoding
	// otherwise, and possibly overridden by an Info-ZIP Unicode Path
	// extra field.
	Name string

	// RawName preserves the name bytes exactly as stored in the header.
	RawName []byte

	// Comment is only ever populated from an Info-ZIP Unicode Comment
	// extra field; local file headers carry no comment of their own.
	Comment string

	ReaderVersion uint16
	Flags         uint16
	Method        uint16

	ModifiedTime uint16 // raw MS-DOS time
	ModifiedDate uint16 // raw MS-DOS date
	Modified     time.Time

	CRC32              uint32
	CompressedSize64   uint64
	UncompressedSize64 uint64

	// Platform is the host system that produced the entry. The value is
	// recorded in the central directory only, which a forward-only reader
	// never sees, so it stays zero here.
	Platform uint8

	Extra []ExtraField

	zip64 bool
}

func (e *Entry) hasDataDescriptor() bool {
	return e.Flags&0x8 != 0
}

func (e *Entry) isEncrypted() bool {
	return e.Flags&0x1 != 0
}

func (e *Entry) utf8Name() bool {
	return e.Flags&0x800 != 0
}

// IsDir just simply verify whether the filename ends with a forward slash "/".
func (e *Entry) IsDir() bool {
	return len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/'
}

// unicodeExtra is a decoded Info-ZIP Unicode Path or Comment extra field.
type unicodeExtra struct {
	version uint8
	crc32   uint32
	text    []byte
}

// override returns the record's UTF-8 text when the record is usable: known
// version, and a stored CRC matching the original header bytes it replaces.
func (u *unicodeExtra) override(original []byte) (string, bool) {
	if u == nil || u.version != 1 {
		return "", false
	}
	if crc32.ChecksumIEEE(original) != u.crc32 {
		return "", false
	}
	return string(u.text), true
}
