package zipstream

import (
	"encoding/binary"
	"fmt"
	"io"
)

// readDataDescriptor consumes the data descriptor that trails an entry whose
// header deferred its sizes, and assigns the CRC and sizes to e. Nothing is
// validated against the header fields; they were zero by construction.
//
// The spec says: "Although not originally assigned a signature, the value
// 0x08074b50 has commonly been adopted as a signature value for the data
// descriptor record. Implementers should be aware that ZIP files may be
// encountered with or without this signature marking data descriptors and
// should account for either case when reading ZIP files to ensure
// compatibility." So read 4 bytes first and see whether the marker is there.
func readDataDescriptor(r io.Reader, e *Entry) error {
	ddLen := dataDescriptorLen
	if e.zip64 {
		ddLen = zip64DataDescriptorLen
	}
	buf := make([]byte, ddLen)
	if _, err := io.ReadFull(r, buf[:4]); err != nil {
		return fmt.Errorf("read data descriptor: %w", asTruncated(err))
	}
	off := 4 // no marker: those 4 bytes are the CRC field
	if binary.LittleEndian.Uint32(buf[:4]) == dataDescriptorSignature {
		off = 0
	}
	if _, err := io.ReadFull(r, buf[off:]); err != nil {
		return fmt.Errorf("read data descriptor: %w", asTruncated(err))
	}

	b := readBuf(buf)
	e.CRC32 = b.uint32()
	if e.zip64 {
		e.CompressedSize64 = b.uint64()
		e.UncompressedSize64 = b.uint64()
	} else {
		e.CompressedSize64 = uint64(b.uint32())
		e.UncompressedSize64 = uint64(b.uint32())
	}
	return nil
}
