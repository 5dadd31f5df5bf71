package zipstream

import (
	"bytes"
	"fmt"
)

// readStoredEntry recovers a STORED entry whose sizes were deferred to a data
// descriptor. Without a compressed size there is no way to know where the
// payload ends, so the stream is scanned forward for the next plausible
// signature, the payload captured along the way. On return the entry carries
// the CRC and sizes from the descriptor and the source is positioned at the
// first byte after it.
func (z *Reader) readStoredEntry(e *Entry) ([]byte, error) {
	ddLen := dataDescriptorLen
	if e.zip64 {
		ddLen = zip64DataDescriptorLen
	}

	var bos bytes.Buffer
	buf := z.buf
	off := 0
	for {
		n, err := z.src.Read(buf[off:])
		if n <= 0 {
			if err == nil {
				continue
			}
			return nil, fmt.Errorf("scan for data descriptor of %q: %w", e.Name, asTruncated(err))
		}
		window := off + n
		if window < 4 {
			off = window
			continue
		}

		if ddStart, ok := findDescriptorStart(buf[:window], ddLen); ok {
			z.src.unread(buf[ddStart:window])
			bos.Write(buf[:ddStart])
			if err := readDataDescriptor(z.src, e); err != nil {
				return nil, err
			}
			break
		}

		// No signature yet. A signatureless descriptor followed by a
		// partial signature could straddle the refill boundary, so the
		// last ddLen+3 bytes stay in the window; everything before them
		// is settled payload.
		keep := ddLen + 3
		if window <= keep {
			off = window
			continue
		}
		bos.Write(buf[:window-keep])
		copy(buf, buf[window-keep:window])
		off = keep
	}

	if uint64(bos.Len()) != e.CompressedSize64 {
		return nil, fmt.Errorf("scavenged %d bytes of %q but its descriptor declares %d: %w",
			bos.Len(), e.Name, e.CompressedSize64, ErrFormat)
	}
	return bos.Bytes(), nil
}

// findDescriptorStart scans window for the earliest plausible end of a stored
// entry: either a bare data-descriptor marker, or a following local/central
// file header (or end-of-central-directory record, for archives whose central
// directory was stripped) preceded by a signatureless descriptor of ddLen
// bytes. It returns the offset at which the data descriptor begins.
func findDescriptorStart(window []byte, ddLen int) (int, bool) {
	for i := 0; i+4 <= len(window); i++ {
		if window[i] != 'P' || window[i+1] != 'K' {
			continue
		}
		switch {
		case window[i+2] == 0x07 && window[i+3] == 0x08:
			// The descriptor's own marker.
			return i, true
		case window[i+2] == 0x03 && window[i+3] == 0x04,
			window[i+2] == 0x01 && window[i+3] == 0x02,
			window[i+2] == 0x05 && window[i+3] == 0x06:
			// A next-record signature; the descriptor ends right here.
			// A hit closer to the window start than a whole descriptor
			// is payload coincidence, not a boundary.
			if i >= ddLen {
				return i - ddLen, true
			}
		}
	}
	return 0, false
}
