package zipstream

import (
	"fmt"
	"time"
)

const (
	// Extra header IDs.
	// See http://mdfs.net/Docs/Comp/Archiving/Zip/ExtraField

	Zip64ExtraID          = 0x0001 // Zip64 extended information
	NtfsExtraID           = 0x000a // NTFS
	UnixExtraID           = 0x000d // UNIX
	ExtTimeExtraID        = 0x5455 // Extended timestamp
	InfoZipUnixExtraID    = 0x5855 // Info-ZIP Unix extension
	UnicodeCommentExtraID = 0x6375 // Info-ZIP Unicode Comment
	UnicodePathExtraID    = 0x7075 // Info-ZIP Unicode Path
)

// parseExtraFields splits the header's extra area into typed records on
// e.Extra and folds the understood ones into the entry: zip64 sizes for
// header fields holding the 0xffffffff sentinel, timestamp refinements, and
// the Info-ZIP Unicode records, which are returned for the caller to apply
// once the fallback-decoded name is known.
func parseExtraFields(e *Entry, raw []byte, needCSize, needUSize *bool) (upath, ucomment *unicodeExtra, err error) {
	ler := readBuf(raw)
	var modified time.Time
parseExtras:
	for len(ler) >= 4 { // need at least tag and size
		fieldTag := ler.uint16()
		fieldSize := int(ler.uint16())
		if len(ler) < fieldSize {
			break
		}
		fieldBuf := ler.sub(fieldSize)
		e.Extra = append(e.Extra, ExtraField{ID: fieldTag, Data: []byte(fieldBuf)})

		switch fieldTag {
		case Zip64ExtraID:
			e.zip64 = true

			// update sizes from the zip64 extra block.
			// They should only be consulted if the sizes read earlier
			// are maxed out.
			// See golang.org/issue/13367.
			if *needUSize {
				*needUSize = false
				if len(fieldBuf) < 8 {
					return nil, nil, fmt.Errorf("short zip64 extra field: %w", ErrFormat)
				}
				e.UncompressedSize64 = fieldBuf.uint64()
			}
			if *needCSize {
				*needCSize = false
				if len(fieldBuf) < 8 {
					return nil, nil, fmt.Errorf("short zip64 extra field: %w", ErrFormat)
				}
				e.CompressedSize64 = fieldBuf.uint64()
			}
		case NtfsExtraID:
			if len(fieldBuf) < 4 {
				continue parseExtras
			}
			fieldBuf.uint32()        // reserved (ignored)
			for len(fieldBuf) >= 4 { // need at least tag and size
				attrTag := fieldBuf.uint16()
				attrSize := int(fieldBuf.uint16())
				if len(fieldBuf) < attrSize {
					continue parseExtras
				}
				attrBuf := fieldBuf.sub(attrSize)
				if attrTag != 1 || attrSize != 24 {
					continue // Ignore irrelevant attributes
				}

				const ticksPerSecond = 1e7    // Windows timestamp resolution
				ts := int64(attrBuf.uint64()) // ModTime since Windows epoch
				secs := ts / ticksPerSecond
				nsecs := (1e9 / ticksPerSecond) * int64(ts%ticksPerSecond)
				epoch := time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)
				modified = time.Unix(epoch.Unix()+secs, nsecs)
			}
		case UnixExtraID, InfoZipUnixExtraID:
			if len(fieldBuf) < 8 {
				continue parseExtras
			}
			fieldBuf.uint32()              // AcTime (ignored)
			ts := int64(fieldBuf.uint32()) // ModTime since Unix epoch
			modified = time.Unix(ts, 0)
		case ExtTimeExtraID:
			if len(fieldBuf) < 5 || fieldBuf.uint8()&1 == 0 {
				continue parseExtras
			}
			ts := int64(fieldBuf.uint32()) // ModTime since Unix epoch
			modified = time.Unix(ts, 0)
		case UnicodePathExtraID, UnicodeCommentExtraID:
			if len(fieldBuf) < 5 {
				continue parseExtras
			}
			ue := &unicodeExtra{
				version: fieldBuf.uint8(),
				crc32:   fieldBuf.uint32(),
				text:    []byte(fieldBuf),
			}
			if fieldTag == UnicodePathExtraID {
				upath = ue
			} else {
				ucomment = ue
			}
		}
	}

	msDosModified := MSDosTimeToTime(e.ModifiedDate, e.ModifiedTime)
	e.Modified = msDosModified

	if !modified.IsZero() {
		e.Modified = modified.UTC()

		// If legacy MS-DOS timestamps are set, we can use the delta between
		// the legacy and extended versions to estimate timezone offset.
		//
		// A non-UTC timezone is always used (even if offset is zero).
		// Thus, Entry.Modified.Location() == time.UTC is useful for
		// determining whether extended timestamps are present.
		// This is necessary for users that need to do additional time
		// calculations when dealing with legacy ZIP formats.
		if e.ModifiedTime != 0 || e.ModifiedDate != 0 {
			e.Modified = modified.In(timeZone(msDosModified.Sub(modified)))
		}
	}

	return upath, ucomment, nil
}
