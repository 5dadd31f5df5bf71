package zipstream

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendDataDescriptor(b []byte, withSignature bool, content []byte) []byte {
	if withSignature {
		b = binary.LittleEndian.AppendUint32(b, dataDescriptorSignature)
	}
	b = binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(content))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(content)))
	return binary.LittleEndian.AppendUint32(b, uint32(len(content)))
}

func storedDDEntry(b []byte, name string, content []byte, ddSignature bool) []byte {
	b = appendLocalHeader(b, localHeader{
		flags:  0x8,
		method: Store,
		name:   name,
	})
	b = append(b, content...)
	return appendDataDescriptor(b, ddSignature, content)
}

func TestFindDescriptorStart(t *testing.T) {
	ddSig := binary.LittleEndian.AppendUint32(nil, dataDescriptorSignature)
	lfhSig := binary.LittleEndian.AppendUint32(nil, fileHeaderSignature)
	cfhSig := binary.LittleEndian.AppendUint32(nil, directoryHeaderSignature)
	eocdSig := binary.LittleEndian.AppendUint32(nil, directoryEndSignature)

	pad := bytes.Repeat([]byte{'x'}, dataDescriptorLen)

	for _, tc := range []struct {
		name    string
		window  []byte
		ddStart int
		found   bool
	}{
		{"descriptor marker", append(bytes.Repeat([]byte{'a'}, 6), ddSig...), 6, true},
		{"next local header", append(append([]byte("ab"), pad...), lfhSig...), 2, true},
		{"central header", append(append([]byte("ab"), pad...), cfhSig...), 2, true},
		{"end of central directory", append(append([]byte("ab"), pad...), eocdSig...), 2, true},
		{"partial signature only", []byte("aaPK\x03xxPK\x07yyPKzz"), 0, false},
		{"header sig too close to window start", append([]byte("ab"), lfhSig...), 0, false},
		{"no signature", bytes.Repeat([]byte{'q'}, 64), 0, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ddStart, found := findDescriptorStart(tc.window, dataDescriptorLen)
			assert.Equal(t, tc.found, found)
			if tc.found {
				assert.Equal(t, tc.ddStart, ddStart)
			}
		})
	}
}

func TestStoredWithDataDescriptor(t *testing.T) {
	for _, tc := range []struct {
		name        string
		ddSignature bool
	}{
		{"with descriptor marker", true},
		{"without descriptor marker", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			content := []byte("xyz123")
			b := storedDDEntry(nil, "s.txt", content, tc.ddSignature)
			archive := appendEOCD(b)

			r := NewReader(bytes.NewReader(archive), WithStoredDataDescriptors(true))
			e, err := r.NextEntry()
			require.NoError(t, err)
			require.True(t, r.CanReadEntryData(e))

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, content, got)
			assert.Equal(t, uint64(len(content)), e.CompressedSize64)
			assert.Equal(t, uint64(len(content)), e.UncompressedSize64)
			assert.Equal(t, crc32.ChecksumIEEE(content), e.CRC32)

			_, err = r.NextEntry()
			require.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestStoredWithDataDescriptorBeforeCentralDirectory(t *testing.T) {
	content := []byte("last entry payload")
	b := storedDDEntry(nil, "s.txt", content, false)
	archive := appendEOCD(appendCFH(b))

	r := NewReader(bytes.NewReader(archive), WithStoredDataDescriptors(true))
	_, err := r.NextEntry()
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = r.NextEntry()
	require.ErrorIs(t, err, io.EOF)
}

func TestStoredWithDataDescriptorFollowedByEntry(t *testing.T) {
	// The payload spans several scan windows and contains partial
	// signature prefixes that must not end the entry early.
	content := bytes.Repeat([]byte("PK\x03_PK\x07_pad_"), 1500)
	b := storedDDEntry(nil, "big.bin", content, false)
	b = storedEntry(b, "after.txt", "still aligned")
	archive := appendEOCD(b)

	r := NewReader(bytes.NewReader(archive), WithStoredDataDescriptors(true))
	e, err := r.NextEntry()
	require.NoError(t, err)
	assert.Equal(t, "big.bin", e.Name)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// The scan must leave the stream exactly past the descriptor.
	e, err = r.NextEntry()
	require.NoError(t, err)
	assert.Equal(t, "after.txt", e.Name)
	after, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "still aligned", string(after))

	_, err = r.NextEntry()
	require.ErrorIs(t, err, io.EOF)
}

func TestStoredWithDataDescriptorSkippedViaNextEntry(t *testing.T) {
	content := []byte("skipped wholesale")
	b := storedDDEntry(nil, "skip.bin", content, true)
	b = storedEntry(b, "after.txt", "yes")
	archive := appendEOCD(b)

	r := NewReader(bytes.NewReader(archive), WithStoredDataDescriptors(true))
	_, err := r.NextEntry()
	require.NoError(t, err)

	// Never read the body; advancing must still frame it correctly.
	e, err := r.NextEntry()
	require.NoError(t, err)
	assert.Equal(t, "after.txt", e.Name)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "yes", string(got))
}

func TestStoredWithDataDescriptorWithoutAllowance(t *testing.T) {
	content := []byte("xyz123")
	archive := appendEOCD(storedDDEntry(nil, "s.txt", content, true))

	r := NewReader(bytes.NewReader(archive))
	e, err := r.NextEntry()
	require.NoError(t, err)
	assert.False(t, r.CanReadEntryData(e))

	_, err = r.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrUnsupported)

	// Without the allowance the entry cannot be framed, so the archive
	// cannot be advanced past it either.
	_, err = r.NextEntry()
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestStoredWithDataDescriptorTruncated(t *testing.T) {
	b := appendLocalHeader(nil, localHeader{
		flags:  0x8,
		method: Store,
		name:   "cut.bin",
	})
	b = append(b, "payload without any descriptor"...)

	r := NewReader(bytes.NewReader(b), WithStoredDataDescriptors(true))
	_, err := r.NextEntry()
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestStoredWithDataDescriptorZeroLength(t *testing.T) {
	archive := appendEOCD(storedDDEntry(nil, "empty.bin", nil, true))

	r := NewReader(bytes.NewReader(archive), WithStoredDataDescriptors(true))
	_, err := r.NextEntry()
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = r.NextEntry()
	require.ErrorIs(t, err, io.EOF)
}
