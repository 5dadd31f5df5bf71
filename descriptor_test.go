package zipstream

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDataDescriptorNoSignature(t *testing.T) {
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, 0xdeadbeef) // crc
	b = binary.LittleEndian.AppendUint32(b, 42)         // csize
	b = binary.LittleEndian.AppendUint32(b, 99)         // usize

	e := &Entry{}
	r := bytes.NewReader(b)
	require.NoError(t, readDataDescriptor(r, e))
	assert.Equal(t, uint32(0xdeadbeef), e.CRC32)
	assert.Equal(t, uint64(42), e.CompressedSize64)
	assert.Equal(t, uint64(99), e.UncompressedSize64)
	assert.Zero(t, r.Len())
}

func TestReadDataDescriptorWithSignature(t *testing.T) {
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, dataDescriptorSignature)
	b = binary.LittleEndian.AppendUint32(b, 0xdeadbeef)
	b = binary.LittleEndian.AppendUint32(b, 42)
	b = binary.LittleEndian.AppendUint32(b, 99)

	e := &Entry{}
	r := bytes.NewReader(b)
	require.NoError(t, readDataDescriptor(r, e))
	assert.Equal(t, uint32(0xdeadbeef), e.CRC32)
	assert.Equal(t, uint64(42), e.CompressedSize64)
	assert.Equal(t, uint64(99), e.UncompressedSize64)
	assert.Zero(t, r.Len())
}

func TestReadDataDescriptorZip64(t *testing.T) {
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, dataDescriptorSignature)
	b = binary.LittleEndian.AppendUint32(b, 7)
	b = binary.LittleEndian.AppendUint64(b, 5_000_000_000)
	b = binary.LittleEndian.AppendUint64(b, 5_000_000_123)

	e := &Entry{zip64: true}
	r := bytes.NewReader(b)
	require.NoError(t, readDataDescriptor(r, e))
	assert.Equal(t, uint32(7), e.CRC32)
	assert.Equal(t, uint64(5_000_000_000), e.CompressedSize64)
	assert.Equal(t, uint64(5_000_000_123), e.UncompressedSize64)
	assert.Zero(t, r.Len())
}

func TestReadDataDescriptorTruncated(t *testing.T) {
	b := binary.LittleEndian.AppendUint32(nil, dataDescriptorSignature)
	e := &Entry{}
	err := readDataDescriptor(bytes.NewReader(b), e)
	require.ErrorIs(t, err, ErrTruncated)
}
