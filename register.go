package zipstream

import (
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// A Decompressor returns a new decompressing reader, reading from r.
// The ReadCloser's Close method must be used to release associated resources.
// The Decompressor itself must be safe to invoke from multiple goroutines
// simultaneously, but each returned reader will be used only by
// one goroutine at a time.
type Decompressor func(r io.Reader) io.ReadCloser

var decompressors sync.Map // map[uint16]Decompressor

func init() {
	decompressors.Store(Store, Decompressor(io.NopCloser))
	decompressors.Store(Deflate, Decompressor(newDeflateReader))
}

// RegisterDecompressor allows custom decompressors for a specified method ID.
// The common methods Store and Deflate are built in.
func RegisterDecompressor(method uint16, dcomp Decompressor) {
	if _, dup := decompressors.LoadOrStore(method, dcomp); dup {
		panic("decompressor already registered")
	}
}

func decompressor(method uint16) Decompressor {
	di, ok := decompressors.Load(method)
	if !ok {
		return nil
	}
	return di.(Decompressor)
}

var deflateReaderPool sync.Pool

// We use github.com/klauspost/compress/flate instead of the standard
// compress/flate because the latter's documentation says that it may read
// beyond the end of the Deflate stream. Entry framing depends on the flate
// reader consuming exactly the compressed bytes, which it does when handed
// an io.ByteReader.
func newDeflateReader(r io.Reader) io.ReadCloser {
	fr, ok := deflateReaderPool.Get().(io.ReadCloser)
	if ok {
		fr.(flate.Resetter).Reset(r, nil)
	} else {
		fr = flate.NewReader(r)
	}
	return &pooledDeflateReader{fr: fr}
}

type pooledDeflateReader struct {
	mu sync.Mutex // guards Close and Read
	fr io.ReadCloser
}

func (r *pooledDeflateReader) Read(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fr == nil {
		return 0, ErrClosed
	}
	return r.fr.Read(p)
}

func (r *pooledDeflateReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.fr != nil {
		err = r.fr.Close()
		deflateReaderPool.Put(r.fr)
		r.fr = nil
	}
	return err
}
