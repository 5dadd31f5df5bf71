package zipstream

import (
	"bufio"
	"io"
)

// pushbackReader augments a buffered byte source with the ability to return
// bytes to the front of the stream. The signature scan over a stored entry
// routinely reads past the entry's data descriptor; whatever it overshoots is
// unread here and served again before any fresh source bytes.
type pushbackReader struct {
	r    *bufio.Reader
	back []byte // pending unread bytes, drained from the front
}

func newPushbackReader(r io.Reader) *pushbackReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &pushbackReader{r: br}
}

func (p *pushbackReader) Read(b []byte) (int, error) {
	if len(p.back) > 0 {
		n := copy(b, p.back)
		p.back = p.back[n:]
		return n, nil
	}
	return p.r.Read(b)
}

func (p *pushbackReader) ReadByte() (byte, error) {
	if len(p.back) > 0 {
		c := p.back[0]
		p.back = p.back[1:]
		return c, nil
	}
	return p.r.ReadByte()
}

// unread returns b to the stream so the next reads see it again, before any
// bytes unread earlier. The slice is copied; callers may reuse their buffer.
func (p *pushbackReader) unread(b []byte) {
	if len(b) == 0 {
		return
	}
	nb := make([]byte, 0, len(b)+len(p.back))
	nb = append(nb, b...)
	nb = append(nb, p.back...)
	p.back = nb
}
