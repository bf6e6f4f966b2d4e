package reactor

import (
	"errors"
	"io"
)

// ErrDataNotEnough is returned by Buffer.Peek when fewer bytes are buffered
// than requested.
var ErrDataNotEnough = errors.New("reactor: not enough buffered data")

// Buffer is a growable byte buffer. Data lives in buf[start:end]; space after
// end can be filled in place with Reserve and Commit, which is how connections
// read straight from a socket into it.
type Buffer struct {
	buf   []byte
	start int
	end   int
}

func NewBuffer(size int) *Buffer {
	return &Buffer{buf: make([]byte, size)}
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return b.end - b.start
}

func (b *Buffer) Cap() int {
	return cap(b.buf)
}

// Bytes returns the unread bytes, valid until the next mutation.
func (b *Buffer) Bytes() []byte {
	return b.buf[b.start:b.end]
}

// Peek returns the next n bytes without consuming them.
func (b *Buffer) Peek(n int) ([]byte, error) {
	if b.Len() < n {
		return nil, ErrDataNotEnough
	}
	return b.buf[b.start : b.start+n], nil
}

// Discard consumes up to n bytes.
func (b *Buffer) Discard(n int) {
	if n > b.Len() {
		n = b.Len()
	}
	b.start += n
	if b.start == b.end {
		b.start, b.end = 0, 0
	}
}

func (b *Buffer) Read(p []byte) (int, error) {
	if b.Len() == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.start:b.end])
	b.Discard(n)
	return n, nil
}

func (b *Buffer) Write(p []byte) (int, error) {
	copy(b.Reserve(len(p)), p)
	b.Commit(len(p))
	return len(p), nil
}

// Reserve makes room for at least n more bytes and returns the free space
// after the unread data. Fill it, then call Commit.
func (b *Buffer) Reserve(n int) []byte {
	if len(b.buf)-b.end < n {
		b.compact()
	}
	for len(b.buf)-b.end < n {
		b.grow()
	}
	return b.buf[b.end:]
}

// Commit marks n bytes of the space returned by Reserve as written.
func (b *Buffer) Commit(n int) {
	b.end += n
}

// grow doubles capacity below 4KiB, then grows by a quarter.
func (b *Buffer) grow() {
	const size4K = 1 << 12
	newCap := b.Cap() * 2
	if b.Cap() >= size4K {
		newCap = b.Cap() + b.Cap()/4
	}
	if newCap == 0 {
		newCap = 64
	}
	buf := make([]byte, newCap)
	copy(buf, b.buf[:b.end])
	b.buf = buf
}

// compact moves unread data to the front.
func (b *Buffer) compact() {
	if b.start == 0 {
		return
	}
	copy(b.buf, b.buf[b.start:b.end])
	b.end -= b.start
	b.start = 0
}

func (b *Buffer) Reset() {
	b.start, b.end = 0, 0
}
