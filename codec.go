package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrIncompleteFrame tells the caller to wait for more data.
	ErrIncompleteFrame = errors.New("reactor: incomplete frame")
	ErrInvalidFrame    = errors.New("reactor: invalid frame")
)

// Encoder frames one outbound message.
type Encoder interface {
	Encode(data []byte) ([]byte, error)
}

// Decoder extracts one frame from the front of buf. It returns
// ErrIncompleteFrame, leaving buf untouched, when buf holds a partial frame.
type Decoder interface {
	Decode(buf *Buffer) ([]byte, error)
}

// EnDecoder frames both directions of a connection.
type EnDecoder interface {
	Encoder
	Decoder
}

// RawCodec passes bytes through without framing.
type RawCodec struct{}

// Encode returns data as is.
func (RawCodec) Encode(data []byte) ([]byte, error) {
	return data, nil
}

// Decode takes everything buffered as one frame.
func (RawCodec) Decode(buf *Buffer) ([]byte, error) {
	if buf.Len() == 0 {
		return nil, ErrIncompleteFrame
	}
	frame := append([]byte(nil), buf.Bytes()...)
	buf.Discard(len(frame))
	return frame, nil
}

const lengthFieldSize = 4

// LengthFieldCodec frames data behind a 4 byte big endian length that counts
// itself, i.e. a frame of n payload bytes starts with n+4.
type LengthFieldCodec struct {
	// MaxFrameSize limits the payload size, zero means no limit.
	MaxFrameSize int
}

// Encode prepends the length field.
func (c LengthFieldCodec) Encode(data []byte) ([]byte, error) {
	if c.MaxFrameSize > 0 && len(data) > c.MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrInvalidFrame, len(data), c.MaxFrameSize)
	}
	out := make([]byte, lengthFieldSize+len(data))
	binary.BigEndian.PutUint32(out, uint32(lengthFieldSize+len(data)))
	copy(out[lengthFieldSize:], data)
	return out, nil
}

// Decode extracts one frame once all of it is buffered.
func (c LengthFieldCodec) Decode(buf *Buffer) ([]byte, error) {
	header, err := buf.Peek(lengthFieldSize)
	if err != nil {
		return nil, ErrIncompleteFrame
	}
	length := int(binary.BigEndian.Uint32(header))
	if length < lengthFieldSize {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidFrame, length)
	}
	if c.MaxFrameSize > 0 && length-lengthFieldSize > c.MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrInvalidFrame, length-lengthFieldSize, c.MaxFrameSize)
	}
	frame, err := buf.Peek(length)
	if err != nil {
		return nil, ErrIncompleteFrame
	}
	data := append([]byte(nil), frame[lengthFieldSize:]...)
	buf.Discard(length)
	return data, nil
}
