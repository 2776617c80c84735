package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/otaku1603/turnnet"
)

// Wire format of one frame:
//
//	┌──────────────────────────┬─────────────────────────────────┐
//	│ Length (varint, 1-5 B)   │ Envelope body (Length bytes)    │
//	└──────────────────────────┴─────────────────────────────────┘
//
// The length is the exact size of the serialized body, computed after
// serialization.

// MarshalFrame serializes env and prefixes it with its length.
func MarshalFrame(env *turnnet.Envelope) ([]byte, error) {
	body, err := EncodeEnvelope(env)
	if err != nil {
		return nil, err
	}
	if uint64(len(body)) > 0xFFFFFFFF {
		return nil, &turnnet.FramingError{Reason: turnnet.ErrMsgFrameTooLarge}
	}

	n := uint32(len(body))
	out := make([]byte, 0, LengthSize(n)+len(body))
	out = AppendLength(out, n)
	return append(out, body...), nil
}

// WriteFrame writes env to w as a single Write call.
func WriteFrame(w io.Writer, env *turnnet.Envelope) (int, error) {
	frame, err := MarshalFrame(env)
	if err != nil {
		return 0, err
	}
	return w.Write(frame)
}

// Reader reads frames from a byte stream.
type Reader struct {
	r       *bufio.Reader
	maxSize int
}

// NewReader returns a Reader that rejects bodies larger than maxSize.
// A maxSize <= 0 selects turnnet.MaxFrameSize.
func NewReader(r io.Reader, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = turnnet.MaxFrameSize
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{r: br, maxSize: maxSize}
}

// ReadBody reads one length prefix and exactly that many body bytes.
//
// It returns io.EOF when the stream ends cleanly between frames and a
// *turnnet.StreamClosedError when it ends inside one.
func (fr *Reader) ReadBody() ([]byte, error) {
	n, err := DecodeLength(fr.r)
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(fr.maxSize) {
		return nil, &turnnet.FramingError{Reason: fmt.Sprintf("%s: %d > %d", turnnet.ErrMsgFrameTooLarge, n, fr.maxSize)}
	}

	body := make([]byte, n)
	// io.ReadFull keeps reading until the body is complete; a stream may
	// return fewer bytes per read than requested.
	got, err := io.ReadFull(fr.r, body)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &turnnet.StreamClosedError{Want: int(n), Got: got, Err: err}
		}
		return nil, err
	}
	return body, nil
}

// ReadFrame reads and decodes one envelope.
func (fr *Reader) ReadFrame() (*turnnet.Envelope, error) {
	body, err := fr.ReadBody()
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope(body)
}
