package protocol

import (
	"io"
	"math"

	"github.com/otaku1603/turnnet"
)

// EncodeLength encodes n as a length prefix: 7 bits per byte, least
// significant group first, high bit set on every byte but the last.
func EncodeLength(n int) ([]byte, error) {
	if n < 0 {
		return nil, turnnet.ErrNegativeLength
	}
	if uint64(n) > math.MaxUint32 {
		return nil, &turnnet.FramingError{Reason: turnnet.ErrMsgVarintOverflow}
	}
	v := uint32(n)
	return AppendLength(make([]byte, 0, LengthSize(v)), v), nil
}

// AppendLength appends the length prefix for v to dst.
func AppendLength(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// LengthSize returns the number of bytes needed to encode v as a length prefix.
func LengthSize(v uint32) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}

// DecodeLength reads one length prefix from r.
//
// io.EOF is returned unchanged when the stream ends before the first byte,
// which is an orderly close. An end of stream inside the prefix is a
// *turnnet.StreamClosedError. More than MaxLengthPrefixBytes groups, or a
// final group carrying bits beyond 32, is a *turnnet.FramingError.
func DecodeLength(r io.ByteReader) (uint32, error) {
	var v uint32
	for i := 0; i < turnnet.MaxLengthPrefixBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				if i == 0 {
					return 0, io.EOF
				}
				return 0, &turnnet.StreamClosedError{Want: i + 1, Got: i, Err: io.ErrUnexpectedEOF}
			}
			return 0, err
		}

		if i == turnnet.MaxLengthPrefixBytes-1 {
			if b&0x80 != 0 {
				return 0, &turnnet.FramingError{Reason: turnnet.ErrMsgVarintTooLong}
			}
			// only 4 bits of the fifth group fit in 32 bits
			if b > 0x0F {
				return 0, &turnnet.FramingError{Reason: turnnet.ErrMsgVarintOverflow}
			}
		}

		v |= uint32(b&0x7F) << (7 * uint(i))
		if b < 0x80 {
			return v, nil
		}
	}
	return 0, &turnnet.FramingError{Reason: turnnet.ErrMsgVarintTooLong}
}
