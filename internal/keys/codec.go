package keys

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tuple encoding. Every value is a tag byte followed by a payload whose byte
// order matches Value.Compare, and no encoded value is a prefix of another, so
// bytes.Compare over encoded keys equals IndexKey.Compare.
//
//	bool   0x10 [0|1]
//	int    0x20 uint64(v) ^ 1<<63, big endian
//	float  0x30 sign-folded IEEE 754 bits, big endian (NaN encodes as zero)
//	string 0x40 bytes with 0x00 escaped as 0x00 0xff, then 0x00 0x01
const (
	tagBool   byte = 0x10
	tagInt    byte = 0x20
	tagFloat  byte = 0x30
	tagString byte = 0x40

	escape     byte = 0x00
	escapedNul byte = 0xff
	terminator byte = 0x01
)

// AppendValue appends the encoding of v to b
func AppendValue(b []byte, v Value) []byte {
	switch v.kind {
	case KindBool:
		return append(b, tagBool, byte(v.i))
	case KindInt:
		b = append(b, tagInt)
		return binary.BigEndian.AppendUint64(b, uint64(v.i)^(1<<63))
	case KindFloat:
		b = append(b, tagFloat)
		return binary.BigEndian.AppendUint64(b, foldFloat(v.f))
	case KindString:
		b = append(b, tagString)
		for i := 0; i < len(v.s); i++ {
			if v.s[i] == escape {
				b = append(b, escape, escapedNul)
				continue
			}
			b = append(b, v.s[i])
		}
		return append(b, escape, terminator)
	}
	panic("keys: encode invalid value")
}

func foldFloat(f float64) uint64 {
	if math.IsNaN(f) {
		return 0
	}
	if f == 0 {
		f = 0 // -0 == +0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | 1<<63
}

func unfoldFloat(u uint64) float64 {
	if u == 0 {
		return math.NaN()
	}
	if u&(1<<63) != 0 {
		return math.Float64frombits(u &^ (1 << 63))
	}
	return math.Float64frombits(^u)
}

// DecodeValue decodes one value from the head of b and returns the rest
func DecodeValue(b []byte) (Value, []byte, error) {
	if len(b) == 0 {
		return Value{}, nil, fmt.Errorf("%w: decode: empty input", ErrValidation)
	}
	tag, b := b[0], b[1:]
	switch tag {
	case tagBool:
		if len(b) < 1 {
			return Value{}, nil, fmt.Errorf("%w: decode: short bool", ErrValidation)
		}
		return Bool(b[0] != 0), b[1:], nil
	case tagInt:
		if len(b) < 8 {
			return Value{}, nil, fmt.Errorf("%w: decode: short int", ErrValidation)
		}
		return Int(int64(binary.BigEndian.Uint64(b) ^ (1 << 63))), b[8:], nil
	case tagFloat:
		if len(b) < 8 {
			return Value{}, nil, fmt.Errorf("%w: decode: short float", ErrValidation)
		}
		return Float(unfoldFloat(binary.BigEndian.Uint64(b))), b[8:], nil
	case tagString:
		s := make([]byte, 0, len(b))
		for i := 0; i < len(b); i++ {
			if b[i] != escape {
				s = append(s, b[i])
				continue
			}
			if i+1 >= len(b) {
				break
			}
			switch b[i+1] {
			case escapedNul:
				s = append(s, 0)
				i++
			case terminator:
				return String(string(s)), b[i+2:], nil
			default:
				return Value{}, nil, fmt.Errorf("%w: decode: bad escape 0x%02x", ErrValidation, b[i+1])
			}
		}
		return Value{}, nil, fmt.Errorf("%w: decode: unterminated string", ErrValidation)
	}
	return Value{}, nil, fmt.Errorf("%w: decode: unknown tag 0x%02x", ErrValidation, tag)
}

// EncodeKey encodes key; the unbounded key encodes as an empty slice
func EncodeKey(key IndexKey) []byte {
	return AppendKey(nil, key)
}

func AppendKey(b []byte, key IndexKey) []byte {
	for _, v := range key {
		b = AppendValue(b, v)
	}
	return b
}

// DecodeKey is the inverse of EncodeKey
func DecodeKey(b []byte) (IndexKey, error) {
	var key IndexKey
	for len(b) > 0 {
		v, rest, err := DecodeValue(b)
		if err != nil {
			return nil, err
		}
		key = append(key, v)
		b = rest
	}
	return key, nil
}

// PrefixEnd returns the smallest byte string greater than every string with
// prefix b, or nil if there is none
func PrefixEnd(b []byte) []byte {
	end := make([]byte, len(b))
	copy(end, b)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// ByteRange returns the [lower, upper) byte interval holding exactly the
// encoded keys of the segment, relative to an encoded namespace prefix ns.
// A nil upper means no upper limit.
func (s Segment) ByteRange(ns []byte) (lower, upper []byte) {
	base := AppendKey(append([]byte{}, ns...), s.Eq)

	lower = base
	if s.Lower != nil {
		b := AppendValue(append([]byte{}, base...), s.Lower.Value)
		if s.Lower.Op.Inclusive() {
			lower = b
		} else {
			lower = PrefixEnd(b)
		}
	}

	upper = PrefixEnd(base)
	if s.Upper != nil {
		b := AppendValue(append([]byte{}, base...), s.Upper.Value)
		if s.Upper.Op.Inclusive() {
			upper = PrefixEnd(b)
		} else {
			upper = b
		}
	}
	return lower, upper
}
