// Package bcs implements the little-endian, LEB128-length-prefixed decoder
// the bridge's wire messages are embedded in, plus a big-endian
// fixed-width reader for the numeric fields that are deliberately encoded
// big-endian inside payloads (spec.md §4.1, §6.1).
//
// The decoder consumes its buffer from the back ("pop-last" semantics) to
// match the upstream BCS flavor it is bit-exact with. Every peel function
// either advances the buffer exactly as much as it needs and returns a
// value, or returns a non-nil error and leaves the buffer unspecified.
package bcs

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrOutOfRange  = errors.New("bcs: read out of range")
	ErrLenOutOfRange = errors.New("bcs: uleb128 length wider than 5 bytes")
	ErrNotBool     = errors.New("bcs: byte is not a valid bool")
	ErrTrailingBytes = errors.New("bcs: trailing bytes after decode")
)

// Decoder peels values off the tail of buf.
type Decoder struct {
	buf []byte
}

// NewDecoder wraps buf for back-to-front peeling. The caller retains
// ownership of buf; Decoder never mutates it, only reslices.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining reports how many unconsumed bytes are left.
func (d *Decoder) Remaining() int {
	return len(d.buf)
}

// RequireEmpty fails with ErrTrailingBytes unless the buffer has been
// fully consumed. Every message extractor must call this.
func (d *Decoder) RequireEmpty() error {
	if len(d.buf) != 0 {
		return fmt.Errorf("%w: %d byte(s) left", ErrTrailingBytes, len(d.buf))
	}
	return nil
}

func (d *Decoder) popTail(n int) ([]byte, error) {
	if n > len(d.buf) {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrOutOfRange, n, len(d.buf))
	}
	split := len(d.buf) - n
	tail := d.buf[split:]
	d.buf = d.buf[:split]
	return tail, nil
}

// PeelU8 reads a single byte.
func (d *Decoder) PeelU8() (uint8, error) {
	b, err := d.popTail(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// PeelU16 reads 2 little-endian bytes.
func (d *Decoder) PeelU16() (uint16, error) {
	b, err := d.popTail(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// PeelU64 reads 8 little-endian bytes.
func (d *Decoder) PeelU64() (uint64, error) {
	b, err := d.popTail(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// PeelU128 reads 16 little-endian bytes, returned as (low64, high64).
func (d *Decoder) PeelU128() (lo uint64, hi uint64, err error) {
	b, err := d.popTail(16)
	if err != nil {
		return 0, 0, err
	}
	lo = binary.LittleEndian.Uint64(b[:8])
	hi = binary.LittleEndian.Uint64(b[8:])
	return lo, hi, nil
}

// PeelU256 reads 32 little-endian bytes, returned as 4 little-endian u64 limbs.
func (d *Decoder) PeelU256() (limbs [4]uint64, err error) {
	b, err := d.popTail(32)
	if err != nil {
		return limbs, err
	}
	for i := 0; i < 4; i++ {
		limbs[i] = binary.LittleEndian.Uint64(b[i*8 : i*8+8])
	}
	return limbs, nil
}

// PeelULEBLen decodes a ULEB128-encoded length of at most 5 bytes,
// failing with ErrLenOutOfRange if wider.
func (d *Decoder) PeelULEBLen() (int, error) {
	var result uint64
	for i := 0; i < 5; i++ {
		b, err := d.PeelU8()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int(result), nil
		}
	}
	return 0, ErrLenOutOfRange
}

// PeelBool reads a single byte as a bool: 0 -> false, 1 -> true, else
// ErrNotBool.
func (d *Decoder) PeelBool() (bool, error) {
	b, err := d.PeelU8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: got %d", ErrNotBool, b)
	}
}

// PeelVecU8 reads a ULEB128 length followed by that many raw bytes,
// returned in the order they are popped (wire order).
func (d *Decoder) PeelVecU8() ([]byte, error) {
	n, err := d.PeelULEBLen()
	if err != nil {
		return nil, err
	}
	b, err := d.popTail(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = b[n-1-i]
	}
	return out, nil
}

// PeelVecU64 reads a ULEB128 length followed by that many little-endian u64s.
func (d *Decoder) PeelVecU64() ([]uint64, error) {
	n, err := d.PeelULEBLen()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		v, err := d.PeelU64()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// PeelVecVecU8 reads a ULEB128 length followed by that many PeelVecU8 values.
func (d *Decoder) PeelVecVecU8() ([][]byte, error) {
	n, err := d.PeelULEBLen()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		v, err := d.PeelVecU8()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// IntoRemainderBytes reverses whatever is left in the buffer so a caller
// that wants to keep reading forwards (e.g. to run the trailing-byte
// check, or to hand the remainder to a nested decoder) sees it in
// original byte order.
func (d *Decoder) IntoRemainderBytes() []byte {
	n := len(d.buf)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = d.buf[n-1-i]
	}
	return out
}

// PeelU64BE reads 8 big-endian bytes. Bridge message payloads deliberately
// encode seq_num/amount/new_limit/new_price big-endian even though the
// enclosing BCS container is little-endian (spec.md §4.2).
func PeelU64BE(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("%w: need 8, have %d", ErrOutOfRange, len(b))
	}
	return binary.BigEndian.Uint64(b[:8]), b[8:], nil
}

// AppendU64BE appends the big-endian encoding of v to b.
func AppendU64BE(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

// AppendULEBLen appends the ULEB128 encoding of a non-negative length.
func AppendULEBLen(b []byte, n int) []byte {
	v := uint64(n)
	for {
		if v < 0x80 {
			return append(b, byte(v))
		}
		b = append(b, byte(v&0x7f)|0x80)
		v >>= 7
	}
}
