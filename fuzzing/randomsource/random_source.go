package randomsource

import (
	"encoding/binary"
	"strings"
	"unsafe"

	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/holiman/uint256"
	"golang.org/x/exp/constraints"
)

// RandomSource decodes typed values from the fuzz input of a single iteration. Each decoder consumes exactly the
// bytes its shape needs from the front of the unconsumed input, in little-endian order. When too few bytes remain,
// the decoder returns fuzzerrors.ErrExhaustedInput and moves the cursor to the end of the input, so every later
// draw also reports exhaustion.
type RandomSource struct {
	// data is the fuzz input for the iteration.
	data []byte

	// cursor is the index of the first unconsumed byte.
	cursor int
}

// NewRandomSource creates a RandomSource over data. The slice is not copied.
func NewRandomSource(data []byte) *RandomSource {
	return &RandomSource{data: data}
}

// Remaining returns the number of unconsumed bytes.
func (r *RandomSource) Remaining() int {
	return len(r.data) - r.cursor
}

// Consumed returns the number of bytes consumed so far.
func (r *RandomSource) Consumed() int {
	return r.cursor
}

// Len returns the total length of the input.
func (r *RandomSource) Len() int {
	return len(r.data)
}

// take consumes n bytes, or moves the cursor to the end and returns ErrExhaustedInput if fewer remain.
func (r *RandomSource) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		r.cursor = len(r.data)
		return nil, fuzzerrors.ErrExhaustedInput
	}
	b := r.data[r.cursor : r.cursor+n]
	r.cursor += n
	return b, nil
}

// Uint8 decodes a uint8.
func (r *RandomSource) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 decodes a little-endian uint16.
func (r *RandomSource) Uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32 decodes a little-endian uint32.
func (r *RandomSource) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 decodes a little-endian uint64.
func (r *RandomSource) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Int8 decodes an int8.
func (r *RandomSource) Int8() (int8, error) {
	v, err := r.Uint8()
	return int8(v), err
}

// Int16 decodes a little-endian int16.
func (r *RandomSource) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

// Int32 decodes a little-endian int32.
func (r *RandomSource) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

// Int64 decodes a little-endian int64.
func (r *RandomSource) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

// Bool decodes a bool from one byte, using its lowest bit.
func (r *RandomSource) Bool() (bool, error) {
	v, err := r.Uint8()
	return v&1 == 1, err
}

// Bytes consumes n bytes and returns a copy of them.
func (r *RandomSource) Bytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// Array32 consumes 32 bytes.
func (r *RandomSource) Array32() ([32]byte, error) {
	var out [32]byte
	b, err := r.take(32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// VarBytes decodes a variable-length byte slice: a uint16 length reduced modulo maxLen+1, followed by that many
// bytes.
func (r *RandomSource) VarBytes(maxLen int) ([]byte, error) {
	length, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	n := 0
	if maxLen > 0 {
		n = int(length) % (maxLen + 1)
	}
	return r.Bytes(n)
}

// String decodes a variable-length string of at most maxLen bytes, replacing invalid UTF-8 sequences.
func (r *RandomSource) String(maxLen int) (string, error) {
	b, err := r.VarBytes(maxLen)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(b), "�"), nil
}

// Uint128 decodes a little-endian 128-bit unsigned integer.
func (r *RandomSource) Uint128() (*uint256.Int, error) {
	b, err := r.take(16)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(reverse(b)), nil
}

// Uint256 decodes a little-endian 256-bit unsigned integer.
func (r *RandomSource) Uint256() (*uint256.Int, error) {
	b, err := r.take(32)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(reverse(b)), nil
}

// Uint64n decodes a uint64 reduced into [0, n). n must be non-zero.
func (r *RandomSource) Uint64n(n uint64) (uint64, error) {
	if n == 0 {
		return 0, fuzzerrors.NewConfigurationFatal(errInvalidRange)
	}
	v, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	return v % n, nil
}

// IntRange decodes an int in [lo, hi]. Returns lo without consuming input if the range holds a single value.
func (r *RandomSource) IntRange(lo int, hi int) (int, error) {
	if hi < lo {
		return 0, fuzzerrors.NewConfigurationFatal(errInvalidRange)
	}
	if hi == lo {
		return lo, nil
	}
	// Two's complement arithmetic keeps the span correct when hi-lo overflows int
	span := uint64(hi) - uint64(lo) + 1
	var v uint64
	var err error
	if span == 0 {
		// The range covers every int
		v, err = r.Uint64()
	} else {
		v, err = r.Uint64n(span)
	}
	if err != nil {
		return 0, err
	}
	return int(uint64(lo) + v), nil
}

// Next decodes an integer of type T, consuming exactly as many bytes as T occupies.
func Next[T constraints.Integer](r *RandomSource) (T, error) {
	var zero T
	b, err := r.take(int(unsafe.Sizeof(zero)))
	if err != nil {
		return zero, err
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return T(v), nil
}

// reverse returns a reversed copy of b, converting little-endian input for big-endian setters.
func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
