package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes a vector as raw little-endian 32-bit floats, with no
// header. The result is len(v) * 4 bytes. Enrollment-time encode and
// match-time decode must agree on this layout or similarity scores silently
// corrupt.
func Encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// Decode deserializes a vector previously produced by Encode. The byte length
// must be a multiple of 4.
func Decode(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(data))
	}

	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}
