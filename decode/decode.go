// Package decode turns raw register bytes into signed samples and physical units.
package decode

import (
	"fmt"

	"github.com/stratux/imufusion/sensors"
)

// Order is the byte order of the 16 bit fields a device reports.
type Order int

const (
	BigEndian Order = iota // high byte first
	LittleEndian
)

func (o Order) String() string {
	if o == LittleEndian {
		return "little-endian"
	}
	return "big-endian"
}

// Scale is the physical value of one count.
type Scale float64

// Unity leaves counts unscaled.
const Unity Scale = 1

// PerLSB returns the scale for a sensor specified in LSB per unit.
func PerLSB(lsb float64) Scale {
	return Scale(1 / lsb)
}

// FullScale returns the scale for a sensor whose ±32768 counts span ±fs units.
func FullScale(fs float64) Scale {
	return Scale(fs / 32768)
}

// Error reports a byte block that cannot be split into the expected fields.
type Error struct {
	Len, Want int
}

func (e *Error) Error() string {
	if e.Len%2 != 0 {
		return fmt.Sprintf("decode: %d bytes is not a whole number of 16 bit fields", e.Len)
	}
	return fmt.Sprintf("decode: got %d bytes, expected %d", e.Len, e.Want)
}

// Int16 reinterprets two bytes as a two's complement value.
func Int16(b0, b1 byte, order Order) int {
	var v int
	if order == LittleEndian {
		v = int(b1)<<8 | int(b0)
	} else {
		v = int(b0)<<8 | int(b1)
	}
	if v >= 0x8000 {
		v -= 0x10000
	}
	return v
}

// Encode is the inverse of Int16 for values in [-32768, 65535].
func Encode(v int, order Order) [2]byte {
	u := uint16(v)
	if order == LittleEndian {
		return [2]byte{byte(u), byte(u >> 8)}
	}
	return [2]byte{byte(u >> 8), byte(u)}
}

// Fields splits b into exactly n signed 16 bit fields.
func Fields(b []byte, order Order, n int) ([]int, error) {
	if len(b)%2 != 0 || len(b) != n*2 {
		return nil, &Error{Len: len(b), Want: n * 2}
	}
	out := make([]int, n)
	for i := range out {
		out[i] = Int16(b[2*i], b[2*i+1], order)
	}
	return out, nil
}

// Triple decodes exactly six bytes as x, y, z and applies the scale.
func Triple(b []byte, order Order, scale Scale) (sensors.Triple, error) {
	f, err := Fields(b, order, 3)
	if err != nil {
		return sensors.Triple{}, err
	}
	k := float64(scale)
	return sensors.Triple{X: float64(f[0]) * k, Y: float64(f[1]) * k, Z: float64(f[2]) * k}, nil
}
