package mpu6050

import (
	"fmt"

	"github.com/stratux/imufusion/decode"
)

// Table maps a range code (0-3) to the sensor's LSB per unit at that range.
type Table [4]float64

var (
	// AccelTable is LSB/G for ±2, ±4, ±8 and ±16 G.
	AccelTable = Table{16384, 8192, 4096, 2048}
	// GyroTable is LSB/(°/s) for ±250, ±500, ±1000 and ±2000 °/s.
	GyroTable = Table{131, 65.5, 32.8, 16.4}
)

// RangeError is returned for a range code outside 0-3.
type RangeError struct {
	Code uint8
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("MPU6050 Error: %d is not a valid range code (0-3)", e.Code)
}

// ScaleFor returns the scale to apply to raw counts at range code.
func ScaleFor(code uint8, table Table) (decode.Scale, error) {
	if code > 3 {
		return 0, &RangeError{Code: code}
	}
	return decode.PerLSB(table[code]), nil
}
