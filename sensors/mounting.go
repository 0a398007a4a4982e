package sensors

import (
	"fmt"

	"github.com/skelterjohn/go.matrix"
)

// Mounting rotates vectors from the sensor frame into the board frame.
// A nil *Mounting is the identity.
type Mounting struct {
	m *matrix.DenseMatrix
}

// NewMounting builds a mounting from a row-major 3x3 rotation matrix.
func NewMounting(rows []float64) (*Mounting, error) {
	if len(rows) != 9 {
		return nil, fmt.Errorf("mounting matrix needs 9 elements, got %d", len(rows))
	}
	return &Mounting{m: matrix.MakeDenseMatrix(append([]float64(nil), rows...), 3, 3)}, nil
}

// Apply returns the rotated vector.
func (mt *Mounting) Apply(t Triple) Triple {
	if mt == nil || mt.m == nil {
		return t
	}
	v := matrix.MakeDenseMatrix([]float64{t.X, t.Y, t.Z}, 3, 1)
	r := matrix.Product(mt.m, v)
	return Triple{r.Get(0, 0), r.Get(1, 0), r.Get(2, 0)}
}
