// Package matrix provides dense-matrix utilities shared by the estimator.
package matrix

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Symmetrize makes the square matrix m numerically symmetric in place by
// averaging it with its transpose: m = 0.5 * (m + m^T).
// It panics if m is not square.
func Symmetrize(m *mat.Dense) {
	r, c := m.Dims()
	if r != c {
		panic("matrix: symmetrize of a non-square matrix")
	}

	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			v := 0.5 * (m.At(i, j) + m.At(j, i))
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}

// IsSymmetric reports whether the square matrix m is symmetric within tol.
func IsSymmetric(m mat.Matrix, tol float64) bool {
	r, c := m.Dims()
	if r != c {
		return false
	}

	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			if math.Abs(m.At(i, j)-m.At(j, i)) > tol {
				return false
			}
		}
	}

	return true
}

// GrowSquare returns a new (n+by) x (n+by) matrix whose top-left n x n block
// is a copy of m and whose new rows and columns are zero.
// It panics if m is not square or by is negative.
func GrowSquare(m *mat.Dense, by int) *mat.Dense {
	r, c := m.Dims()
	if r != c {
		panic("matrix: grow of a non-square matrix")
	}
	if by < 0 {
		panic("matrix: negative growth")
	}

	grown := mat.NewDense(r+by, c+by, nil)
	grown.Slice(0, r, 0, c).(*mat.Dense).Copy(m)

	return grown
}

// Flatten returns the elements of m concatenated row by row.
func Flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)

	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}

	return out
}
