package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// angleEpsilon is the rotation magnitude below which an axis-angle vector is the identity.
const angleEpsilon = 1e-12

// RotationMatrix is a 3x3 matrix in row major order.
// m[3*r + c] is the element in the r'th row and c'th column.
type RotationMatrix struct {
	mat [9]float64
}

// NewRotationMatrix creates the rotation matrix from a slice of 9 row major values.
func NewRotationMatrix(m []float64) (*RotationMatrix, error) {
	if len(m) != 9 {
		return nil, newRotationMatrixInputError(m)
	}
	var rm RotationMatrix
	copy(rm.mat[:], m)
	return &rm, nil
}

// NewRotationMatrixFromAxisAngle builds the rotation for an R3 axis-angle vector using
// Rodrigues' formula R = I + sin(θ)[â]× + (1-cos(θ))[â]×². Vectors with a negligible angle
// give the identity.
func NewRotationMatrixFromAxisAngle(aa r3.Vector) *RotationMatrix {
	return R3ToR4(aa).RotationMatrix()
}

// QuatToRotationMatrix converts a unit quaternion to a rotation matrix.
func QuatToRotationMatrix(q quat.Number) *RotationMatrix {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &RotationMatrix{[9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}}
}

// rodrigues expects a unit axis.
func rodrigues(theta float64, axis r3.Vector) *RotationMatrix {
	s, c := math.Sincos(theta)
	k := skew(axis)
	k2 := matMul3(k, k)
	var rm RotationMatrix
	for i := range rm.mat {
		rm.mat[i] = s*k[i] + (1-c)*k2[i]
	}
	rm.mat[0]++
	rm.mat[4]++
	rm.mat[8]++
	return &rm
}

// skew returns the cross-product matrix [v]× such that [v]× u = v × u.
func skew(v r3.Vector) [9]float64 {
	return [9]float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	}
}

func matMul3(a, b [9]float64) [9]float64 {
	var out [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[3*r+c] = a[3*r]*b[c] + a[3*r+1]*b[3+c] + a[3*r+2]*b[6+c]
		}
	}
	return out
}

// At returns the float corresponding to the element at the specified location.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.mat[3*row+col]
}

// Row returns the a 3 element vector corresponding to the specified row.
func (rm *RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{X: rm.mat[3*row], Y: rm.mat[3*row+1], Z: rm.mat[3*row+2]}
}

// Col returns the a 3 element vector corresponding to the specified column.
func (rm *RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{X: rm.mat[col], Y: rm.mat[3+col], Z: rm.mat[6+col]}
}

// Mul returns the product of the rotation and a vector.
func (rm *RotationMatrix) Mul(v r3.Vector) r3.Vector {
	return r3.Vector{X: rm.Row(0).Dot(v), Y: rm.Row(1).Dot(v), Z: rm.Row(2).Dot(v)}
}

// Transpose returns the transpose, which is also the inverse of a rotation.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	var t RotationMatrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			t.mat[3*c+r] = rm.mat[3*r+c]
		}
	}
	return &t
}

// Det returns the determinant of the matrix.
func (rm *RotationMatrix) Det() float64 {
	return rm.Row(0).Dot(rm.Row(1).Cross(rm.Row(2)))
}

// Dense returns a copy of the rotation as a 3x3 gonum matrix.
func (rm *RotationMatrix) Dense() *mat.Dense {
	return mat.NewDense(3, 3, append([]float64(nil), rm.mat[:]...))
}
