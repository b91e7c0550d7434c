package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// See here for a thorough explanation: https://en.wikipedia.org/wiki/Axis%E2%80%93angle_representation
// Basic explanation: Imagine a 3d cartesian grid centered at 0,0,0, and a sphere of radius 1 centered at
// that same point. An orientation can be expressed by first specifying an axis, i.e. a line from the origin
// to a point on that sphere, represented by (rx, ry, rz), and a rotation around that axis, theta.
// These four numbers can be used as-is (R4), or they can be converted to R3, where theta is multiplied by each of
// the unit sphere components to give a vector whose length is theta and whose direction is the original axis.
// Pose networks predict the R3 form.

// R4AA represents an R4 axis angle.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates an empty R4AA struct.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// ToQuat converts an R4 axis angle to a unit quaternion.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/angleToQuaternion/index.htm
func (r4 *R4AA) ToQuat() quat.Number {
	sinA := math.Sin(r4.Theta / 2)
	axis := r4.axis()
	w := math.Cos(r4.Theta / 2)
	return quat.Number{Real: w, Imag: axis.X * sinA, Jmag: axis.Y * sinA, Kmag: axis.Z * sinA}
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (r4 *R4AA) RotationMatrix() *RotationMatrix {
	return rodrigues(r4.Theta, r4.axis())
}

// axis returns the rotation axis scaled onto the unit sphere. A zero axis yields the z axis,
// which is harmless since it only ever appears next to a zero angle.
func (r4 *R4AA) axis() r3.Vector {
	v := r3.Vector{X: r4.RX, Y: r4.RY, Z: r4.RZ}
	norm := v.Norm()
	if norm == 0 {
		return r3.Vector{Z: 1}
	}
	return v.Mul(1 / norm)
}

// R3ToR4 converts an R3 angle axis to R4. Vectors shorter than angleEpsilon are treated as no rotation.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta < angleEpsilon {
		return NewR4AA()
	}
	return &R4AA{theta, aa.X / theta, aa.Y / theta, aa.Z / theta}
}
