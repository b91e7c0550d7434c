package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// PoseVector is the 6-DoF output of the pose network: an R3 axis-angle rotation followed by a
// translation.
type PoseVector [6]float64

// NewPoseVector creates a PoseVector from a rotation and translation.
func NewPoseVector(rotation, translation r3.Vector) PoseVector {
	return PoseVector{rotation.X, rotation.Y, rotation.Z, translation.X, translation.Y, translation.Z}
}

// PoseVectorFromSlice copies 6 values into a PoseVector.
func PoseVectorFromSlice(vals []float64) (PoseVector, error) {
	var pv PoseVector
	if len(vals) != len(pv) {
		return pv, errors.Errorf("pose vector needs %d values, got %d", len(pv), len(vals))
	}
	copy(pv[:], vals)
	return pv, nil
}

// Rotation returns the axis-angle part.
func (pv PoseVector) Rotation() r3.Vector {
	return r3.Vector{X: pv[0], Y: pv[1], Z: pv[2]}
}

// Translation returns the translation part.
func (pv PoseVector) Translation() r3.Vector {
	return r3.Vector{X: pv[3], Y: pv[4], Z: pv[5]}
}

func (pv PoseVector) String() string {
	return fmt.Sprintf("rot=%v trans=%v", pv.Rotation(), pv.Translation())
}

// PoseVecToMatrix converts a pose vector into the 4x4 rigid transform
//
//	[[R t],
//	 [0 1]]
//
// where R comes from the axis-angle rotation. Malformed input is not validated; NaN and Inf
// propagate into the result.
func PoseVecToMatrix(pv PoseVector) *mat.Dense {
	rot := NewRotationMatrixFromAxisAngle(pv.Rotation())
	t := pv.Translation()
	return mat.NewDense(4, 4, []float64{
		rot.At(0, 0), rot.At(0, 1), rot.At(0, 2), t.X,
		rot.At(1, 0), rot.At(1, 1), rot.At(1, 2), t.Y,
		rot.At(2, 0), rot.At(2, 1), rot.At(2, 2), t.Z,
		0, 0, 0, 1,
	})
}
