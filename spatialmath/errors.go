// Package spatialmath defines the rotation and rigid transform math used to relate camera views.
package spatialmath

import "github.com/pkg/errors"

func newRotationMatrixInputError(m []float64) error {
	return errors.Errorf("input slice has %d elements, need exactly 9", len(m))
}
