package rimage

import "github.com/pkg/errors"

// ErrShapeMismatch is returned when array dimensions disagree with the configured resolution
// or with each other.
var ErrShapeMismatch = errors.New("shape mismatch")

// NewShapeMismatchError describes a (width, height) disagreement for the named input.
func NewShapeMismatchError(what string, gotW, gotH, wantW, wantH int) error {
	return errors.Wrapf(ErrShapeMismatch, "%s is %dx%d, expected %dx%d", what, gotW, gotH, wantW, wantH)
}
