package rimage

import (
	"image"
	// register decoders for the frame formats datasets ship with.
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	_ "github.com/lmittmann/ppm" // register ppm
	"github.com/pkg/errors"
	_ "github.com/xfmoulet/qoi" // register qoi
	"go.viam.com/utils"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ReadImageFromFile decodes the image stored at path.
func ReadImageFromFile(path string) (image.Image, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding image %q", path)
	}
	return img, nil
}

// NewImageFromFile reads an image, resizes it to width x height with a Lanczos filter, and
// converts it to a normalized RGB image.
func NewImageFromFile(path string, width, height int) (*Image, error) {
	img, err := ReadImageFromFile(path)
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}
	return NewImageFromStdImage(img), nil
}

// WriteImageToFile encodes img with the format implied by the file extension.
func WriteImageToFile(path string, img image.Image) error {
	return imaging.Save(img, path)
}
