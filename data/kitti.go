// Package data loads training samples from monocular video datasets.
package data

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/monodepth/rimage"
	"go.viam.com/monodepth/rimage/transform"
)

// KITTI stores frames as zero padded jpegs under one directory per camera.
const (
	kittiImageExt = ".jpg"
	kittiFrameFmt = "%010d"
)

// kittiSideToCamera maps the side letter used in split files to the KITTI camera number.
var kittiSideToCamera = map[string]int{"l": 2, "r": 3}

// KITTI intrinsics normalized by the image size, shared by every drive in the raw dataset.
var kittiIntrinsics = [4]float64{0.58, 1.92, 0.5, 0.5}

// Split is one entry of a split file, naming the target frame of a sample.
type Split struct {
	Folder string
	Frame  int
	Side   string
}

// String returns the split in the "folder frame side" format it was read from.
func (s Split) String() string {
	return fmt.Sprintf("%s %d %s", s.Folder, s.Frame, s.Side)
}

// ParseSplit parses a "folder frame side" split line.
func ParseSplit(line string) (Split, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Split{}, errors.Errorf("split line %q should have 3 fields, has %d", line, len(fields))
	}
	frame, err := strconv.Atoi(fields[1])
	if err != nil {
		return Split{}, errors.Wrapf(err, "bad frame index in split line %q", line)
	}
	if _, ok := kittiSideToCamera[fields[2]]; !ok {
		return Split{}, errors.Errorf("unknown side %q in split line %q", fields[2], line)
	}
	return Split{Folder: fields[0], Frame: frame, Side: fields[2]}, nil
}

// ReadSplits reads a split file, one sample per line. Blank lines are skipped.
func ReadSplits(path string) ([]Split, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var splits []Split
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		split, err := ParseSplit(line)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, lineNum)
		}
		splits = append(splits, split)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return splits, nil
}

// Sample is one training example: a target frame, its reference frames in offset order, and the
// camera intrinsics at the working resolution.
type Sample struct {
	Split      Split
	Target     *rimage.Image
	Refs       []*rimage.Image
	Intrinsics *transform.PinholeCameraIntrinsics
}

// KITTIDataset serves samples from the KITTI raw dataset at a fixed resolution.
type KITTIDataset struct {
	dataPath   string
	splits     []Split
	width      int
	height     int
	offsets    []int
	intrinsics *transform.PinholeCameraIntrinsics
}

// NewKITTIDataset returns a dataset over splits rooted at dataPath. Frames are resized to
// width x height and offsets select the reference frames relative to each target.
func NewKITTIDataset(dataPath string, splits []Split, width, height int, offsets []int) (*KITTIDataset, error) {
	if width < 1 || height < 1 {
		return nil, errors.Errorf("invalid dataset resolution %dx%d", width, height)
	}
	if len(offsets) == 0 {
		return nil, errors.New("need at least one reference frame offset")
	}
	return &KITTIDataset{
		dataPath: dataPath,
		splits:   splits,
		width:    width,
		height:   height,
		offsets:  append([]int(nil), offsets...),
		intrinsics: transform.NewNormalizedPinholeCameraIntrinsics(width, height,
			kittiIntrinsics[0], kittiIntrinsics[1], kittiIntrinsics[2], kittiIntrinsics[3]),
	}, nil
}

// SetIntrinsics replaces the KITTI intrinsics with normalized ones for another camera.
func (ds *KITTIDataset) SetIntrinsics(fx, fy, ppx, ppy float64) {
	ds.intrinsics = transform.NewNormalizedPinholeCameraIntrinsics(ds.width, ds.height, fx, fy, ppx, ppy)
}

// SetCameraIntrinsics replaces the KITTI intrinsics with calibrated ones, rescaled from their
// own resolution to the working one.
func (ds *KITTIDataset) SetCameraIntrinsics(intrinsics *transform.PinholeCameraIntrinsics) error {
	if err := intrinsics.CheckValid(); err != nil {
		return err
	}
	ds.intrinsics = intrinsics.Scale(ds.width, ds.height)
	return nil
}

// Len returns the number of samples.
func (ds *KITTIDataset) Len() int {
	return len(ds.splits)
}

// Intrinsics returns the camera intrinsics at the working resolution.
func (ds *KITTIDataset) Intrinsics() *transform.PinholeCameraIntrinsics {
	return ds.intrinsics
}

// FramePath returns the file holding a frame of the given folder and side.
func (ds *KITTIDataset) FramePath(folder string, frame int, side string) string {
	return filepath.Join(
		ds.dataPath,
		folder,
		fmt.Sprintf("image_0%d", kittiSideToCamera[side]),
		"data",
		fmt.Sprintf(kittiFrameFmt, frame)+kittiImageExt,
	)
}

// Get loads sample i. The target and reference frames are read concurrently.
func (ds *KITTIDataset) Get(ctx context.Context, i int) (*Sample, error) {
	if i < 0 || i >= len(ds.splits) {
		return nil, errors.Errorf("sample index %d out of range [0, %d)", i, len(ds.splits))
	}
	split := ds.splits[i]
	frameIdxs := append([]int{split.Frame}, lo.Map(ds.offsets, func(offset, _ int) int {
		return split.Frame + offset
	})...)
	frames := make([]*rimage.Image, len(frameIdxs))

	errs, ctx := errgroup.WithContext(ctx)
	for idx, frame := range frameIdxs {
		idx, frame := idx, frame
		errs.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := rimage.NewImageFromFile(ds.FramePath(split.Folder, frame, split.Side), ds.width, ds.height)
			if err != nil {
				return errors.Wrapf(err, "loading frame %d of sample %q", frame, split)
			}
			frames[idx] = img
			return nil
		})
	}
	if err := errs.Wait(); err != nil {
		return nil, err
	}
	return &Sample{
		Split:      split,
		Target:     frames[0],
		Refs:       frames[1:],
		Intrinsics: ds.intrinsics,
	}, nil
}
