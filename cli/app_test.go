package cli

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/monodepth/rimage"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).RunContext(context.Background(), append([]string{"monodepth"}, args...))
	return out.String(), err
}

func TestColorize(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "disp.png")
	src := image.NewGray16(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		for y := 0; y < 2; y++ {
			src.SetGray16(x, y, color.Gray16{uint16(x * 0x4000)})
		}
	}
	test.That(t, rimage.WriteImageToFile(in, src), test.ShouldBeNil)

	out := filepath.Join(dir, "disp_color.png")
	stdout, err := runApp(t, "colorize", "--input", in, "--output", out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, out)

	colored, err := rimage.ReadImageFromFile(out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, colored.Bounds().Dx(), test.ShouldEqual, 4)
	// the darkest column maps to the bottom of the colormap.
	r, g, b, _ := colored.At(0, 0).RGBA()
	wantR, wantG, wantB, _ := rimage.MagmaColor(0).RGBA()
	test.That(t, []uint32{r, g, b}, test.ShouldResemble, []uint32{wantR, wantG, wantB})

	_, err = runApp(t, "colorize", "--input", filepath.Join(dir, "missing.png"), "--output", out)
	test.That(t, err, test.ShouldNotBeNil)
}

// writeKITTI lays out frames 0 through n-1 of one drive and returns a config file pointing at them.
func writeKITTI(t *testing.T, n int, extra string) string {
	t.Helper()
	dir := t.TempDir()
	frameDir := filepath.Join(dir, "kitti", "drive", "image_02", "data")
	test.That(t, os.MkdirAll(frameDir, 0o750), test.ShouldBeNil)
	for i := 0; i < n; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, 16, 8))
		for x := 0; x < 16; x++ {
			for y := 0; y < 8; y++ {
				img.SetNRGBA(x, y, color.NRGBA{uint8(16 * x), uint8(32 * y), uint8(40 * i), 255})
			}
		}
		test.That(t, rimage.WriteImageToFile(filepath.Join(frameDir, fmt.Sprintf("%010d.jpg", i)), img), test.ShouldBeNil)
	}
	var lines []string
	for i := 1; i < n-1; i++ {
		lines = append(lines, fmt.Sprintf("drive %d l", i))
	}
	test.That(t, os.WriteFile(filepath.Join(dir, "train_files.txt"), []byte(strings.Join(lines, "\n")), 0o600),
		test.ShouldBeNil)

	cfg := fmt.Sprintf(`{"data_path": "kitti", "train_split": "train_files.txt", "width": 8, "height": 4%s}`, extra)
	cfgPath := filepath.Join(dir, "train.json")
	test.That(t, os.WriteFile(cfgPath, []byte(cfg), 0o600), test.ShouldBeNil)
	return cfgPath
}

func TestTrainDryRun(t *testing.T) {
	cfgPath := writeKITTI(t, 4, "")
	stdout, err := runApp(t, "train", "--config", cfgPath, "--dry-run")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, "train split: 2 samples at 8x4 with 2 reference frames")
	test.That(t, stdout, test.ShouldContainSubstring, "camera: fx=4.64 fy=7.68 ppx=4.00 ppy=2.00")
}

func TestTrainIntrinsicsFile(t *testing.T) {
	cfgPath := writeKITTI(t, 4, `, "intrinsics_file": "camera.json"`)
	camera := `{"width_px": 16, "height_px": 8, "fx": 10, "fy": 12, "ppx": 8, "ppy": 4}`
	test.That(t, os.WriteFile(filepath.Join(filepath.Dir(cfgPath), "camera.json"), []byte(camera), 0o600),
		test.ShouldBeNil)
	stdout, err := runApp(t, "train", "--config", cfgPath, "--dry-run")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, "camera: fx=5.00 fy=6.00 ppx=4.00 ppy=2.00")

	test.That(t, os.WriteFile(filepath.Join(filepath.Dir(cfgPath), "camera.json"), []byte(`{"width_px": 16}`), 0o600),
		test.ShouldBeNil)
	_, err = runApp(t, "train", "--config", cfgPath, "--dry-run")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "intrinsics_file")
}

func TestTrain(t *testing.T) {
	cfgPath := writeKITTI(t, 5, `, "val_split": "train_files.txt", "loss_plot": "loss.png", "log_file": "train.log"`)
	stdout, err := runApp(t, "train", "--config", cfgPath, "--max-steps", "2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, "trained 2 steps")
	test.That(t, stdout, test.ShouldContainSubstring, "MEDIAN")
	test.That(t, stdout, test.ShouldContainSubstring, "validated 3 samples")

	_, err = os.Stat(filepath.Join(filepath.Dir(cfgPath), "loss.png"))
	test.That(t, err, test.ShouldBeNil)
	logContents, err := os.ReadFile(filepath.Join(filepath.Dir(cfgPath), "train.log"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(logContents), test.ShouldContainSubstring, "training finished")
}

func TestConfigSchema(t *testing.T) {
	stdout, err := runApp(t, "config-schema")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, `"train_split"`)
}

func TestTrainErrors(t *testing.T) {
	_, err := runApp(t, "train")
	test.That(t, err, test.ShouldNotBeNil)

	cfgPath := writeKITTI(t, 3, "")
	_, err = runApp(t, "train", "--config", cfgPath, "--max-steps", "-1")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "max_steps")

	test.That(t, os.Remove(filepath.Join(filepath.Dir(cfgPath), "kitti", "drive", "image_02", "data", "0000000002.jpg")),
		test.ShouldBeNil)
	_, err = runApp(t, "train", "--config", cfgPath)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "0000000002.jpg")
}
