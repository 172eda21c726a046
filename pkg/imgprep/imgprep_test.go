package imgprep

import (
	"testing"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/stretchr/testify/require"
)

func solidImage(width, height int, r, g, b byte) *cimg.Image {
	img := cimg.NewImage(width, height, cimg.PixelFormatRGB)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := img.Pixels[y*img.Stride+x*3:]
			p[0], p[1], p[2] = r, g, b
		}
	}
	return img
}

func pixel(img *cimg.Image, x, y int) [3]byte {
	p := img.Pixels[y*img.Stride+x*3:]
	return [3]byte{p[0], p[1], p[2]}
}

func requireColor(t *testing.T, expect [3]byte, actual [3]byte) {
	for i := 0; i < 3; i++ {
		require.InDelta(t, float64(expect[i]), float64(actual[i]), 2)
	}
}

func TestFit(t *testing.T) {
	require.Equal(t, Transform{Scale: 0.5, ScaledWidth: 416, ScaledHeight: 234}, Fit(832, 468, 416, 256))
	require.Equal(t, Transform{Scale: 0.25, ScaledWidth: 64, ScaledHeight: 256}, Fit(256, 1024, 416, 256))
	require.Equal(t, Transform{Scale: 2, ScaledWidth: 100, ScaledHeight: 50}, Fit(50, 25, 100, 100))
}

func TestLetterboxLandscape(t *testing.T) {
	src := solidImage(200, 100, 200, 100, 50)
	dst, xform := LetterboxNew(src, 100, 100)
	require.Equal(t, float32(0.5), xform.Scale)
	require.Equal(t, 100, xform.ScaledWidth)
	require.Equal(t, 50, xform.ScaledHeight)

	requireColor(t, [3]byte{200, 100, 50}, pixel(dst, 0, 0))
	requireColor(t, [3]byte{200, 100, 50}, pixel(dst, 99, 49))
	// Bottom is padding
	require.Equal(t, [3]byte{0, 0, 0}, pixel(dst, 0, 50))
	require.Equal(t, [3]byte{0, 0, 0}, pixel(dst, 99, 99))
}

func TestLetterboxPortrait(t *testing.T) {
	src := solidImage(50, 100, 10, 20, 30)
	dst, xform := LetterboxNew(src, 100, 100)
	require.Equal(t, float32(1), xform.Scale)
	require.Equal(t, 50, xform.ScaledWidth)

	// No scaling needed, so this is an exact copy
	require.Equal(t, [3]byte{10, 20, 30}, pixel(dst, 49, 99))
	// Right edge is padding
	require.Equal(t, [3]byte{0, 0, 0}, pixel(dst, 50, 0))
	require.Equal(t, [3]byte{0, 0, 0}, pixel(dst, 99, 99))
}

func TestLetterboxSameSize(t *testing.T) {
	src := solidImage(8, 4, 1, 2, 3)
	// Destination with a padded stride, pre-filled with junk
	stride := 8*3 + 5
	dst := make([]byte, stride*4)
	for i := range dst {
		dst[i] = 0xff
	}
	xform := Letterbox(src, dst, 8, 4, stride)
	require.Equal(t, IdentityTransform(), xform)
	require.Equal(t, []byte{1, 2, 3}, dst[stride*3+7*3:stride*3+8*3])
}

func TestToOriginal(t *testing.T) {
	xform := Transform{Scale: 0.5, ScaledWidth: 100, ScaledHeight: 50}
	det := nn.Detection{X: 0.5, Y: 0.25, W: 0.5, H: 0.25, Conf: 0.9}
	require.Equal(t, nn.Rect{X: 100, Y: 50, Width: 100, Height: 50}, xform.ToOriginal(det, 100, 100))
}

func TestToRGBPassThrough(t *testing.T) {
	src := solidImage(2, 2, 1, 2, 3)
	require.Same(t, src, ToRGB(src))
}

func TestPrepFilename(t *testing.T) {
	require.Equal(t, "dir/cat_prep.jpg", PrepFilename("dir/cat.jpg"))
	require.Equal(t, "noext_prep", PrepFilename("noext"))
}
