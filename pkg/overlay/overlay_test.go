package overlay

import (
	"testing"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/stretchr/testify/require"
)

func pixel(img *cimg.Image, x, y int) [3]byte {
	p := img.Pixels[y*img.Stride+x*3:]
	return [3]byte{p[0], p[1], p[2]}
}

func TestDraw(t *testing.T) {
	img := cimg.NewImage(64, 64, cimg.PixelFormatRGB)
	boxes := []Box{{Rect: nn.Rect{X: 10, Y: 20, Width: 30, Height: 30}, Class: "person", Conf: 0.9, Label: 0}}
	out := Draw(img, boxes, Options{LineWidth: 2})

	// Original is untouched
	require.Equal(t, [3]byte{0, 0, 0}, pixel(img, 25, 20))

	c := LabelColor(0)
	require.Equal(t, [3]byte{c.R, c.G, c.B}, pixel(out, 25, 20))
	require.Equal(t, [3]byte{c.R, c.G, c.B}, pixel(out, 10, 35))
	// Inside and outside the box
	require.Equal(t, [3]byte{0, 0, 0}, pixel(out, 25, 35))
	require.Equal(t, [3]byte{0, 0, 0}, pixel(out, 60, 5))

	// With text. Just make sure it doesn't blow up near the top edge.
	boxes[0].Rect.Y = 0
	out = Draw(img, boxes, DefaultOptions())
	require.Equal(t, 64, out.Width)
}

func TestLabelColor(t *testing.T) {
	require.Equal(t, LabelColor(1), LabelColor(1+int32(len(palette))))
	require.Equal(t, LabelColor(3), LabelColor(-3))
}
