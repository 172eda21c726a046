package ortrt

import (
	"testing"

	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/cyclopcam/ovplugin/pkg/nnrt"
	"github.com/stretchr/testify/require"
)

func TestParseLayout(t *testing.T) {
	input := nnrt.InputSpec{Width: 416, Height: 256}

	// Static input, outputs in unexpected order
	layout, err := parseLayout(
		[]tensorInfo{{name: "image", dims: []int64{1, 3, 320, 640}}},
		[]tensorInfo{{name: "labels", dims: []int64{1, -1}}, {name: "dets", dims: []int64{1, -1, 5}}},
		input)
	require.NoError(t, err)
	require.Equal(t, &modelLayout{inputName: "image", detsName: "dets", labelsName: "labels", width: 640, height: 320}, layout)

	// Dynamic input takes the caller's size. Unnamed outputs are taken in order.
	layout, err = parseLayout(
		[]tensorInfo{{name: "input", dims: []int64{1, 3, -1, -1}}},
		[]tensorInfo{{name: "boxes"}, {name: "classes"}},
		input)
	require.NoError(t, err)
	require.Equal(t, 416, layout.width)
	require.Equal(t, 256, layout.height)
	require.Equal(t, "boxes", layout.detsName)
	require.Equal(t, "classes", layout.labelsName)

	// One named output, the other is whatever is left
	for _, outputs := range [][]tensorInfo{
		{{name: "labels"}, {name: "boxes"}},
		{{name: "boxes"}, {name: "labels"}},
	} {
		layout, err = parseLayout([]tensorInfo{{name: "input", dims: []int64{1, 3, -1, -1}}}, outputs, input)
		require.NoError(t, err)
		require.Equal(t, "boxes", layout.detsName)
		require.Equal(t, "labels", layout.labelsName)
	}
	layout, err = parseLayout([]tensorInfo{{name: "input", dims: []int64{1, 3, -1, -1}}}, []tensorInfo{{name: "dets"}, {name: "scores"}}, input)
	require.NoError(t, err)
	require.Equal(t, "dets", layout.detsName)
	require.Equal(t, "scores", layout.labelsName)

	bad := [][2][]tensorInfo{
		{{}, {{name: "a"}, {name: "b"}}},
		{{{name: "in", dims: []int64{1, 3, 256}}}, {{name: "a"}, {name: "b"}}},
		{{{name: "in", dims: []int64{1, 1, 256, 416}}}, {{name: "a"}, {name: "b"}}},
		{{{name: "in", dims: []int64{1, 3, 256, 416}}}, {{name: "dets"}}},
	}
	for _, b := range bad {
		_, err := parseLayout(b[0], b[1], input)
		require.ErrorIs(t, err, nn.ErrModelLoad)
	}
}

func TestPackNCHW(t *testing.T) {
	// 2x1 RGB image
	src := []byte{255, 0, 51, 0, 255, 102}
	dst := make([]float32, 6)
	packNCHW(dst, src, 2, 1, 6, 3)
	require.Equal(t, []float32{1, 0, 0, 1, 0.2, 0.4}, dst)

	// Same image as NRGBA with a padded stride
	nrgba := []byte{255, 0, 51, 255, 0, 255, 102, 255, 9, 9}
	dst2 := make([]float32, 6)
	packNCHW(dst2, nrgba, 2, 1, 10, 4)
	require.Equal(t, dst, dst2)
}

func TestRGBToNRGBA(t *testing.T) {
	img := rgbToNRGBA([]byte{1, 2, 3, 4, 5, 6}, 1, 2)
	require.Equal(t, []byte{1, 2, 3, 255, 4, 5, 6, 255}, img.Pix)
}

func TestScaleBoxes(t *testing.T) {
	dets := []float32{10, 20, 30, 40, 0.9, 1, 2, 3, 4, 0.5}
	scaleBoxes(dets, 2, 2, 0.5)
	require.Equal(t, []float32{20, 10, 60, 20, 0.9, 2, 1, 6, 2, 0.5}, dets)

	// N larger than the tensor is clamped
	scaleBoxes(dets, 10, 1, 2)
	require.Equal(t, float32(20), dets[1])
}

func TestUnknownDevice(t *testing.T) {
	require.ErrorIs(t, knownDevice("GNA"), nn.ErrDevice)
	for _, d := range allDevices {
		require.NoError(t, knownDevice(d))
	}
}

func TestUnexpectedOutputIsDeviceError(t *testing.T) {
	require.ErrorIs(t, errUnexpectedOutput, nn.ErrDevice)
}
