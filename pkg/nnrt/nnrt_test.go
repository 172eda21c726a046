package nnrt

import (
	"testing"

	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/stretchr/testify/require"
)

func TestInputSpec(t *testing.T) {
	require.Equal(t, 416*256*3, InputSpec{Width: 416, Height: 256}.NumBytes())
}

func TestFakeRuntime(t *testing.T) {
	f := NewFake("CPU", "GPU")
	names, err := f.Devices()
	require.NoError(t, err)
	require.Equal(t, []string{"CPU", "GPU"}, names)

	_, err = f.DeviceFullName("NPU")
	require.ErrorIs(t, err, nn.ErrDevice)
	_, err = f.Compile("m.onnx", "NPU", InputSpec{Width: 2, Height: 2})
	require.ErrorIs(t, err, nn.ErrDevice)

	m, err := f.Compile("m.onnx", "GPU", InputSpec{Width: 2, Height: 2})
	require.NoError(t, err)
	require.Equal(t, 1, f.OpenModels())

	_, err = m.Infer(make([]byte, 11))
	require.ErrorIs(t, err, nn.ErrInputSize)
	out, err := m.Infer(make([]byte, 12))
	require.NoError(t, err)
	require.Equal(t, 0, out.NumDetections)

	m.Close()
	require.Equal(t, 0, f.OpenModels())
	_, err = m.Infer(make([]byte, 12))
	require.ErrorIs(t, err, nn.ErrNotInitialized)

	f.Close()
	require.True(t, f.IsClosed())
}

func TestMakeRawOutput(t *testing.T) {
	out := MakeRawOutput([6]float32{1, 2, 3, 4, 0.5, 7})
	require.Equal(t, 1, out.NumDetections)
	require.Equal(t, []float32{1, 2, 3, 4, 0.5}, out.Dets)
	require.Equal(t, []int64{7}, out.Labels)
}
