package main

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"unsafe"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/cyclopcam/ovplugin/pkg/nnrt"
	"github.com/cyclopcam/ovplugin/pkg/plugin"
	"github.com/stretchr/testify/require"
)

// Install a manager backed by the fake runtime, so that nothing tries to load native libraries
func useFakeManager(t *testing.T, devices ...string) *nnrt.Fake {
	rt := nnrt.NewFake(devices...)
	log = logs.NewTestingLog(t)
	manager = plugin.NewManager(log, rt, nil)
	initErr = nil
	t.Cleanup(func() {
		manager.Dispose()
		manager = nil
		detections.Free()
		lastError.Free()
		names.Free()
		fullNames.Free()
		descriptions.Free()
	})
	return rt
}

func TestCallRecordsLastError(t *testing.T) {
	useFakeManager(t, "CPU")

	err := call("Test", func(m *plugin.Manager) error { return errors.New("boom") })
	require.Error(t, err)
	require.Equal(t, 1, lastError.Len())
	require.NotNil(t, lastError.Get(0))

	// Success clears the error
	require.NoError(t, call("Test", func(m *plugin.Manager) error { return nil }))
	require.Equal(t, 0, lastError.Len())
}

func TestCallRecoversPanic(t *testing.T) {
	useFakeManager(t, "CPU")
	err := call("Test", func(m *plugin.Manager) error {
		var x []int
		_ = x[5]
		return nil
	})
	require.ErrorContains(t, err, "panic")
	require.Equal(t, 1, lastError.Len())
}

func TestDeviceStrings(t *testing.T) {
	useFakeManager(t, "CPU", "GNA", "GPU")
	require.NoError(t, call("FindDevices", func(m *plugin.Manager) error {
		defer refreshDeviceStrings(m)
		_, err := m.FindDevices()
		return err
	}))
	require.Equal(t, 2, names.Len())
	require.Equal(t, 2, fullNames.Len())
	require.Equal(t, 2, descriptions.Len())

	require.NoError(t, call("DisposeDetector", func(m *plugin.Manager) error {
		m.Dispose()
		refreshDeviceStrings(m)
		return nil
	}))
	require.Equal(t, 0, names.Len())
}

func TestInitErrorSticks(t *testing.T) {
	useFakeManager(t)
	manager = nil
	initErr = nn.ErrConfiguration
	err := call("Test", func(m *plugin.Manager) error { return nil })
	require.ErrorIs(t, err, nn.ErrConfiguration)
	manager = plugin.NewManager(log, nnrt.NewFake(), nil)
	initErr = nil
}

// Test files can't import "C", so these borrow C pointer types from the exported functions

func paramPtr[T, R any](_ func(*T) R, p unsafe.Pointer) *T {
	return (*T)(p)
}

func resultPtr[A, T any](_ func(A) *T, p unsafe.Pointer) *T {
	return (*T)(p)
}

func cString(s string) unsafe.Pointer {
	b := append([]byte(s), 0)
	return unsafe.Pointer(&b[0])
}

func goString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	b := []byte{}
	for i := 0; ; i++ {
		c := *(*byte)(unsafe.Add(p, i))
		if c == 0 {
			break
		}
		b = append(b, c)
	}
	return string(b)
}

func lastErrorString() string {
	return goString(unsafe.Pointer(GetLastError()))
}

// Setup device 0 for 100 x 100 images
func setupDetector(modelPath string) {
	SetupDetector(0, 100, 100, resultPtr(GetDeviceName, cString(modelPath)))
}

func inferDetector(img []byte) int {
	return int(InferDetector(paramPtr(InferDetector, unsafe.Pointer(&img[0]))))
}

func testImage(value byte) []byte {
	img := make([]byte, 100*100*3)
	img[0] = value
	return img
}

func useDetectingFake(t *testing.T, devices ...string) *nnrt.Fake {
	rt := useFakeManager(t, devices...)
	rt.Output = func(pixels []byte) (*nnrt.RawOutput, error) {
		return nnrt.MakeRawOutput(
			[6]float32{0, 0, 50, 100, float32(pixels[0]) / 255, 1},
			[6]float32{10, 10, 20, 20, 0.001, 2},
		), nil
	}
	return rt
}

func TestABIBeforeSetup(t *testing.T) {
	useDetectingFake(t, "CPU")

	require.Equal(t, -1, inferDetector(testImage(1)))
	require.Contains(t, lastErrorString(), nn.ErrNotInitialized.Error())

	require.Equal(t, -1, int(InferDetector(nil)))
	require.NotNil(t, GetLastError())

	require.Nil(t, GetDetections())
	require.Contains(t, lastErrorString(), nn.ErrNotInitialized.Error())

	// Dispose before Setup is harmless
	DisposeDetector()
	require.Nil(t, GetLastError())
}

func TestABISetupNullModelPath(t *testing.T) {
	rt := useDetectingFake(t, "CPU")
	SetupDetector(0, 100, 100, nil)
	require.Contains(t, lastErrorString(), "modelPath is NULL")
	require.False(t, manager.HasSession())
	require.Len(t, rt.Compiled(), 0)
}

func TestABIDetections(t *testing.T) {
	useDetectingFake(t, "CPU")
	setupDetector("model.onnx")
	require.Nil(t, GetLastError())

	n := inferDetector(testImage(255))
	require.Equal(t, 1, n)
	require.Nil(t, GetLastError())

	p := unsafe.Pointer(GetDetections())
	require.NotNil(t, p)
	dets := unsafe.Slice((*nn.Detection)(p), n)
	require.Equal(t, []nn.Detection{{X: 0, Y: 0, W: 0.5, H: 1, Conf: 1, Label: 1}}, dets)

	// The host reads 24 byte records of 5 floats and an int32
	raw := unsafe.Slice((*byte)(p), 24)
	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])) }
	require.Equal(t, []float32{0, 0, 0.5, 1, 1}, []float32{f(0), f(1), f(2), f(3), f(4)})
	require.Equal(t, int32(1), int32(binary.LittleEndian.Uint32(raw[20:])))

	// A NULL image fails, but leaves the session alive
	require.Equal(t, -1, int(InferDetector(nil)))
	require.Contains(t, lastErrorString(), "imageBuffer is NULL")
	require.True(t, manager.HasSession())
}

func TestABIResetEqualsFreshStart(t *testing.T) {
	rt := useDetectingFake(t, "CPU", "GPU")
	setupDetector("a.onnx")
	require.Nil(t, GetLastError())
	require.Equal(t, 1, inferDetector(testImage(200)))
	require.Equal(t, "GPU", goString(unsafe.Pointer(GetDeviceName(0))))

	DisposeDetector()
	require.Nil(t, GetLastError())
	require.Equal(t, -1, inferDetector(testImage(200)))
	require.Nil(t, GetDetections())
	require.Nil(t, GetDeviceName(0))
	require.Equal(t, 0, rt.OpenModels())

	// Same sequence again, same results
	setupDetector("b.onnx")
	require.Nil(t, GetLastError())
	require.NotNil(t, GetDetections())
	require.Equal(t, 1, inferDetector(testImage(200)))
	require.Equal(t, "GPU", goString(unsafe.Pointer(GetDeviceName(0))))

	compiled := rt.Compiled()
	require.Len(t, compiled, 2)
	require.True(t, compiled[0].Closed)
	require.False(t, compiled[1].Closed)
	require.Equal(t, "b.onnx", compiled[1].Path)
}

func TestABIDevices(t *testing.T) {
	useFakeManager(t, "CPU", "GNA", "GPU")
	require.Equal(t, 2, int(FindDevices()))
	require.Nil(t, GetLastError())

	require.Equal(t, "GPU", goString(unsafe.Pointer(GetDeviceName(0))))
	require.Equal(t, "CPU", goString(unsafe.Pointer(GetDeviceName(1))))
	require.Equal(t, "Fake CPU", goString(unsafe.Pointer(GetDeviceFullName(1))))
	require.Contains(t, goString(unsafe.Pointer(GetDeviceDescription(0))), "PERFORMANCE_HINT")

	require.Nil(t, GetDeviceName(-1))
	require.Contains(t, lastErrorString(), nn.ErrOutOfRange.Error())
	require.Nil(t, GetDeviceName(2))
	require.Nil(t, GetDeviceFullName(-1))
	require.Nil(t, GetDeviceFullName(2))
	require.Nil(t, GetDeviceDescription(-1))
	require.Nil(t, GetDeviceDescription(2))
	require.NotNil(t, GetLastError())

	// Success clears the last error
	require.NotNil(t, GetDeviceName(0))
	require.Nil(t, GetLastError())
}

func TestABIFindDevicesFailure(t *testing.T) {
	rt := useFakeManager(t, "CPU")
	rt.DevicesErr = nn.ErrDevice
	require.Equal(t, -1, int(FindDevices()))
	require.Contains(t, lastErrorString(), nn.ErrDevice.Error())
	require.Nil(t, GetDeviceName(0))
}
