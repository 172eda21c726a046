package nnrt

// Package nnrt is the narrow interface between the plugin and a neural network
// inference runtime (eg OpenVINO, ONNX Runtime). Concrete runtimes live in their own
// packages, and are selected by the nnload package.

// Name of the runtime meta-property which lists all of a device's properties.
// It is never reported as a property itself.
const SupportedPropertiesKey = "SUPPORTED_PROPERTIES"

// Property is one configuration property that a runtime reports for a device
type Property struct {
	Name     string
	Mutable  bool
	Value    string
	HasValue bool // False if the runtime returned no value at all (as opposed to an empty string)
}

// InputSpec describes the input tensor that the caller will feed the model.
// The tensor is always [1, Height, Width, 3] uint8, NHWC.
type InputSpec struct {
	Width  int
	Height int
}

// Size of one input image, in bytes
func (s InputSpec) NumBytes() int {
	return s.Width * s.Height * 3
}

// RawOutput holds the two output tensors of a detection model
type RawOutput struct {
	NumDetections int       // N, from the shape [1, N, 5] of the dets tensor
	Dets          []float32 // N rows of x1, y1, x2, y2, confidence
	Labels        []int64   // N class ids
}

// Runtime is an inference runtime, capable of enumerating devices and compiling models for them
type Runtime interface {
	// Name of the runtime, eg "openvino"
	Name() string

	// Device identifiers, in the order that the runtime reports them (eg "CPU", "GPU.0", "GNA")
	Devices() ([]string, error)

	// Human readable name of the device
	DeviceFullName(device string) (string, error)

	// All configuration properties of the device, excluding SUPPORTED_PROPERTIES
	DeviceProperties(device string) ([]Property, error)

	// Load the model at modelPath, attach preprocessing for 'input', and compile it for 'device'
	Compile(modelPath, device string, input InputSpec) (CompiledModel, error)

	// Release the runtime. Compiled models must be closed first.
	Close()
}

// CompiledModel is a model that has been compiled for one device and one input resolution
type CompiledModel interface {
	// Run one synchronous inference. len(pixels) must equal InputSpec.NumBytes().
	// pixels is only referenced for the duration of the call.
	Infer(pixels []byte) (*RawOutput, error)

	// Release the model (you MUST call this, because it's usually a C++ object underneath)
	Close()
}
