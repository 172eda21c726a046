package nnrt

import (
	"fmt"
	"os"
	"sync"

	"github.com/cyclopcam/ovplugin/pkg/nn"
)

// FakeDevice describes one device of a Fake runtime
type FakeDevice struct {
	Name       string
	FullName   string
	Properties []Property
}

// Fake is an in-memory Runtime for tests. It needs no hardware and no native libraries.
// Model paths don't need to exist on disk unless CheckModelFiles is set.
type Fake struct {
	DevicesList     []FakeDevice
	DevicesErr      error
	CompileErr      error // If not nil, returned from every Compile
	CheckModelFiles bool  // If true, Compile fails with nn.ErrModelLoad when the model file is missing

	// If not nil, called at the start of every Compile
	BeforeCompile func(modelPath, device string)

	// Output returns the raw tensors for an inference run. If nil, the run produces zero detections.
	Output func(pixels []byte) (*RawOutput, error)

	mu       sync.Mutex
	compiled []*FakeModel
	closed   bool
}

// FakeModel is the CompiledModel produced by Fake
type FakeModel struct {
	runtime   *Fake
	Path      string
	Device    string
	Input     InputSpec
	NumInfers int
	Closed    bool
}

// NewFake creates a Fake runtime with the given device names. Each device has a full
// name of "Fake <name>" and a couple of properties.
func NewFake(devices ...string) *Fake {
	f := &Fake{}
	for _, d := range devices {
		f.DevicesList = append(f.DevicesList, FakeDevice{
			Name:     d,
			FullName: "Fake " + d,
			Properties: []Property{
				{Name: "FULL_DEVICE_NAME", Value: "Fake " + d, HasValue: true},
				{Name: "PERFORMANCE_HINT", Mutable: true, Value: "LATENCY", HasValue: true},
			},
		})
	}
	return f
}

func (f *Fake) Name() string {
	return "fake"
}

func (f *Fake) Devices() ([]string, error) {
	if f.DevicesErr != nil {
		return nil, f.DevicesErr
	}
	names := make([]string, len(f.DevicesList))
	for i, d := range f.DevicesList {
		names[i] = d.Name
	}
	return names, nil
}

func (f *Fake) device(name string) (*FakeDevice, error) {
	for i := range f.DevicesList {
		if f.DevicesList[i].Name == name {
			return &f.DevicesList[i], nil
		}
	}
	return nil, fmt.Errorf("%w: unknown device '%v'", nn.ErrDevice, name)
}

func (f *Fake) DeviceFullName(device string) (string, error) {
	d, err := f.device(device)
	if err != nil {
		return "", err
	}
	return d.FullName, nil
}

func (f *Fake) DeviceProperties(device string) ([]Property, error) {
	d, err := f.device(device)
	if err != nil {
		return nil, err
	}
	return d.Properties, nil
}

func (f *Fake) Compile(modelPath, device string, input InputSpec) (CompiledModel, error) {
	if f.BeforeCompile != nil {
		f.BeforeCompile(modelPath, device)
	}
	if f.CompileErr != nil {
		return nil, f.CompileErr
	}
	if f.CheckModelFiles {
		if _, err := os.Stat(modelPath); err != nil {
			return nil, fmt.Errorf("%w: %w", nn.ErrModelLoad, err)
		}
	}
	if _, err := f.device(device); err != nil {
		return nil, err
	}
	m := &FakeModel{
		runtime: f,
		Path:    modelPath,
		Device:  device,
		Input:   input,
	}
	f.mu.Lock()
	f.compiled = append(f.compiled, m)
	f.mu.Unlock()
	return m, nil
}

func (f *Fake) Close() {
	f.closed = true
}

// Returns true if Close() has been called
func (f *Fake) IsClosed() bool {
	return f.closed
}

// All models that have been compiled, in order
func (f *Fake) Compiled() []*FakeModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeModel(nil), f.compiled...)
}

// Number of compiled models that have not been closed
func (f *Fake) OpenModels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.compiled {
		if !m.Closed {
			n++
		}
	}
	return n
}

func (m *FakeModel) Infer(pixels []byte) (*RawOutput, error) {
	if m.Closed {
		return nil, fmt.Errorf("%w: model is closed", nn.ErrNotInitialized)
	}
	if len(pixels) != m.Input.NumBytes() {
		return nil, fmt.Errorf("%w: expected %v bytes, got %v", nn.ErrInputSize, m.Input.NumBytes(), len(pixels))
	}
	m.NumInfers++
	if m.runtime.Output == nil {
		return &RawOutput{}, nil
	}
	return m.runtime.Output(pixels)
}

func (m *FakeModel) Close() {
	m.runtime.mu.Lock()
	m.Closed = true
	m.runtime.mu.Unlock()
}

// MakeRawOutput builds a RawOutput from rows of (x1, y1, x2, y2, confidence, label)
func MakeRawOutput(rows ...[6]float32) *RawOutput {
	out := &RawOutput{
		NumDetections: len(rows),
		Dets:          make([]float32, 0, len(rows)*nn.DetsRowSize),
		Labels:        make([]int64, 0, len(rows)),
	}
	for _, r := range rows {
		out.Dets = append(out.Dets, r[0], r[1], r[2], r[3], r[4])
		out.Labels = append(out.Labels, int64(r[5]))
	}
	return out
}
