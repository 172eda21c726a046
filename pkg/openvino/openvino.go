//go:build openvino

package openvino

// #cgo pkg-config: openvino
// #cgo LDFLAGS: -lopenvino_c
// #include <stdlib.h>
// #include "ovshim.h"
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/cyclopcam/ovplugin/pkg/nnrt"
)

type Options struct {
	CacheDir string // Compiled model cache. Empty = disabled
}

// Runtime is an nnrt.Runtime backed by an OpenVINO core
type Runtime struct {
	log     logs.Log
	options Options

	mu   sync.Mutex
	core *C.ov_core_t
}

// New creates an OpenVINO core
func New(log logs.Log, options Options) (*Runtime, error) {
	r := &Runtime{
		log:     log,
		options: options,
	}
	if err := statusToErr(C.ov_core_create(&r.core)); err != nil {
		return nil, fmt.Errorf("%w: Failed to create OpenVINO core: %w", nn.ErrDevice, err)
	}
	log.Infof("Created OpenVINO core")
	return r, nil
}

func (r *Runtime) Name() string {
	return "openvino"
}

func (r *Runtime) Devices() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.core == nil {
		return nil, nn.ErrNotInitialized
	}
	var list C.ov_available_devices_t
	if err := statusToErr(C.ov_core_get_available_devices(r.core, &list)); err != nil {
		return nil, fmt.Errorf("%w: %w", nn.ErrDevice, err)
	}
	defer C.ov_available_devices_free(&list)
	cnames := unsafe.Slice(list.devices, int(list.size))
	names := make([]string, len(cnames))
	for i, c := range cnames {
		names[i] = C.GoString(c)
	}
	return names, nil
}

// Returns the property value. ok is false if OpenVINO has no value for the property.
func (r *Runtime) getProperty(device, property string) (value string, ok bool, err error) {
	if r.core == nil {
		return "", false, nn.ErrNotInitialized
	}
	cDevice := C.CString(device)
	defer C.free(unsafe.Pointer(cDevice))
	cProp := C.CString(property)
	defer C.free(unsafe.Pointer(cProp))
	var cValue *C.char
	if err := statusToErr(C.ov_core_get_property(r.core, cDevice, cProp, &cValue)); err != nil {
		return "", false, err
	}
	if cValue == nil {
		return "", false, nil
	}
	defer C.ov_free(cValue)
	return C.GoString(cValue), true, nil
}

func (r *Runtime) DeviceFullName(device string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, _, err := r.getProperty(device, "FULL_DEVICE_NAME")
	if err != nil {
		return "", fmt.Errorf("%w: %v: %w", nn.ErrDevice, device, err)
	}
	return v, nil
}

func (r *Runtime) DeviceProperties(device string) ([]nnrt.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	supported, _, err := r.getProperty(device, nnrt.SupportedPropertiesKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %w", nn.ErrDevice, device, err)
	}
	props := ParseSupportedProperties(supported)
	for i := range props {
		// Some properties can be listed but not read (eg they need a device context).
		// Those are reported as having no value.
		v, ok, err := r.getProperty(device, props[i].Name)
		if err == nil && ok {
			props[i].Value = v
			props[i].HasValue = true
		}
	}
	return props, nil
}

func (r *Runtime) Compile(modelPath, device string, input nnrt.InputSpec) (nnrt.CompiledModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.core == nil {
		return nil, nn.ErrNotInitialized
	}
	if err := checkModelFile(modelPath); err != nil {
		return nil, err
	}
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))
	cDevice := C.CString(device)
	defer C.free(unsafe.Pointer(cDevice))
	var cCache *C.char
	if r.options.CacheDir != "" {
		cCache = C.CString(r.options.CacheDir)
		defer C.free(unsafe.Pointer(cCache))
	}

	var m *C.ovshim_model
	var stage C.ovshim_stage
	status := C.ovshim_model_create(r.core, cPath, cDevice, cCache, C.int(input.Width), C.int(input.Height), &stage, &m)
	if err := statusToErr(status); err != nil {
		return nil, fmt.Errorf("%w: %v on %v: %w", stageError(compileStage(stage)), modelPath, device, err)
	}
	r.log.Infof("Compiled %v for OpenVINO %v", modelPath, device)
	return &model{
		m:     m,
		input: input,
	}, nil
}

func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.core != nil {
		C.ov_core_free(r.core)
		r.core = nil
	}
}

type model struct {
	m      *C.ovshim_model
	input  nnrt.InputSpec
	dets   []float32
	labels []int64
}

func (m *model) Infer(pixels []byte) (*nnrt.RawOutput, error) {
	if m.m == nil {
		return nil, fmt.Errorf("%w: model is closed", nn.ErrNotInitialized)
	}
	if len(pixels) != int(m.m.numPixelBytes) {
		return nil, fmt.Errorf("%w: expected %v bytes, got %v", nn.ErrInputSize, int(m.m.numPixelBytes), len(pixels))
	}
	// OpenVINO holds on to the input tensor between runs, so it must live in C memory
	copy(unsafe.Slice((*byte)(unsafe.Pointer(m.m.pixels)), len(pixels)), pixels)

	var out C.ovshim_output
	if err := statusToErr(C.ovshim_infer(m.m, &out)); err != nil {
		return nil, fmt.Errorf("%w: OpenVINO inference failed: %w", nn.ErrDevice, err)
	}
	defer C.ovshim_output_free(&out)

	m.dets = append(m.dets[:0], unsafe.Slice((*float32)(unsafe.Pointer(out.detsData)), int(out.detsSize))...)
	m.labels = m.labels[:0]
	if out.labelsAreInt32 != 0 {
		for _, v := range unsafe.Slice((*int32)(out.labelsData), int(out.labelsSize)) {
			m.labels = append(m.labels, int64(v))
		}
	} else {
		m.labels = append(m.labels, unsafe.Slice((*int64)(out.labelsData), int(out.labelsSize))...)
	}
	return &nnrt.RawOutput{
		NumDetections: int(out.numDetections),
		Dets:          m.dets,
		Labels:        m.labels,
	}, nil
}

func (m *model) Close() {
	if m.m != nil {
		C.ovshim_model_free(m.m)
		m.m = nil
	}
}
