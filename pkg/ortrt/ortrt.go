package ortrt

// Package ortrt is an nnrt.Runtime on top of ONNX Runtime.
// ONNX Runtime has no notion of a "device" the way OpenVINO does, so we present each
// execution provider that the loaded onnxruntime library supports as a device.

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/ovplugin/pkg/buildinfo"
	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/cyclopcam/ovplugin/pkg/nnrt"
	ort "github.com/yalue/onnxruntime_go"
)

// Device identifiers, in the order that we report them
const (
	DeviceCPU         = "CPU"
	DeviceCUDA        = "CUDA"
	DeviceTensorRT    = "TensorRT"
	DeviceCoreML      = "CoreML"
	DeviceDirectML    = "DirectML"
	DeviceOpenVINOCPU = "OpenVINO_CPU"
	DeviceOpenVINOGPU = "OpenVINO_GPU"
)

var allDevices = []string{
	DeviceCPU,
	DeviceCUDA,
	DeviceTensorRT,
	DeviceCoreML,
	DeviceDirectML,
	DeviceOpenVINOCPU,
	DeviceOpenVINOGPU,
}

var fullNames = map[string]string{
	DeviceCPU:         "ONNX Runtime CPU",
	DeviceCUDA:        "ONNX Runtime CUDA",
	DeviceTensorRT:    "ONNX Runtime TensorRT",
	DeviceCoreML:      "ONNX Runtime CoreML",
	DeviceDirectML:    "ONNX Runtime DirectML",
	DeviceOpenVINOCPU: "ONNX Runtime OpenVINO (CPU)",
	DeviceOpenVINOGPU: "ONNX Runtime OpenVINO (GPU)",
}

// Name of the ONNX Runtime shared library that we search for, if no path is given
const LibraryName = "libonnxruntime.so"

// The ONNX Runtime environment is process-wide
var envLock sync.Mutex
var envRefCount int

type Options struct {
	LibraryPath string // Path to libonnxruntime.so. If empty, we search buildinfo.LibraryDirs, and then fall back to onnxruntime_go's default.
	Threads     int    // Intra-op threads. 0 = ONNX Runtime default
}

// Runtime is an nnrt.Runtime backed by ONNX Runtime
type Runtime struct {
	log     logs.Log
	options Options

	probeOnce sync.Once
	available []string
}

// New initializes the ONNX Runtime environment
func New(log logs.Log, options Options) (*Runtime, error) {
	envLock.Lock()
	defer envLock.Unlock()
	if !ort.IsInitialized() {
		if options.LibraryPath == "" {
			options.LibraryPath = buildinfo.FindLibrary(LibraryName)
		}
		if options.LibraryPath != "" {
			if _, err := os.Stat(options.LibraryPath); err != nil {
				return nil, fmt.Errorf("%w: onnxruntime library: %w", nn.ErrConfiguration, err)
			}
			ort.SetSharedLibraryPath(options.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: Failed to initialize ONNX Runtime: %w", nn.ErrDevice, err)
		}
		log.Infof("Initialized ONNX Runtime %v", ort.GetVersion())
	}
	envRefCount++
	return &Runtime{
		log:     log,
		options: options,
	}, nil
}

func (r *Runtime) Name() string {
	return "onnxruntime"
}

// Devices returns the execution providers that can be attached to a session.
// The CPU provider is always present.
func (r *Runtime) Devices() ([]string, error) {
	r.probeOnce.Do(func() {
		r.available = []string{DeviceCPU}
		for _, dev := range allDevices[1:] {
			if err := r.probe(dev); err != nil {
				r.log.Debugf("ONNX Runtime provider %v unavailable: %v", dev, err)
			} else {
				r.available = append(r.available, dev)
			}
		}
	})
	return append([]string(nil), r.available...), nil
}

func (r *Runtime) probe(device string) error {
	opt, err := ort.NewSessionOptions()
	if err != nil {
		return err
	}
	defer opt.Destroy()
	return appendProvider(opt, device)
}

// Attach the execution provider for 'device' to the session options
func appendProvider(opt *ort.SessionOptions, device string) error {
	switch device {
	case DeviceCPU:
		return nil
	case DeviceCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return err
		}
		defer cuda.Destroy()
		return opt.AppendExecutionProviderCUDA(cuda)
	case DeviceTensorRT:
		trt, err := ort.NewTensorRTProviderOptions()
		if err != nil {
			return err
		}
		defer trt.Destroy()
		return opt.AppendExecutionProviderTensorRT(trt)
	case DeviceCoreML:
		return opt.AppendExecutionProviderCoreML(0)
	case DeviceDirectML:
		return opt.AppendExecutionProviderDirectML(0)
	case DeviceOpenVINOCPU:
		return opt.AppendExecutionProviderOpenVINO(map[string]string{"device_type": "CPU"})
	case DeviceOpenVINOGPU:
		return opt.AppendExecutionProviderOpenVINO(map[string]string{"device_type": "GPU"})
	}
	return fmt.Errorf("%w: unknown device '%v'", nn.ErrDevice, device)
}

func knownDevice(device string) error {
	if _, ok := fullNames[device]; !ok {
		return fmt.Errorf("%w: unknown device '%v'", nn.ErrDevice, device)
	}
	return nil
}

func (r *Runtime) DeviceFullName(device string) (string, error) {
	if err := knownDevice(device); err != nil {
		return "", err
	}
	return fullNames[device], nil
}

func (r *Runtime) DeviceProperties(device string) ([]nnrt.Property, error) {
	if err := knownDevice(device); err != nil {
		return nil, err
	}
	threads := nnrt.Property{Name: "INFERENCE_NUM_THREADS", Mutable: true}
	if r.options.Threads != 0 {
		threads.Value = strconv.Itoa(r.options.Threads)
		threads.HasValue = true
	}
	return []nnrt.Property{
		{Name: "FULL_DEVICE_NAME", Value: fullNames[device], HasValue: true},
		{Name: "RUNTIME_VERSION", Value: ort.GetVersion(), HasValue: true},
		{Name: "EXECUTION_PROVIDER", Value: device, HasValue: true},
		threads,
	}, nil
}

func (r *Runtime) Compile(modelPath, device string, input nnrt.InputSpec) (nnrt.CompiledModel, error) {
	if err := knownDevice(device); err != nil {
		return nil, err
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %w", nn.ErrModelLoad, err)
	}
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", nn.ErrModelLoad, err)
	}
	layout, err := parseModelIO(inputs, outputs, input)
	if err != nil {
		return nil, err
	}

	opt, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", nn.ErrDevice, err)
	}
	defer opt.Destroy()
	if r.options.Threads > 0 {
		if err := opt.SetIntraOpNumThreads(r.options.Threads); err != nil {
			return nil, fmt.Errorf("%w: %w", nn.ErrConfiguration, err)
		}
	}
	if err := appendProvider(opt, device); err != nil {
		return nil, fmt.Errorf("%w: %v: %w", nn.ErrDevice, device, err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{layout.inputName}, []string{layout.detsName, layout.labelsName}, opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", nn.ErrDevice, err)
	}
	r.log.Infof("Compiled %v for ONNX Runtime %v. Model input %v x %v", modelPath, device, layout.width, layout.height)
	return &model{
		session: session,
		input:   input,
		layout:  layout,
		tensor:  make([]float32, 3*layout.width*layout.height),
	}, nil
}

func (r *Runtime) Close() {
	envLock.Lock()
	defer envLock.Unlock()
	if envRefCount == 0 {
		return
	}
	envRefCount--
	if envRefCount == 0 {
		if err := ort.DestroyEnvironment(); err != nil {
			r.log.Warnf("Failed to destroy ONNX Runtime environment: %v", err)
		}
	}
}

var errUnexpectedOutput = fmt.Errorf("%w: unexpected output tensor", nn.ErrDevice)
