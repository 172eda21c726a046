package main

// This is the plugin that host applications load. Build it with:
//
//	go build -buildmode=c-shared -o libovplugin.so ./cmd/ovplugin
//
// Add '-tags openvino' to include the OpenVINO runtime.
//
// The host is single threaded by contract. Pointers returned by GetDetections and the
// GetDevice* functions are owned by the plugin, and stay valid until the next call to
// InferDetector, FindDevices, SetupDetector or DisposeDetector.
// No function panics into the host. Failures are logged, and the message is available
// from GetLastError.

// #include <stdint.h>
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/ovplugin/pkg/cgogo"
	"github.com/cyclopcam/ovplugin/pkg/config"
	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/cyclopcam/ovplugin/pkg/nnload"
	"github.com/cyclopcam/ovplugin/pkg/plugin"
)

var (
	lock    sync.Mutex
	log     logs.Log
	manager *plugin.Manager
	initErr error

	lastError    cgogo.StringTable // 0 or 1 entries
	detections   cgogo.Buffer
	names        cgogo.StringTable
	fullNames    cgogo.StringTable
	descriptions cgogo.StringTable
)

// getManager creates the process-wide manager on first use. Caller must hold 'lock'.
func getManager() (*plugin.Manager, error) {
	if manager != nil || initErr != nil {
		return manager, initErr
	}
	var err error
	log, err = logs.NewLog()
	if err != nil {
		initErr = fmt.Errorf("Failed to create logger: %w", err)
		return nil, initErr
	}
	cfg, err := config.FromEnv()
	if err != nil {
		initErr = err
		return nil, initErr
	}
	rt, err := nnload.LoadRuntime(log, cfg)
	if err != nil {
		initErr = err
		return nil, initErr
	}
	manager = plugin.NewManager(log, rt, cfg.ExcludeDevices)
	return manager, nil
}

// Every exported function runs inside 'call'. 'f' runs with 'lock' held.
// A panic is converted into an error, so that it never unwinds into C.
func call(name string, f func(m *plugin.Manager) error) (err error) {
	lock.Lock()
	defer lock.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v: panic: %v", name, r)
		}
		setLastError(name, err)
	}()
	m, err := getManager()
	if err != nil {
		return err
	}
	return f(m)
}

func setLastError(name string, err error) {
	if err == nil {
		lastError.Free()
		return
	}
	if log != nil {
		log.Errorf("%v failed: %v", name, err)
	}
	lastError.Set([]string{err.Error()})
}

// Copy device strings into C memory, so that the host can hold on to them
func refreshDeviceStrings(m *plugin.Manager) {
	n := m.NumDevices()
	nameList := make([]string, 0, n)
	fullList := make([]string, 0, n)
	descList := make([]string, 0, n)
	for i := 0; i < n; i++ {
		d, err := m.Device(i)
		if err != nil {
			break
		}
		nameList = append(nameList, d.Name)
		fullList = append(fullList, d.FullName)
		descList = append(descList, d.Description)
	}
	names.Set(nameList)
	fullNames.Set(fullList)
	descriptions.Set(descList)
}

//export SetupDetector
func SetupDetector(deviceIndex, width, height C.int, modelPath *C.char) {
	call("SetupDetector", func(m *plugin.Manager) error {
		defer refreshDeviceStrings(m)
		if modelPath == nil {
			return fmt.Errorf("%w: modelPath is NULL", nn.ErrConfiguration)
		}
		return m.Setup(int(deviceIndex), int(width), int(height), C.GoString(modelPath))
	})
}

//export InferDetector
func InferDetector(imageBuffer *C.uint8_t) C.int {
	n := 0
	err := call("InferDetector", func(m *plugin.Manager) error {
		input, err := m.Input()
		if err != nil {
			return err
		}
		if imageBuffer == nil {
			return fmt.Errorf("%w: imageBuffer is NULL", nn.ErrConfiguration)
		}
		pixels := unsafe.Slice((*byte)(unsafe.Pointer(imageBuffer)), input.NumBytes())
		n, err = m.Infer(pixels)
		return err
	})
	if err != nil {
		return -1
	}
	return C.int(n)
}

//export GetDetections
func GetDetections() *C.uint8_t {
	var p unsafe.Pointer
	call("GetDetections", func(m *plugin.Manager) error {
		dets, err := m.Detections()
		if err != nil {
			return err
		}
		p = cgogo.Store(&detections, dets)
		return nil
	})
	return (*C.uint8_t)(p)
}

//export FindDevices
func FindDevices() C.int {
	n := 0
	err := call("FindDevices", func(m *plugin.Manager) error {
		defer refreshDeviceStrings(m)
		var err error
		n, err = m.FindDevices()
		return err
	})
	if err != nil {
		return -1
	}
	return C.int(n)
}

func deviceString(name string, table *cgogo.StringTable, i C.int) *C.char {
	var p unsafe.Pointer
	call(name, func(m *plugin.Manager) error {
		if _, err := m.Device(int(i)); err != nil {
			return err
		}
		p = table.Get(int(i))
		return nil
	})
	return (*C.char)(p)
}

//export GetDeviceName
func GetDeviceName(i C.int) *C.char {
	return deviceString("GetDeviceName", &names, i)
}

//export GetDeviceFullName
func GetDeviceFullName(i C.int) *C.char {
	return deviceString("GetDeviceFullName", &fullNames, i)
}

//export GetDeviceDescription
func GetDeviceDescription(i C.int) *C.char {
	return deviceString("GetDeviceDescription", &descriptions, i)
}

//export DisposeDetector
func DisposeDetector() {
	call("DisposeDetector", func(m *plugin.Manager) error {
		m.Dispose()
		detections.Free()
		refreshDeviceStrings(m)
		return nil
	})
}

// GetLastError returns the error message of the most recent call, or NULL if it succeeded.
// The string is valid until the next call into the plugin.
//
//export GetLastError
func GetLastError() *C.char {
	lock.Lock()
	defer lock.Unlock()
	return (*C.char)(lastError.Get(0))
}

func main() {}
