// Package plugin manages the state behind the plugin ABI: the device list from the
// most recent enumeration, and at most one live detector session.
// The C ABI (cmd/ovplugin) holds a single Manager for the lifetime of the process,
// but nothing stops a Go program from creating several.
package plugin

import (
	"fmt"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/ovplugin/pkg/detector"
	"github.com/cyclopcam/ovplugin/pkg/devices"
	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/cyclopcam/ovplugin/pkg/nnrt"
	"github.com/cyclopcam/ovplugin/pkg/perfstats"
)

// Manager owns the device registry and the current detector session.
// All methods are safe to call from multiple goroutines, but calls are serialized,
// and Infer blocks for the duration of an inference run.
type Manager struct {
	log     logs.Log
	runtime nnrt.Runtime

	mu       sync.Mutex
	registry *devices.Registry
	session  *detector.Session
}

// NewManager creates a manager in its initial empty state.
// excludeDeviceTags is passed to devices.NewRegistry.
func NewManager(log logs.Log, rt nnrt.Runtime, excludeDeviceTags []string) *Manager {
	return &Manager{
		log:      log,
		runtime:  rt,
		registry: devices.NewRegistry(excludeDeviceTags),
	}
}

// The runtime that this manager uses
func (m *Manager) Runtime() nnrt.Runtime {
	return m.runtime
}

// FindDevices re-enumerates the runtime's devices, and returns the number found
func (m *Manager) FindDevices() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findDevicesLocked()
}

func (m *Manager) findDevicesLocked() (int, error) {
	n, err := m.registry.Enumerate(m.runtime)
	if err != nil {
		m.log.Errorf("Device enumeration failed: %v", err)
		return 0, err
	}
	m.log.Infof("Found %v %v devices", n, m.runtime.Name())
	return n, nil
}

// Setup builds a new detector session on the device at deviceIndex.
// If no devices have been enumerated yet, they are enumerated first.
// Any existing session is closed before the new one is built, so two sessions never coexist.
func (m *Manager) Setup(deviceIndex, width, height int, modelPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registry.Len() == 0 {
		if _, err := m.findDevicesLocked(); err != nil {
			return err
		}
	}
	dev, err := m.registry.Lookup(deviceIndex)
	if err != nil {
		return fmt.Errorf("%w: device index %v, but there are %v devices", nn.ErrConfiguration, deviceIndex, m.registry.Len())
	}

	m.closeSessionLocked()

	m.log.Infof("Compiling %v for %v (%v) at %v x %v", modelPath, dev.Name, dev.FullName, width, height)
	session, err := detector.New(m.runtime, width, height, modelPath, dev.Name)
	if err != nil {
		m.log.Errorf("Detector setup failed: %v", err)
		return err
	}
	m.session = session
	return nil
}

// Infer runs the current session on one image, and returns the number of detections.
// pixels must be width x height x 3 bytes, NHWC.
func (m *Manager) Infer(pixels []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return 0, fmt.Errorf("%w: call Setup before Infer", nn.ErrNotInitialized)
	}
	return m.session.Infer(pixels)
}

// Detections returns the result of the most recent Infer.
// The slice is only valid until the next call to Infer, Setup or Dispose.
func (m *Manager) Detections() ([]nn.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, fmt.Errorf("%w: call Setup before Detections", nn.ErrNotInitialized)
	}
	return m.session.Detections(), nil
}

// Input resolution of the current session
func (m *Manager) Input() (nnrt.InputSpec, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nnrt.InputSpec{}, nn.ErrNotInitialized
	}
	return m.session.Input(), nil
}

// Timing statistics of the current session
func (m *Manager) Stats() (perfstats.TimeAccumulator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return perfstats.TimeAccumulator{}, nn.ErrNotInitialized
	}
	return m.session.Stats(), nil
}

// Returns true if a session is live
func (m *Manager) HasSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Dispose releases the session and clears the device list, returning the manager to its initial state
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry.Clear()
	m.closeSessionLocked()
}

func (m *Manager) closeSessionLocked() {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
}

// Number of devices from the most recent enumeration
func (m *Manager) NumDevices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Len()
}

// Device returns a copy of the device at index i
func (m *Manager) Device(i int) (devices.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.registry.Lookup(i)
	if err != nil {
		return devices.Device{}, err
	}
	return *d, nil
}

func (m *Manager) DeviceName(i int) (string, error) {
	d, err := m.Device(i)
	return d.Name, err
}

func (m *Manager) DeviceFullName(i int) (string, error) {
	d, err := m.Device(i)
	return d.FullName, err
}

func (m *Manager) DeviceDescription(i int) (string, error) {
	d, err := m.Device(i)
	return d.Description, err
}
