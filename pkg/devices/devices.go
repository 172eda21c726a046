package devices

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/cyclopcam/ovplugin/pkg/nnrt"
)

// Devices whose identifier contains this tag are never offered.
// GNA is Intel's integer-only low power neural accelerator, and it can't run our detection models.
const DefaultExcludeTag = "GNA"

// Rendered in a device description when the runtime returns no value for a property
const EmptyValueMarker = "EMPTY VALUE"

// Device is one compute device offered by the inference runtime
type Device struct {
	Name        string // Identifier used to compile a model, eg "GPU.0"
	FullName    string // Human readable, eg "Intel(R) UHD Graphics 620 (iGPU)"
	Description string // Multi-line dump of all device properties
}

// Registry holds the device list from the most recent enumeration
type Registry struct {
	ExcludeTags []string
	devices     []Device
}

// NewRegistry creates an empty registry that excludes devices containing any of excludeTags.
// If excludeTags is nil, DefaultExcludeTag is used.
func NewRegistry(excludeTags []string) *Registry {
	if excludeTags == nil {
		excludeTags = []string{DefaultExcludeTag}
	}
	return &Registry{
		ExcludeTags: excludeTags,
	}
}

func (r *Registry) isExcluded(name string) bool {
	for _, tag := range r.ExcludeTags {
		if tag != "" && strings.Contains(name, tag) {
			return true
		}
	}
	return false
}

// Enumerate replaces the device list with the devices currently offered by 'rt'.
// The list is in reverse order of the runtime's enumeration, so devices that the
// runtime lists last (eg a discrete GPU after the CPU) come first.
// On failure the registry is left empty.
func (r *Registry) Enumerate(rt nnrt.Runtime) (int, error) {
	r.devices = nil
	names, err := rt.Devices()
	if err != nil {
		return 0, fmt.Errorf("%w: enumerating devices: %w", nn.ErrDevice, err)
	}

	list := make([]Device, 0, len(names))
	for _, name := range names {
		if r.isExcluded(name) {
			continue
		}
		fullName, err := rt.DeviceFullName(name)
		if err != nil {
			return 0, fmt.Errorf("%w: full name of %v: %w", nn.ErrDevice, name, err)
		}
		props, err := rt.DeviceProperties(name)
		if err != nil {
			return 0, fmt.Errorf("%w: properties of %v: %w", nn.ErrDevice, name, err)
		}
		list = append(list, Device{
			Name:        name,
			FullName:    fullName,
			Description: Describe(name, props),
		})
	}

	slices.Reverse(list)
	r.devices = list
	return len(list), nil
}

// Describe produces the multi-line description of a device, eg
//
//	CPU
//		SUPPORTED_PROPERTIES:
//			Immutable: FULL_DEVICE_NAME : Intel(R) Core(TM) i7
//			Mutable: PERFORMANCE_HINT : LATENCY
func Describe(name string, props []nnrt.Property) string {
	b := strings.Builder{}
	b.WriteString(name + "\n")
	b.WriteString("\t" + nnrt.SupportedPropertiesKey + ": \n")
	for _, p := range props {
		if p.Name == nnrt.SupportedPropertiesKey {
			continue
		}
		mutability := "Immutable: "
		if p.Mutable {
			mutability = "Mutable: "
		}
		b.WriteString("\t\t" + mutability + p.Name + " : ")
		switch {
		case !p.HasValue:
			b.WriteString(EmptyValueMarker)
		case p.Value == "":
			b.WriteString(`""`)
		default:
			b.WriteString(p.Value)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// Number of devices in the list
func (r *Registry) Len() int {
	return len(r.devices)
}

// Returns the device at index i
func (r *Registry) Lookup(i int) (*Device, error) {
	if i < 0 || i >= len(r.devices) {
		return nil, fmt.Errorf("%w: device %v (have %v devices)", nn.ErrOutOfRange, i, len(r.devices))
	}
	return &r.devices[i], nil
}

// Returns a copy of the device list
func (r *Registry) Devices() []Device {
	return slices.Clone(r.devices)
}

// Clear empties the device list
func (r *Registry) Clear() {
	r.devices = nil
}
