package openvino

import (
	"strings"

	"github.com/cyclopcam/ovplugin/pkg/nnrt"
)

// ParseSupportedProperties splits OpenVINO's SUPPORTED_PROPERTIES string into properties.
// The C API returns the names separated by spaces. Names may carry a ":RW" or ":RO"
// suffix, and a name without a suffix is read-only.
// SUPPORTED_PROPERTIES itself is omitted.
func ParseSupportedProperties(s string) []nnrt.Property {
	props := []nnrt.Property{}
	for _, token := range strings.Fields(s) {
		name, access, _ := strings.Cut(token, ":")
		if name == "" || name == nnrt.SupportedPropertiesKey {
			continue
		}
		props = append(props, nnrt.Property{
			Name:    name,
			Mutable: strings.EqualFold(access, "RW"),
		})
	}
	return props
}
