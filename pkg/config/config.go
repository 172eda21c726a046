package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/cyclopcam/ovplugin/pkg/devices"
	"github.com/cyclopcam/ovplugin/pkg/nn"
)

// Environment variables that configure the plugin.
// The host application loads us as a shared library, so we have no command line to parse.
const (
	EnvBackend        = "OVPLUGIN_BACKEND"         // "openvino" or "onnxruntime". Empty = best available
	EnvOrtLibrary     = "OVPLUGIN_ORT_LIBRARY"     // Path to libonnxruntime.so
	EnvExcludeDevices = "OVPLUGIN_EXCLUDE_DEVICES" // Comma separated device tags to hide in addition to GNA, eg "NPU"
	EnvThreads        = "OVPLUGIN_THREADS"         // Number of inference threads. 0 = runtime default
	EnvCacheDir       = "OVPLUGIN_CACHE_DIR"       // Compiled model cache (OpenVINO only)
)

type Config struct {
	Backend        string
	OrtLibraryPath string
	ExcludeDevices []string
	Threads        int
	CacheDir       string
}

// Default returns the configuration that applies when no environment variables are set
func Default() *Config {
	return &Config{
		ExcludeDevices: []string{devices.DefaultExcludeTag},
	}
}

// FromEnv reads the configuration from environment variables
func FromEnv() (*Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup reads the configuration using 'lookup', which has the same semantics as os.LookupEnv
func FromLookup(lookup func(key string) (string, bool)) (*Config, error) {
	c := Default()
	if v, ok := lookup(EnvBackend); ok {
		c.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvOrtLibrary); ok {
		c.OrtLibraryPath = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvExcludeDevices); ok {
		c.AddExcludeDevices(strings.Split(v, ","))
	}
	if v, ok := lookup(EnvThreads); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: invalid %v '%v'", nn.ErrConfiguration, EnvThreads, v)
		}
		c.Threads = n
	}
	if v, ok := lookup(EnvCacheDir); ok {
		c.CacheDir = strings.TrimSpace(v)
	}
	return c, nil
}

// AddExcludeDevices adds tags to ExcludeDevices, skipping blanks and duplicates.
// DefaultExcludeTag always stays in the list.
func (c *Config) AddExcludeDevices(tags []string) {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" && !slices.Contains(c.ExcludeDevices, tag) {
			c.ExcludeDevices = append(c.ExcludeDevices, tag)
		}
	}
}
