package buildinfo

import (
	"os"
	"path/filepath"
)

// Multiarch is filled in by the Debian build system, with -ldflags "-X github.com/cyclopcam/ovplugin/pkg/buildinfo.Multiarch=..."
// It's the directory you see in /usr/lib/XXX, such as /usr/lib/x86_64-linux-gnu, or /usr/lib/aarch64-linux-gnu.
// Runtime libraries such as libonnxruntime.so are installed there.
// If the value of Multiarch is "unknown", then we ignore this path.
var Multiarch = "unknown"

// Directories where we look for runtime shared libraries, most specific first
func LibraryDirs() []string {
	dirs := []string{}
	if Multiarch != "unknown" && Multiarch != "" {
		dirs = append(dirs, filepath.Join("/usr/lib", Multiarch))
	}
	return append(dirs, "/usr/local/lib", "/usr/lib")
}

// FindLibrary returns the full path of the shared library 'name' (eg "libonnxruntime.so")
// in the first of LibraryDirs that has it, or an empty string if none do.
func FindLibrary(name string) string {
	return FindLibraryIn(LibraryDirs(), name)
}

func FindLibraryIn(dirs []string, name string) string {
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
