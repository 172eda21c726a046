package nnload

import (
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/ovplugin/pkg/config"
	"github.com/cyclopcam/ovplugin/pkg/nnrt"
	"github.com/cyclopcam/ovplugin/pkg/ortrt"
)

// ONNX Runtime is a fallback for machines without OpenVINO
const OnnxRuntimePriority = 10

func init() {
	Register("onnxruntime", OnnxRuntimePriority, func(log logs.Log, cfg *config.Config) (nnrt.Runtime, error) {
		return ortrt.New(log, ortrt.Options{
			LibraryPath: cfg.OrtLibraryPath,
			Threads:     cfg.Threads,
		})
	})
}
