//go:build openvino

package nnload

import (
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/ovplugin/pkg/config"
	"github.com/cyclopcam/ovplugin/pkg/nnrt"
	"github.com/cyclopcam/ovplugin/pkg/openvino"
)

const OpenVINOPriority = 20

func init() {
	Register("openvino", OpenVINOPriority, func(log logs.Log, cfg *config.Config) (nnrt.Runtime, error) {
		return openvino.New(log, openvino.Options{
			CacheDir: cfg.CacheDir,
		})
	})
}
