// Package openvino is an nnrt.Runtime on top of the OpenVINO C API.
//
// It is only compiled with the 'openvino' build tag, because it needs the OpenVINO
// development files (found through pkg-config):
//
//	go build -tags openvino ./...
package openvino
