//go:build openvino

package openvino

// #include "ovshim.h"
import "C"

import (
	"errors"
	"fmt"
)

// Returns nil if status is OK, otherwise an error with OpenVINO's description of the status
func statusToErr(status C.ov_status_e) error {
	if status == C.OK {
		return nil
	}
	msg := C.GoString(C.ov_get_error_info(status))
	if msg == "" {
		msg = fmt.Sprintf("OpenVINO status %v", int(status))
	}
	return errors.New(msg)
}
