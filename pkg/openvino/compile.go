package openvino

import (
	"fmt"
	"os"

	"github.com/cyclopcam/ovplugin/pkg/nn"
)

// compileStage is the step of ovshim_model_create that failed.
// The values match the ovshim_stage enum in ovshim.h.
type compileStage int

const (
	stageAlloc   compileStage = iota // Allocating the input buffer and tensor
	stageRead                        // Reading the model and building its preprocessing
	stageCompile                     // Compiling for the device and creating the infer request
)

// OpenVINO reports most failures as GENERAL_ERROR, so the status code can't tell a bad
// model file from a device that won't take it. The stage can.
func stageError(stage compileStage) error {
	if stage == stageRead {
		return nn.ErrModelLoad
	}
	return nn.ErrDevice
}

func checkModelFile(modelPath string) error {
	st, err := os.Stat(modelPath)
	if err != nil {
		return fmt.Errorf("%w: %w", nn.ErrModelLoad, err)
	}
	if st.IsDir() {
		return fmt.Errorf("%w: '%v' is a directory", nn.ErrModelLoad, modelPath)
	}
	return nil
}
