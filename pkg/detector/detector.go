package detector

import (
	"errors"
	"fmt"

	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/cyclopcam/ovplugin/pkg/nnrt"
	"github.com/cyclopcam/ovplugin/pkg/perfstats"
)

// Session is a detection model compiled for one device and one fixed input resolution
type Session struct {
	model      nnrt.CompiledModel
	input      nnrt.InputSpec
	device     string
	modelPath  string
	detections []nn.Detection
	stats      perfstats.TimeAccumulator
}

// New loads the model at modelPath and compiles it for 'device'.
// Every subsequent call to Infer must supply a width x height x 3 NHWC uint8 image.
// If anything fails, no session is returned, and nothing is left allocated.
func New(rt nnrt.Runtime, width, height int, modelPath, device string) (*Session, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: input size %v x %v", nn.ErrConfiguration, width, height)
	}
	if modelPath == "" {
		return nil, fmt.Errorf("%w: no model path", nn.ErrModelLoad)
	}
	input := nnrt.InputSpec{
		Width:  width,
		Height: height,
	}
	model, err := rt.Compile(modelPath, device, input)
	if err != nil {
		if !errors.Is(err, nn.ErrModelLoad) && !errors.Is(err, nn.ErrDevice) {
			// Runtimes should classify their own errors, but if they don't, then it's
			// the compile step that failed, and that is a device problem.
			err = fmt.Errorf("%w: %w", nn.ErrDevice, err)
		}
		return nil, fmt.Errorf("Failed to compile '%v' for %v: %w", modelPath, device, err)
	}
	return &Session{
		model:     model,
		input:     input,
		device:    device,
		modelPath: modelPath,
	}, nil
}

// Close releases the compiled model. The session is unusable afterwards.
func (s *Session) Close() {
	if s.model != nil {
		s.model.Close()
		s.model = nil
	}
	s.detections = nil
}

// Infer runs the model on one image, and replaces the session's detection list.
// This blocks until the device has finished. Returns the number of detections.
func (s *Session) Infer(pixels []byte) (int, error) {
	if s.model == nil {
		return 0, fmt.Errorf("%w: session is closed", nn.ErrNotInitialized)
	}
	if len(pixels) != s.input.NumBytes() {
		return 0, fmt.Errorf("%w: expected %v x %v x 3 = %v bytes, but got %v", nn.ErrInputSize, s.input.Width, s.input.Height, s.input.NumBytes(), len(pixels))
	}
	var out *nnrt.RawOutput
	var err error
	s.stats.Measure(func() {
		out, err = s.model.Infer(pixels)
	})
	if err != nil {
		s.detections = s.detections[:0]
		return 0, err
	}
	s.detections = nn.DecodeDetections(out.Dets, out.Labels, out.NumDetections, s.input.Width, s.input.Height, s.detections)
	return len(s.detections), nil
}

// Detections returns the detections of the most recent Infer.
// The slice is owned by the session, and is overwritten by the next Infer.
func (s *Session) Detections() []nn.Detection {
	return s.detections
}

// Input resolution of the session
func (s *Session) Input() nnrt.InputSpec {
	return s.input
}

// Device that the model was compiled for
func (s *Session) Device() string {
	return s.device
}

func (s *Session) ModelPath() string {
	return s.modelPath
}

// Timing of Infer calls
func (s *Session) Stats() perfstats.TimeAccumulator {
	return s.stats
}
