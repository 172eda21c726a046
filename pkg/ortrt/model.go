package ortrt

import (
	"fmt"
	"image"

	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/cyclopcam/ovplugin/pkg/nnrt"
	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
)

// Output tensor names of detection models exported by mmdetection/OpenVINO tooling
const (
	detsOutputName   = "dets"
	labelsOutputName = "labels"
)

type tensorInfo struct {
	name string
	dims []int64
}

// modelLayout is what we need to know about the model's input and output tensors
type modelLayout struct {
	inputName  string
	detsName   string
	labelsName string
	width      int // Spatial size of the model's input tensor
	height     int
}

func toTensorInfo(list []ort.InputOutputInfo) []tensorInfo {
	r := make([]tensorInfo, len(list))
	for i, t := range list {
		r[i] = tensorInfo{name: t.Name, dims: t.Dimensions}
	}
	return r
}

func parseModelIO(inputs, outputs []ort.InputOutputInfo, input nnrt.InputSpec) (*modelLayout, error) {
	return parseLayout(toTensorInfo(inputs), toTensorInfo(outputs), input)
}

// parseLayout validates the model's tensors. The model must take a single NCHW image,
// and produce a dets tensor and a labels tensor. Dynamic spatial dimensions take the
// caller's input size.
func parseLayout(inputs, outputs []tensorInfo, input nnrt.InputSpec) (*modelLayout, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%w: model has %v inputs, expected 1", nn.ErrModelLoad, len(inputs))
	}
	in := inputs[0]
	if len(in.dims) != 4 {
		return nil, fmt.Errorf("%w: model input '%v' has %v dimensions, expected 4 (NCHW)", nn.ErrModelLoad, in.name, len(in.dims))
	}
	if in.dims[1] > 0 && in.dims[1] != nn.InputChannels {
		return nil, fmt.Errorf("%w: model input '%v' has %v channels, expected %v", nn.ErrModelLoad, in.name, in.dims[1], nn.InputChannels)
	}
	layout := &modelLayout{
		inputName: in.name,
		width:     input.Width,
		height:    input.Height,
	}
	if in.dims[2] > 0 {
		layout.height = int(in.dims[2])
	}
	if in.dims[3] > 0 {
		layout.width = int(in.dims[3])
	}

	if len(outputs) < 2 {
		return nil, fmt.Errorf("%w: model has %v outputs, expected dets and labels", nn.ErrModelLoad, len(outputs))
	}
	dets, labels := -1, -1
	for i, out := range outputs {
		switch out.name {
		case detsOutputName:
			dets = i
		case labelsOutputName:
			labels = i
		}
	}
	// An output that isn't named for its role takes the first index that's left over
	if dets == -1 {
		dets = firstOtherIndex(len(outputs), labels)
	}
	if labels == -1 {
		labels = firstOtherIndex(len(outputs), dets)
	}
	layout.detsName = outputs[dets].name
	layout.labelsName = outputs[labels].name
	return layout, nil
}

func firstOtherIndex(n, taken int) int {
	for i := 0; i < n; i++ {
		if i != taken {
			return i
		}
	}
	return -1
}

type model struct {
	session *ort.DynamicAdvancedSession
	input   nnrt.InputSpec
	layout  *modelLayout
	tensor  []float32 // NCHW input, reused between runs
	dets    []float32
	labels  []int64
}

func (m *model) Infer(pixels []byte) (*nnrt.RawOutput, error) {
	if m.session == nil {
		return nil, fmt.Errorf("%w: model is closed", nn.ErrNotInitialized)
	}
	if len(pixels) != m.input.NumBytes() {
		return nil, fmt.Errorf("%w: expected %v bytes, got %v", nn.ErrInputSize, m.input.NumBytes(), len(pixels))
	}
	m.prepareInput(pixels)

	inTensor, err := ort.NewTensor(ort.NewShape(1, nn.InputChannels, int64(m.layout.height), int64(m.layout.width)), m.tensor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", nn.ErrDevice, err)
	}
	defer inTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := m.session.Run([]ort.Value{inTensor}, outputs); err != nil {
		return nil, fmt.Errorf("%w: ONNX Runtime inference failed: %w", nn.ErrDevice, err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	dets, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: '%v' is not float32", errUnexpectedOutput, m.layout.detsName)
	}
	shape := dets.GetShape()
	if len(shape) != 3 || shape[2] != nn.DetsRowSize {
		return nil, fmt.Errorf("%w: '%v' has shape %v, expected [1, N, %v]", errUnexpectedOutput, m.layout.detsName, shape, nn.DetsRowSize)
	}
	numDets := int(shape[1])
	m.dets = append(m.dets[:0], dets.GetData()...)

	m.labels = m.labels[:0]
	switch labels := outputs[1].(type) {
	case *ort.Tensor[int64]:
		m.labels = append(m.labels, labels.GetData()...)
	case *ort.Tensor[int32]:
		for _, v := range labels.GetData() {
			m.labels = append(m.labels, int64(v))
		}
	default:
		return nil, fmt.Errorf("%w: '%v' is not an integer tensor", errUnexpectedOutput, m.layout.labelsName)
	}

	scaleBoxes(m.dets, numDets, float32(m.input.Width)/float32(m.layout.width), float32(m.input.Height)/float32(m.layout.height))

	return &nnrt.RawOutput{
		NumDetections: numDets,
		Dets:          m.dets,
		Labels:        m.labels,
	}, nil
}

func (m *model) Close() {
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
}

// prepareInput resizes the NHWC image to the model size if necessary, and packs it into the NCHW tensor
func (m *model) prepareInput(pixels []byte) {
	w, h := m.input.Width, m.input.Height
	if w == m.layout.width && h == m.layout.height {
		packNCHW(m.tensor, pixels, w, h, w*nn.InputChannels, nn.InputChannels)
		return
	}
	src := rgbToNRGBA(pixels, w, h)
	resized := imaging.Resize(src, m.layout.width, m.layout.height, imaging.Linear)
	packNCHW(m.tensor, resized.Pix, m.layout.width, m.layout.height, resized.Stride, 4)
}

// Wrap an RGB image as NRGBA, which is what the imaging package works with
func rgbToNRGBA(pixels []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		src := pixels[y*width*3 : (y+1)*width*3]
		dst := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 255
		}
	}
	return img
}

// packNCHW converts interleaved uint8 pixels into planar float32 in [0,1].
// Only the first 3 channels of each pixel are used.
func packNCHW(dst []float32, src []byte, width, height, stride, bytesPerPixel int) {
	plane := width * height
	for y := 0; y < height; y++ {
		row := src[y*stride:]
		out := y * width
		for x := 0; x < width; x++ {
			p := row[x*bytesPerPixel:]
			dst[out+x] = float32(p[0]) / 255
			dst[plane+out+x] = float32(p[1]) / 255
			dst[2*plane+out+x] = float32(p[2]) / 255
		}
	}
}

// Map boxes from model input space back to the caller's image space
func scaleBoxes(dets []float32, numDets int, sx, sy float32) {
	if sx == 1 && sy == 1 {
		return
	}
	numDets = min(numDets, len(dets)/nn.DetsRowSize)
	for i := 0; i < numDets; i++ {
		row := dets[i*nn.DetsRowSize:]
		row[0] *= sx
		row[1] *= sy
		row[2] *= sx
		row[3] *= sy
	}
}
