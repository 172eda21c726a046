package nn

import "fmt"

// Detection is an object that the neural network found in an image.
// The box is normalized to [0,1] relative to the input tensor resolution.
//
// The memory layout of this struct is part of the plugin ABI: five packed float32
// followed by an int32, 24 bytes in total. Do not reorder or add fields.
type Detection struct {
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	W     float32 `json:"w"`
	H     float32 `json:"h"`
	Conf  float32 `json:"conf"`
	Label int32   `json:"label"`
}

func (d Detection) String() string {
	return fmt.Sprintf("{label:%v conf:%.3f box:[%.4f %.4f %.4f %.4f]}", d.Label, d.Conf, d.X, d.Y, d.W, d.H)
}

// PixelRect converts the normalized box back into pixels of an image that is width x height
func (d Detection) PixelRect(width, height int) Rect {
	x1 := int(d.X*float32(width) + 0.5)
	y1 := int(d.Y*float32(height) + 0.5)
	x2 := int((d.X+d.W)*float32(width) + 0.5)
	y2 := int((d.Y+d.H)*float32(height) + 0.5)
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}

// DecodeDetections turns the raw output of a detection model into normalized detections.
//
// dets holds rows of (x1, y1, x2, y2, confidence), in the pixel space of the input tensor.
// labels holds one class id per row. numRows is taken from the shape of the dets tensor.
// width and height are the input tensor resolution.
//
// The result is appended to dst[:0], so the caller can recycle storage between runs.
// Rows keep their original order. Only rows with confidence above SmallConfidenceThreshold survive.
func DecodeDetections(dets []float32, labels []int64, numRows, width, height int, dst []Detection) []Detection {
	dst = dst[:0]
	// Trust the tensor shapes, but never read past the end of either buffer
	numRows = min(numRows, len(dets)/DetsRowSize, len(labels))
	fw := float32(width)
	fh := float32(height)
	for i := 0; i < numRows; i++ {
		row := dets[i*DetsRowSize : (i+1)*DetsRowSize]
		conf := row[4]
		if conf > SmallConfidenceThreshold {
			dst = append(dst, DecodeBox(row[0], row[1], row[2], row[3], fw, fh, conf, int32(labels[i])))
		}
	}
	return dst
}

// DecodeBox converts box corners (x1,y1) (x2,y2), in pixels, into a normalized Detection
func DecodeBox(x1, y1, x2, y2, width, height, conf float32, label int32) Detection {
	return Detection{
		X:     x1 / width,
		Y:     y1 / height,
		W:     (x2 - x1) / width,
		H:     (y2 - y1) / height,
		Conf:  conf,
		Label: label,
	}
}

// FilterByConfidence returns the detections with confidence >= minConfidence.
// The decoder never applies a caller threshold, so this is for callers.
func FilterByConfidence(dets []Detection, minConfidence float32) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Conf >= minConfidence {
			out = append(out, d)
		}
	}
	return out
}
