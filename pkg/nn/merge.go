package nn

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
)

// MergeOverlapping suppresses detections of the same label that overlap another
// detection of that label with an IoU of at least minIoU. The higher confidence box wins.
// width and height are the pixel dimensions used to build the spatial index.
// The returned slice preserves the input order of the survivors.
//
// The detection models we ship already run NMS inside the graph, so the plugin
// never calls this. It's for tools that lower the threshold and want tidy output.
func MergeOverlapping(input []Detection, width, height int, minIoU float32) []Detection {
	if len(input) < 2 {
		return append([]Detection(nil), input...)
	}

	// Create spatial index to avoid O(N^2) comparisons
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(input))
	for _, d := range input {
		r := d.PixelRect(width, height)
		fb.Add(int32(r.X), int32(r.Y), int32(r.X2()), int32(r.Y2()))
	}
	fb.Finish()

	// Visit the strongest boxes first, so that they get to suppress their weaker neighbours
	order := make([]int, len(input))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return input[order[a]].Conf > input[order[b]].Conf
	})

	deleted := make([]bool, len(input))
	for _, i := range order {
		if deleted[i] {
			continue
		}
		in := input[i]
		r := in.PixelRect(width, height)
		for _, j := range fb.Search(int32(r.X), int32(r.Y), int32(r.X2()), int32(r.Y2())) {
			if i == j || deleted[j] {
				continue
			}
			if input[j].Label != in.Label {
				continue
			}
			if input[j].Conf > in.Conf {
				continue
			}
			if in.IOU(input[j]) >= minIoU {
				deleted[j] = true
			}
		}
	}

	retain := make([]Detection, 0, len(input))
	for i, d := range input {
		if !deleted[i] {
			retain = append(retain, d)
		}
	}
	return retain
}
