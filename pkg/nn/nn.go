package nn

import (
	"bufio"
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// Package nn holds the detection records that cross the plugin boundary, and the
// decoder which turns raw model output tensors into those records.

// Rows with a confidence at or below this are noise, and never reach the caller.
// This is not the caller's detection threshold. Callers apply their own threshold
// on top of the decoded list.
const SmallConfidenceThreshold = 0.002

// Number of float32 values per row of the "dets" output tensor (x1, y1, x2, y2, confidence)
const DetsRowSize = 5

// Number of color channels in the input tensor. The layout is always NHWC uint8.
const InputChannels = 3

// ModelConfig is an optional JSON file that lives next to the model weights.
// The plugin itself doesn't need it, but our tools use it to pick an input
// resolution and to print class names.
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "yolox"
	Width        int      `json:"width"`        // eg 416
	Height       int      `json:"height"`       // eg 256
	Classes      []string `json:"classes"`      // eg ["person", "car", ...]
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	err = json.Unmarshal(b, config)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// Load a text file with class names on each line
func LoadClassFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	classes := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			classes = append(classes, line)
		}
	}
	return classes, scanner.Err()
}

// Returns the class name for a label, or a numeric placeholder if the label is not in 'classes'
func ClassName(classes []string, label int32) string {
	if label >= 0 && int(label) < len(classes) {
		return classes[label]
	}
	return "class" + strconv.Itoa(int(label))
}
