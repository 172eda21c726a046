package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/ovplugin/pkg/hostbuf"
	"github.com/cyclopcam/ovplugin/pkg/imgprep"
	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/cyclopcam/ovplugin/pkg/overlay"
	"github.com/cyclopcam/ovplugin/pkg/plugin"
)

// Input size of the YOLOX models that we ship
const (
	defaultWidth  = 416
	defaultHeight = 256
)

type modelArgs struct {
	model  *string
	device *int
	width  *int
	height *int
}

func addModelArgs(cmd *argparse.Command) modelArgs {
	return modelArgs{
		model:  cmd.String("m", "model", &argparse.Options{Help: "Model file (.xml or .onnx)", Required: true}),
		device: cmd.Int("d", "device", &argparse.Options{Help: "Device index, from 'ovdetect devices'", Default: 0}),
		width:  cmd.Int("W", "width", &argparse.Options{Help: "Model input width. Default from the model's .json file, or 416", Default: 0}),
		height: cmd.Int("H", "height", &argparse.Options{Help: "Model input height. Default from the model's .json file, or 256", Default: 0}),
	}
}

type detectArgs struct {
	modelArgs
	input     *string
	threshold *float64
	nms       *float64
	output    *string
	classFile *string
	jsonFile  *string
}

func addDetectArgs(cmd *argparse.Command) *detectArgs {
	return &detectArgs{
		modelArgs: addModelArgs(cmd),
		input:     cmd.String("i", "input", &argparse.Options{Help: "Input image (jpeg or png)", Required: true}),
		threshold: cmd.Float("t", "threshold", &argparse.Options{Help: "Minimum confidence", Default: 0.5}),
		nms:       cmd.Float("", "nms", &argparse.Options{Help: "Merge boxes of the same class with IoU above this (0 = disabled)", Default: 0.0}),
		output:    cmd.String("o", "output", &argparse.Options{Help: "Write a jpeg with the detections drawn on it"}),
		classFile: cmd.String("c", "classes", &argparse.Options{Help: "Text file with one class name per line"}),
		jsonFile:  cmd.String("j", "json", &argparse.Options{Help: "Write detections to a JSON file ('-' for stdout)"}),
	}
}

// modelSetup holds everything we know about the model before we compile it
type modelSetup struct {
	path    string
	width   int
	height  int
	classes []string
}

// Resolve the input size and class names. Command line flags win over the model's .json sidecar.
func resolveModel(log logs.Log, args modelArgs, classFile string) (*modelSetup, error) {
	setup := &modelSetup{
		path:    *args.model,
		width:   defaultWidth,
		height:  defaultHeight,
		classes: nn.COCOClasses,
	}
	sidecar := strings.TrimSuffix(setup.path, filepath.Ext(setup.path)) + ".json"
	if cfg, err := nn.LoadModelConfig(sidecar); err == nil {
		log.Infof("Loaded model config %v", sidecar)
		if cfg.Width > 0 && cfg.Height > 0 {
			setup.width = cfg.Width
			setup.height = cfg.Height
		}
		if len(cfg.Classes) != 0 {
			setup.classes = cfg.Classes
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("Failed to load %v: %w", sidecar, err)
	}
	if *args.width > 0 {
		setup.width = *args.width
	}
	if *args.height > 0 {
		setup.height = *args.height
	}
	if classFile != "" {
		classes, err := nn.LoadClassFile(classFile)
		if err != nil {
			return nil, err
		}
		setup.classes = classes
	}
	return setup, nil
}

// DetectionResult is one object, as written to the JSON output
type DetectionResult struct {
	Class      string       `json:"class"`
	Label      int32        `json:"label"`
	Confidence float32      `json:"confidence"`
	Box        nn.Rect      `json:"box"`        // Pixels of the original image
	Normalized nn.Detection `json:"normalized"` // Relative to the letterboxed model input
}

type ImageResult struct {
	Image      string            `json:"image"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Device     string            `json:"device"`
	Detections []DetectionResult `json:"detections"`
}

func runDetect(log logs.Log, manager *plugin.Manager, args *detectArgs) error {
	setup, err := resolveModel(log, args.modelArgs, *args.classFile)
	if err != nil {
		return err
	}
	src, err := cimg.ReadFile(*args.input)
	if err != nil {
		return fmt.Errorf("Failed to read %v: %w", *args.input, err)
	}
	src = imgprep.ToRGB(src)

	if err := manager.Setup(*args.device, setup.width, setup.height, setup.path); err != nil {
		return err
	}
	device, _ := manager.DeviceName(*args.device)

	nnImage := hostbuf.NewImage(setup.width, setup.height)
	xform := imgprep.Letterbox(src, nnImage.Pixels, nnImage.Width, nnImage.Height, nnImage.Stride())

	if _, err := manager.Infer(nnImage.Pixels); err != nil {
		return err
	}
	dets, err := manager.Detections()
	if err != nil {
		return err
	}
	dets = nn.FilterByConfidence(dets, float32(*args.threshold))
	if *args.nms > 0 {
		dets = nn.MergeOverlapping(dets, setup.width, setup.height, float32(*args.nms))
	}

	result := ImageResult{
		Image:      *args.input,
		Width:      src.Width,
		Height:     src.Height,
		Device:     device,
		Detections: []DetectionResult{},
	}
	boxes := []overlay.Box{}
	for _, d := range dets {
		r := DetectionResult{
			Class:      nn.ClassName(setup.classes, d.Label),
			Label:      d.Label,
			Confidence: d.Conf,
			Box:        xform.ToOriginal(d.Clipped(), setup.width, setup.height),
			Normalized: d,
		}
		result.Detections = append(result.Detections, r)
		boxes = append(boxes, overlay.Box{Rect: r.Box, Class: r.Class, Conf: r.Confidence, Label: r.Label})
		fmt.Printf("%-14v %.3f  %v,%v %vx%v\n", r.Class, r.Confidence, r.Box.X, r.Box.Y, r.Box.Width, r.Box.Height)
	}

	if *args.jsonFile != "" {
		if err := writeJSON(*args.jsonFile, &result); err != nil {
			return err
		}
	}
	if *args.output != "" {
		drawn := overlay.Draw(src, boxes, overlay.DefaultOptions())
		if err := drawn.WriteJPEG(*args.output, cimg.MakeCompressParams(cimg.Sampling420, 90, 0), 0644); err != nil {
			return err
		}
		log.Infof("Wrote %v", *args.output)
	}
	return nil
}

func writeJSON(filename string, v any) error {
	out := os.Stdout
	if filename != "-" {
		f, err := os.Create(filename)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
