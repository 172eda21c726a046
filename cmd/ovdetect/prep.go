package main

import (
	"fmt"

	"github.com/akamensky/argparse"
	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/ovplugin/pkg/imgprep"
)

type prepArgs struct {
	input  *string
	output *string
	width  *int
	height *int
}

func addPrepArgs(cmd *argparse.Command) *prepArgs {
	return &prepArgs{
		input:  cmd.String("i", "input", &argparse.Options{Help: "Input image", Required: true}),
		output: cmd.String("o", "output", &argparse.Options{Help: "Output jpeg. Default is <input>_prep.jpg"}),
		width:  cmd.Int("W", "width", &argparse.Options{Help: "Target width", Default: defaultWidth}),
		height: cmd.Int("H", "height", &argparse.Options{Help: "Target height", Default: defaultHeight}),
	}
}

func runPrep(log logs.Log, args *prepArgs) error {
	src, err := cimg.ReadFile(*args.input)
	if err != nil {
		return fmt.Errorf("Failed to read %v: %w", *args.input, err)
	}
	out := *args.output
	if out == "" {
		out = imgprep.PrepFilename(*args.input)
	}
	dst, xform := imgprep.LetterboxNew(src, *args.width, *args.height)
	if err := dst.WriteJPEG(out, cimg.MakeCompressParams(cimg.Sampling444, 95, 0), 0644); err != nil {
		return err
	}
	log.Infof("Wrote %v (%vx%v, content %vx%v, scale %.3f)", out, dst.Width, dst.Height, xform.ScaledWidth, xform.ScaledHeight, xform.Scale)
	return nil
}
