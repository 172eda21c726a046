package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/akamensky/argparse"
	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/ovplugin/pkg/hostbuf"
	"github.com/cyclopcam/ovplugin/pkg/imgprep"
	"github.com/cyclopcam/ovplugin/pkg/perfstats"
	"github.com/cyclopcam/ovplugin/pkg/plugin"
)

type benchArgs struct {
	modelArgs
	input      *string
	iterations *int
	warmup     *int
}

func addBenchArgs(cmd *argparse.Command) *benchArgs {
	return &benchArgs{
		modelArgs:  addModelArgs(cmd),
		input:      cmd.String("i", "input", &argparse.Options{Help: "Input image. If omitted, random noise is used"}),
		iterations: cmd.Int("n", "iterations", &argparse.Options{Help: "Number of timed inference runs", Default: 100}),
		warmup:     cmd.Int("", "warmup", &argparse.Options{Help: "Number of untimed runs first", Default: 3}),
	}
}

func runBench(log logs.Log, manager *plugin.Manager, args *benchArgs) error {
	setup, err := resolveModel(log, args.modelArgs, "")
	if err != nil {
		return err
	}
	var setupTime perfstats.TimeAccumulator
	setupTime.Measure(func() {
		err = manager.Setup(*args.device, setup.width, setup.height, setup.path)
	})
	if err != nil {
		return err
	}
	fmt.Printf("Setup: %v\n", setupTime.Last)

	nnImage := hostbuf.NewImage(setup.width, setup.height)
	if *args.input != "" {
		src, err := cimg.ReadFile(*args.input)
		if err != nil {
			return err
		}
		imgprep.Letterbox(src, nnImage.Pixels, nnImage.Width, nnImage.Height, nnImage.Stride())
	} else {
		for i := range nnImage.Pixels {
			nnImage.Pixels[i] = byte(rand.IntN(256))
		}
	}

	for i := 0; i < *args.warmup; i++ {
		if _, err := manager.Infer(nnImage.Pixels); err != nil {
			return err
		}
	}

	var timing perfstats.TimeAccumulator
	numDets := 0
	for i := 0; i < *args.iterations; i++ {
		timing.Measure(func() {
			numDets, err = manager.Infer(nnImage.Pixels)
		})
		if err != nil {
			return err
		}
	}
	device, _ := manager.DeviceName(*args.device)
	fmt.Printf("%v on %v at %vx%v: %v (last run: %v detections)\n", setup.path, device, setup.width, setup.height, timing.String(), numDets)
	return nil
}
