package main

// ovdetect drives the detector from the command line, through the same
// plugin.Manager that backs the C plugin.

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/ovplugin/pkg/config"
	"github.com/cyclopcam/ovplugin/pkg/nnload"
	"github.com/cyclopcam/ovplugin/pkg/plugin"
)

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func main() {
	parser := argparse.NewParser("ovdetect", "Run object detection models through the ovplugin runtimes")
	backend := parser.String("b", "backend", &argparse.Options{Help: "Inference runtime (openvino, onnxruntime). Default is the best available"})
	ortLib := parser.String("", "ortlib", &argparse.Options{Help: "Path to libonnxruntime.so"})
	threads := parser.Int("", "threads", &argparse.Options{Help: "Number of inference threads (0 = runtime default)", Default: 0})
	exclude := parser.StringList("x", "exclude", &argparse.Options{Help: "Also hide devices whose name contains this tag (repeatable). GNA is always hidden"})

	devicesCmd := parser.NewCommand("devices", "List the compute devices")
	verbose := devicesCmd.Flag("v", "verbose", &argparse.Options{Help: "Print all device properties"})

	detectCmd := parser.NewCommand("detect", "Detect objects in an image")
	detectArgs := addDetectArgs(detectCmd)

	benchCmd := parser.NewCommand("bench", "Measure inference speed")
	benchArgs := addBenchArgs(benchCmd)

	prepCmd := parser.NewCommand("prep", "Scale and pad an image to the model input size")
	prepArgs := addPrepArgs(prepCmd)

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	check(err)

	if prepCmd.Happened() {
		check(runPrep(logger, prepArgs))
		return
	}

	cfg, err := config.FromEnv()
	check(err)
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *ortLib != "" {
		cfg.OrtLibraryPath = *ortLib
	}
	if *threads != 0 {
		cfg.Threads = *threads
	}
	cfg.AddExcludeDevices(*exclude)

	rt, err := nnload.LoadRuntime(logger, cfg)
	check(err)
	defer rt.Close()
	manager := plugin.NewManager(logger, rt, cfg.ExcludeDevices)
	defer manager.Dispose()

	switch {
	case devicesCmd.Happened():
		check(runDevices(manager, *verbose))
	case detectCmd.Happened():
		check(runDetect(logger, manager, detectArgs))
	case benchCmd.Happened():
		check(runBench(logger, manager, benchArgs))
	}
}

func runDevices(manager *plugin.Manager, verbose bool) error {
	n, err := manager.FindDevices()
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Printf("No devices found\n")
		return nil
	}
	for i := 0; i < n; i++ {
		d, err := manager.Device(i)
		if err != nil {
			return err
		}
		fmt.Printf("%v: %-14v %v\n", i, d.Name, d.FullName)
		if verbose {
			fmt.Print(d.Description)
		}
	}
	return nil
}
