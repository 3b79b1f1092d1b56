package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"icoforge/src/config"
	"icoforge/src/deployer"
	"icoforge/src/watcher"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run converts the configured image and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("icoforge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: icoforge [flags] [input output]\n\n")
		fmt.Fprintf(stderr, "Converts an image to a multi-size .ico (default %s -> %s).\n\n", config.DefaultInput, config.DefaultOutput)
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "path to YAML config file")
	envFile := fs.String("env", ".env", "optional env file with ICOFORGE_* overrides")
	input := fs.String("in", "", "source image path")
	output := fs.String("out", "", "output .ico path")
	filter := fs.String("filter", "", "resampling filter: catmullrom, bilinear, approxbilinear, nearest, lanczos3")
	watch := fs.Bool("watch", false, "keep running and regenerate the icon when the source changes")
	deploy := fs.Bool("deploy", false, "copy the icon to deploy.targets after conversion")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	switch fs.NArg() {
	case 0:
	case 2:
		*input = fs.Arg(0)
		*output = fs.Arg(1)
	default:
		fs.Usage()
		return 2
	}

	if err := config.LoadEnv(*envFile); err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 1
	}

	cfg, err := config.Read(*configPath)
	if err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 1
	}

	if *input != "" {
		cfg.Icon.Input = *input
	}
	if *output != "" {
		cfg.Icon.Output = *output
	}
	if *filter != "" {
		cfg.Icon.Filter = *filter
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stdout, "Error: invalid config: %v\n", err)
		return 1
	}

	converter, err := cfg.NewConverter()
	if err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 1
	}

	if err := converter.Convert(cfg.Icon.Input, cfg.Icon.Output); err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Successfully converted %s to %s\n", cfg.Icon.Input, cfg.Icon.Output)

	var d *deployer.Deployer
	if *deploy {
		d = deployer.NewDeployer(cfg)
		if _, err := d.Deploy(cfg.Icon.Output); err != nil {
			fmt.Fprintf(stdout, "Error: %v\n", err)
			return 1
		}
	}

	if !*watch {
		return 0
	}

	return watchLoop(cfg, d, stdout)
}

// watchLoop regenerates the icon on every change until interrupted
func watchLoop(cfg *config.Config, d *deployer.Deployer, stdout io.Writer) int {
	w, err := watcher.NewWatcher(cfg)
	if err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 1
	}
	if d != nil {
		w.SetDeployer(d)
	}

	if err := w.Start(); err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 1
	}

	log.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		select {
		case event, ok := <-w.Events():
			if !ok {
				return 0
			}
			switch {
			case event.Type == watcher.EventDeleted:
				log.Printf("Source %s removed, keeping %s", event.FilePath, cfg.Icon.Output)
			case event.Err != nil:
				fmt.Fprintf(stdout, "Error: %v\n", event.Err)
			default:
				fmt.Fprintf(stdout, "Successfully converted %s to %s\n", cfg.Icon.Input, cfg.Icon.Output)
			}

		case <-sigChan:
			log.Println("Shutting down...")
			if err := w.Stop(); err != nil {
				log.Printf("Watcher stop failed: %v", err)
			}
			return 0
		}
	}
}
