// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command eegscope loads one EDF/EDF+ run of an EEG dataset, prints its
// metadata and events, and plots the raw waveform and the averaged PSD.
//
// Usage:
//
//	eegscope [flags]
//
// Examples:
//
//	eegscope -data-path /mnt/eegmmidb/ -subject S001 -run R04 -preset eegmmidb
//	eegscope -config eegscope.yaml -backend file -out plots
//	eegscope -no-plot
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"

	"github.com/OpenPSG/eegscope/internal/config"
	"github.com/OpenPSG/eegscope/internal/inspect"
	"github.com/OpenPSG/eegscope/internal/recording"
	"github.com/OpenPSG/eegscope/internal/viz"
	"github.com/Zyko0/go-sdl3/bin/binimg"
	"github.com/Zyko0/go-sdl3/bin/binsdl"
)

func init() {
	// SDL windows must be driven from the main thread.
	runtime.LockOSThread()
}

func main() {
	cfg, verbose, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "eegscope: %v\n", err)
		os.Exit(2)
	}

	logger := log.New(os.Stderr, "eegscope: ", 0)
	progress := log.New(io.Discard, "eegscope: ", 0)
	if verbose {
		progress = logger
	}

	if !cfg.Plot.Disabled && cfg.Plot.Backend == config.BackendWindow {
		defer binsdl.Load().Unload()
		defer binimg.Load().Unload()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	in := &inspect.Inspector{
		Config:  cfg,
		Out:     os.Stdout,
		Display: newDisplay(cfg.Plot, logger),
		Logger:  progress,
	}
	if err := in.Run(ctx); err != nil {
		// Failures are reported, not fatal.
		progress.Printf("run failed (%s)", recording.KindOf(err))
		fmt.Println(inspect.Message(err))
	}
}

// parseFlags builds the configuration from the defaults, an optional YAML
// file and then any flags given explicitly.
func parseFlags(fs *flag.FlagSet, args []string) (config.Config, bool, error) {
	def := config.Default()

	configPath := fs.String("config", "", "YAML configuration file")
	dataPath := fs.String("data-path", def.DataPath, "dataset root, concatenated verbatim with the subject directory")
	subject := fs.String("subject", def.Subject, "subject identifier")
	run := fs.String("run", def.Run, "run identifier")
	preload := fs.Bool("preload", def.Preload, "read all samples while loading")
	start := fs.Float64("start", def.Waveform.Start, "first second of raw data to plot")
	duration := fs.Float64("duration", def.Waveform.Duration, "seconds of raw data to plot")
	channels := fs.Int("channels", def.Waveform.Channels, "number of channels to plot")
	fmin := fs.Float64("fmin", def.PSD.FMin, "lower PSD frequency in Hz")
	fmax := fs.Float64("fmax", def.PSD.FMax, "upper PSD frequency in Hz")
	nfft := fs.Int("n-fft", def.PSD.NFFT, "Welch segment length in samples")
	preset := fs.String("preset", def.EventPreset, "event code preset (eegmmidb)")
	backend := fs.String("backend", def.Plot.Backend, "plot backend: window (close each plot to continue) or file")
	out := fs.String("out", def.Plot.OutputDir, "directory for plot files (file backend)")
	format := fs.String("format", def.Plot.Format, "plot file format (png, svg)")
	noPlot := fs.Bool("no-plot", def.Plot.Disabled, "skip plotting")
	verbose := fs.Bool("v", false, "log progress to stderr")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: eegscope [flags]\n\n")
		fmt.Fprintf(fs.Output(), "Prints the metadata and events of an EDF/EDF+ recording and plots it.\n\n")
		fmt.Fprintf(fs.Output(), "Flags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return def, false, err
	}
	if fs.NArg() > 0 {
		return def, false, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return def, false, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data-path":
			cfg.DataPath = *dataPath
		case "subject":
			cfg.Subject = *subject
		case "run":
			cfg.Run = *run
		case "preload":
			cfg.Preload = *preload
		case "start":
			cfg.Waveform.Start = *start
		case "duration":
			cfg.Waveform.Duration = *duration
		case "channels":
			cfg.Waveform.Channels = *channels
		case "fmin":
			cfg.PSD.FMin = *fmin
		case "fmax":
			cfg.PSD.FMax = *fmax
		case "n-fft":
			cfg.PSD.NFFT = *nfft
		case "preset":
			cfg.EventPreset = *preset
		case "backend":
			cfg.Plot.Backend = *backend
		case "out":
			cfg.Plot.OutputDir = *out
		case "format":
			cfg.Plot.Format = *format
		case "no-plot":
			cfg.Plot.Disabled = *noPlot
		}
	})

	if err := cfg.Validate(); err != nil {
		return cfg, false, err
	}
	return cfg, *verbose, nil
}

func newDisplay(p config.PlotConfig, logger *log.Logger) viz.Display {
	switch {
	case p.Disabled:
		return viz.NopDisplay{}
	case p.Backend == config.BackendFile:
		return &viz.FileDisplay{
			Dir:    p.OutputDir,
			Format: p.Format,
			Width:  p.Width,
			Height: p.Height,
			Logger: logger,
		}
	default:
		return &viz.WindowDisplay{Width: p.Width, Height: p.Height}
	}
}
