// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package inspect loads one run of a dataset, reports on it and plots it.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/OpenPSG/eegscope/internal/config"
	"github.com/OpenPSG/eegscope/internal/events"
	"github.com/OpenPSG/eegscope/internal/psd"
	"github.com/OpenPSG/eegscope/internal/recording"
	"github.com/OpenPSG/eegscope/internal/report"
	"github.com/OpenPSG/eegscope/internal/viz"
)

// Inspector runs the load, report and plot sequence for one configuration.
type Inspector struct {
	Config  config.Config
	Out     io.Writer   // Report output
	Display viz.Display // Receives the waveform and PSD figures in turn
	Logger  *log.Logger
}

// Run loads the configured recording, prints its report and shows both
// figures. Load failures are returned as *recording.LoadError; nothing is
// plotted after an error.
func (in *Inspector) Run(ctx context.Context) error {
	cfg := in.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	paths := cfg.Paths()

	fmt.Fprintf(in.Out, "Attempting to load: %s\n", paths.Signal)
	in.logger().Printf("event file %s is not read", paths.Events)

	rec, err := recording.Load(paths.Signal, cfg.Preload)
	if err != nil {
		return err
	}
	fmt.Fprintln(in.Out, "EDF file loaded successfully!")
	in.logger().Printf("loaded %s: %d channels, %d samples", rec.Path(), len(rec.Channels()), rec.NumSamples())

	if err := report.Info(in.Out, rec); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}

	codes, names, err := eventCodes(cfg)
	if err != nil {
		return err
	}
	evs, used, err := events.FromAnnotations(rec, codes)
	if err != nil {
		return fmt.Errorf("error extracting events: %w", err)
	}
	if err := report.Events(in.Out, evs, used, names); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}

	data, err := rec.Data()
	if err != nil {
		return err
	}

	kinds := make([]string, len(rec.Channels()))
	for i, ch := range rec.Channels() {
		kinds[i] = string(ch.Kind)
	}

	in.progress("Plotting raw data...")
	raw, err := viz.Waveform(rec.ChannelNames(), data, rec.Times(), viz.WaveformOptions{
		Title:    fmt.Sprintf("Raw Data - %s Run %s", cfg.Subject, cfg.Run),
		Start:    cfg.Waveform.Start,
		Duration: cfg.Waveform.Duration,
		Channels: cfg.Waveform.Channels,
		Kinds:    kinds,
	})
	if err != nil {
		return fmt.Errorf("error plotting raw data: %w", err)
	}
	if err := in.Display.Show(ctx, viz.Figure{Name: cfg.Subject + cfg.Run + "_raw", Plot: raw}); err != nil {
		return fmt.Errorf("error showing raw data: %w", err)
	}

	in.progress("Plotting Power Spectral Density...")
	opts := psd.DefaultOptions()
	opts.NFFT = cfg.PSD.NFFT
	opts.FMin = cfg.PSD.FMin
	opts.FMax = cfg.PSD.FMax

	picks := rec.Picks(recording.KindEEG)
	spec, err := psd.Average(data, picks, rec.SampleRate(), opts)
	if err != nil {
		return fmt.Errorf("error computing PSD: %w", err)
	}
	in.logger().Printf("averaged PSD over %d channels with n_fft=%d", spec.Channels, spec.NFFT)

	unit := rec.Channels()[picks[0]].Unit
	fig, err := viz.Spectrum(spec, unit, fmt.Sprintf("PSD - %s Run %s", cfg.Subject, cfg.Run))
	if err != nil {
		return fmt.Errorf("error plotting PSD: %w", err)
	}
	if err := in.Display.Show(ctx, viz.Figure{Name: cfg.Subject + cfg.Run + "_psd", Plot: fig}); err != nil {
		return fmt.Errorf("error showing PSD: %w", err)
	}

	return nil
}

// eventCodes returns the code map to extract events with and the task
// descriptions to report alongside it.
func eventCodes(cfg config.Config) (events.CodeMap, map[int]string, error) {
	if len(cfg.EventCodes) > 0 {
		return events.CodeMap(cfg.EventCodes), nil, nil
	}
	if cfg.EventPreset == config.PresetMotorImagery {
		codes, err := events.MotorImageryCodes(cfg.Run)
		if err != nil {
			return nil, nil, err
		}
		return codes, events.TaskNames, nil
	}
	return nil, nil, nil
}

// progress announces a plot, telling the user how to continue when the
// display waits for them.
func (in *Inspector) progress(msg string) {
	if viz.Waits(in.Display) {
		msg += " Close the plot to continue."
	}
	fmt.Fprintf(in.Out, "\n%s\n", msg)
}

func (in *Inspector) logger() *log.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return log.New(io.Discard, "", 0)
}

// Message renders err as the one line shown to the user.
func Message(err error) string {
	var lerr *recording.LoadError
	if errors.As(err, &lerr) && lerr.Kind == recording.KindNotFound {
		return fmt.Sprintf("Error: The file %s was not found. Please check your 'data_path' and ensure the file exists.", lerr.Path)
	}
	return fmt.Sprintf("An error occurred: %v", err)
}
