// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package config holds the settings that locate a recording in a dataset
// tree and control how it is inspected.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrValidation is returned when a configuration value is unusable.
type ErrValidation string

func (e ErrValidation) Error() string {
	return string(e)
}

// Config locates one recording and controls how it is inspected.
type Config struct {
	DataPath string `yaml:"data_path"` // Dataset root, concatenated verbatim with the subject directory
	Subject  string `yaml:"subject"`   // Subject identifier, e.g. S001
	Run      string `yaml:"run"`       // Run identifier, e.g. R01
	Preload  bool   `yaml:"preload"`   // Read all samples while loading

	Waveform WaveformConfig `yaml:"waveform"`
	PSD      PSDConfig      `yaml:"psd"`
	Plot     PlotConfig     `yaml:"plot"`

	// EventPreset selects a dataset's label to code mapping, see PresetMotorImagery.
	EventPreset string `yaml:"event_preset"`
	// EventCodes overrides the automatic or preset label to code mapping when non-empty.
	EventCodes map[string]int `yaml:"event_codes"`
}

// PresetMotorImagery maps T0/T1/T2 to the run dependent task codes of the EEG
// Motor Movement/Imagery dataset.
const PresetMotorImagery = "eegmmidb"

// WaveformConfig controls the raw waveform view.
type WaveformConfig struct {
	Start    float64 `yaml:"start"`    // First second shown
	Duration float64 `yaml:"duration"` // Seconds shown
	Channels int     `yaml:"channels"` // Number of leading channels shown
}

// PSDConfig controls the spectral view.
type PSDConfig struct {
	FMin float64 `yaml:"fmin"`  // Lower frequency limit in Hz
	FMax float64 `yaml:"fmax"`  // Upper frequency limit in Hz
	NFFT int     `yaml:"n_fft"` // Welch segment length in samples
}

// Plot backends.
const (
	BackendWindow = "window" // One window per plot, each closed by the user
	BackendFile   = "file"   // Plot files written to OutputDir
)

// PlotConfig controls where plots go.
type PlotConfig struct {
	Disabled  bool   `yaml:"disabled"`
	Backend   string `yaml:"backend"` // BackendWindow or BackendFile
	OutputDir string `yaml:"output_dir"`
	Format    string `yaml:"format"` // png or svg, for BackendFile
	Width     int    `yaml:"width"`  // Pixels
	Height    int    `yaml:"height"` // Pixels
}

// Default returns the configuration for the first run of the first subject.
func Default() Config {
	return Config{
		DataPath: "data/",
		Subject:  "S001",
		Run:      "R01",
		Preload:  true,
		Waveform: WaveformConfig{
			Duration: 5,
			Channels: 5,
		},
		PSD: PSDConfig{
			FMax: 50,
			NFFT: 2048,
		},
		Plot: PlotConfig{
			Backend:   BackendWindow,
			OutputDir: ".",
			Format:    "png",
			Width:     1200,
			Height:    800,
		},
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error reading config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Subject == "" {
		return ErrValidation("subject must not be empty")
	}
	if c.Run == "" {
		return ErrValidation("run must not be empty")
	}
	for name, v := range map[string]string{"subject": c.Subject, "run": c.Run} {
		if strings.ContainsAny(v, `/\`) {
			return ErrValidation(fmt.Sprintf("%s %q must not contain a path separator", name, v))
		}
	}
	if c.Waveform.Start < 0 {
		return ErrValidation(fmt.Sprintf("waveform start must not be negative, got %g", c.Waveform.Start))
	}
	if c.Waveform.Duration <= 0 {
		return ErrValidation(fmt.Sprintf("waveform duration must be positive, got %g", c.Waveform.Duration))
	}
	if c.Waveform.Channels <= 0 {
		return ErrValidation(fmt.Sprintf("waveform channels must be positive, got %d", c.Waveform.Channels))
	}
	if c.PSD.FMax <= 0 {
		return ErrValidation(fmt.Sprintf("psd fmax must be positive, got %g", c.PSD.FMax))
	}
	if c.PSD.FMin < 0 || c.PSD.FMin >= c.PSD.FMax {
		return ErrValidation(fmt.Sprintf("psd fmin must be in [0, fmax), got %g", c.PSD.FMin))
	}
	if c.PSD.NFFT < 8 {
		return ErrValidation(fmt.Sprintf("psd n_fft must be at least 8, got %d", c.PSD.NFFT))
	}
	switch c.Plot.Backend {
	case BackendWindow, BackendFile:
	default:
		return ErrValidation(fmt.Sprintf("plot backend must be %s or %s, got %q", BackendWindow, BackendFile, c.Plot.Backend))
	}
	switch c.Plot.Format {
	case "png", "svg":
	default:
		return ErrValidation(fmt.Sprintf("plot format must be png or svg, got %q", c.Plot.Format))
	}
	if c.Plot.Width <= 0 || c.Plot.Height <= 0 {
		return ErrValidation(fmt.Sprintf("plot size must be positive, got %dx%d", c.Plot.Width, c.Plot.Height))
	}
	switch c.EventPreset {
	case "", PresetMotorImagery:
	default:
		return ErrValidation(fmt.Sprintf("unknown event preset %q", c.EventPreset))
	}
	for label := range c.EventCodes {
		if label == "" {
			return ErrValidation("event code labels must not be empty")
		}
	}

	return nil
}

// Paths are the files belonging to one run.
type Paths struct {
	Signal string // EDF recording
	Events string // Sibling event file; located but never read
}

// Paths builds <root><subject>/<subject><run>.edf and the sibling .event path.
// The root is not joined with a separator, so it must end in one.
func (c Config) Paths() Paths {
	base := c.DataPath + c.Subject + "/" + c.Subject + c.Run
	return Paths{
		Signal: base + ".edf",
		Events: base + ".event",
	}
}
