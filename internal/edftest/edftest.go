// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edftest writes small synthetic EDF+ recordings for tests.
package edftest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/eegscope/edf"
	"github.com/stretchr/testify/require"
)

// Fixture describes a synthetic recording made of one second data records.
type Fixture struct {
	SampleRate    int      // Samples per second for every channel
	SampleRates   []int    // Per channel override of SampleRate
	Records       int      // Number of one second data records
	Channels      []string // Channel labels
	Signal        func(ch, i int) float64
	Annotations   []edf.Annotation
	PlainEDF      bool // Omit the annotation signal
	Discontinuous bool // Mark the file as EDF+D
}

func (fx Fixture) rate(ch int) int {
	if ch < len(fx.SampleRates) {
		return fx.SampleRates[ch]
	}
	return fx.SampleRate
}

// Write stores the fixture at path.
func Write(t testing.TB, path string, fx Fixture) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()

	byRecord := make(map[int][]edf.Annotation)
	busiest := 0
	for _, a := range fx.Annotations {
		n := int(a.Onset / time.Second)
		byRecord[n] = append(byRecord[n], a)
		busiest = max(busiest, len(byRecord[n]))
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "X",
		RecordingID:        "Synthetic recording",
		StartTime:          time.Date(2009, 8, 12, 16, 15, 0, 0, time.UTC),
		DataRecordDuration: time.Second,
	}
	if fx.Discontinuous {
		hdr.Reserved = edf.ReservedDiscontinuous
	}
	for ch, label := range fx.Channels {
		hdr.Signals = append(hdr.Signals, edf.Signal{
			Label:             label,
			PhysicalDimension: "uV",
			PhysicalMin:       -8092,
			PhysicalMax:       8092,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			Prefiltering:      "HP:0Hz LP:0Hz N:0Hz",
			SamplesPerRecord:  fx.rate(ch),
		})
	}
	if !fx.PlainEDF {
		hdr.Signals = append(hdr.Signals, edf.Signal{
			Label:            edf.AnnotationLabel,
			SamplesPerRecord: 16 + 16*busiest,
		})
	}

	ew, err := edf.Create(f, hdr)
	require.NoError(t, err)

	for n := 0; n < fx.Records; n++ {
		signals := make([][]float64, len(fx.Channels))
		for ch := range signals {
			rate := fx.rate(ch)
			signals[ch] = make([]float64, rate)
			if fx.Signal == nil {
				continue
			}
			for j := range signals[ch] {
				signals[ch][j] = fx.Signal(ch, n*rate+j)
			}
		}
		require.NoError(t, ew.WriteAnnotatedRecord(signals, byRecord[n]))
	}

	require.NoError(t, ew.Close())
}

// WriteTemp stores the fixture in a temporary directory and returns its path.
func WriteTemp(t testing.TB, fx Fixture) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.edf")
	Write(t, path, fx)
	return path
}
