// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package viz_test

import (
	"bytes"
	"context"
	"log"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/eegscope/internal/psd"
	"github.com/OpenPSG/eegscope/internal/viz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timestamps(n int, sfreq float64) []float64 {
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) / sfreq
	}
	return times
}

func channels(n, samples int) [][]float64 {
	data := make([][]float64, n)
	for ch := range data {
		data[ch] = make([]float64, samples)
		for i := range data[ch] {
			data[ch][i] = float64(ch+1) * 40 * math.Sin(2*math.Pi*float64(ch+5)*float64(i)/160)
		}
	}
	return data
}

func TestWaveform(t *testing.T) {
	names := []string{"Fc5.", "Fc3.", "Fc1.", "Fcz.", "Fc2.", "Fc4.", "Fc6."}

	p, err := viz.Waveform(names, channels(7, 1600), timestamps(1600, 160), viz.WaveformOptions{
		Title:    "Raw Data - S001 Run R01",
		Duration: 5,
		Channels: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, "Raw Data - S001 Run R01", p.Title.Text)
	assert.InDelta(t, 0.0, p.X.Min, 0)
	assert.InDelta(t, 5.0, p.X.Max, 0)

	ticks := p.Y.Tick.Marker.Ticks(p.Y.Min, p.Y.Max)
	require.Len(t, ticks, 5)
	assert.Equal(t, "Fc5.", ticks[0].Label)
	assert.InDelta(t, 4.0, ticks[0].Value, 0)
	assert.Equal(t, "Fcz.", ticks[3].Label)
}

func TestWaveformShortRecording(t *testing.T) {
	// Fewer channels and samples than requested are drawn as-is.
	p, err := viz.Waveform([]string{"Cz"}, channels(1, 80), timestamps(80, 160), viz.WaveformOptions{Duration: 5, Channels: 5})
	require.NoError(t, err)
	assert.InDelta(t, 79.0/160, p.X.Max, 1e-12)
	assert.Len(t, p.Y.Tick.Marker.Ticks(p.Y.Min, p.Y.Max), 1)
}

func TestWaveformFlatChannel(t *testing.T) {
	_, err := viz.Waveform([]string{"Cz"}, [][]float64{make([]float64, 100)}, timestamps(100, 100), viz.WaveformOptions{Duration: 1, Channels: 1})
	require.NoError(t, err)
}

func TestWaveformStart(t *testing.T) {
	p, err := viz.Waveform(nil, channels(2, 1600), timestamps(1600, 160), viz.WaveformOptions{
		Start:    2,
		Duration: 5,
		Channels: 2,
		Kinds:    []string{"eeg", "eeg"},
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, p.X.Min, 1e-12)
	assert.InDelta(t, 7.0, p.X.Max, 1e-12)
}

func TestWaveformErrors(t *testing.T) {
	_, err := viz.Waveform(nil, nil, nil, viz.WaveformOptions{Duration: 5, Channels: 5})
	require.Error(t, err)

	_, err = viz.Waveform(nil, channels(1, 10), timestamps(9, 10), viz.WaveformOptions{Duration: 5, Channels: 5})
	require.Error(t, err)

	_, err = viz.Waveform(nil, channels(1, 10), timestamps(10, 10), viz.WaveformOptions{Start: 5, Duration: 5, Channels: 5})
	require.Error(t, err)
}

func spectrum() *psd.Spectrum {
	spec := &psd.Spectrum{Channels: 2, NFFT: 256}
	for f := 0.0; f <= 50; f += 0.5 {
		spec.Freqs = append(spec.Freqs, f)
		spec.Mean = append(spec.Mean, 20-f/5)
		spec.Std = append(spec.Std, 1.5)
	}
	return spec
}

func TestSpectrum(t *testing.T) {
	p, err := viz.Spectrum(spectrum(), "uV", "PSD - S001 Run R01")
	require.NoError(t, err)
	assert.Equal(t, "PSD - S001 Run R01", p.Title.Text)
	assert.Equal(t, "uV²/Hz (dB)", p.Y.Label.Text)
	assert.InDelta(t, 50.0, p.X.Max, 0)

	_, err = viz.Spectrum(&psd.Spectrum{}, "uV", "")
	require.Error(t, err)
}

func TestFileDisplay(t *testing.T) {
	p, err := viz.Spectrum(spectrum(), "uV", "PSD")
	require.NoError(t, err)

	var logs bytes.Buffer
	dir := filepath.Join(t.TempDir(), "plots")
	d := &viz.FileDisplay{Dir: dir, Format: "png", Width: 320, Height: 240, Logger: log.New(&logs, "", 0)}
	require.NoError(t, d.Show(context.Background(), viz.Figure{Name: "S001R01_psd", Plot: p}))

	b, err := os.ReadFile(filepath.Join(dir, "S001R01_psd.png"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("\x89PNG")))
	assert.Contains(t, logs.String(), "S001R01_psd.png")

	d.Format = "svg"
	require.NoError(t, d.Show(context.Background(), viz.Figure{Name: "S001R01_psd", Plot: p}))
	b, err = os.ReadFile(filepath.Join(dir, "S001R01_psd.svg"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "<svg")

	require.Error(t, d.Show(context.Background(), viz.Figure{Name: "empty"}))
}

func TestWindowDisplayWithoutPlot(t *testing.T) {
	d := &viz.WindowDisplay{Width: 320, Height: 240}
	require.Error(t, d.Show(context.Background(), viz.Figure{Name: "empty"}))
}

func TestWaits(t *testing.T) {
	assert.True(t, viz.Waits(&viz.WindowDisplay{}))
	assert.False(t, viz.Waits(&viz.FileDisplay{}))
	assert.False(t, viz.Waits(viz.NopDisplay{}))
}

func TestNopDisplay(t *testing.T) {
	var d viz.Display = viz.NopDisplay{}
	require.NoError(t, d.Show(context.Background(), viz.Figure{}))
}
