// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package viz builds the waveform and spectrum figures and hands them to a
// display.
package viz

import (
	"errors"
	"fmt"
	"image/color"
	"sort"

	"github.com/OpenPSG/eegscope/internal/psd"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// WaveformOptions selects the part of a recording to draw.
type WaveformOptions struct {
	Title    string
	Start    float64  // Seconds
	Duration float64  // Seconds
	Channels int      // Leading channels drawn
	Kinds    []string // Channel types; channels of one type share a scale
}

// Waveform draws a stacked multichannel trace sampled at times. Channels of
// the same kind share one scale, set so that the 0.5 to 99.5 percentile range
// of their centred samples in the window fills one row. Channels without a
// kind are scaled on their own.
func Waveform(names []string, data [][]float64, times []float64, opts WaveformOptions) (*plot.Plot, error) {
	if len(data) == 0 {
		return nil, errors.New("no channels to plot")
	}
	if len(times) != len(data[0]) {
		return nil, fmt.Errorf("got %d timestamps for %d samples", len(times), len(data[0]))
	}

	nCh := min(opts.Channels, len(data))
	first := sort.SearchFloat64s(times, opts.Start)
	last := sort.SearchFloat64s(times, opts.Start+opts.Duration)
	if last <= first {
		return nil, fmt.Errorf("window %gs+%gs is outside the recording", opts.Start, opts.Duration)
	}
	centers, spreads := scales(data, first, last, opts.Kinds)

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Time (s)"
	p.X.Min = times[first]
	p.X.Max = min(opts.Start+opts.Duration, times[len(times)-1])
	p.Y.Min = -0.5
	p.Y.Max = float64(nCh) - 0.5

	var ticks []plot.Tick
	for ch := 0; ch < nCh; ch++ {
		segment := data[ch][first:last]

		// Row 0 is at the top, matching the channel order.
		offset := float64(nCh - 1 - ch)
		xys := make(plotter.XYs, len(segment))
		for i, v := range segment {
			xys[i].X = times[first+i]
			xys[i].Y = offset + (v-centers[ch])/spreads[ch]
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("error plotting channel %d: %w", ch, err)
		}
		line.LineStyle.Color = plotutil.Color(ch)
		line.LineStyle.Width = vg.Points(0.7)
		p.Add(line)

		label := fmt.Sprintf("ch%d", ch)
		if ch < len(names) {
			label = names[ch]
		}
		ticks = append(ticks, plot.Tick{Value: offset, Label: label})
	}
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.Add(plotter.NewGrid())

	return p, nil
}

// scales returns each channel's midpoint over data[:][first:last] and the
// row height shared by its kind. A flat kind gets a unit height.
func scales(data [][]float64, first, last int, kinds []string) (centers, spreads []float64) {
	centers = make([]float64, len(data))
	groups := make(map[string][]int)
	var order []string
	for ch := range data {
		lo, hi := percentiles(data[ch][first:last])
		centers[ch] = (lo + hi) / 2

		kind := fmt.Sprintf("#%d", ch)
		if ch < len(kinds) && kinds[ch] != "" {
			kind = kinds[ch]
		}
		if _, ok := groups[kind]; !ok {
			order = append(order, kind)
		}
		groups[kind] = append(groups[kind], ch)
	}

	spreads = make([]float64, len(data))
	for _, kind := range order {
		var pooled []float64
		for _, ch := range groups[kind] {
			for _, v := range data[ch][first:last] {
				pooled = append(pooled, v-centers[ch])
			}
		}
		lo, hi := percentiles(pooled)
		spread := hi - lo
		if spread <= 0 {
			spread = 1
		}
		for _, ch := range groups[kind] {
			spreads[ch] = spread
		}
	}
	return centers, spreads
}

// percentiles returns the 0.5th and 99.5th percentiles of x.
func percentiles(x []float64) (lo, hi float64) {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	lo = stat.Quantile(0.005, stat.Empirical, sorted, nil)
	hi = stat.Quantile(0.995, stat.Empirical, sorted, nil)
	return lo, hi
}

// Spectrum draws the mean PSD with a shaded band of one standard deviation.
func Spectrum(spec *psd.Spectrum, unit, title string) (*plot.Plot, error) {
	if spec == nil || len(spec.Freqs) == 0 {
		return nil, errors.New("empty spectrum")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = fmt.Sprintf("%s²/Hz (dB)", unit)

	mean := make(plotter.XYs, len(spec.Freqs))
	band := make(plotter.XYs, 0, 2*len(spec.Freqs))
	for i, f := range spec.Freqs {
		mean[i] = plotter.XY{X: f, Y: spec.Mean[i]}
		band = append(band, plotter.XY{X: f, Y: spec.Mean[i] + spec.Std[i]})
	}
	for i := len(spec.Freqs) - 1; i >= 0; i-- {
		band = append(band, plotter.XY{X: spec.Freqs[i], Y: spec.Mean[i] - spec.Std[i]})
	}

	poly, err := plotter.NewPolygon(band)
	if err != nil {
		return nil, fmt.Errorf("error plotting spread: %w", err)
	}
	poly.Color = color.RGBA{R: 0, G: 0, B: 0, A: 40}
	poly.LineStyle.Width = 0

	line, err := plotter.NewLine(mean)
	if err != nil {
		return nil, fmt.Errorf("error plotting mean: %w", err)
	}
	line.LineStyle.Color = color.Black
	line.LineStyle.Width = vg.Points(1)

	p.Add(plotter.NewGrid(), poly, line)
	p.X.Min = spec.Freqs[0]
	p.X.Max = spec.Freqs[len(spec.Freqs)-1]

	return p, nil
}
