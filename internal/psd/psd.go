// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package psd estimates power spectral densities with Welch's method.
package psd

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/spectrum"
	"github.com/cwbudde/algo-dsp/dsp/window"
	vecmath "github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// floorPower keeps silent channels finite on a log scale.
const floorPower = 1e-20

// ErrNoChannels is returned when there is nothing to average.
var ErrNoChannels = errors.New("no channels to average")

// Options controls the estimate.
type Options struct {
	NFFT   int         // Segment length; capped at the signal length
	FMin   float64     // Lowest frequency kept, Hz
	FMax   float64     // Highest frequency kept, Hz; 0 keeps up to Nyquist
	Window window.Type // Segment taper
}

// DefaultOptions uses 2048 sample Hamming segments up to 50 Hz.
func DefaultOptions() Options {
	return Options{
		NFFT:   2048,
		FMax:   50,
		Window: window.TypeHamming,
	}
}

// Spectrum is a channel-averaged power spectral density in dB.
type Spectrum struct {
	Freqs    []float64 // Hz
	Mean     []float64 // dB re 1 unit²/Hz
	Std      []float64 // dB, population standard deviation across channels
	Channels int       // Number of channels averaged
	NFFT     int       // Segment length used
}

// Welch returns the one-sided power spectral density of x in unit²/Hz using
// non-overlapping segments of nfft samples. nfft is capped at len(x).
func Welch(x []float64, sfreq float64, nfft int, winType window.Type) (freqs, density []float64, err error) {
	if sfreq <= 0 {
		return nil, nil, fmt.Errorf("sample rate must be positive: %g", sfreq)
	}
	nfft = min(nfft, len(x))
	if nfft < 2 {
		return nil, nil, fmt.Errorf("need at least 2 samples for a spectrum, got %d", nfft)
	}

	win := window.Generate(winType, nfft, window.WithPeriodic())
	sumSq := 0.0
	for _, w := range win {
		sumSq += w * w
	}

	fft := fourier.NewFFT(nfft)
	bins := nfft/2 + 1
	density = make([]float64, bins)
	seg := make([]float64, nfft)
	coeffs := make([]complex128, bins)

	segments := 0
	for start := 0; start+nfft <= len(x); start += nfft {
		vecmath.MulBlock(seg, x[start:start+nfft], win)
		coeffs = fft.Coefficients(coeffs, seg)
		vecmath.AddBlockInPlace(density, spectrum.Power(coeffs))
		segments++
	}

	vecmath.ScaleBlock(density, density, 1/(sfreq*sumSq*float64(segments)))

	// Fold negative frequencies into the one-sided estimate.
	last := bins - 1
	if nfft%2 == 1 {
		last = bins
	}
	for k := 1; k < last; k++ {
		density[k] *= 2
	}

	freqs = make([]float64, bins)
	for k := range freqs {
		freqs[k] = fft.Freq(k) * sfreq
	}

	return freqs, density, nil
}

// Average estimates the PSD of each picked channel, converts it to dB and
// returns the mean and standard deviation across channels, restricted to
// [opts.FMin, opts.FMax].
func Average(data [][]float64, picks []int, sfreq float64, opts Options) (*Spectrum, error) {
	if len(picks) == 0 {
		return nil, ErrNoChannels
	}

	var (
		freqs []float64
		perCh [][]float64
	)
	for _, ch := range picks {
		if ch < 0 || ch >= len(data) {
			return nil, fmt.Errorf("channel index %d out of range", ch)
		}

		f, density, err := Welch(data[ch], sfreq, opts.NFFT, opts.Window)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		freqs = f

		db := make([]float64, len(density))
		for k, p := range density {
			db[k] = 10 * math.Log10(max(p, floorPower))
		}
		perCh = append(perCh, db)
	}

	out := &Spectrum{
		Channels: len(picks),
		NFFT:     min(opts.NFFT, len(data[picks[0]])),
	}

	column := make([]float64, len(perCh))
	for k, f := range freqs {
		if f < opts.FMin || (opts.FMax > 0 && f > opts.FMax) {
			continue
		}
		for c := range perCh {
			column[c] = perCh[c][k]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		out.Freqs = append(out.Freqs, f)
		out.Mean = append(out.Mean, mean)
		out.Std = append(out.Std, std)
	}

	return out, nil
}
