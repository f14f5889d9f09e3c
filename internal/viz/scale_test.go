// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package viz

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
)

func ramp(n int, offset, amplitude float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = offset + amplitude*(float64(i)/float64(n-1)*2-1)
	}
	return x
}

func TestScalesShareKind(t *testing.T) {
	data := [][]float64{
		ramp(1001, 100, 10),
		ramp(1001, -50, 100),
		ramp(1001, 0, 1),
	}

	centers, spreads := scales(data, 0, 1001, []string{"eeg", "eeg", "eog"})

	assert.InDelta(t, 100.0, centers[0], 1e-9)
	assert.InDelta(t, -50.0, centers[1], 1e-9)

	// Both EEG channels use the scale of the pooled samples, which the wider
	// channel dominates.
	assert.Equal(t, spreads[0], spreads[1])
	assert.Greater(t, spreads[0], 100.0)
	assert.Less(t, spreads[0], 200.0)

	// The EOG channel keeps its own scale.
	assert.InDelta(t, 2*0.99, spreads[2], 0.01)
}

func TestScalesWithoutKinds(t *testing.T) {
	data := [][]float64{
		ramp(1001, 0, 10),
		ramp(1001, 0, 100),
		make([]float64, 1001),
	}

	_, spreads := scales(data, 0, 1001, nil)
	assert.InDelta(t, 20*0.99, spreads[0], 0.1)
	assert.InDelta(t, 200*0.99, spreads[1], 1)
	assert.InDelta(t, 1.0, spreads[2], 0)
}

func TestWindowDisplayRasterize(t *testing.T) {
	p := plot.New()
	p.Title.Text = "PSD"
	line, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 50, Y: -20}})
	require.NoError(t, err)
	p.Add(line)

	d := &WindowDisplay{Width: 320, Height: 240}
	path, err := d.rasterize(Figure{Name: "psd", Plot: p})
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(path) })

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("\x89PNG")))
}
