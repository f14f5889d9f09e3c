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
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// Figure is a rendered-on-demand plot.
type Figure struct {
	Name string // File stem, e.g. S001R01_raw
	Plot *plot.Plot
}

// Display renders a figure and returns once the user is done with it.
type Display interface {
	Show(ctx context.Context, fig Figure) error
}

// Waits reports whether d keeps each figure on screen until the user
// dismisses it.
func Waits(d Display) bool {
	w, ok := d.(interface{ Blocks() bool })
	return ok && w.Blocks()
}

// FileDisplay writes each figure to Dir and returns immediately.
type FileDisplay struct {
	Dir    string
	Format string // png or svg
	Width  int    // Pixels
	Height int    // Pixels
	Logger *log.Logger
}

// Show writes the figure to <Dir>/<Name>.<Format>.
func (d *FileDisplay) Show(_ context.Context, fig Figure) error {
	format := d.Format
	if format == "" {
		format = "png"
	}

	w, err := render(fig, d.Width, d.Height, format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("error creating plot directory: %w", err)
	}

	path := filepath.Join(d.Dir, fig.Name+"."+format)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating plot file: %w", err)
	}
	if _, err := w.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("error writing plot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error writing plot file: %w", err)
	}

	d.logger().Printf("wrote %s", path)
	return nil
}

func (d *FileDisplay) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}

// NopDisplay discards figures.
type NopDisplay struct{}

func (NopDisplay) Show(context.Context, Figure) error { return nil }

// render draws the figure into an image of the given pixel size.
func render(fig Figure, width, height int, format string) (io.WriterTo, error) {
	if fig.Plot == nil {
		return nil, errors.New("figure has no plot")
	}
	w, err := fig.Plot.WriterTo(pixels(width), pixels(height), format)
	if err != nil {
		return nil, fmt.Errorf("error rendering %s: %w", fig.Name, err)
	}
	return w, nil
}

// pixels converts a pixel count to a length at the 96 dpi used for raster output.
func pixels(n int) vg.Length {
	return vg.Length(n) * vg.Inch / 96
}
