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
	"os"

	"github.com/Zyko0/go-sdl3/img"
	"github.com/Zyko0/go-sdl3/sdl"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// WindowDisplay shows each figure in its own window and returns when the
// window is closed or Escape is pressed. The SDL and SDL_image libraries must
// be loaded, and Show must be called from the main OS thread.
type WindowDisplay struct {
	Width  int // Pixels
	Height int // Pixels
}

// Blocks reports that Show waits for the window to be dismissed.
func (d *WindowDisplay) Blocks() bool { return true }

// Show opens a window holding the figure and waits until it is dismissed or
// ctx is cancelled.
func (d *WindowDisplay) Show(ctx context.Context, fig Figure) error {
	if fig.Plot == nil {
		return errors.New("figure has no plot")
	}

	// SDL_image loads the rendered image from a scratch file.
	path, err := d.rasterize(fig)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("error initialising SDL: %w", err)
	}
	defer sdl.Quit()

	title := fig.Plot.Title.Text
	if title == "" {
		title = fig.Name
	}
	window, renderer, err := sdl.CreateWindowAndRenderer(title, d.Width, d.Height, sdl.WINDOW_RESIZABLE)
	if err != nil {
		return fmt.Errorf("error creating window: %w", err)
	}
	defer window.Destroy()
	defer renderer.Destroy()

	tex, err := img.LoadTexture(renderer, path)
	if err != nil {
		return fmt.Errorf("error loading %s: %w", fig.Name, err)
	}
	defer tex.Destroy()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var ev sdl.Event
		for sdl.PollEvent(&ev) {
			switch ev.Type {
			case sdl.EVENT_QUIT:
				return nil
			case sdl.EVENT_KEY_DOWN:
				if ev.KeyboardEvent().Key == sdl.K_ESCAPE {
					return nil
				}
			}
		}

		// The texture is stretched to the window, so resizes are redrawn every frame.
		renderer.SetDrawColor(255, 255, 255, 255)
		renderer.Clear()
		renderer.RenderTexture(tex, nil, nil)
		renderer.Present()
		sdl.Delay(10)
	}
}

// rasterize draws the figure with the vgimg backend and stores it as a PNG
// in the temporary directory.
func (d *WindowDisplay) rasterize(fig Figure) (string, error) {
	c := vgimg.NewWith(vgimg.UseWH(pixels(d.Width), pixels(d.Height)), vgimg.UseDPI(96))
	fig.Plot.Draw(draw.New(c))

	f, err := os.CreateTemp("", "eegscope-*.png")
	if err != nil {
		return "", fmt.Errorf("error creating image file: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(f); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("error rendering %s: %w", fig.Name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("error rendering %s: %w", fig.Name, err)
	}
	return f.Name(), nil
}
