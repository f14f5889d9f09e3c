// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package report prints a human readable summary of a recording.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/OpenPSG/eegscope/internal/events"
	"github.com/OpenPSG/eegscope/internal/recording"
)

// Recording is the part of a loaded recording that is reported.
type Recording interface {
	Info() recording.Info
	ChannelNames() []string
	SampleRate() float64
	Duration() float64
}

// Info prints the metadata header followed by the channel list, the sampling
// frequency and the duration.
func Info(w io.Writer, rec Recording) error {
	info := rec.Info()

	kinds := make(map[recording.ChannelKind]int)
	var order []recording.ChannelKind
	for _, ch := range info.Channels {
		if kinds[ch.Kind] == 0 {
			order = append(order, ch.Kind)
		}
		kinds[ch.Kind]++
	}
	var counts []string
	for _, k := range order {
		counts = append(counts, fmt.Sprintf("%d %s", kinds[k], strings.ToUpper(string(k))))
	}

	measDate := "unspecified"
	if !info.MeasDate.IsZero() {
		measDate = info.MeasDate.UTC().Format("2006-01-02 15:04:05 MST")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintln(tw, "\n--- Raw Info ---")
	fmt.Fprintf(tw, " format:\t%s\n", info.Format)
	fmt.Fprintf(tw, " patient:\t%s\n", info.PatientID)
	fmt.Fprintf(tw, " recording:\t%s\n", info.RecordingID)
	fmt.Fprintf(tw, " meas_date:\t%s\n", measDate)
	fmt.Fprintf(tw, " data_records:\t%d x %s\n", info.DataRecords, info.RecordDuration)
	fmt.Fprintf(tw, " chs:\t%s\n", strings.Join(counts, ", "))
	fmt.Fprintf(tw, " nchan:\t%d\n", len(info.Channels))
	fmt.Fprintf(tw, " sfreq:\t%s Hz\n", formatHz(info.SampleRate))
	fmt.Fprintf(tw, " highpass:\t%.1f Hz\n", info.Highpass)
	fmt.Fprintf(tw, " lowpass:\t%.1f Hz\n", info.Lowpass)
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Channels: %q\nSampling frequency: %s Hz\nDuration: %.2f seconds\n",
		rec.ChannelNames(), formatHz(rec.SampleRate()), rec.Duration())
	return err
}

// Events prints one row per event followed by the code map. Codes with a
// known description in names are annotated with it.
func Events(w io.Writer, evs []events.Event, codes events.CodeMap, names map[int]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "\n--- Events found ---")
	fmt.Fprintln(tw, "sample\tprevious\tcode\t")
	for _, ev := range evs {
		fmt.Fprintf(tw, "%d\t%d\t%d\t\n", ev.Sample, ev.Previous, ev.Code)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(evs) == 0 {
		fmt.Fprintln(w, "(no events)")
	}

	keys := make([]string, 0, len(codes))
	for label := range codes {
		keys = append(keys, label)
	}
	sort.Slice(keys, func(i, j int) bool {
		if codes[keys[i]] != codes[keys[j]] {
			return codes[keys[i]] < codes[keys[j]]
		}
		return keys[i] < keys[j]
	})

	entries := make([]string, len(keys))
	for i, label := range keys {
		entries[i] = fmt.Sprintf("%q: %d", label, codes[label])
	}
	if _, err := fmt.Fprintf(w, "Event IDs: {%s}\n", strings.Join(entries, ", ")); err != nil {
		return err
	}

	for _, label := range keys {
		name, ok := names[codes[label]]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "  %s = %d: %s\n", label, codes[label], name); err != nil {
			return err
		}
	}

	return nil
}

// formatHz prints a frequency without trailing zeros.
func formatHz(hz float64) string {
	return strconv.FormatFloat(hz, 'f', -1, 64)
}
