// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package events turns EDF+ annotations into sample-indexed event markers.
package events

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/OpenPSG/eegscope/edf"
)

// Event marks a change of experimental condition.
type Event struct {
	Sample   int // Sample index of the onset
	Previous int // Code before the onset; always 0 for annotation-derived events
	Code     int // Code after the onset
}

// CodeMap maps annotation descriptions to event codes.
type CodeMap map[string]int

// Source is a recording with annotations on a sample grid.
type Source interface {
	Annotations() []edf.Annotation
	SampleRate() float64
	NumSamples() int
}

// ErrNoSampleRate is returned for a source without a positive sample rate.
var ErrNoSampleRate = errors.New("source has no sample rate")

// FromAnnotations converts the source's annotations to events ordered by
// sample. With a nil or empty codes map every distinct description, sorted,
// is numbered from 1; otherwise descriptions missing from codes are skipped.
// Descriptions starting with BAD or EDGE are always skipped, as are events
// outside the recording.
func FromAnnotations(src Source, codes CodeMap) ([]Event, CodeMap, error) {
	sfreq := src.SampleRate()
	if sfreq <= 0 {
		return nil, nil, ErrNoSampleRate
	}

	var kept []edf.Annotation
	for _, a := range src.Annotations() {
		if ignored(a.Description) {
			continue
		}
		kept = append(kept, a)
	}

	if len(codes) == 0 {
		codes = autoCodes(kept)
	}

	used := make(CodeMap)
	events := make([]Event, 0, len(kept))
	for _, a := range kept {
		code, ok := codes[a.Description]
		if !ok {
			continue
		}

		sample := int(math.Round(a.Onset.Seconds() * sfreq))
		if sample < 0 || sample >= src.NumSamples() {
			continue
		}

		used[a.Description] = code
		events = append(events, Event{Sample: sample, Code: code})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Sample < events[j].Sample
	})

	return events, used, nil
}

func autoCodes(annotations []edf.Annotation) CodeMap {
	var labels []string
	seen := make(map[string]bool)
	for _, a := range annotations {
		if !seen[a.Description] {
			seen[a.Description] = true
			labels = append(labels, a.Description)
		}
	}
	sort.Strings(labels)

	codes := make(CodeMap, len(labels))
	for i, label := range labels {
		codes[label] = i + 1
	}
	return codes
}

func ignored(description string) bool {
	d := strings.ToUpper(description)
	return d == "" || strings.HasPrefix(d, "BAD") || strings.HasPrefix(d, "EDGE")
}
