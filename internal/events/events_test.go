// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package events_test

import (
	"testing"
	"time"

	"github.com/OpenPSG/eegscope/edf"
	"github.com/OpenPSG/eegscope/internal/edftest"
	"github.com/OpenPSG/eegscope/internal/events"
	"github.com/OpenPSG/eegscope/internal/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type source struct {
	annotations []edf.Annotation
	sfreq       float64
	n           int
}

func (s source) Annotations() []edf.Annotation { return s.annotations }
func (s source) SampleRate() float64           { return s.sfreq }
func (s source) NumSamples() int               { return s.n }

func at(seconds float64, description string) edf.Annotation {
	return edf.Annotation{Onset: time.Duration(seconds * float64(time.Second)), Description: description}
}

func TestFromAnnotations(t *testing.T) {
	src := source{
		sfreq: 160,
		n:     160 * 30,
		annotations: []edf.Annotation{
			at(0, "T0"),
			at(4.2, "T2"),
			at(8.3, "T0"),
			at(12.5, "T1"),
			at(16.7, "BAD_ACQ_SKIP"),
			at(20.8, "edge boundary"),
			at(60, "T1"), // past the end
		},
	}

	evs, codes, err := events.FromAnnotations(src, nil)
	require.NoError(t, err)

	assert.Equal(t, []events.Event{
		{Sample: 0, Code: 1},
		{Sample: 672, Code: 3},
		{Sample: 1328, Code: 1},
		{Sample: 2000, Code: 2},
	}, evs)
	assert.Equal(t, events.CodeMap{"T0": 1, "T1": 2, "T2": 3}, codes)
}

func TestFromAnnotationsExplicitCodes(t *testing.T) {
	src := source{
		sfreq:       100,
		n:           1000,
		annotations: []edf.Annotation{at(2, "T1"), at(1, "T0"), at(3, "other")},
	}

	evs, codes, err := events.FromAnnotations(src, events.CodeMap{"T0": 0, "T1": 3, "T2": 4})
	require.NoError(t, err)

	// Sorted by sample; unknown descriptions skipped; unused codes not reported.
	assert.Equal(t, []events.Event{
		{Sample: 100, Code: 0},
		{Sample: 200, Code: 3},
	}, evs)
	assert.Equal(t, events.CodeMap{"T0": 0, "T1": 3}, codes)
}

func TestFromAnnotationsEmpty(t *testing.T) {
	evs, codes, err := events.FromAnnotations(source{sfreq: 160, n: 160}, nil)
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.Empty(t, codes)
}

func TestFromAnnotationsNoSampleRate(t *testing.T) {
	_, _, err := events.FromAnnotations(source{}, nil)
	require.ErrorIs(t, err, events.ErrNoSampleRate)
}

func TestFromRecording(t *testing.T) {
	path := edftest.WriteTemp(t, edftest.Fixture{
		SampleRate: 160,
		Records:    10,
		Channels:   []string{"C3..", "C4.."},
		Annotations: []edf.Annotation{
			{Onset: 0, Duration: 4200 * time.Millisecond, Description: "T0"},
			{Onset: 4200 * time.Millisecond, Duration: 4100 * time.Millisecond, Description: "T1"},
			{Onset: 8300 * time.Millisecond, Duration: 1500 * time.Millisecond, Description: "T0"},
		},
	})

	rec, err := recording.Load(path, false)
	require.NoError(t, err)

	evs, codes, err := events.FromAnnotations(rec, nil)
	require.NoError(t, err)
	assert.Equal(t, []events.Event{
		{Sample: 0, Code: 1},
		{Sample: 672, Code: 2},
		{Sample: 1328, Code: 1},
	}, evs)
	assert.Equal(t, events.CodeMap{"T0": 1, "T1": 2}, codes)
}

func TestMotorImageryCodes(t *testing.T) {
	tests := map[string]events.CodeMap{
		"R01": {"T0": events.Rest},
		"R02": {"T0": events.Rest},
		"R03": {"T0": events.Rest, "T1": events.LeftFist, "T2": events.RightFist},
		"R04": {"T0": events.Rest, "T1": events.LeftFist, "T2": events.RightFist},
		"R05": {"T0": events.Rest, "T1": events.BothFists, "T2": events.BothFeet},
		"R10": {"T0": events.Rest, "T1": events.BothFists, "T2": events.BothFeet},
		"R11": {"T0": events.Rest, "T1": events.LeftFist, "T2": events.RightFist},
		"r14": {"T0": events.Rest, "T1": events.BothFists, "T2": events.BothFeet},
	}

	for run, want := range tests {
		t.Run(run, func(t *testing.T) {
			got, err := events.MotorImageryCodes(run)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	for _, run := range []string{"", "R00", "R15", "Rxx"} {
		_, err := events.MotorImageryCodes(run)
		require.Error(t, err, run)
	}
}
