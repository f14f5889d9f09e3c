// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf_test

import (
	"bytes"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/OpenPSG/eegscope/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderReadAll(t *testing.T) {
	f := createFile(t)

	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{
			eegSignal("Fast", 8),
			{Label: edf.AnnotationLabel, SamplesPerRecord: 16},
			eegSignal("Slow", 2),
		},
	})
	require.NoError(t, err)

	for rec := 0; rec < 3; rec++ {
		fast := make([]float64, 8)
		for i := range fast {
			fast[i] = float64(rec*8 + i)
		}
		slow := []float64{float64(-rec), float64(-rec - 100)}
		require.NoError(t, ew.WriteRecord([][]float64{fast, slow}))
	}
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	er, err := edf.Open(f)
	require.NoError(t, err)

	hdr := er.Header()
	assert.Equal(t, 3, hdr.DataRecords)
	assert.InDelta(t, 8.0, hdr.Signals[0].SampleRate(hdr.DataRecordDuration), 1e-9)
	assert.InDelta(t, 2.0, hdr.Signals[2].SampleRate(hdr.DataRecordDuration), 1e-9)

	data, err := er.ReadAll()
	require.NoError(t, err)
	require.Len(t, data, 3)

	require.Len(t, data[0], 24)
	for i, v := range data[0] {
		assert.InDelta(t, float64(i), v, 0.5)
	}
	assert.Nil(t, data[1])
	require.Len(t, data[2], 6)
	assert.InDelta(t, -102.0, data[2][5], 0.5)

	// Sequential reads agree with the eager read.
	sr, err := er.Signal(2)
	require.NoError(t, err)
	slow := make([]float64, 6)
	n, err := sr.Read(slow)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	assert.Equal(t, data[2], slow)

	_, err = er.Signal(1)
	require.Error(t, err)
	_, err = er.Signal(3)
	require.Error(t, err)

	annotations, err := er.Annotations()
	require.NoError(t, err)
	assert.Empty(t, annotations)
}

func TestReaderUnknownRecordCount(t *testing.T) {
	f := createFile(t)

	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals:            []edf.Signal{eegSignal("Cz", 4)},
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, ew.WriteRecord([][]float64{{1, 2, 3, 4}}))
	}
	// The writer is deliberately not closed, leaving -1 in the header.

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	er, err := edf.Open(f)
	require.NoError(t, err)
	assert.Equal(t, 5, er.Header().DataRecords)
}

func TestReaderTruncatedData(t *testing.T) {
	var buf bytes.Buffer
	f := createFile(t)

	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals:            []edf.Signal{eegSignal("Cz", 4)},
	})
	require.NoError(t, err)
	require.NoError(t, ew.WriteRecord([][]float64{{1, 2, 3, 4}}))
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = io.Copy(&buf, f)
	require.NoError(t, err)

	// Drop the last sample of the only data record.
	truncated := buf.Bytes()[:buf.Len()-2]

	_, err = edf.Open(bytes.NewReader(truncated))
	require.ErrorIs(t, err, edf.ErrInvalidHeader)
}

func TestOpenRecordCountBeyondFileSize(t *testing.T) {
	var buf bytes.Buffer
	f := createFile(t)

	signals := make([]edf.Signal, 64)
	record := make([][]float64, 64)
	for i := range signals {
		signals[i] = eegSignal(fmt.Sprintf("C%d", i), 160)
		record[i] = make([]float64, 160)
	}
	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals:            signals,
	})
	require.NoError(t, err)
	require.NoError(t, ew.WriteRecord(record))
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = io.Copy(&buf, f)
	require.NoError(t, err)

	// A record count far beyond the data actually present.
	b := buf.Bytes()
	copy(b[236:244], "99999999")

	_, err = edf.Open(bytes.NewReader(b))
	require.ErrorIs(t, err, edf.ErrInvalidHeader)
}

func TestOpenInvalidHeader(t *testing.T) {
	tests := map[string][]byte{
		"empty":     nil,
		"short":     []byte("0       patient"),
		"not edf":   bytes.Repeat([]byte("x"), 512),
		"no digits": append([]byte("0       "), bytes.Repeat([]byte(" "), 504)...),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := edf.Open(bytes.NewReader(data))
			require.ErrorIs(t, err, edf.ErrInvalidHeader)
		})
	}
}
