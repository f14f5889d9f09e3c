// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// Writer writes EDF and EDF+ files.
type Writer struct {
	w               io.WriteSeeker
	hdr             *Header
	annotationIndex int // Index of the annotation signal, -1 for plain EDF.
	dataRecords     int // Number of data records written so far.
}

// Create creates a new EDF writer that writes to the given writer. If the
// header contains an annotation signal the file is written as EDF+C.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	hdr.DataRecords = -1 // Unknown number of data records (at this time).
	hdr.SignalCount = len(hdr.Signals)

	ew := &Writer{w: w, hdr: &hdr, annotationIndex: hdr.AnnotationSignal()}
	if ew.annotationIndex >= 0 {
		if hdr.Reserved == "" {
			ew.hdr.Reserved = ReservedContinuous
		}
		// Annotation signals carry raw bytes, not calibrated samples.
		ann := &ew.hdr.Signals[ew.annotationIndex]
		ann.DigitalMin, ann.DigitalMax = -32768, 32767
		ann.PhysicalMin, ann.PhysicalMax = -1, 1
	}

	// Write the initial header
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	// Finalize the header with the actual number of data records
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	return nil
}

// WriteRecord writes a single data record to the EDF file. Signals are given
// in header order, skipping the annotation signal of an EDF+ file, which is
// filled with the record's timekeeping TAL.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	return ew.WriteAnnotatedRecord(signals, nil)
}

// WriteAnnotatedRecord writes a single data record and stores the given
// annotations in the record's annotation signal. Annotation onsets are
// relative to the start of the recording.
func (ew *Writer) WriteAnnotatedRecord(signals [][]float64, annotations []Annotation) error {
	want := ew.hdr.SignalCount
	if ew.annotationIndex >= 0 {
		want--
	} else if len(annotations) > 0 {
		return fmt.Errorf("header has no %q signal to hold annotations", AnnotationLabel)
	}
	if len(signals) != want {
		return fmt.Errorf("expected %d signals, got %d", want, len(signals))
	}

	// As recommended by the EDF standard.
	if recordBytes := ew.hdr.RecordSize(); recordBytes > 61440 {
		return fmt.Errorf("data record too large: %d bytes, max is 61440 bytes", recordBytes)
	}

	writer := bufio.NewWriter(ew.w)

	// Write each signal's data
	next := 0
	for i, signal := range ew.hdr.Signals {
		if i == ew.annotationIndex {
			recordOnset := time.Duration(ew.dataRecords) * ew.hdr.DataRecordDuration
			block, err := EncodeTALs(recordOnset, annotations, signal.SamplesPerRecord*2)
			if err != nil {
				return fmt.Errorf("error encoding annotations: %w", err)
			}
			if _, err := writer.Write(block); err != nil {
				return err
			}
			continue
		}

		samples := signals[next]
		next++
		if len(samples) != signal.SamplesPerRecord {
			return fmt.Errorf("signal %d (%s): expected %d samples, got %d", i, signal.Label, signal.SamplesPerRecord, len(samples))
		}
		for _, sample := range samples {
			digitalValue := convertPhysicalToDigital(sample, signal.PhysicalMin, signal.PhysicalMax, signal.DigitalMin, signal.DigitalMax)
			if err := binary.Write(writer, binary.LittleEndian, digitalValue); err != nil {
				return err
			}
		}
	}

	// Ensure all data is flushed to the underlying writer
	if err := writer.Flush(); err != nil {
		return err
	}

	ew.dataRecords++
	return nil
}

// writeHeader writes the EDF header at the start of the underlying writer.
func (ew *Writer) writeHeader() error {
	// Rewind to the beginning of the file.
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	hdr := ew.hdr
	hdr.HeaderBytes = 256 + (hdr.SignalCount * 256)

	fw := &fieldWriter{w: bufio.NewWriter(ew.w)}

	fw.field(8, string(hdr.Version))
	fw.field(80, hdr.PatientID)
	fw.field(80, hdr.RecordingID)
	fw.field(8, hdr.StartTime.Format("02.01.06"))
	fw.field(8, hdr.StartTime.Format("15.04.05"))
	fw.field(8, strconv.Itoa(hdr.HeaderBytes))
	fw.field(44, hdr.Reserved)
	fw.field(8, strconv.Itoa(hdr.DataRecords))
	fw.field(8, formatNumber(hdr.DataRecordDuration.Seconds()))
	fw.field(4, strconv.Itoa(hdr.SignalCount))

	// Signal fields are grouped: every signal's label, then every signal's transducer, ...
	signalFields := []struct {
		width int
		value func(Signal) string
	}{
		{16, func(s Signal) string { return s.Label }},
		{80, func(s Signal) string { return s.TransducerType }},
		{8, func(s Signal) string { return s.PhysicalDimension }},
		{8, func(s Signal) string { return formatNumber(s.PhysicalMin) }},
		{8, func(s Signal) string { return formatNumber(s.PhysicalMax) }},
		{8, func(s Signal) string { return strconv.Itoa(s.DigitalMin) }},
		{8, func(s Signal) string { return strconv.Itoa(s.DigitalMax) }},
		{80, func(s Signal) string { return s.Prefiltering }},
		{8, func(s Signal) string { return strconv.Itoa(s.SamplesPerRecord) }},
		{32, func(Signal) string { return "" }}, // Reserved for future use
	}
	for _, f := range signalFields {
		for _, signal := range hdr.Signals {
			fw.field(f.width, f.value(signal))
		}
	}

	if fw.err != nil {
		return fw.err
	}

	// Ensure all data is flushed to the underlying writer
	return fw.w.Flush()
}

// fieldWriter writes space padded ASCII header fields, remembering the first error.
type fieldWriter struct {
	w   *bufio.Writer
	err error
}

func (fw *fieldWriter) field(width int, value string) {
	if fw.err != nil {
		return
	}
	if len(value) > width {
		value = value[:width]
	}
	_, fw.err = fw.w.WriteString(fmt.Sprintf("%-*s", width, value))
}

// convertPhysicalToDigital converts a physical value to a digital value using the calibration factors.
func convertPhysicalToDigital(physical float64, pmin, pmax float64, dmin, dmax int) int16 {
	if pmax == pmin {
		return 0 // Avoid division by zero
	}
	digital := math.Round(((physical - pmin) * (float64(dmax - dmin)) / (pmax - pmin)) + float64(dmin))
	// Out of range values saturate at the digital limits.
	return int16(max(float64(dmin), min(float64(dmax), digital)))
}

// formatNumber renders a value into at most 8 characters.
func formatNumber(val float64) string {
	s := strconv.FormatFloat(val, 'f', -1, 64)
	if len(s) > 8 {
		// Try with 2 decimal places
		s = strconv.FormatFloat(val, 'f', 2, 64)
	}
	if len(s) > 8 {
		// Fall back to no decimal
		s = strconv.FormatFloat(val, 'f', 0, 64)
	}
	return s
}
