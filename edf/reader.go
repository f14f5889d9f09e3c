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
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidHeader is wrapped by every header parsing failure.
var ErrInvalidHeader = errors.New("invalid EDF header")

// Reader reads EDF/EDF+ files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open opens an EDF/EDF+ file for reading.
func Open(r io.ReadSeeker) (*Reader, error) {
	reader := bufio.NewReader(r)

	b := make([]byte, 256)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, fmt.Errorf("%w: error reading header: %w", ErrInvalidHeader, err)
	}

	// Parse fields based on EDF/EDF+ specifications
	hdr := &Header{}
	hdr.Version = Version(strings.TrimSpace(string(b[0:8])))
	hdr.PatientID = strings.TrimSpace(string(b[8:88]))
	hdr.RecordingID = strings.TrimSpace(string(b[88:168]))
	dateStr := strings.TrimSpace(string(b[168:176]))
	timeStr := strings.TrimSpace(string(b[176:184]))

	startDate, err := time.Parse("02.01.06", dateStr)
	if err != nil {
		return nil, fmt.Errorf("%w: error parsing start date: %w", ErrInvalidHeader, err)
	}
	startTime, err := time.Parse("15.04.05", timeStr)
	if err != nil {
		return nil, fmt.Errorf("%w: error parsing start time: %w", ErrInvalidHeader, err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = strconv.Atoi(strings.TrimSpace(string(b[184:192]))); err != nil {
		return nil, fmt.Errorf("%w: error parsing header bytes: %w", ErrInvalidHeader, err)
	}
	hdr.Reserved = strings.TrimSpace(string(b[192:236]))

	if hdr.DataRecords, err = strconv.Atoi(strings.TrimSpace(string(b[236:244]))); err != nil {
		return nil, fmt.Errorf("%w: error parsing number of data records: %w", ErrInvalidHeader, err)
	}

	hdr.DataRecordDuration, err = time.ParseDuration(fmt.Sprintf("%ss", strings.TrimSpace(string(b[244:252]))))
	if err != nil {
		return nil, fmt.Errorf("%w: error parsing data record duration: %w", ErrInvalidHeader, err)
	}

	if hdr.SignalCount, err = strconv.Atoi(strings.TrimSpace(string(b[252:256]))); err != nil {
		return nil, fmt.Errorf("%w: error parsing signal count: %w", ErrInvalidHeader, err)
	}
	if hdr.SignalCount <= 0 {
		return nil, fmt.Errorf("%w: signal count must be positive, got %d", ErrInvalidHeader, hdr.SignalCount)
	}
	if want := 256 * (hdr.SignalCount + 1); hdr.HeaderBytes != want {
		return nil, fmt.Errorf("%w: header declares %d bytes, expected %d for %d signals",
			ErrInvalidHeader, hdr.HeaderBytes, want, hdr.SignalCount)
	}

	if err := readSignalHeaders(reader, hdr); err != nil {
		return nil, err
	}

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("error seeking to end of file: %w", err)
	}
	dataBytes := size - int64(hdr.HeaderBytes)
	recordSize := int64(hdr.RecordSize())

	if hdr.DataRecords < 0 {
		// Writers that crashed before finalising leave -1; recover the count from the file size.
		hdr.DataRecords = int(max(dataBytes, 0) / recordSize)
	} else if int64(hdr.DataRecords) > dataBytes/recordSize {
		return nil, fmt.Errorf("%w: header declares %d data records of %d bytes, file holds %d bytes of data",
			ErrInvalidHeader, hdr.DataRecords, recordSize, max(dataBytes, 0))
	}

	return &Reader{
		r:   r,
		hdr: hdr,
	}, nil
}

// readSignalHeaders reads the per-signal header fields. Each field is stored
// for all signals in turn before the next field begins.
func readSignalHeaders(reader io.Reader, hdr *Header) error {
	hdr.Signals = make([]Signal, hdr.SignalCount)

	fields := []struct {
		width int
		set   func(sig *Signal, v []byte)
	}{
		{16, func(sig *Signal, v []byte) { sig.Label = strings.TrimSpace(string(v)) }},
		{80, func(sig *Signal, v []byte) { sig.TransducerType = strings.TrimSpace(string(v)) }},
		{8, func(sig *Signal, v []byte) { sig.PhysicalDimension = strings.TrimSpace(string(v)) }},
		{8, func(sig *Signal, v []byte) { sig.PhysicalMin = parseFloat(v) }},
		{8, func(sig *Signal, v []byte) { sig.PhysicalMax = parseFloat(v) }},
		{8, func(sig *Signal, v []byte) { sig.DigitalMin = parseInt(v) }},
		{8, func(sig *Signal, v []byte) { sig.DigitalMax = parseInt(v) }},
		{80, func(sig *Signal, v []byte) { sig.Prefiltering = strings.TrimSpace(string(v)) }},
		{8, func(sig *Signal, v []byte) { sig.SamplesPerRecord = parseInt(v) }},
		{32, func(sig *Signal, v []byte) { sig.Reserved = strings.TrimSpace(string(v)) }},
	}

	for _, field := range fields {
		b := make([]byte, field.width)
		for i := range hdr.Signals {
			if _, err := io.ReadFull(reader, b); err != nil {
				return fmt.Errorf("%w: error reading signal headers: %w", ErrInvalidHeader, err)
			}
			field.set(&hdr.Signals[i], b)
		}
	}

	for i, sig := range hdr.Signals {
		if sig.SamplesPerRecord <= 0 {
			return fmt.Errorf("%w: signal %d (%s) has no samples per record", ErrInvalidHeader, i, sig.Label)
		}
	}

	return nil
}

// Header returns the parsed file header.
func (er *Reader) Header() *Header {
	return er.hdr
}

// ReadAll reads every data record and returns the physical values of each
// signal. The slice for an annotation signal is left nil.
func (er *Reader) ReadAll() ([][]float64, error) {
	hdr := er.hdr

	out := make([][]float64, len(hdr.Signals))
	for i, sig := range hdr.Signals {
		if !sig.IsAnnotation() {
			out[i] = make([]float64, 0, sig.SamplesPerRecord*hdr.DataRecords)
		}
	}

	if _, err := er.r.Seek(int64(hdr.HeaderBytes), io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to first data record: %w", err)
	}
	reader := bufio.NewReader(er.r)

	record := make([]byte, hdr.RecordSize())
	for n := 0; n < hdr.DataRecords; n++ {
		if _, err := io.ReadFull(reader, record); err != nil {
			return nil, fmt.Errorf("error reading data record %d of %d: %w", n, hdr.DataRecords, err)
		}

		offset := 0
		for i, sig := range hdr.Signals {
			if !sig.IsAnnotation() {
				for j := 0; j < sig.SamplesPerRecord; j++ {
					digitalValue := int16(binary.LittleEndian.Uint16(record[offset+j*2:]))
					out[i] = append(out[i], convertDigitalToPhysical(digitalValue, sig.DigitalMin, sig.DigitalMax, sig.PhysicalMin, sig.PhysicalMax))
				}
			}
			offset += sig.SamplesPerRecord * 2
		}
	}

	return out, nil
}

// Annotations decodes the annotations stored in every EDF+ annotation signal.
// Timekeeping TALs, which carry no description, are omitted. A plain EDF file
// yields no annotations.
func (er *Reader) Annotations() ([]Annotation, error) {
	hdr := er.hdr
	recordSize := hdr.RecordSize()

	var annotations []Annotation
	signalOffset := 0
	for i, sig := range hdr.Signals {
		size := sig.SamplesPerRecord * 2
		if !sig.IsAnnotation() {
			signalOffset += size
			continue
		}

		buf := make([]byte, size)
		for n := 0; n < hdr.DataRecords; n++ {
			pos := int64(hdr.HeaderBytes) + int64(n)*int64(recordSize) + int64(signalOffset)
			if _, err := er.r.Seek(pos, io.SeekStart); err != nil {
				return nil, fmt.Errorf("error seeking to position: %w", err)
			}
			if _, err := io.ReadFull(er.r, buf); err != nil {
				return nil, fmt.Errorf("error reading annotation signal %d in record %d: %w", i, n, err)
			}

			tals, err := ParseTALs(buf)
			if err != nil {
				return nil, fmt.Errorf("error decoding annotations in record %d: %w", n, err)
			}
			annotations = append(annotations, tals...)
		}
		signalOffset += size
	}

	return annotations, nil
}

// SignalReader reads continuous signal data from an EDF/EDF+ file.
type SignalReader struct {
	r                io.ReadSeeker
	hdr              *Header
	signalIndex      int // Index of the signal to read
	currentRecord    int // Current record being processed
	currentSample    int // Current sample in the record
	recordSize       int // Total size of one data record
	signalOffset     int // Byte offset of the signal in a record
	samplesPerRecord int // Number of samples per record for the signal
}

// Signal creates a new SignalReader for a specified signal index.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index out of range")
	}

	signal := er.hdr.Signals[signalIndex]
	if signal.IsAnnotation() {
		return nil, fmt.Errorf("signal %d is an annotation signal", signalIndex)
	}

	signalOffset := 0
	for _, sig := range er.hdr.Signals[:signalIndex] {
		signalOffset += sig.SamplesPerRecord * 2
	}

	return &SignalReader{
		r:                er.r,
		hdr:              er.hdr,
		signalIndex:      signalIndex,
		recordSize:       er.hdr.RecordSize(),
		signalOffset:     signalOffset,
		samplesPerRecord: signal.SamplesPerRecord,
	}, nil
}

// Read fills the provided float64 slice with the physical values from the signal.
func (sr *SignalReader) Read(data []float64) (int, error) {
	signal := sr.hdr.Signals[sr.signalIndex]
	buf := make([]byte, 2*sr.samplesPerRecord)

	n := 0
	for n < len(data) {
		if sr.currentRecord >= sr.hdr.DataRecords {
			return n, io.EOF // End of data records
		}

		// Read the rest of the current record's block for this signal in one go.
		remaining := min(sr.samplesPerRecord-sr.currentSample, len(data)-n)
		pos := int64(sr.hdr.HeaderBytes) + int64(sr.currentRecord)*int64(sr.recordSize) + int64(sr.signalOffset) + int64(sr.currentSample*2)
		if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
			return n, fmt.Errorf("error seeking to position: %w", err)
		}
		if _, err := io.ReadFull(sr.r, buf[:remaining*2]); err != nil {
			return n, fmt.Errorf("error reading sample data: %w", err)
		}

		for j := 0; j < remaining; j++ {
			digitalValue := int16(binary.LittleEndian.Uint16(buf[j*2:]))
			data[n] = convertDigitalToPhysical(digitalValue, signal.DigitalMin, signal.DigitalMax, signal.PhysicalMin, signal.PhysicalMax)
			n++
		}

		sr.currentSample += remaining
		if sr.currentSample >= sr.samplesPerRecord {
			sr.currentSample = 0
			sr.currentRecord++
		}
	}

	return n, nil
}

// convertDigitalToPhysical converts a digital value from the data record to a physical value using the calibration factors.
func convertDigitalToPhysical(digital int16, dmin, dmax int, pmin, pmax float64) float64 {
	if dmax == dmin {
		return 0 // Avoid division by zero
	}
	return pmin + (float64(digital)-float64(dmin))*(pmax-pmin)/float64(dmax-dmin)
}

func parseFloat(b []byte) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0.0
	}
	return f
}

func parseInt(b []byte) int {
	i, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0
	}
	return i
}
