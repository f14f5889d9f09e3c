// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package recording loads an EDF/EDF+ file into an in-memory multichannel
// recording.
package recording

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/OpenPSG/eegscope/edf"
)

// ChannelKind is the physiological type of a channel.
type ChannelKind string

const (
	KindEEG  ChannelKind = "eeg"
	KindEOG  ChannelKind = "eog"
	KindECG  ChannelKind = "ecg"
	KindEMG  ChannelKind = "emg"
	KindResp ChannelKind = "resp"
	KindMisc ChannelKind = "misc"
)

// Channel describes one data signal of a recording.
type Channel struct {
	Name       string
	Kind       ChannelKind
	Unit       string  // Physical dimension, e.g. uV
	SampleRate float64 // Native rate before alignment to the recording rate
	Prefilter  string
}

// Info is the metadata header of a recording.
type Info struct {
	PatientID      string
	RecordingID    string
	MeasDate       time.Time
	Format         string // EDF, EDF+C or EDF+D
	DataRecords    int
	RecordDuration time.Duration
	SampleRate     float64
	Highpass       float64 // Hz, from the channels' prefilter fields
	Lowpass        float64 // Hz, Nyquist when no channel declares one
	Channels       []Channel
}

// Recording is a loaded EDF/EDF+ file. It is not modified after Load.
type Recording struct {
	path        string
	info        Info
	nSamples    int
	data        [][]float64 // channels x samples, nil until read
	annotations []edf.Annotation
}

// Load opens and parses the recording at path. With preload set every sample
// is read immediately; otherwise samples are read on the first call to Data.
func Load(path string, preload bool) (*Recording, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, openError(path, err)
	}
	if st.IsDir() {
		return nil, &LoadError{Kind: KindNotFound, Path: path, Err: fmt.Errorf("%s is a directory", path)}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}
	defer f.Close()

	er, err := edf.Open(f)
	if err != nil {
		return nil, &LoadError{Kind: KindParse, Path: path, Err: err}
	}

	rec, err := fromHeader(path, er.Header())
	if err != nil {
		return nil, &LoadError{Kind: KindParse, Path: path, Err: err}
	}

	if rec.annotations, err = er.Annotations(); err != nil {
		return nil, &LoadError{Kind: KindParse, Path: path, Err: err}
	}

	if preload {
		if rec.data, err = rec.readSamples(er); err != nil {
			return nil, &LoadError{Kind: KindParse, Path: path, Err: err}
		}
	}

	return rec, nil
}

// openError classifies a failure to reach path. A path component that is a
// regular file rather than a directory means the file does not exist.
func openError(path string, err error) *LoadError {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return &LoadError{Kind: KindNotFound, Path: path, Err: err}
	}
	return &LoadError{Kind: KindUnexpected, Path: path, Err: err}
}

func fromHeader(path string, hdr *edf.Header) (*Recording, error) {
	info := Info{
		PatientID:      hdr.PatientID,
		RecordingID:    hdr.RecordingID,
		MeasDate:       hdr.StartTime,
		Format:         "EDF",
		DataRecords:    hdr.DataRecords,
		RecordDuration: hdr.DataRecordDuration,
	}
	if hdr.IsEDFPlus() {
		info.Format = hdr.Reserved
	}

	// Records of an EDF+D file are not contiguous in time.
	if hdr.Reserved == edf.ReservedDiscontinuous {
		return nil, errors.New("discontinuous EDF+D recordings are not supported")
	}
	if hdr.DataRecordDuration <= 0 {
		return nil, fmt.Errorf("data record duration must be positive, got %s", hdr.DataRecordDuration)
	}

	maxPerRecord := 0
	for _, sig := range hdr.Signals {
		if sig.IsAnnotation() {
			continue
		}
		info.Channels = append(info.Channels, Channel{
			Name:       sig.Label,
			Kind:       inferKind(sig.Label),
			Unit:       sig.PhysicalDimension,
			SampleRate: sig.SampleRate(hdr.DataRecordDuration),
			Prefilter:  sig.Prefiltering,
		})
		maxPerRecord = max(maxPerRecord, sig.SamplesPerRecord)
	}
	if len(info.Channels) == 0 {
		return nil, errors.New("recording has no data signals")
	}

	info.SampleRate = float64(maxPerRecord) / hdr.DataRecordDuration.Seconds()
	info.Highpass, info.Lowpass = filterBand(info.Channels, info.SampleRate)

	return &Recording{
		path:     path,
		info:     info,
		nSamples: maxPerRecord * hdr.DataRecords,
	}, nil
}

// readSamples reads every data signal and aligns slower channels to the
// recording rate by repeating samples.
func (r *Recording) readSamples(er *edf.Reader) ([][]float64, error) {
	raw, err := er.ReadAll()
	if err != nil {
		return nil, err
	}

	data := make([][]float64, 0, len(r.info.Channels))
	for i, sig := range er.Header().Signals {
		if sig.IsAnnotation() {
			continue
		}
		data = append(data, hold(raw[i], r.nSamples))
	}
	return data, nil
}

func hold(x []float64, n int) []float64 {
	if len(x) == n || len(x) == 0 {
		return x
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = x[i*len(x)/n]
	}
	return out
}

// Path returns the file the recording was loaded from.
func (r *Recording) Path() string { return r.path }

// Info returns the metadata header.
func (r *Recording) Info() Info { return r.info }

// SampleRate returns the sampling frequency in Hz.
func (r *Recording) SampleRate() float64 { return r.info.SampleRate }

// Channels returns the data channels in file order.
func (r *Recording) Channels() []Channel { return r.info.Channels }

// ChannelNames returns the channel labels in file order.
func (r *Recording) ChannelNames() []string {
	names := make([]string, len(r.info.Channels))
	for i, ch := range r.info.Channels {
		names[i] = ch.Name
	}
	return names
}

// Picks returns the indices of the channels of the given kind.
func (r *Recording) Picks(kind ChannelKind) []int {
	var picks []int
	for i, ch := range r.info.Channels {
		if ch.Kind == kind {
			picks = append(picks, i)
		}
	}
	return picks
}

// NumSamples returns the number of samples per channel.
func (r *Recording) NumSamples() int { return r.nSamples }

// Times returns the timestamp in seconds of every sample.
func (r *Recording) Times() []float64 {
	times := make([]float64, r.nSamples)
	for i := range times {
		times[i] = float64(i) / r.info.SampleRate
	}
	return times
}

// Duration returns the timestamp of the final sample in seconds.
func (r *Recording) Duration() float64 {
	if r.nSamples == 0 {
		return 0
	}
	return float64(r.nSamples-1) / r.info.SampleRate
}

// Annotations returns the EDF+ annotations, excluding timekeeping entries.
func (r *Recording) Annotations() []edf.Annotation { return r.annotations }

// Data returns the samples as channels x time, reading them from disk if the
// recording was loaded without preload.
func (r *Recording) Data() ([][]float64, error) {
	if r.data != nil {
		return r.data, nil
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, openError(r.path, err)
	}
	defer f.Close()

	er, err := edf.Open(f)
	if err != nil {
		return nil, &LoadError{Kind: KindParse, Path: r.path, Err: err}
	}
	if r.data, err = r.readSamples(er); err != nil {
		return nil, &LoadError{Kind: KindParse, Path: r.path, Err: err}
	}

	return r.data, nil
}

func inferKind(label string) ChannelKind {
	l := strings.ToUpper(strings.TrimSpace(label))
	switch {
	case strings.HasPrefix(l, "EOG"):
		return KindEOG
	case strings.HasPrefix(l, "ECG"), strings.HasPrefix(l, "EKG"):
		return KindECG
	case strings.HasPrefix(l, "EMG"):
		return KindEMG
	case strings.HasPrefix(l, "RESP"):
		return KindResp
	case strings.HasPrefix(l, "STI"), strings.HasPrefix(l, "STATUS"):
		return KindMisc
	default:
		return KindEEG
	}
}

var (
	highpassRe = regexp.MustCompile(`(?i)HP:\s*([0-9.]+)\s*(m?Hz)?`)
	lowpassRe  = regexp.MustCompile(`(?i)LP:\s*([0-9.]+)\s*(m?Hz)?`)
)

// filterBand returns the strictest highpass and lowpass cut-offs declared by
// any channel.
func filterBand(channels []Channel, sfreq float64) (highpass, lowpass float64) {
	lowpass = math.Inf(1)
	for _, ch := range channels {
		if hz, ok := parseCutoff(highpassRe, ch.Prefilter); ok {
			highpass = max(highpass, hz)
		}
		// A zero lowpass means no filter was applied.
		if hz, ok := parseCutoff(lowpassRe, ch.Prefilter); ok && hz > 0 {
			lowpass = min(lowpass, hz)
		}
	}
	if math.IsInf(lowpass, 1) {
		lowpass = sfreq / 2
	}
	return highpass, lowpass
}

func parseCutoff(re *regexp.Regexp, prefilter string) (float64, bool) {
	m := re.FindStringSubmatch(prefilter)
	if m == nil {
		return 0, false
	}
	hz, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if strings.EqualFold(m[2], "mHz") {
		hz /= 1000
	}
	return hz, true
}
