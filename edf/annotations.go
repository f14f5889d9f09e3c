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
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Separators used inside a Time-stamped Annotation List (TAL).
const (
	talDurationSep   = 0x15
	talAnnotationSep = 0x14
	talTerminator    = 0x00
)

// ParseTALs decodes the Time-stamped Annotation Lists stored in the raw bytes
// of one annotation signal block. Trailing zero padding is ignored.
func ParseTALs(b []byte) ([]Annotation, error) {
	var annotations []Annotation

	for len(b) > 0 {
		end := bytes.IndexByte(b, talTerminator)
		if end < 0 {
			end = len(b)
		}
		tal := b[:end]
		b = b[min(end+1, len(b)):]

		if len(tal) == 0 {
			continue
		}

		parts := bytes.Split(tal, []byte{talAnnotationSep})

		timing := parts[0]
		var durationField []byte
		if i := bytes.IndexByte(timing, talDurationSep); i >= 0 {
			timing, durationField = timing[:i], timing[i+1:]
		}

		onset, err := parseOnset(timing)
		if err != nil {
			return nil, err
		}

		var duration time.Duration
		if len(durationField) > 0 {
			if duration, err = parseSeconds(durationField); err != nil {
				return nil, fmt.Errorf("error parsing annotation duration: %w", err)
			}
		}

		for _, text := range parts[1:] {
			description := strings.TrimSpace(string(text))
			if description == "" {
				continue
			}
			annotations = append(annotations, Annotation{
				Onset:       onset,
				Duration:    duration,
				Description: description,
			})
		}
	}

	return annotations, nil
}

// EncodeTALs encodes a data record's timekeeping TAL followed by the given
// annotations into a block of exactly size bytes.
func EncodeTALs(recordOnset time.Duration, annotations []Annotation, size int) ([]byte, error) {
	var buf bytes.Buffer

	// Every record starts with a timekeeping TAL holding the record's onset.
	buf.WriteString(formatSeconds(recordOnset))
	buf.Write([]byte{talAnnotationSep, talAnnotationSep, talTerminator})

	for _, a := range annotations {
		buf.WriteString(formatSeconds(a.Onset))
		if a.Duration > 0 {
			buf.WriteByte(talDurationSep)
			buf.WriteString(strings.TrimPrefix(formatSeconds(a.Duration), "+"))
		}
		buf.WriteByte(talAnnotationSep)
		buf.WriteString(a.Description)
		buf.Write([]byte{talAnnotationSep, talTerminator})
	}

	if buf.Len() > size {
		return nil, fmt.Errorf("annotations need %d bytes, annotation signal holds %d", buf.Len(), size)
	}

	out := make([]byte, size)
	copy(out, buf.Bytes())
	return out, nil
}

func parseOnset(b []byte) (time.Duration, error) {
	if len(b) == 0 || (b[0] != '+' && b[0] != '-') {
		return 0, fmt.Errorf("invalid annotation onset %q: must start with a sign", b)
	}
	d, err := parseSeconds(b)
	if err != nil {
		return 0, fmt.Errorf("error parsing annotation onset: %w", err)
	}
	return d, nil
}

func parseSeconds(b []byte) (time.Duration, error) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(math.Round(f * float64(time.Second))), nil
}

func formatSeconds(d time.Duration) string {
	s := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	if d >= 0 {
		s = "+" + s
	}
	return s
}
