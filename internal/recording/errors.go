// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package recording

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a load failure.
type ErrorKind int

const (
	// KindUnexpected covers failures that are neither a missing file nor bad content.
	KindUnexpected ErrorKind = iota
	// KindNotFound means the path does not resolve to an existing file.
	KindNotFound
	// KindParse means the file exists but is not a readable EDF/EDF+ recording.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindParse:
		return "parse error"
	default:
		return "unexpected"
	}
}

// Sentinels matched by errors.Is against a *LoadError of the same kind.
var (
	ErrNotFound   = errors.New("recording not found")
	ErrParse      = errors.New("recording could not be parsed")
	ErrUnexpected = errors.New("unexpected error loading recording")
)

// LoadError is returned by Load and Recording.Data.
type LoadError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("error loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for the error's kind.
func (e *LoadError) Is(target error) bool {
	switch e.Kind {
	case KindNotFound:
		return target == ErrNotFound
	case KindParse:
		return target == ErrParse
	default:
		return target == ErrUnexpected
	}
}

// KindOf returns the kind of a load failure, or KindUnexpected for any other error.
func KindOf(err error) ErrorKind {
	var lerr *LoadError
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return KindUnexpected
}
