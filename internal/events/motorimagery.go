// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package events

import (
	"fmt"
	"strconv"
	"strings"
)

// Task codes of the EEG Motor Movement/Imagery dataset.
const (
	Rest      = 0
	LeftFist  = 1
	RightFist = 2
	BothFists = 3
	BothFeet  = 4
)

// TaskNames describes the motor imagery task codes.
var TaskNames = map[int]string{
	Rest:      "rest",
	LeftFist:  "open and close left fist",
	RightFist: "open and close right fist",
	BothFists: "open and close both fists",
	BothFeet:  "open and close both feet",
}

// MotorImageryCodes returns the code map for a run of the EEG Motor
// Movement/Imagery dataset. T0 is always rest; the meaning of T1 and T2
// depends on the run: runs 3, 4, 7, 8, 11 and 12 are left/right fist tasks and
// runs 5, 6, 9, 10, 13 and 14 are both fists/both feet tasks. The baseline
// runs 1 and 2 only contain T0.
func MotorImageryCodes(run string) (CodeMap, error) {
	n, err := strconv.Atoi(strings.TrimLeft(strings.ToUpper(run), "R"))
	if err != nil || n < 1 || n > 14 {
		return nil, fmt.Errorf("invalid motor imagery run %q: expected R01 to R14", run)
	}

	switch {
	case n <= 2:
		return CodeMap{"T0": Rest}, nil
	case (n-3)%4 < 2:
		return CodeMap{"T0": Rest, "T1": LeftFist, "T2": RightFist}, nil
	default:
		return CodeMap{"T0": Rest, "T1": BothFists, "T2": BothFeet}, nil
	}
}
