// SW2 Optics
// Copyright (c) 2026 The SW2 Optics Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of SW2 Optics.
//
// SW2 Optics is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SW2 Optics is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with SW2 Optics.  If not, see <http://www.gnu.org/licenses/>.

package dummy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned when a dummy data mode name is not recognised.
var ErrUnknownMode = errors.New("unknown dummy mode")

// Mode selects what the simulated camera puts in its dataframes.
type Mode int

const (
	// ModeSample replays a recorded frame.
	ModeSample Mode = iota
	// ModeRandom sends uniformly random temperatures in the value range.
	ModeRandom
	// ModeLinear sends a sweep from the bottom to the top of the value range.
	ModeLinear
)

var modeNames = []string{"SAMPLE", "RANDOM", "LINEAR"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Modes lists the mode names in the order they are offered to users.
func Modes() []string {
	return append([]string(nil), modeNames...)
}

// ParseMode looks up a mode by name, ignoring case.
func ParseMode(name string) (Mode, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range modeNames {
		if n == upper {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}
