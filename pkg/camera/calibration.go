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

package camera

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCalibrationMode is returned for unrecognised mode names.
var ErrUnknownCalibrationMode = errors.New("unknown calibration mode")

// CalibrationMode selects how the measured scene average becomes the
// calibration offset.
type CalibrationMode string

const (
	// CalibrateTargetMinusMeasured shifts frames so the scene average
	// reads as the target temperature.
	CalibrateTargetMinusMeasured CalibrationMode = "target_minus_measured"
	CalibrateMeasuredMinusTarget CalibrationMode = "measured_minus_target"
	// CalibrateRaw uses the value the camera returns as the offset.
	CalibrateRaw CalibrationMode = "raw"
)

// DefaultCalibrationMode is used when no mode is configured.
const DefaultCalibrationMode = CalibrateTargetMinusMeasured

// CalibrationModes lists the valid mode names.
func CalibrationModes() []string {
	return []string{
		string(CalibrateTargetMinusMeasured),
		string(CalibrateMeasuredMinusTarget),
		string(CalibrateRaw),
	}
}

// ParseCalibrationMode looks up a mode by name. The empty string selects the
// default.
func ParseCalibrationMode(name string) (CalibrationMode, error) {
	switch m := CalibrationMode(strings.ToLower(strings.TrimSpace(name))); m {
	case "":
		return DefaultCalibrationMode, nil
	case CalibrateTargetMinusMeasured, CalibrateMeasuredMinusTarget, CalibrateRaw:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCalibrationMode, name)
	}
}

// Offset computes the calibration offset from a target temperature and the
// value measured by the camera.
func (m CalibrationMode) Offset(target, measured float64) float64 {
	switch m {
	case CalibrateMeasuredMinusTarget:
		return measured - target
	case CalibrateRaw:
		return measured
	default:
		return target - measured
	}
}
