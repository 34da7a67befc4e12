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

package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

var AppVersion = "DEVELOPMENT"

const (
	AppName    = "sw2optics"
	CfgFile    = "config.toml"
	LogFile    = "sw2optics.log"
	LogsDir    = "logs"
	RunsDir    = "runs"
	SampleFile = "SAMPLE_DATA.csv"
)

// ConfigDir is the default directory holding the config file.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DataDir is the default directory for captured runs and sample data.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// LogDir is the default directory for log files.
func LogDir() string {
	return filepath.Join(xdg.DataHome, AppName, LogsDir)
}
