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

// Package cli holds the command line flags and process setup for the
// sw2optics binary.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"

	"github.com/spaceworks2/sw2optics/pkg/config"
	"github.com/spaceworks2/sw2optics/pkg/helpers"
	"github.com/spaceworks2/sw2optics/pkg/link"
	"github.com/spaceworks2/sw2optics/pkg/link/dummy"
)

// MaxFrames caps how many frames one dataset can request.
const MaxFrames = 50

var ErrInvalidFlag = errors.New("invalid flag")

type Flags struct {
	fs         *flag.FlagSet
	Port       *string
	Dummy      *string
	ConfigDir  *string
	Baud       *int
	Frames     *int
	Calibrate  *float64
	Shutter    *bool
	Thermistor *bool
	ListPorts  *bool
	Version    *bool
	Debug      *bool
}

// SetupFlags registers the flags on fs. Pass flag.CommandLine for the
// process flags.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		fs: fs,
		Port: fs.String(
			"port",
			"",
			"serial port of the camera, or \"Dummy\" for the simulator",
		),
		Dummy: fs.String(
			"dummy",
			"",
			"use the simulated camera with data mode SAMPLE, RANDOM or LINEAR",
		),
		ConfigDir: fs.String(
			"config",
			"",
			"directory holding config.toml",
		),
		Baud: fs.Int(
			"baud",
			0,
			"serial baud rate (9600 or 115200)",
		),
		Frames: fs.Int(
			"frames",
			0,
			"number of frames to capture into a new dataset",
		),
		Calibrate: fs.Float64(
			"calibrate",
			0,
			"calibrate so the scene reads as this temperature",
		),
		Shutter: fs.Bool(
			"shutter",
			false,
			"capture a shutter frame with its thermistor reading",
		),
		Thermistor: fs.Bool(
			"thermistor",
			false,
			"print the thermistor temperature",
		),
		ListPorts: fs.Bool(
			"list-ports",
			false,
			"list available ports and exit",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Debug: fs.Bool(
			"debug",
			false,
			"enable debug logging",
		),
	}
}

// IsSet reports whether the named flag was given on the command line.
func (f *Flags) IsSet(name string) bool {
	found := false
	f.fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// HasAction reports whether any camera operation was requested. Without one
// the binary only monitors the link.
func (f *Flags) HasAction() bool {
	return *f.Frames > 0 || f.IsSet("calibrate") || *f.Shutter || *f.Thermistor
}

// Validate checks flag values that the flag package cannot.
func (f *Flags) Validate() error {
	if *f.Frames < 0 || *f.Frames > MaxFrames {
		return fmt.Errorf("%w: -frames must be between 0 and %d", ErrInvalidFlag, MaxFrames)
	}
	if *f.Baud != 0 && !slices.Contains(link.Baudrates(), *f.Baud) {
		return fmt.Errorf("%w: -baud must be one of %v", ErrInvalidFlag, link.Baudrates())
	}
	if *f.Dummy != "" {
		if _, err := dummy.ParseMode(*f.Dummy); err != nil {
			return fmt.Errorf("%w: -dummy: %w", ErrInvalidFlag, err)
		}
	}
	return nil
}

// Pre handles flags that need no config, writing to out. It reports whether
// the process should exit.
func (f *Flags) Pre(out io.Writer) (bool, error) {
	if *f.Version {
		_, _ = fmt.Fprintf(out, "sw2optics v%s\n", config.AppVersion)
		return true, nil
	}
	if *f.ListPorts {
		for _, p := range link.ListPorts() {
			_, _ = fmt.Fprintln(out, p)
		}
		return true, nil
	}
	return false, f.Validate()
}

// Apply copies connection flags over the loaded config. Nothing is saved.
func (f *Flags) Apply(cfg *config.Instance) {
	if *f.Dummy != "" {
		mode, err := dummy.ParseMode(*f.Dummy)
		if err == nil {
			cfg.SetDummyMode(mode)
			cfg.SetSerialPort(link.DummyPort)
		}
	}
	if *f.Port != "" {
		cfg.SetSerialPort(*f.Port)
	}
	if *f.Baud != 0 {
		cfg.SetBaudRate(*f.Baud)
	}
	if *f.Debug {
		cfg.SetDebugLogging(true)
	}
}

// Setup initialises logging and loads the config.
func Setup(f *Flags, defaults config.Values, writers []io.Writer) (*config.Instance, error) {
	if err := helpers.InitLogging(config.LogDir(), *f.Debug, writers); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	cfgDir := *f.ConfigDir
	if cfgDir == "" {
		cfgDir = config.ConfigDir()
	}
	cfg, err := config.NewConfig(cfgDir, defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	f.Apply(cfg)
	cfg.SetDebugLogging(cfg.DebugLogging())
	return cfg, nil
}
