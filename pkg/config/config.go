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

// Package config loads and saves the TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spaceworks2/sw2optics/pkg/camera"
	"github.com/spaceworks2/sw2optics/pkg/helpers/syncutil"
	"github.com/spaceworks2/sw2optics/pkg/link"
	"github.com/spaceworks2/sw2optics/pkg/link/dummy"
	"github.com/spaceworks2/sw2optics/pkg/protocol"
	"github.com/spaceworks2/sw2optics/pkg/thermal"
)

const (
	SchemaVersion = 1
	CfgEnv        = "SW2_CFG"
)

var ErrSchemaMismatch = errors.New("schema version mismatch")

type Values struct {
	Storage      Storage `toml:"storage"`
	Serial       Serial  `toml:"serial"`
	Dummy        Dummy   `toml:"dummy"`
	Camera       Camera  `toml:"camera"`
	ConfigSchema int     `toml:"config_schema"`
	DebugLogging bool    `toml:"debug_logging"`
}

type Camera struct {
	Revision          string  `toml:"revision" validate:"omitempty,revision"`
	Orientation       string  `toml:"orientation" validate:"omitempty,orientation"`
	CalibrationMode   string  `toml:"calibration_mode" validate:"omitempty,oneof=target_minus_measured measured_minus_target raw"`
	RequestTimeout    string  `toml:"request_timeout" validate:"omitempty,duration"`
	PingInterval      string  `toml:"ping_interval" validate:"omitempty,duration"`
	PingTimeout       string  `toml:"ping_timeout" validate:"omitempty,duration"`
	PollInterval      string  `toml:"poll_interval" validate:"omitempty,duration"`
	Rows              int     `toml:"rows" validate:"gte=0,lte=1024"`
	Cols              int     `toml:"cols" validate:"gte=0,lte=1024"`
	CalibrationTarget float64 `toml:"calibration_target"`
}

type Serial struct {
	Port     string `toml:"port,omitempty"`
	Parity   string `toml:"parity,omitempty" validate:"omitempty,oneof=N E O n e o none even odd"`
	BaudRate int    `toml:"baud_rate" validate:"gte=0"`
	DataBits int    `toml:"data_bits,omitempty" validate:"omitempty,gte=5,lte=8"`
	StopBits int    `toml:"stop_bits,omitempty" validate:"omitempty,oneof=1 2"`
}

type Dummy struct {
	Mode       string  `toml:"mode" validate:"omitempty,dummymode"`
	SampleFile string  `toml:"sample_file,omitempty"`
	Seed       uint64  `toml:"seed,omitempty"`
	Measured   float64 `toml:"measured,omitempty"`
	Thermistor float64 `toml:"thermistor,omitempty"`
}

type Storage struct {
	DataDir    string `toml:"data_dir,omitempty"`
	SaveFrames bool   `toml:"save_frames"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Camera: Camera{
		Revision:          protocol.DefaultRevision,
		Orientation:       string(thermal.DefaultOrientation),
		Rows:              thermal.DefaultRows,
		Cols:              thermal.DefaultCols,
		CalibrationMode:   string(camera.DefaultCalibrationMode),
		CalibrationTarget: 25,
		RequestTimeout:    "30s",
		PingInterval:      "5s",
		PingTimeout:       "2s",
		PollInterval:      "100ms",
	},
	Serial: Serial{
		BaudRate: link.DefaultBaudRate,
	},
	Dummy: Dummy{
		Mode: dummy.ModeRandom.String(),
	},
	Storage: Storage{
		SaveFrames: true,
	},
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads the config file from configDir, or from the path in the
// SW2_CFG environment variable. A default config is written if none exists.
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Str("path", cfgPath).Msg("config: saving new default config to disk")

		if err := os.MkdirAll(filepath.Dir(cfgPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the config file location.
func (c *Instance) Path() string {
	return c.cfgPath
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// fields missing from the file keep their defaults
	newVals := c.defaults
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return ErrSchemaMismatch
	}

	if err := Validate(&newVals); err != nil {
		return fmt.Errorf("invalid config %s: %w", c.cfgPath, err)
	}

	c.vals = newVals
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// parseDuration reads a validated duration string, falling back to def for
// empty values.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Warn().Str("value", s).Dur("default", def).Msg("config: invalid duration, using default")
		return def
	}
	return d
}
