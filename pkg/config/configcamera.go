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
	"time"

	"github.com/spaceworks2/sw2optics/pkg/camera"
	"github.com/spaceworks2/sw2optics/pkg/link"
	"github.com/spaceworks2/sw2optics/pkg/link/dummy"
	"github.com/spaceworks2/sw2optics/pkg/protocol"
	"github.com/spaceworks2/sw2optics/pkg/thermal"
	"github.com/spf13/afero"
)

func (c *Instance) Revision() (protocol.Revision, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name := c.vals.Camera.Revision
	if name == "" {
		name = protocol.DefaultRevision
	}
	return protocol.LookupRevision(name)
}

func (c *Instance) DecodeOptions() thermal.DecodeOptions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return thermal.DecodeOptions{
		Rows:        c.vals.Camera.Rows,
		Cols:        c.vals.Camera.Cols,
		Orientation: thermal.Orientation(c.vals.Camera.Orientation),
	}
}

func (c *Instance) CalibrationMode() camera.CalibrationMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mode, err := camera.ParseCalibrationMode(c.vals.Camera.CalibrationMode)
	if err != nil {
		return camera.DefaultCalibrationMode
	}
	return mode
}

func (c *Instance) CalibrationTarget() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Camera.CalibrationTarget
}

func (c *Instance) RequestTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Camera.RequestTimeout, camera.DefaultRequestTimeout)
}

func (c *Instance) PingInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Camera.PingInterval, 5*time.Second)
}

func (c *Instance) PingTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Camera.PingTimeout, 2*time.Second)
}

func (c *Instance) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Camera.PollInterval, 100*time.Millisecond)
}

func (c *Instance) SerialPort() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.Port
}

func (c *Instance) SetSerialPort(port string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Serial.Port = port
}

func (c *Instance) PortOptions() link.PortOptions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return link.PortOptions{
		BaudRate: c.vals.Serial.BaudRate,
		DataBits: c.vals.Serial.DataBits,
		StopBits: c.vals.Serial.StopBits,
		Parity:   c.vals.Serial.Parity,
	}
}

func (c *Instance) SetBaudRate(baud int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Serial.BaudRate = baud
}

func (c *Instance) DummyMode() dummy.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mode, err := dummy.ParseMode(c.vals.Dummy.Mode)
	if err != nil {
		return dummy.ModeRandom
	}
	return mode
}

func (c *Instance) SetDummyMode(mode dummy.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Dummy.Mode = mode.String()
}

// DummyOptions builds simulated camera options. A relative sample file is
// resolved against dataDir.
func (c *Instance) DummyOptions(fs afero.Fs, dataDir string, rev protocol.Revision) dummy.Options {
	decode := c.DecodeOptions()
	mode := c.DummyMode()

	c.mu.RLock()
	defer c.mu.RUnlock()

	sample := c.vals.Dummy.SampleFile
	if sample == "" {
		sample = SampleFile
	}
	if !filepath.IsAbs(sample) {
		sample = filepath.Join(dataDir, sample)
	}

	return dummy.Options{
		Fs:         fs,
		SamplePath: sample,
		Revision:   rev,
		Mode:       mode,
		Rows:       decode.Rows,
		Cols:       decode.Cols,
		Measured:   c.vals.Dummy.Measured,
		Thermistor: c.vals.Dummy.Thermistor,
		Seed:       c.vals.Dummy.Seed,
	}
}

// RunsDir is where captured runs are stored. dataDir is used when no
// directory is configured.
func (c *Instance) RunsDir(dataDir string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Storage.DataDir != "" {
		return c.vals.Storage.DataDir
	}
	return filepath.Join(dataDir, RunsDir)
}

func (c *Instance) SaveFrames() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Storage.SaveFrames
}
