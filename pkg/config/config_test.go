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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaceworks2/sw2optics/pkg/camera"
	"github.com/spaceworks2/sw2optics/pkg/link/dummy"
	"github.com/spaceworks2/sw2optics/pkg/thermal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CfgFile), []byte(content), 0o600))
}

func TestNewConfig_WritesDefaults(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, CfgFile), cfg.Path())
	data, err := os.ReadFile(cfg.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "config_schema = 1")
	assert.Contains(t, string(data), "request_timeout")
	assert.Contains(t, string(data), "30s")

	rev, err := cfg.Revision()
	require.NoError(t, err)
	assert.Equal(t, "sw2", rev.Name)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 5*time.Second, cfg.PingInterval())
	assert.Equal(t, 2*time.Second, cfg.PingTimeout())
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, thermal.DefaultDecodeOptions(), cfg.DecodeOptions())
	assert.Equal(t, camera.CalibrateTargetMinusMeasured, cfg.CalibrationMode())
	assert.Equal(t, dummy.ModeRandom, cfg.DummyMode())
	assert.Equal(t, 115200, cfg.PortOptions().BaudRate)
	assert.True(t, cfg.SaveFrames())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `config_schema = 1
debug_logging = true

[camera]
revision = "legacy"
orientation = "none"
calibration_mode = "raw"
ping_timeout = "3s"

[serial]
port = "/dev/ttyUSB0"
baud_rate = 9600

[dummy]
mode = "linear"
seed = 42
`)

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	assert.True(t, cfg.DebugLogging())
	rev, err := cfg.Revision()
	require.NoError(t, err)
	assert.Equal(t, "legacy", rev.Name)
	assert.Equal(t, thermal.OrientationNone, cfg.DecodeOptions().Orientation)
	assert.Equal(t, thermal.DefaultRows, cfg.DecodeOptions().Rows)
	assert.Equal(t, camera.CalibrateRaw, cfg.CalibrationMode())
	assert.Equal(t, 3*time.Second, cfg.PingTimeout())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort())
	assert.Equal(t, 9600, cfg.PortOptions().BaudRate)
	assert.Equal(t, dummy.ModeLinear, cfg.DummyMode())
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `config_schema = 1

[camera]
revision = "sw9"
orientation = "sideways"
ping_timeout = "soon"
rows = -1

[dummy]
mode = "sine"
`)

	_, err := NewConfig(dir, BaseDefaults)
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	tags := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		tags = append(tags, f.Tag)
	}
	assert.ElementsMatch(t, []string{"revision", "orientation", "duration", "gte", "dummymode"}, tags)
	assert.Contains(t, err.Error(), "camera.pingtimeout must be a valid positive duration")
}

func TestLoad_SchemaMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "config_schema = 7\n")

	_, err := NewConfig(dir, BaseDefaults)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestLoad_BadTOML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "config_schema = \n")

	_, err := NewConfig(dir, BaseDefaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config")
}

func TestNewConfig_EnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	t.Setenv(CfgEnv, path)

	cfg, err := NewConfig(t.TempDir(), BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())
	assert.FileExists(t, path)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	cfg.SetSerialPort("COM4")
	cfg.SetBaudRate(9600)
	cfg.SetDummyMode(dummy.ModeSample)
	require.NoError(t, cfg.Save())

	reloaded, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, "COM4", reloaded.SerialPort())
	assert.Equal(t, 9600, reloaded.PortOptions().BaudRate)
	assert.Equal(t, dummy.ModeSample, reloaded.DummyMode())
}

func TestDummyOptions(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(t.TempDir(), BaseDefaults)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	rev, err := cfg.Revision()
	require.NoError(t, err)
	opts := cfg.DummyOptions(fs, "/data", rev)

	assert.Equal(t, filepath.Join("/data", SampleFile), opts.SamplePath)
	assert.Equal(t, dummy.ModeRandom, opts.Mode)
	assert.Equal(t, thermal.DefaultRows, opts.Rows)
	assert.Equal(t, "sw2", opts.Revision.Name)
	assert.Same(t, fs, opts.Fs)
}

func TestRunsDir(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(t.TempDir(), BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", RunsDir), cfg.RunsDir("/data"))
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Second, parseDuration("", time.Second))
	assert.Equal(t, 250*time.Millisecond, parseDuration("250ms", time.Second))
	assert.Equal(t, time.Second, parseDuration("-1s", time.Second))
	assert.Equal(t, time.Second, parseDuration("nope", time.Second))
}

func TestDefaultDirs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, AppName, filepath.Base(ConfigDir()))
	assert.Equal(t, AppName, filepath.Base(DataDir()))
	assert.Equal(t, filepath.Join(DataDir(), LogsDir), LogDir())
}
