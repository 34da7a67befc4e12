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

// Package dummy simulates an SW2 camera behind the link.Channel interface so
// the rest of the stack can run without hardware.
package dummy

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spaceworks2/sw2optics/pkg/helpers/syncutil"
	"github.com/spaceworks2/sw2optics/pkg/link"
	"github.com/spaceworks2/sw2optics/pkg/protocol"
	"github.com/spaceworks2/sw2optics/pkg/thermal"
	"github.com/spf13/afero"
)

// ErrDisconnected is reported by every call after Disconnect.
var ErrDisconnected = errors.New("dummy device disconnected")

const (
	DefaultMin        = 10.0
	DefaultMax        = 30.0
	DefaultMeasured   = 22.5
	DefaultThermistor = 24.0
)

// Options configures a simulated camera.
type Options struct {
	// Fs and SamplePath locate the recorded frame used by ModeSample. When
	// the file cannot be loaded a fixed synthetic frame is sent instead.
	Fs         afero.Fs
	SamplePath string
	Revision   protocol.Revision
	Mode       Mode
	Rows       int
	Cols       int
	Min        float64
	Max        float64
	// Measured is the scene average returned for calibrate and average.
	Measured   float64
	Thermistor float64
	// Seed makes ModeRandom reproducible.
	Seed uint64
	// Silent devices accept writes and never answer.
	Silent bool
}

// Device is an in-memory camera. Replies are queued as soon as a complete
// framed command has been written.
type Device struct {
	err      error
	framer   *protocol.Framer
	rng      *rand.Rand
	sample   []float64
	inbuf    []byte
	pending  [][]byte
	received []string
	opts     Options
	mu       syncutil.Mutex
	closed   bool
}

var _ link.Channel = (*Device)(nil)

// New creates a simulated camera. Zero fields in opts take the defaults of
// the reference instrument.
func New(opts Options) *Device {
	if opts.Revision.Name == "" {
		opts.Revision, _ = protocol.LookupRevision(protocol.DefaultRevision)
	}
	if opts.Rows <= 0 {
		opts.Rows = thermal.DefaultRows
	}
	if opts.Cols <= 0 {
		opts.Cols = thermal.DefaultCols
	}
	if opts.Min == 0 && opts.Max == 0 {
		opts.Min, opts.Max = DefaultMin, DefaultMax
	}
	if opts.Measured == 0 {
		opts.Measured = DefaultMeasured
	}
	if opts.Thermistor == 0 {
		opts.Thermistor = DefaultThermistor
	}

	d := &Device{
		opts:   opts,
		framer: protocol.NewFramer(opts.Revision.Delimiters),
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x5357)), //nolint:gosec // simulated data
	}

	if opts.Mode == ModeSample {
		sample, err := loadSample(opts.Fs, opts.SamplePath)
		if err != nil {
			log.Warn().Err(err).Str("path", opts.SamplePath).
				Msg("dummy: sample frame unavailable, using synthetic frame")
		}
		if len(sample) != opts.Rows*opts.Cols {
			if err == nil && sample != nil {
				log.Warn().Int("values", len(sample)).Msg("dummy: sample frame has wrong size, using synthetic frame")
			}
			sample = syntheticFrame(opts.Rows, opts.Cols, opts.Min, opts.Max)
		}
		d.sample = sample
	}

	log.Debug().Str("mode", opts.Mode.String()).Str("revision", opts.Revision.Name).
		Msg("dummy: device created")
	return d
}

func loadSample(fs afero.Fs, path string) ([]float64, error) {
	if fs == nil || path == "" {
		return nil, nil
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample frame: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var values []float64
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sample frame: %w", err)
		}
		for _, field := range record {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid sample value %q: %w", field, err)
			}
			values = append(values, v)
		}
	}
	return values, nil
}

// syntheticFrame is a warm spot in the middle of the sensor fading out to
// the edges.
func syntheticFrame(rows, cols int, lo, hi float64) []float64 {
	values := make([]float64, 0, rows*cols)
	cr, cc := float64(rows-1)/2, float64(cols-1)/2
	maxDist := cr*cr + cc*cc
	if maxDist == 0 {
		maxDist = 1
	}
	for r := range rows {
		for c := range cols {
			dr, dc := float64(r)-cr, float64(c)-cc
			values = append(values, hi-(hi-lo)*(dr*dr+dc*dc)/maxDist)
		}
	}
	return values
}

func (d *Device) frameValues() []float64 {
	n := d.opts.Rows * d.opts.Cols
	switch d.opts.Mode {
	case ModeLinear:
		values := make([]float64, n)
		span := d.opts.Max - d.opts.Min
		for i := range values {
			values[i] = span*float64(i)/float64(n) + d.opts.Min
		}
		return values
	case ModeRandom:
		values := make([]float64, n)
		lo := int(d.opts.Min * 10)
		hi := int(d.opts.Max * 10)
		for i := range values {
			values[i] = float64(lo+d.rng.IntN(max(hi-lo, 1))) * 0.1
		}
		return values
	default:
		return slices.Clone(d.sample)
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func (d *Device) dataframe() []byte {
	values := d.frameValues()
	tokens := make([]string, len(values))
	for i, v := range values {
		tokens[i] = formatValue(v)
	}
	return d.framer.Encode(protocol.KindDataFrame, []byte(strings.Join(tokens, ", ")))
}

func (d *Device) float(v float64) []byte {
	return d.framer.Encode(protocol.KindFloat, []byte(formatValue(v)))
}

func (d *Device) pong() []byte {
	pong := d.opts.Revision.Commands.Pong
	if slices.Contains(d.opts.Revision.Delimiters.BareReplies, pong) {
		return []byte(pong)
	}
	return d.framer.EncodeCommand(pong)
}

// reply returns the line the camera sends for cmd, or nil if it sends none.
func (d *Device) reply(cmd string) []byte {
	v := d.opts.Revision.Commands
	switch {
	case cmd == "":
		return nil
	case cmd == v.Request, cmd == v.Shutter:
		return d.dataframe()
	case cmd == v.Ping:
		return d.pong()
	case cmd == v.Calibrate, cmd == v.Average:
		return d.float(d.opts.Measured)
	case cmd == v.Thermistor:
		return d.float(d.opts.Thermistor)
	default:
		return []byte("unknown command: " + cmd)
	}
}

// handleInput extracts complete framed commands from the input buffer.
// Bytes outside a frame are dropped the way the firmware drops them.
func (d *Device) handleInput() {
	pair := d.opts.Revision.Delimiters.Command
	for {
		start := bytes.IndexByte(d.inbuf, pair.Open)
		if start < 0 {
			d.inbuf = d.inbuf[:0]
			return
		}
		end := bytes.IndexByte(d.inbuf[start+1:], pair.Close)
		if end < 0 {
			d.inbuf = append(d.inbuf[:0], d.inbuf[start:]...)
			return
		}
		cmd := string(d.inbuf[start+1 : start+1+end])
		d.inbuf = d.inbuf[start+end+2:]

		d.received = append(d.received, cmd)
		if d.opts.Silent {
			continue
		}
		if line := d.reply(cmd); line != nil {
			d.pending = append(d.pending, line)
		}
	}
}

func (d *Device) checkLocked() error {
	if d.closed {
		return link.ErrClosed
	}
	return d.err
}

func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checkLocked() == nil
}

func (d *Device) BytesAvailable() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return false, err
	}
	return len(d.pending) > 0, nil
}

func (d *Device) ReadLine() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return nil, err
	}
	if len(d.pending) == 0 {
		return nil, link.ErrNoLine
	}
	line := d.pending[0]
	d.pending = d.pending[1:]
	return line, nil
}

func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return 0, err
	}
	d.inbuf = append(d.inbuf, p...)
	d.handleInput()
	return len(p), nil
}

func (d *Device) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checkLocked()
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.pending = nil
	return nil
}

// Inject queues raw lines as if the camera had sent them unprompted.
func (d *Device) Inject(lines ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range lines {
		d.pending = append(d.pending, []byte(l))
	}
}

// Disconnect simulates the cable being pulled. Every later call fails.
func (d *Device) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = ErrDisconnected
	d.pending = nil
}

// SetSilent stops or resumes replies.
func (d *Device) SetSilent(silent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.Silent = silent
}

// SetMeasured changes the value returned for calibrate and average.
func (d *Device) SetMeasured(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.Measured = v
}

// Received returns the commands the device has seen, oldest first.
func (d *Device) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.received)
}
