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

// Package camera is the user-facing session with an SW2 camera. It holds the
// calibration offset and only lets requests through while the liveness
// monitor reports the camera alive.
package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spaceworks2/sw2optics/pkg/helpers/syncutil"
	"github.com/spaceworks2/sw2optics/pkg/protocol"
	"github.com/spaceworks2/sw2optics/pkg/thermal"
)

// DefaultRequestTimeout bounds frame, calibration and shutter requests.
const DefaultRequestTimeout = 30 * time.Second

var (
	// ErrNotReady is returned when the camera has not answered the last ping.
	ErrNotReady = errors.New("camera not ready")
	// ErrUnsupported is returned when the firmware revision has no command
	// for the operation.
	ErrUnsupported = errors.New("operation not supported by firmware revision")
)

// Requester sends a command and waits for a reply of a given kind.
type Requester interface {
	RequestDataFrame(ctx context.Context, cmd string, timeout time.Duration) (string, error)
	RequestFloat(ctx context.Context, cmd string, timeout time.Duration) (float64, error)
}

// Readiness reports whether the camera is answering pings.
type Readiness interface {
	Alive() bool
}

// Options configures a Session.
type Options struct {
	Commands        protocol.Vocabulary
	CalibrationMode CalibrationMode
	Decode          thermal.DecodeOptions
	RequestTimeout  time.Duration
}

// Session issues camera requests on behalf of a user.
type Session struct {
	req    Requester
	ready  Readiness
	opts   Options
	mu     syncutil.RWMutex
	offset float64
	id     uuid.UUID
}

// ShutterCapture is a frame taken with the shutter closed together with the
// thermistor reading taken just before it.
type ShutterCapture struct {
	Grid       *thermal.Grid
	Thermistor float64
}

func NewSession(req Requester, ready Readiness, opts Options) *Session {
	if opts.CalibrationMode == "" {
		opts.CalibrationMode = DefaultCalibrationMode
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Decode.Rows == 0 && opts.Decode.Cols == 0 && opts.Decode.Orientation == "" {
		opts.Decode = thermal.DefaultDecodeOptions()
	}
	return &Session{
		req:   req,
		ready: ready,
		opts:  opts,
		id:    uuid.New(),
	}
}

// ID identifies the session in saved frame indexes.
func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Offset() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

func (s *Session) SetOffset(offset float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = offset
}

func (s *Session) checkReady() error {
	if !s.ready.Alive() {
		return ErrNotReady
	}
	return nil
}

func requireCommand(op, cmd string) (string, error) {
	if cmd == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, op)
	}
	return cmd, nil
}

func (s *Session) frame(ctx context.Context, cmd string) (*thermal.Grid, error) {
	payload, err := s.req.RequestDataFrame(ctx, cmd, s.opts.RequestTimeout)
	if err != nil {
		return nil, err
	}
	g, err := thermal.DecodeGrid(payload, s.Offset(), s.opts.Decode)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return g, nil
}

// RequestFrame requests a dataframe and decodes it with the current offset.
func (s *Session) RequestFrame(ctx context.Context) (*thermal.Grid, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	cmd, err := requireCommand("request", s.opts.Commands.Request)
	if err != nil {
		return nil, err
	}
	g, err := s.frame(ctx, cmd)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("rows", g.Rows()).Int("cols", g.Cols()).Msg("camera: frame received")
	return g, nil
}

// Calibrate asks the camera for the scene average and sets the offset so
// frames read as target. The previous offset is kept if anything fails.
func (s *Session) Calibrate(ctx context.Context, target float64) (float64, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	cmd, err := requireCommand("calibrate", s.opts.Commands.Calibrate)
	if err != nil {
		return 0, err
	}

	measured, err := s.req.RequestFloat(ctx, cmd, s.opts.RequestTimeout)
	if err != nil {
		log.Warn().Err(err).Msg("camera: calibration failed, keeping previous offset")
		return s.Offset(), err
	}

	offset := s.opts.CalibrationMode.Offset(target, measured)
	s.SetOffset(offset)
	log.Info().
		Float64("target", target).
		Float64("measured", measured).
		Float64("offset", offset).
		Str("mode", string(s.opts.CalibrationMode)).
		Msg("camera: calibrated")
	return offset, nil
}

// Thermistor reads the camera's thermistor temperature.
func (s *Session) Thermistor(ctx context.Context) (float64, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	cmd, err := requireCommand("thermistor", s.opts.Commands.Thermistor)
	if err != nil {
		return 0, err
	}
	return s.req.RequestFloat(ctx, cmd, s.opts.RequestTimeout)
}

// ShutterFrame reads the thermistor and then captures a frame with the
// shutter closed.
func (s *Session) ShutterFrame(ctx context.Context) (ShutterCapture, error) {
	therm, err := s.Thermistor(ctx)
	if err != nil {
		return ShutterCapture{}, err
	}
	cmd, err := requireCommand("shutter", s.opts.Commands.Shutter)
	if err != nil {
		return ShutterCapture{}, err
	}
	g, err := s.frame(ctx, cmd)
	if err != nil {
		return ShutterCapture{}, err
	}
	log.Debug().Float64("thermistor", therm).Msg("camera: shutter frame received")
	return ShutterCapture{Grid: g, Thermistor: therm}, nil
}
