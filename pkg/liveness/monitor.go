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

// Package liveness pings the camera on a timer and tracks whether it is
// answering. Frame and calibration requests are only allowed while the
// camera is Alive.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spaceworks2/sw2optics/pkg/engine"
	"github.com/spaceworks2/sw2optics/pkg/helpers/syncutil"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 2 * time.Second
)

// State is the camera liveness as seen by the last ping.
type State int

const (
	StateUnknown State = iota
	StateAlive
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAlive:
		return "alive"
	case StateTimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Pinger sends a command and waits for the command reply.
type Pinger interface {
	RequestCommand(ctx context.Context, cmd string, timeout time.Duration) (string, error)
}

// Options configures a Monitor. Ping and Pong are the revision's tokens.
type Options struct {
	Clock    clockwork.Clock
	OnChange func(from, to State)
	Ping     string
	Pong     string
	Interval time.Duration
	Timeout  time.Duration
}

// Monitor drives the ping/pong exchange. It owns no buffers; replies are
// read through the engine.
type Monitor struct {
	pinger Pinger
	opts   Options
	mu     syncutil.RWMutex
	state  State
}

func NewMonitor(p Pinger, opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Monitor{pinger: p, opts: opts}
}

func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Alive reports whether the last ping was answered with the pong token.
func (m *Monitor) Alive() bool {
	return m.State() == StateAlive
}

func (m *Monitor) setState(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()

	if from == to {
		return
	}
	log.Info().Stringer("from", from).Stringer("to", to).Msg("liveness: state changed")
	if m.opts.OnChange != nil {
		m.opts.OnChange(from, to)
	}
}

// Tick sends one ping and updates the state from the reply. A timeout or an
// unexpected reply marks the camera TimedOut and is not an error; a dead
// link also marks it TimedOut and returns the link error.
func (m *Monitor) Tick(ctx context.Context) (State, error) {
	reply, err := m.pinger.RequestCommand(ctx, m.opts.Ping, m.opts.Timeout)
	switch {
	case err == nil && reply == m.opts.Pong:
		m.setState(StateAlive)
	case err == nil:
		log.Warn().Str("reply", reply).Str("want", m.opts.Pong).Msg("liveness: unexpected ping reply")
		m.setState(StateTimedOut)
	case errors.Is(err, engine.ErrTimeout):
		log.Debug().Dur("timeout", m.opts.Timeout).Msg("liveness: ping timed out")
		m.setState(StateTimedOut)
	case errors.Is(err, engine.ErrLinkDown):
		m.setState(StateTimedOut)
		return StateTimedOut, err
	case ctx.Err() != nil:
		return m.State(), err
	default:
		m.setState(StateTimedOut)
		return StateTimedOut, fmt.Errorf("ping failed: %w", err)
	}
	return m.State(), nil
}

// Run pings once immediately and then every interval until ctx is
// cancelled or the link goes down.
func (m *Monitor) Run(ctx context.Context) error {
	if _, err := m.Tick(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	ticker := m.opts.Clock.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if _, err := m.Tick(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}
