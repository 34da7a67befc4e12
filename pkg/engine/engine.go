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

// Package engine drives the request/reply exchange with a camera over a
// link.Channel. Every line read is classified and pushed onto the stack for
// its kind, and callers wait for the kind they need.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spaceworks2/sw2optics/pkg/helpers/syncutil"
	"github.com/spaceworks2/sw2optics/pkg/link"
	"github.com/spaceworks2/sw2optics/pkg/protocol"
	"github.com/spaceworks2/sw2optics/pkg/thermal"
)

// DefaultPollBackoff is how long a waiting caller sleeps when the channel
// has nothing queued.
const DefaultPollBackoff = 10 * time.Millisecond

// Options configures an Engine. All fields are optional.
type Options struct {
	Clock clockwork.Clock
	// OnLinkDown is called once, outside the engine lock, when the link fails.
	OnLinkDown func(err error)
	// Terminal receives lines that are not protocol messages.
	Terminal    func(line string)
	PollBackoff time.Duration
}

// Engine owns the channel and the pending reply stacks. One mutex guards
// both, and waits hold it, so a background poll never steals a reply from a
// waiting caller.
type Engine struct {
	ch          link.Channel
	clock       clockwork.Clock
	downErr     error
	framer      *protocol.Framer
	onLinkDown  func(error)
	terminal    func(string)
	fireDown    func()
	commands    Stack[string]
	frames      Stack[string]
	floats      Stack[string]
	pollBackoff time.Duration
	state       atomic.Int32
	awaiting    atomic.Int32
	mu          syncutil.Mutex
}

// New creates an engine that talks over ch using the given delimiters.
func New(ch link.Channel, delims protocol.Delimiters, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PollBackoff <= 0 {
		opts.PollBackoff = DefaultPollBackoff
	}
	if opts.Terminal == nil {
		opts.Terminal = func(line string) {
			log.Info().Str("line", line).Msg("engine: device output")
		}
	}
	return &Engine{
		ch:          ch,
		clock:       opts.Clock,
		framer:      protocol.NewFramer(delims),
		onLinkDown:  opts.OnLinkDown,
		terminal:    opts.Terminal,
		pollBackoff: opts.PollBackoff,
	}
}

// unlock releases the lock and then runs a pending link down callback, so
// the callback may call back into the engine.
func (e *Engine) unlock() {
	fire := e.fireDown
	e.fireDown = nil
	e.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// Status returns the current state without waiting for the lock.
func (e *Engine) Status() Status {
	return Status{
		State:    State(e.state.Load()),
		Awaiting: protocol.Kind(e.awaiting.Load()),
	}
}

// Err returns the link down error, or nil while the link is healthy.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.unlock()
	return e.downErr
}

// Pending returns the number of buffered command replies, dataframes and
// floats.
func (e *Engine) Pending() (commands, frames, floats int) {
	e.mu.Lock()
	defer e.unlock()
	return e.commands.Len(), e.frames.Len(), e.floats.Len()
}

func (e *Engine) goDown(cause error) error {
	if e.downErr != nil {
		return e.downErr
	}
	e.downErr = fmt.Errorf("%w: %w", ErrLinkDown, cause)
	e.state.Store(int32(StateLinkDown))
	log.Error().Err(cause).Msg("engine: connection lost")

	if e.onLinkDown != nil {
		cb, err := e.onLinkDown, e.downErr
		e.fireDown = func() { cb(err) }
	}
	return e.downErr
}

// SendCommand writes a framed command and flushes it. Any write failure
// takes the link down.
func (e *Engine) SendCommand(cmd string) error {
	e.mu.Lock()
	defer e.unlock()
	return e.sendLocked(cmd)
}

func (e *Engine) sendLocked(cmd string) error {
	if e.downErr != nil {
		return e.downErr
	}
	if _, err := e.ch.Write(e.framer.EncodeCommand(cmd)); err != nil {
		return e.goDown(fmt.Errorf("write command %q: %w", cmd, err))
	}
	if err := e.ch.Flush(); err != nil {
		return e.goDown(fmt.Errorf("flush command %q: %w", cmd, err))
	}
	log.Debug().Str("cmd", cmd).Msg("engine: sent command")
	return nil
}

// PollOnce reads at most one line and files it. It reports whether a line
// was read. Lines the channel queued before failing are still delivered.
func (e *Engine) PollOnce() (bool, error) {
	e.mu.Lock()
	defer e.unlock()
	return e.pollLocked()
}

func (e *Engine) pollLocked() (bool, error) {
	if e.downErr != nil {
		return false, e.downErr
	}
	ok, err := e.ch.BytesAvailable()
	if err != nil {
		return false, e.goDown(err)
	}
	if !ok {
		if !e.ch.IsOpen() {
			return false, e.goDown(link.ErrClosed)
		}
		return false, nil
	}
	line, err := e.ch.ReadLine()
	if errors.Is(err, link.ErrNoLine) {
		return false, nil
	}
	if err != nil {
		return false, e.goDown(err)
	}
	e.dispatch(protocol.TrimLine(line))
	return true, nil
}

func (e *Engine) dispatch(line []byte) {
	msg := e.framer.Classify(line)
	switch msg.Kind {
	case protocol.KindCommand:
		e.commands.Push(msg.Text())
	case protocol.KindDataFrame:
		e.frames.Push(msg.Text())
	case protocol.KindFloat:
		e.floats.Push(msg.Text())
	default:
		e.terminal(msg.Text())
		return
	}
	log.Trace().Stringer("kind", msg.Kind).Int("len", len(msg.Payload)).Msg("engine: buffered message")
}

func (e *Engine) stack(kind protocol.Kind) *Stack[string] {
	switch kind {
	case protocol.KindCommand:
		return &e.commands
	case protocol.KindDataFrame:
		return &e.frames
	default:
		return &e.floats
	}
}

// awaitLocked polls until the stack for kind has an entry and pops the
// newest one. Entries of other kinds stay buffered.
func (e *Engine) awaitLocked(ctx context.Context, kind protocol.Kind, timeout time.Duration) (string, error) {
	if e.downErr != nil {
		return "", e.downErr
	}

	e.awaiting.Store(int32(kind))
	e.state.Store(int32(StateAwaitingReply))
	defer func() {
		if e.downErr == nil {
			e.state.Store(int32(StateIdle))
		}
	}()

	st := e.stack(kind)
	deadline := e.clock.Now().Add(timeout)
	for {
		if v, ok := st.Pop(); ok {
			return v, nil
		}

		polled, err := e.pollLocked()
		if err != nil {
			return "", err
		}
		if polled {
			if v, ok := st.Pop(); ok {
				return v, nil
			}
		}

		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("waiting for %s: %w", kind, err)
		}
		remaining := deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			log.Debug().Stringer("kind", kind).Dur("timeout", timeout).Msg("engine: reply timed out")
			return "", fmt.Errorf("%w: no %s within %s", ErrTimeout, kind, timeout)
		}
		if polled {
			continue
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for %s: %w", kind, ctx.Err())
		case <-e.clock.After(min(e.pollBackoff, remaining)):
		}
	}
}

// AwaitCommandReply waits for a command reply without sending anything.
func (e *Engine) AwaitCommandReply(ctx context.Context, timeout time.Duration) (string, error) {
	e.mu.Lock()
	defer e.unlock()
	return e.awaitLocked(ctx, protocol.KindCommand, timeout)
}

// AwaitDataFrame waits for a dataframe payload without sending anything.
func (e *Engine) AwaitDataFrame(ctx context.Context, timeout time.Duration) (string, error) {
	e.mu.Lock()
	defer e.unlock()
	return e.awaitLocked(ctx, protocol.KindDataFrame, timeout)
}

// AwaitFloat waits for a float message and parses it.
func (e *Engine) AwaitFloat(ctx context.Context, timeout time.Duration) (float64, error) {
	e.mu.Lock()
	defer e.unlock()
	payload, err := e.awaitLocked(ctx, protocol.KindFloat, timeout)
	if err != nil {
		return 0, err
	}
	return thermal.ParseScalar(payload)
}

func (e *Engine) requestLocked(
	ctx context.Context,
	cmd string,
	kind protocol.Kind,
	timeout time.Duration,
) (string, error) {
	if err := e.sendLocked(cmd); err != nil {
		return "", err
	}
	return e.awaitLocked(ctx, kind, timeout)
}

// RequestCommand sends cmd and waits for a command reply.
func (e *Engine) RequestCommand(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	e.mu.Lock()
	defer e.unlock()
	return e.requestLocked(ctx, cmd, protocol.KindCommand, timeout)
}

// RequestDataFrame sends cmd and waits for a dataframe payload.
func (e *Engine) RequestDataFrame(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	e.mu.Lock()
	defer e.unlock()
	return e.requestLocked(ctx, cmd, protocol.KindDataFrame, timeout)
}

// RequestFloat sends cmd and waits for a float reply.
func (e *Engine) RequestFloat(ctx context.Context, cmd string, timeout time.Duration) (float64, error) {
	e.mu.Lock()
	defer e.unlock()
	payload, err := e.requestLocked(ctx, cmd, protocol.KindFloat, timeout)
	if err != nil {
		return 0, err
	}
	return thermal.ParseScalar(payload)
}

// Run polls the channel every interval, draining everything queued, until
// ctx is cancelled or the link goes down.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Debug().Dur("interval", interval).Msg("engine: poll loop started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("engine: poll loop stopped")
			return nil
		case <-ticker.Chan():
			if err := e.drain(); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) drain() error {
	e.mu.Lock()
	defer e.unlock()
	for {
		polled, err := e.pollLocked()
		if err != nil {
			return err
		}
		if !polled {
			return nil
		}
	}
}
