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

package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spaceworks2/sw2optics/pkg/link"
	"github.com/spaceworks2/sw2optics/pkg/link/dummy"
	"github.com/spaceworks2/sw2optics/pkg/protocol"
	"github.com/spaceworks2/sw2optics/pkg/thermal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func sw2(t *testing.T) protocol.Revision {
	t.Helper()
	rev, err := protocol.LookupRevision(protocol.DefaultRevision)
	require.NoError(t, err)
	return rev
}

func newDummyEngine(t *testing.T, opts Options, devOpts dummy.Options) (*Engine, *dummy.Device) {
	t.Helper()
	rev := sw2(t)
	devOpts.Revision = rev
	if devOpts.Mode == 0 {
		devOpts.Mode = dummy.ModeLinear
	}
	dev := dummy.New(devOpts)
	return New(dev, rev.Delimiters, opts), dev
}

// failingWrites wraps a channel so that every write fails.
type failingWrites struct {
	link.Channel
	err error
}

func (f failingWrites) Write([]byte) (int, error) {
	return 0, f.err
}

func TestRequestDataFrame(t *testing.T) {
	t.Parallel()

	e, dev := newDummyEngine(t, Options{}, dummy.Options{Rows: 2, Cols: 3})

	payload, err := e.RequestDataFrame(context.Background(), "r", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "10.00, 13.33, 16.67, 20.00, 23.33, 26.67", payload)
	assert.Equal(t, []string{"r"}, dev.Received())
	assert.Equal(t, StateIdle, e.Status().State)
}

func TestRequestCommand_Ping(t *testing.T) {
	t.Parallel()

	e, _ := newDummyEngine(t, Options{}, dummy.Options{})

	reply, err := e.RequestCommand(context.Background(), "p", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "o", reply)
}

func TestRequestFloat(t *testing.T) {
	t.Parallel()

	e, dev := newDummyEngine(t, Options{}, dummy.Options{})
	dev.SetMeasured(25.4)

	v, err := e.RequestFloat(context.Background(), "c", time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 25.4, v, 1e-9)
}

func TestAwaitFloat_BadLiteral(t *testing.T) {
	t.Parallel()

	e, dev := newDummyEngine(t, Options{}, dummy.Options{})
	dev.Inject("`warm~")

	_, err := e.AwaitFloat(context.Background(), time.Second)
	require.ErrorIs(t, err, thermal.ErrToken)
}

func TestAwait_NewestFirst(t *testing.T) {
	t.Parallel()

	e, dev := newDummyEngine(t, Options{}, dummy.Options{})
	dev.Inject("<old>", "<new>")

	for range 2 {
		polled, err := e.PollOnce()
		require.NoError(t, err)
		assert.True(t, polled)
	}
	polled, err := e.PollOnce()
	require.NoError(t, err)
	assert.False(t, polled)

	first, err := e.AwaitCommandReply(context.Background(), time.Second)
	require.NoError(t, err)
	second, err := e.AwaitCommandReply(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "new", first)
	assert.Equal(t, "old", second)
}

func TestAwait_OtherKindsStayBuffered(t *testing.T) {
	t.Parallel()

	e, dev := newDummyEngine(t, Options{}, dummy.Options{})
	dev.Inject("[1,2,3]", "`1.5~", "<o>")

	reply, err := e.AwaitCommandReply(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "o", reply)

	commands, frames, floats := e.Pending()
	assert.Equal(t, 0, commands)
	assert.Equal(t, 1, frames)
	assert.Equal(t, 1, floats)

	frame, err := e.AwaitDataFrame(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "1,2,3", frame)
}

func TestAwait_TrimsLineEndings(t *testing.T) {
	t.Parallel()

	e, dev := newDummyEngine(t, Options{}, dummy.Options{})
	dev.Inject("<o>\r\n")

	reply, err := e.AwaitCommandReply(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "o", reply)
}

func TestOpaqueLinesGoToTerminal(t *testing.T) {
	t.Parallel()

	var lines []string
	e, dev := newDummyEngine(t, Options{
		Terminal: func(line string) { lines = append(lines, line) },
	}, dummy.Options{})
	dev.Inject("camera ready", "x", "[unterminated")

	for range 3 {
		_, err := e.PollOnce()
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"camera ready", "x", "[unterminated"}, lines)
	commands, frames, floats := e.Pending()
	assert.Zero(t, commands+frames+floats)
}

func TestAwait_Timeout(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	e, dev := newDummyEngine(t, Options{Clock: clock}, dummy.Options{Silent: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := e.RequestCommand(ctx, "p", 2*time.Second)
		errCh <- err
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, Status{State: StateAwaitingReply, Awaiting: protocol.KindCommand}, e.Status())
	clock.Advance(2 * time.Second)

	err := <-errCh
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateIdle, e.Status().State)

	// a timeout does not take the link down
	dev.SetSilent(false)
	reply, err := e.RequestCommand(context.Background(), "p", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "o", reply)
}

func TestAwait_ContextCancelled(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	e, _ := newDummyEngine(t, Options{Clock: clock}, dummy.Options{Silent: true})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := e.AwaitFloat(ctx, time.Minute)
		errCh <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestLinkDown_OnPoll(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var cbErr error
	var e *Engine
	e, dev := newDummyEngine(t, Options{
		OnLinkDown: func(err error) {
			calls.Add(1)
			cbErr = err
			// the callback runs outside the lock
			_ = e.Err()
		},
	}, dummy.Options{})
	dev.Disconnect()

	_, err := e.PollOnce()
	require.ErrorIs(t, err, ErrLinkDown)
	require.ErrorIs(t, err, dummy.ErrDisconnected)

	_, err = e.PollOnce()
	require.ErrorIs(t, err, ErrLinkDown)
	require.ErrorIs(t, e.SendCommand("p"), ErrLinkDown)
	_, err = e.RequestDataFrame(context.Background(), "r", time.Second)
	require.ErrorIs(t, err, ErrLinkDown)

	assert.Equal(t, int32(1), calls.Load())
	require.ErrorIs(t, cbErr, ErrLinkDown)
	assert.Equal(t, StateLinkDown, e.Status().State)
	require.ErrorIs(t, e.Err(), dummy.ErrDisconnected)
}

func TestLinkDown_OnClosedChannel(t *testing.T) {
	t.Parallel()

	e, dev := newDummyEngine(t, Options{}, dummy.Options{})
	require.NoError(t, dev.Close())

	err := e.SendCommand("r")
	require.ErrorIs(t, err, ErrLinkDown)
	require.ErrorIs(t, err, link.ErrClosed)
}

func TestLinkDown_OnWriteFailure(t *testing.T) {
	t.Parallel()

	rev := sw2(t)
	writeErr := errors.New("write: input/output error")
	ch := failingWrites{Channel: dummy.New(dummy.Options{Revision: rev}), err: writeErr}

	var calls atomic.Int32
	e := New(ch, rev.Delimiters, Options{OnLinkDown: func(error) { calls.Add(1) }})

	_, err := e.RequestCommand(context.Background(), "p", time.Second)
	require.ErrorIs(t, err, ErrLinkDown)
	require.ErrorIs(t, err, writeErr)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "link down", StateLinkDown.String())
	assert.Equal(t, "State(7)", State(7).String())
	assert.Equal(t, "awaiting reply (dataframe)",
		Status{State: StateAwaitingReply, Awaiting: protocol.KindDataFrame}.String())
}

func TestRun_DrainsEachTick(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := clockwork.NewFakeClock()
	e, dev := newDummyEngine(t, Options{Clock: clock, Terminal: func(string) {}}, dummy.Options{})
	dev.Inject("<a>", "<b>", "[1]", "boot")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx, 100*time.Millisecond) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	clock.Advance(100 * time.Millisecond)

	require.Eventually(t, func() bool {
		commands, frames, _ := e.Pending()
		return commands == 2 && frames == 1
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}

func TestRun_StopsOnLinkDown(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := clockwork.NewFakeClock()
	e, dev := newDummyEngine(t, Options{Clock: clock}, dummy.Options{})
	dev.Disconnect()

	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(context.Background(), 100*time.Millisecond) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	clock.Advance(100 * time.Millisecond)

	require.ErrorIs(t, <-errCh, ErrLinkDown)
}
