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
	"errors"
	"fmt"

	"github.com/spaceworks2/sw2optics/pkg/protocol"
)

var (
	// ErrTimeout is returned when no reply of the awaited kind arrives before
	// the deadline. The engine stays usable.
	ErrTimeout = errors.New("timed out waiting for reply")
	// ErrLinkDown is returned once the channel has failed or closed. It wraps
	// the failure that caused it and every later call returns it.
	ErrLinkDown = errors.New("link down")
)

// State is the engine lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateAwaitingReply
	StateLinkDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReply:
		return "awaiting reply"
	case StateLinkDown:
		return "link down"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Status is a snapshot of the engine state. Awaiting is only meaningful
// while State is StateAwaitingReply.
type Status struct {
	State    State
	Awaiting protocol.Kind
}

func (s Status) String() string {
	if s.State == StateAwaitingReply {
		return fmt.Sprintf("%s (%s)", s.State, s.Awaiting)
	}
	return s.State.String()
}
