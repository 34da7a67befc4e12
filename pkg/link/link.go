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

// Package link provides the duplex byte channels the protocol engine talks
// through: a real serial port and, in the dummy subpackage, a simulated
// camera.
package link

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

var (
	// ErrClosed is returned by operations on a channel that has been closed.
	ErrClosed = errors.New("link closed")
	// ErrNoLine is returned by ReadLine when no complete line is queued.
	ErrNoLine = errors.New("no line available")
)

// Channel is an open duplex line-oriented byte stream.
type Channel interface {
	// IsOpen reports whether the channel can still be used.
	IsOpen() bool
	// BytesAvailable reports without blocking whether a line can be read.
	BytesAvailable() (bool, error)
	// ReadLine returns the next line without its terminator. It never blocks
	// indefinitely and returns ErrNoLine when nothing is queued.
	ReadLine() ([]byte, error)
	Write(p []byte) (int, error)
	// Flush blocks until written bytes have been transmitted.
	Flush() error
	Close() error
}

// Port is the subset of a go.bug.st/serial port used by SerialChannel.
type Port interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Drain() error
	Close() error
	SetReadTimeout(t time.Duration) error
}

// PortFactory opens a serial port. Tests substitute a mock.
type PortFactory func(path string, mode *serial.Mode) (Port, error)

// DefaultPortFactory opens real serial ports.
func DefaultPortFactory(path string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// IsDisconnectionError reports whether err means the device went away.
func IsDisconnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) {
		return true
	}
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return false
	}
	switch portErr.Code() {
	case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
		return true
	default:
		return false
	}
}
