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

package link

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spaceworks2/sw2optics/pkg/helpers/syncutil"
)

const (
	// a full 24x32 frame is roughly 6KB of text
	maxLineSize    = 64 * 1024
	lineQueueSize  = 64
	portReadWindow = 100 * time.Millisecond
)

// SerialChannel is a Channel over a serial port. A background goroutine
// splits incoming bytes into lines so availability checks never block.
type SerialChannel struct {
	port      Port
	err       error
	lines     chan []byte
	done      chan struct{}
	path      string
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        syncutil.Mutex
	open      bool
}

// OpenSerial opens the serial device at path and starts reading from it.
func OpenSerial(path string, opts PortOptions, factory PortFactory) (*SerialChannel, error) {
	if factory == nil {
		factory = DefaultPortFactory
	}

	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := factory(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	if err := port.SetReadTimeout(portReadWindow); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on serial port: %w", err)
	}

	log.Info().Str("path", path).Int("baud", mode.BaudRate).Msg("link: opened serial port")

	return NewSerialChannel(port, path), nil
}

// NewSerialChannel wraps an already open port.
func NewSerialChannel(port Port, path string) *SerialChannel {
	c := &SerialChannel{
		port:  port,
		path:  path,
		lines: make(chan []byte, lineQueueSize),
		done:  make(chan struct{}),
		open:  true,
	}
	c.wg.Add(1)
	go c.readLoop()
	return c
}

// Path returns the device path the channel was opened on.
func (c *SerialChannel) Path() string {
	return c.path
}

func (c *SerialChannel) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *SerialChannel) readLoop() {
	defer c.wg.Done()

	buf := make([]byte, 1024)
	var lineBuf []byte
	overflowed := false

	for {
		select {
		case <-c.done:
			return
		default:
		}

		n, err := c.port.Read(buf)

		for i := range n {
			b := buf[i]
			if b == '\n' {
				if overflowed {
					overflowed = false
					lineBuf = lineBuf[:0]
					continue
				}
				line := bytes.Clone(lineBuf)
				lineBuf = lineBuf[:0]
				select {
				case c.lines <- line:
				case <-c.done:
					return
				}
				continue
			}

			if overflowed {
				continue
			}
			if len(lineBuf) >= maxLineSize {
				log.Warn().Str("path", c.path).Msg("link: line overflow, discarding until next newline")
				lineBuf = lineBuf[:0]
				overflowed = true
				continue
			}
			lineBuf = append(lineBuf, b)
		}

		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			log.Error().Err(err).Str("path", c.path).Msg("link: failed to read from serial port")
			c.fail(fmt.Errorf("serial read: %w", err))
			return
		}
	}
}

func (c *SerialChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && c.err == nil
}

// BytesAvailable reports whether a complete line is queued. Lines received
// before a read failure are still delivered before the failure is reported.
func (c *SerialChannel) BytesAvailable() (bool, error) {
	if len(c.lines) > 0 {
		return true, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return false, ErrClosed
	}
	if c.err != nil {
		return false, c.err
	}
	return false, nil
}

func (c *SerialChannel) ReadLine() ([]byte, error) {
	select {
	case line := <-c.lines:
		return line, nil
	default:
	}
	if _, err := c.BytesAvailable(); err != nil {
		return nil, err
	}
	return nil, ErrNoLine
}

func (c *SerialChannel) Write(p []byte) (int, error) {
	if !c.IsOpen() {
		return 0, ErrClosed
	}
	n, err := c.port.Write(p)
	if err != nil {
		err = fmt.Errorf("serial write: %w", err)
		c.fail(err)
		return n, err
	}
	return n, nil
}

func (c *SerialChannel) Flush() error {
	if !c.IsOpen() {
		return ErrClosed
	}
	if err := c.port.Drain(); err != nil {
		err = fmt.Errorf("serial drain: %w", err)
		c.fail(err)
		return err
	}
	return nil
}

func (c *SerialChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.open = false
		c.mu.Unlock()

		close(c.done)
		if cerr := c.port.Close(); cerr != nil {
			err = fmt.Errorf("failed to close serial port: %w", cerr)
		}
		c.wg.Wait()
		log.Info().Str("path", c.path).Msg("link: closed serial port")
	})
	return err
}
