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
	"errors"
	"testing"
	"time"

	"github.com/spaceworks2/sw2optics/pkg/link/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/goleak"
)

func waitAvailable(t *testing.T, c Channel) {
	t.Helper()
	require.Eventually(t, func() bool {
		ok, _ := c.BytesAvailable()
		return ok
	}, time.Second, time.Millisecond)
}

func TestSerialChannel_ReadLines(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := testutils.NewMockSerialPort()
	port.AddReadData([]byte("<o>\r\n[1,2"))
	c := NewSerialChannel(port, "/dev/ttyUSB0")
	defer func() { _ = c.Close() }()

	waitAvailable(t, c)
	line, err := c.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, []byte("<o>\r"), line)

	// the partial dataframe is not a line yet
	_, err = c.ReadLine()
	require.ErrorIs(t, err, ErrNoLine)

	port.AddReadData([]byte(",3]\n"))
	waitAvailable(t, c)
	line, err = c.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, []byte("[1,2,3]"), line)
	assert.True(t, c.IsOpen())
	assert.Equal(t, "/dev/ttyUSB0", c.Path())
}

func TestSerialChannel_WriteAndFlush(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := testutils.NewMockSerialPort()
	c := NewSerialChannel(port, "COM3")
	defer func() { _ = c.Close() }()

	n, err := c.Write([]byte("<r>"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, c.Flush())

	assert.Equal(t, "<r>", port.Written())
	assert.Equal(t, 1, port.Drains)
}

func TestSerialChannel_ReadErrorDeliversQueuedLinesFirst(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := testutils.NewMockSerialPort()
	port.AddReadData([]byte("<o>\n"))
	port.SetReadError(errors.New("device unplugged"))
	c := NewSerialChannel(port, "/dev/ttyACM0")
	defer func() { _ = c.Close() }()

	waitAvailable(t, c)
	line, err := c.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, []byte("<o>"), line)

	require.Eventually(t, func() bool {
		return !c.IsOpen()
	}, time.Second, time.Millisecond)

	ok, err := c.BytesAvailable()
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")

	_, err = c.Write([]byte("<p>"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestSerialChannel_WriteErrorMarksChannelFailed(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := testutils.NewMockSerialPort()
	port.WriteError = errors.New("io error")
	c := NewSerialChannel(port, "/dev/ttyUSB0")
	defer func() { _ = c.Close() }()

	_, err := c.Write([]byte("<r>"))
	require.Error(t, err)
	assert.False(t, c.IsOpen())
}

func TestSerialChannel_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := testutils.NewMockSerialPort()
	c := NewSerialChannel(port, "/dev/ttyUSB0")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, port.IsClosed())
	assert.False(t, c.IsOpen())

	_, err := c.BytesAvailable()
	require.ErrorIs(t, err, ErrClosed)
	_, err = c.ReadLine()
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, c.Flush(), ErrClosed)
}

func TestSerialChannel_LineOverflowDiscarded(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := testutils.NewMockSerialPort()
	big := make([]byte, maxLineSize+10)
	for i := range big {
		big[i] = '1'
	}
	port.AddReadData(append(big, []byte("\n<o>\n")...))
	c := NewSerialChannel(port, "/dev/ttyUSB0")
	defer func() { _ = c.Close() }()

	waitAvailable(t, c)
	line, err := c.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, []byte("<o>"), line)
}

func TestOpenSerial(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := testutils.NewMockSerialPort()
	var gotPath string
	var gotMode *serial.Mode
	factory := func(path string, mode *serial.Mode) (Port, error) {
		gotPath = path
		gotMode = mode
		return port, nil
	}

	c, err := OpenSerial("/dev/ttyUSB1", PortOptions{BaudRate: 9600}, factory)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.Equal(t, "/dev/ttyUSB1", gotPath)
	assert.Equal(t, 9600, gotMode.BaudRate)
	assert.Equal(t, portReadWindow, port.ReadTimeout)
}

func TestOpenSerial_Errors(t *testing.T) {
	t.Parallel()

	_, err := OpenSerial("/dev/x", PortOptions{DataBits: 9}, nil)
	require.Error(t, err)

	factory := func(string, *serial.Mode) (Port, error) {
		return nil, errors.New("busy")
	}
	_, err = OpenSerial("/dev/x", PortOptions{}, factory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")

	port := testutils.NewMockSerialPort()
	port.TimeoutErr = errors.New("bad timeout")
	factory = func(string, *serial.Mode) (Port, error) {
		return port, nil
	}
	_, err = OpenSerial("/dev/x", PortOptions{}, factory)
	require.Error(t, err)
	assert.True(t, port.IsClosed())
}

func TestIsDisconnectionError(t *testing.T) {
	t.Parallel()

	assert.False(t, IsDisconnectionError(nil))
	assert.False(t, IsDisconnectionError(errors.New("other")))
	assert.True(t, IsDisconnectionError(ErrClosed))
}
