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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// DummyPort is the port name that selects the simulated camera.
const DummyPort = "Dummy"

// Baudrates lists the rates supported by camera firmware.
func Baudrates() []int {
	return []int{9600, 115200}
}

func listLinux(devDir string) ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s directory: %w", devDir, err)
	}

	devices := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "ttyUSB") && !strings.HasPrefix(name, "ttyACM") {
			continue
		}
		devices = append(devices, filepath.Join(devDir, name))
	}
	return devices, nil
}

// SerialDevices returns serial devices that look like USB serial adapters.
func SerialDevices() ([]string, error) {
	if runtime.GOOS == "linux" {
		return listLinux("/dev")
	}

	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports list on %s: %w", runtime.GOOS, err)
	}

	devices := make([]string, 0, len(ports))
	for _, p := range ports {
		switch runtime.GOOS {
		case "darwin":
			if !strings.HasPrefix(p, "/dev/tty.usbserial") && !strings.HasPrefix(p, "/dev/tty.usbmodem") {
				continue
			}
		case "windows":
			if !strings.HasPrefix(p, "COM") {
				continue
			}
		}
		devices = append(devices, p)
	}
	return devices, nil
}

// ListPorts returns the selectable ports: the simulated camera followed by
// any detected serial devices.
func ListPorts() []string {
	ports := []string{DummyPort}
	devices, err := SerialDevices()
	if err != nil {
		log.Warn().Err(err).Msg("link: failed to list serial devices")
		return ports
	}
	return append(ports, devices...)
}
