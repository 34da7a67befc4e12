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

package protocol

import (
	"strings"
	"testing"
)

// FuzzClassify checks classification never panics and strips exactly one
// byte from each end of delimited lines.
func FuzzClassify(f *testing.F) {
	f.Add("<o>")
	f.Add("<ping>")
	f.Add("[1,2,3]")
	f.Add("`25.4~")
	f.Add("")
	f.Add("<")
	f.Add("<>")
	f.Add("[]")
	f.Add("`~")
	f.Add("<o]")
	f.Add("pong")
	f.Add("\r\n")
	f.Add(strings.Repeat("1.0,", 767) + "1.0")

	framer := NewFramer(standardDelimiters)
	f.Fuzz(func(t *testing.T, line string) {
		msg := framer.Classify([]byte(line))
		if msg.Kind == KindOpaque {
			if string(msg.Payload) != line {
				t.Fatalf("opaque payload changed: %q -> %q", line, msg.Payload)
			}
			return
		}
		if len(msg.Payload) != len(line)-2 {
			t.Fatalf("payload %q is not line %q minus delimiters", msg.Payload, line)
		}
	})
}
