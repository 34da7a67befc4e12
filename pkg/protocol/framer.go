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

import "bytes"

// Message is a single classified line. Payload has delimiters removed, except
// for opaque messages which carry the line unchanged.
type Message struct {
	Payload []byte
	Kind    Kind
}

// Text returns the payload as a string.
func (m Message) Text() string {
	return string(m.Payload)
}

// Framer classifies raw lines and encodes outgoing commands.
type Framer struct {
	delims Delimiters
}

func NewFramer(d Delimiters) *Framer {
	return &Framer{delims: d}
}

// Delimiters returns the delimiter table used by the framer.
func (f *Framer) Delimiters() Delimiters {
	return f.delims
}

// TrimLine strips trailing line terminators from a transport line.
func TrimLine(line []byte) []byte {
	return bytes.TrimRight(line, "\r\n")
}

// Classify determines the kind of a line. Precedence is command, dataframe,
// float, bare reply, opaque; the first match wins. Lines shorter than two
// bytes are always opaque.
func (f *Framer) Classify(line []byte) Message {
	if len(line) < 2 {
		return Message{Kind: KindOpaque, Payload: bytes.Clone(line)}
	}

	for _, k := range []Kind{KindCommand, KindDataFrame, KindFloat} {
		p, _ := f.delims.Pair(k)
		if p.Matches(line) {
			return Message{
				Kind:    k,
				Payload: bytes.Clone(line[1 : len(line)-1]),
			}
		}
	}

	for _, tok := range f.delims.BareReplies {
		if len(tok) >= 2 && string(line) == tok {
			return Message{Kind: KindCommand, Payload: []byte(tok)}
		}
	}

	return Message{Kind: KindOpaque, Payload: bytes.Clone(line)}
}

// Encode wraps payload in the delimiters for kind. Opaque payloads are
// returned unchanged.
func (f *Framer) Encode(k Kind, payload []byte) []byte {
	p, ok := f.delims.Pair(k)
	if !ok {
		return bytes.Clone(payload)
	}
	out := make([]byte, 0, len(payload)+2)
	out = append(out, p.Open)
	out = append(out, payload...)
	return append(out, p.Close)
}

// EncodeCommand frames a command token.
func (f *Framer) EncodeCommand(cmd string) []byte {
	return f.Encode(KindCommand, []byte(cmd))
}
