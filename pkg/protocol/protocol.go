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

// Package protocol implements the line framing used by SW2 thermal cameras.
//
// Every line the device sends is wrapped in a pair of single-byte delimiters
// that identify what kind of message it carries. Delimiters and the command
// vocabulary differ between firmware revisions, so both are data rather
// than constants.
package protocol

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownRevision is returned when a firmware revision name is not registered.
var ErrUnknownRevision = errors.New("unknown firmware revision")

// Kind identifies the type of message carried by a line.
type Kind int

const (
	KindOpaque Kind = iota
	KindCommand
	KindDataFrame
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindDataFrame:
		return "dataframe"
	case KindFloat:
		return "float"
	default:
		return "opaque"
	}
}

// Pair is an open/close delimiter byte pair.
type Pair struct {
	Open  byte
	Close byte
}

// Matches reports whether line starts with Open and ends with Close.
func (p Pair) Matches(line []byte) bool {
	return len(line) >= 2 && line[0] == p.Open && line[len(line)-1] == p.Close
}

// Delimiters is the delimiter table for one firmware revision.
type Delimiters struct {
	Command   Pair
	DataFrame Pair
	Float     Pair
	// BareReplies are undelimited lines that are treated as command replies
	// when they match exactly, e.g. a pong from firmware that does not frame
	// it. Tokens shorter than two bytes are never matched.
	BareReplies []string
}

// Pair returns the delimiter pair for a kind. Opaque has no delimiters.
func (d Delimiters) Pair(k Kind) (Pair, bool) {
	switch k {
	case KindCommand:
		return d.Command, true
	case KindDataFrame:
		return d.DataFrame, true
	case KindFloat:
		return d.Float, true
	default:
		return Pair{}, false
	}
}

// Vocabulary holds the command tokens understood by a firmware revision.
// Empty tokens mean the revision does not support the operation.
type Vocabulary struct {
	Request    string
	Ping       string
	Pong       string
	Calibrate  string
	Average    string
	Shutter    string
	Thermistor string
}

// Revision pairs a delimiter table with its command vocabulary.
type Revision struct {
	Name       string
	Delimiters Delimiters
	Commands   Vocabulary
}

// DefaultRevision is the revision used when none is configured.
const DefaultRevision = "sw2"

var standardDelimiters = Delimiters{
	Command:   Pair{Open: '<', Close: '>'},
	DataFrame: Pair{Open: '[', Close: ']'},
	Float:     Pair{Open: '`', Close: '~'},
}

var revisions = map[string]Revision{
	"sw2": {
		Name:       "sw2",
		Delimiters: standardDelimiters,
		Commands: Vocabulary{
			Request:    "r",
			Ping:       "p",
			Pong:       "o",
			Calibrate:  "c",
			Average:    "a",
			Shutter:    "s",
			Thermistor: "t",
		},
	},
	"legacy": {
		Name:       "legacy",
		Delimiters: Delimiters{
			Command:     standardDelimiters.Command,
			DataFrame:   standardDelimiters.DataFrame,
			Float:       standardDelimiters.Float,
			BareReplies: []string{"pong"},
		},
		Commands: Vocabulary{
			Request: "r",
			Ping:    "ping",
			Pong:    "pong",
		},
	},
}

// LookupRevision returns a registered revision by name (case-insensitive).
func LookupRevision(name string) (Revision, error) {
	rev, ok := revisions[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Revision{}, fmt.Errorf("%w: %q", ErrUnknownRevision, name)
	}
	rev.Delimiters.BareReplies = append([]string(nil), rev.Delimiters.BareReplies...)
	return rev, nil
}

// Revisions lists the registered revision names in sorted order.
func Revisions() []string {
	names := make([]string, 0, len(revisions))
	for name := range revisions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
