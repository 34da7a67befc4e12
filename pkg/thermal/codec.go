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

package thermal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrToken         = errors.New("invalid dataframe token")
	ErrShapeMismatch = errors.New("dataframe shape mismatch")
)

// FormatErrorKind distinguishes dataframe format failures.
type FormatErrorKind int

const (
	TokenError FormatErrorKind = iota
	ShapeMismatch
)

// FormatError reports a dataframe payload that cannot be turned into a grid.
type FormatError struct {
	Err   error
	Token string
	Kind  FormatErrorKind
	Index int
	Got   int
	Want  int
}

func (e *FormatError) Error() string {
	if e.Kind == ShapeMismatch {
		return fmt.Sprintf("%s: got %d values, want %d", ErrShapeMismatch, e.Got, e.Want)
	}
	return fmt.Sprintf("%s %q at index %d", ErrToken, e.Token, e.Index)
}

func (e *FormatError) Is(target error) bool {
	switch target {
	case ErrToken:
		return e.Kind == TokenError
	case ErrShapeMismatch:
		return e.Kind == ShapeMismatch
	default:
		return false
	}
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// DecodeOptions describes the sensor a dataframe came from.
type DecodeOptions struct {
	Orientation Orientation
	Rows        int
	Cols        int
}

// DefaultDecodeOptions returns options for the reference instrument.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{
		Rows:        DefaultRows,
		Cols:        DefaultCols,
		Orientation: DefaultOrientation,
	}
}

func (o DecodeOptions) withDefaults() DecodeOptions {
	if o.Rows <= 0 {
		o.Rows = DefaultRows
	}
	if o.Cols <= 0 {
		o.Cols = DefaultCols
	}
	if o.Orientation == "" {
		o.Orientation = DefaultOrientation
	}
	return o
}

// DecodeGrid parses a comma-separated dataframe payload, adds calibration to
// every cell and applies the orientation transform.
func DecodeGrid(payload string, calibration float64, opts DecodeOptions) (*Grid, error) {
	opts = opts.withDefaults()
	want := opts.Rows * opts.Cols

	tokens := strings.Split(payload, ",")
	if len(tokens) != want {
		return nil, &FormatError{Kind: ShapeMismatch, Got: len(tokens), Want: want}
	}

	vals := make([]float64, len(tokens))
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, &FormatError{Kind: TokenError, Token: tok, Index: i, Err: err}
		}
		vals[i] = v + calibration
	}

	g, err := NewGrid(opts.Rows, opts.Cols, vals)
	if err != nil {
		return nil, err
	}
	return g.Rotate(opts.Orientation)
}

// ParseScalar parses the payload of a float message, e.g. a calibration
// average or thermistor reading.
func ParseScalar(payload string) (float64, error) {
	tok := strings.TrimSpace(payload)
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, &FormatError{Kind: TokenError, Token: tok, Err: err}
	}
	return v, nil
}

// EncodePayload formats grid cells in row-major order as a dataframe payload.
func EncodePayload(values []float64) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return sb.String()
}
