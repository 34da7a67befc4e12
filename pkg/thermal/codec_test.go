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
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

// sequencePayload returns "1,2,...,n".
func sequencePayload(n int) string {
	toks := make([]string, n)
	for i := range toks {
		toks[i] = strconv.Itoa(i + 1)
	}
	return strings.Join(toks, ",")
}

func TestDecodeGrid_Rot180(t *testing.T) {
	t.Parallel()

	g, err := DecodeGrid(sequencePayload(768), 0, DefaultDecodeOptions())
	require.NoError(t, err)

	assert.Equal(t, 24, g.Rows())
	assert.Equal(t, 32, g.Cols())
	// the last value lands in the top-left corner after a half turn
	assert.InDelta(t, 768.0, g.At(0, 0), 1e-9)
	assert.InDelta(t, 1.0, g.At(23, 31), 1e-9)
	assert.InDelta(t, 737.0, g.At(0, 31), 1e-9)
}

func TestDecodeGrid_Calibration(t *testing.T) {
	t.Parallel()

	opts := DecodeOptions{Rows: 24, Cols: 32, Orientation: OrientationNone}
	base, err := DecodeGrid(sequencePayload(768), 0, opts)
	require.NoError(t, err)
	shifted, err := DecodeGrid(sequencePayload(768), 25.4, opts)
	require.NoError(t, err)

	for r := range base.Rows() {
		for c := range base.Cols() {
			assert.InDelta(t, base.At(r, c)+25.4, shifted.At(r, c), 1e-9)
		}
	}
}

func TestDecodeGrid_WhitespaceTokens(t *testing.T) {
	t.Parallel()

	payload := strings.ReplaceAll(sequencePayload(6), ",", ", ")
	g, err := DecodeGrid(payload, 0, DecodeOptions{Rows: 2, Cols: 3, Orientation: OrientationNone})
	require.NoError(t, err)

	want := [][]float64{{1, 2, 3}, {4, 5, 6}}
	if diff := cmp.Diff(want, g.Values(), approx); diff != "" {
		t.Errorf("grid mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeGrid_ShapeMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		got     int
	}{
		{name: "empty", payload: "", got: 1},
		{name: "too few", payload: sequencePayload(767), got: 767},
		{name: "too many", payload: sequencePayload(769), got: 769},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := DecodeGrid(tt.payload, 0, DefaultDecodeOptions())
			assert.Nil(t, g)
			require.ErrorIs(t, err, ErrShapeMismatch)
			assert.NotErrorIs(t, err, ErrToken)

			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.got, fe.Got)
			assert.Equal(t, 768, fe.Want)
		})
	}
}

func TestDecodeGrid_BadToken(t *testing.T) {
	t.Parallel()

	toks := strings.Split(sequencePayload(768), ",")
	toks[100] = "12.x"
	toks[200] = "nope"

	g, err := DecodeGrid(strings.Join(toks, ","), 0, DefaultDecodeOptions())
	assert.Nil(t, g)
	require.ErrorIs(t, err, ErrToken)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 100, fe.Index)
	assert.Equal(t, "12.x", fe.Token)
	assert.Contains(t, err.Error(), "index 100")
}

func TestDecodeGrid_Idempotent(t *testing.T) {
	t.Parallel()

	payload := sequencePayload(768)
	a, err := DecodeGrid(payload, 1.5, DefaultDecodeOptions())
	require.NoError(t, err)
	b, err := DecodeGrid(payload, 1.5, DefaultDecodeOptions())
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
}

func TestDecodeGrid_DefaultsApplied(t *testing.T) {
	t.Parallel()

	g, err := DecodeGrid(sequencePayload(768), 0, DecodeOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 768.0, g.At(0, 0), 1e-9)
}

func TestDecodeGrid_UnknownOrientation(t *testing.T) {
	t.Parallel()

	_, err := DecodeGrid(sequencePayload(6), 0, DecodeOptions{Rows: 2, Cols: 3, Orientation: "sideways"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown orientation")
}

func TestEncodePayload(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1,2.5,-3", EncodePayload([]float64{1, 2.5, -3}))
	assert.Empty(t, EncodePayload(nil))
}

func TestParseScalar(t *testing.T) {
	t.Parallel()

	v, err := ParseScalar(" 25.4 ")
	require.NoError(t, err)
	assert.InDelta(t, 25.4, v, 1e-12)

	_, err = ParseScalar("warm")
	require.ErrorIs(t, err, ErrToken)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "warm", fe.Token)
}
