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

// Package thermal decodes sensor dataframes into temperature grids.
package thermal

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Sensor dimensions of the reference instrument.
const (
	DefaultRows = 24
	DefaultCols = 32
)

// Orientation is a rotation applied to decoded grids to match how the
// sensor is mounted. Quarter turns follow the counter-clockwise convention.
type Orientation string

const (
	OrientationNone   Orientation = "none"
	OrientationRot90  Orientation = "rot90"
	OrientationRot180 Orientation = "rot180"
	OrientationRot270 Orientation = "rot270"
)

// DefaultOrientation matches the mounting of the reference instrument.
const DefaultOrientation = OrientationRot180

// Quarters returns the number of counter-clockwise quarter turns.
func (o Orientation) Quarters() (int, error) {
	switch o {
	case OrientationNone:
		return 0, nil
	case OrientationRot90:
		return 1, nil
	case OrientationRot180:
		return 2, nil
	case OrientationRot270:
		return 3, nil
	default:
		return 0, fmt.Errorf("unknown orientation %q", string(o))
	}
}

// Grid is a rows×cols matrix of temperatures in degrees Celsius.
type Grid struct {
	m *mat.Dense
}

// NewGrid builds a grid from row-major values. len(values) must be rows*cols.
func NewGrid(rows, cols int, values []float64) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid grid shape %dx%d", rows, cols)
	}
	if len(values) != rows*cols {
		return nil, &FormatError{Kind: ShapeMismatch, Got: len(values), Want: rows * cols}
	}
	data := make([]float64, len(values))
	copy(data, values)
	return &Grid{m: mat.NewDense(rows, cols, data)}, nil
}

func (g *Grid) Rows() int {
	r, _ := g.m.Dims()
	return r
}

func (g *Grid) Cols() int {
	_, c := g.m.Dims()
	return c
}

func (g *Grid) At(r, c int) float64 {
	return g.m.At(r, c)
}

// Row returns a copy of row r.
func (g *Grid) Row(r int) []float64 {
	out := make([]float64, g.Cols())
	copy(out, g.m.RawRowView(r))
	return out
}

// Values returns a copy of the grid as nested slices.
func (g *Grid) Values() [][]float64 {
	out := make([][]float64, g.Rows())
	for r := range out {
		out[r] = g.Row(r)
	}
	return out
}

// Flat returns a row-major copy of all cells.
func (g *Grid) Flat() []float64 {
	rows, cols := g.m.Dims()
	out := make([]float64, 0, rows*cols)
	for r := range rows {
		out = append(out, g.m.RawRowView(r)...)
	}
	return out
}

// Dense exposes a copy of the grid as a gonum matrix.
func (g *Grid) Dense() *mat.Dense {
	return mat.DenseCopyOf(g.m)
}

// Add returns a new grid with offset added to every cell.
func (g *Grid) Add(offset float64) *Grid {
	vals := g.Flat()
	floats.AddConst(offset, vals)
	return &Grid{m: mat.NewDense(g.Rows(), g.Cols(), vals)}
}

// Rotate returns a new grid turned counter-clockwise by o.
func (g *Grid) Rotate(o Orientation) (*Grid, error) {
	q, err := o.Quarters()
	if err != nil {
		return nil, err
	}
	out := g
	for range q {
		out = out.rot90()
	}
	if out == g {
		return &Grid{m: mat.DenseCopyOf(g.m)}, nil
	}
	return out, nil
}

// rot90 turns the grid a quarter counter-clockwise: cell (r, c) moves to
// (cols-1-c, r).
func (g *Grid) rot90() *Grid {
	rows, cols := g.m.Dims()
	dst := mat.NewDense(cols, rows, nil)
	for r := range rows {
		for c := range cols {
			dst.Set(cols-1-c, r, g.m.At(r, c))
		}
	}
	return &Grid{m: dst}
}

// Stats summarises a grid.
type Stats struct {
	Min  float64
	Max  float64
	Mean float64
}

func (g *Grid) Stats() Stats {
	vals := g.Flat()
	return Stats{
		Min:  floats.Min(vals),
		Max:  floats.Max(vals),
		Mean: stat.Mean(vals, nil),
	}
}

// Equal reports whether two grids have the same shape and cells.
func (g *Grid) Equal(other *Grid) bool {
	if other == nil {
		return false
	}
	return mat.Equal(g.m, other.m)
}
