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

// Package runs stores captured frames on disk. Each program run gets a
// "Run N" directory holding numbered datasets and a shutter dataset, each
// with one CSV per frame and a frames.csv index.
package runs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spaceworks2/sw2optics/pkg/helpers/syncutil"
	"github.com/spaceworks2/sw2optics/pkg/thermal"
	"github.com/spf13/afero"
)

const (
	runPrefix     = "Run "
	datasetPrefix = "Dataset "
	// ShutterDirName is the dataset that holds shutter frames.
	ShutterDirName = "Shutter Dataset"
	// IndexFile is the per-dataset frame index.
	IndexFile = "frames.csv"
)

// ErrNoRun is returned by operations that need InitRun to have been called.
var ErrNoRun = errors.New("no run initialised")

var errFoundFile = errors.New("run has files")

// Store allocates run and dataset directories under a root directory.
type Store struct {
	fs   afero.Fs
	root string
	run  string
	mu   syncutil.Mutex
}

func NewStore(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// nextNumber returns one more than the highest "<prefix>N" entry in dir.
func (s *Store) nextNumber(dir, prefix string) (int, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	highest := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), prefix))
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}
	return highest + 1, nil
}

// InitRun creates the next free "Run N" directory and makes it current.
func (s *Store) InitRun() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.nextNumber(s.root, runPrefix)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, runPrefix+strconv.Itoa(n))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	s.run = dir
	log.Info().Str("dir", dir).Msg("runs: started run")
	return dir, nil
}

// RunDir returns the current run directory, or "" before InitRun.
func (s *Store) RunDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// NewDataset creates the next "Dataset N" directory in the current run.
func (s *Store) NewDataset() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == "" {
		return "", ErrNoRun
	}

	n, err := s.nextNumber(s.run, datasetPrefix)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.run, datasetPrefix+strconv.Itoa(n))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dataset directory: %w", err)
	}
	return dir, nil
}

// ShutterDir returns the shutter dataset of the current run, creating it
// if needed.
func (s *Store) ShutterDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == "" {
		return "", ErrNoRun
	}
	dir := filepath.Join(s.run, ShutterDirName)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create shutter directory: %w", err)
	}
	return dir, nil
}

// RemoveIfEmpty deletes the current run if no frame was saved in it. It
// reports whether the run was removed.
func (s *Store) RemoveIfEmpty() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == "" {
		return false, nil
	}

	err := afero.Walk(s.fs, s.run, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return errFoundFile
		}
		return nil
	})
	if errors.Is(err, errFoundFile) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to scan run directory: %w", err)
	}

	if err := s.fs.RemoveAll(s.run); err != nil {
		return false, fmt.Errorf("failed to remove run directory: %w", err)
	}
	log.Info().Str("dir", s.run).Msg("runs: removed empty run")
	s.run = ""
	return true, nil
}

// FramePath returns the CSV path for frame n in dir.
func FramePath(dir string, n int) string {
	return filepath.Join(dir, "Frame"+strconv.Itoa(n)+".csv")
}

// WriteGrid writes a grid as comma-separated rows.
func WriteGrid(fs afero.Fs, path string, g *thermal.Grid) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create frame file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("path", path).Msg("runs: failed to close frame file")
		}
	}()

	w := csv.NewWriter(f)
	record := make([]string, g.Cols())
	for r := range g.Rows() {
		for c, v := range g.Row(r) {
			record[c] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write frame row %d: %w", r, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write frame file: %w", err)
	}
	return nil
}

// SaveFrame writes frame n to dir and records it in the dataset index.
func (s *Store) SaveFrame(dir string, n int, g *thermal.Grid, meta FrameMeta) (string, error) {
	path := FramePath(dir, n)
	if err := WriteGrid(s.fs, path, g); err != nil {
		return "", err
	}

	stats := g.Stats()
	entry := IndexEntry{
		Frame:      n,
		File:       filepath.Base(path),
		Min:        stats.Min,
		Max:        stats.Max,
		Mean:       stats.Mean,
		Offset:     meta.Offset,
		Thermistor: meta.Thermistor,
		Session:    meta.Session.String(),
		Time:       meta.Time.UTC().Format(timeLayout),
	}
	if err := appendIndex(s.fs, filepath.Join(dir, IndexFile), entry); err != nil {
		return "", err
	}
	log.Debug().Str("path", path).Float64("mean", stats.Mean).Msg("runs: saved frame")
	return path, nil
}
