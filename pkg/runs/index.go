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

package runs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const timeLayout = time.RFC3339Nano

// FrameMeta is the context recorded with a saved frame.
type FrameMeta struct {
	Time       time.Time
	Thermistor float64
	Offset     float64
	Session    uuid.UUID
}

// IndexEntry is one row of a dataset's frames.csv.
type IndexEntry struct {
	File       string  `csv:"file"`
	Session    string  `csv:"session"`
	Time       string  `csv:"time"`
	Frame      int     `csv:"frame"`
	Min        float64 `csv:"min"`
	Max        float64 `csv:"max"`
	Mean       float64 `csv:"mean"`
	Offset     float64 `csv:"offset"`
	Thermistor float64 `csv:"thermistor"`
}

func appendIndex(afs afero.Fs, path string, entry IndexEntry) error {
	_, err := afs.Stat(path)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat index: %w", err)
	}

	f, err := afs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("path", path).Msg("runs: failed to close index")
		}
	}()

	rows := []IndexEntry{entry}
	if exists {
		err = gocsv.MarshalWithoutHeaders(&rows, f)
	} else {
		err = gocsv.Marshal(&rows, f)
	}
	if err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// ReadIndex loads the frame index of a dataset directory.
func ReadIndex(afs afero.Fs, dir string) ([]IndexEntry, error) {
	f, err := afs.Open(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []IndexEntry
	if err := gocsv.Unmarshal(f, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	return entries, nil
}

// Timestamp parses the entry's capture time.
func (e IndexEntry) Timestamp() (time.Time, error) {
	t, err := time.Parse(timeLayout, e.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid index time %q: %w", e.Time, err)
	}
	return t, nil
}
