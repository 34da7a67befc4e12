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

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spaceworks2/sw2optics/pkg/camera"
	"github.com/spaceworks2/sw2optics/pkg/config"
	"github.com/spaceworks2/sw2optics/pkg/engine"
	"github.com/spaceworks2/sw2optics/pkg/link"
	"github.com/spaceworks2/sw2optics/pkg/link/dummy"
	"github.com/spaceworks2/sw2optics/pkg/liveness"
	"github.com/spaceworks2/sw2optics/pkg/protocol"
	"github.com/spaceworks2/sw2optics/pkg/runs"
	"github.com/spaceworks2/sw2optics/pkg/thermal"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Env is what a session needs from the process. Zero fields use the real
// implementations.
type Env struct {
	Out         io.Writer
	Fs          afero.Fs
	Clock       clockwork.Clock
	PortFactory link.PortFactory
	DataDir     string
}

func (e Env) withDefaults() Env {
	if e.Out == nil {
		e.Out = io.Discard
	}
	if e.Fs == nil {
		e.Fs = afero.NewOsFs()
	}
	if e.Clock == nil {
		e.Clock = clockwork.NewRealClock()
	}
	if e.DataDir == "" {
		e.DataDir = config.DataDir()
	}
	return e
}

// OpenChannel opens the configured port, or the simulated camera for the
// Dummy port.
func OpenChannel(cfg *config.Instance, rev protocol.Revision, env Env) (link.Channel, error) {
	env = env.withDefaults()
	port := cfg.SerialPort()
	switch port {
	case "":
		return nil, errors.New("no serial port configured, use -port or -dummy")
	case link.DummyPort:
		log.Info().Str("mode", cfg.DummyMode().String()).Msg("cli: using simulated camera")
		return dummy.New(cfg.DummyOptions(env.Fs, env.DataDir, rev)), nil
	default:
		return link.OpenSerial(port, cfg.PortOptions(), env.PortFactory)
	}
}

// Run drives one camera session over ch: the poll loop and liveness monitor
// run until the requested operations finish, or until ctx is cancelled when
// no operation was requested.
func Run(ctx context.Context, cfg *config.Instance, f *Flags, ch link.Channel, env Env) error {
	env = env.withDefaults()

	rev, err := cfg.Revision()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng := engine.New(ch, rev.Delimiters, engine.Options{
		Clock: env.Clock,
		OnLinkDown: func(err error) {
			_, _ = fmt.Fprintf(env.Out, "Serial device disconnected: %v\n", err)
		},
		Terminal: func(line string) {
			_, _ = fmt.Fprintln(env.Out, line)
		},
	})

	alive := make(chan struct{})
	var aliveOnce sync.Once
	mon := liveness.NewMonitor(eng, liveness.Options{
		Clock:    env.Clock,
		Ping:     rev.Commands.Ping,
		Pong:     rev.Commands.Pong,
		Interval: cfg.PingInterval(),
		Timeout:  cfg.PingTimeout(),
		OnChange: func(_, to liveness.State) {
			switch to {
			case liveness.StateAlive:
				aliveOnce.Do(func() { close(alive) })
				_, _ = fmt.Fprintln(env.Out, "Serial device responding.")
			case liveness.StateTimedOut:
				_, _ = fmt.Fprintln(env.Out, "Serial device not responding (PING TIMEOUT).")
			case liveness.StateUnknown:
			}
		},
	})

	sess := camera.NewSession(eng, mon, camera.Options{
		Commands:        rev.Commands,
		CalibrationMode: cfg.CalibrationMode(),
		Decode:          cfg.DecodeOptions(),
		RequestTimeout:  cfg.RequestTimeout(),
	})

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return eng.Run(gctx, cfg.PollInterval())
	})
	g.Go(func() error {
		return mon.Run(gctx)
	})

	if f.HasAction() {
		g.Go(func() error {
			defer cancel()
			wait := cfg.PingInterval() + 2*cfg.PingTimeout()
			select {
			case <-gctx.Done():
				return nil
			case <-env.Clock.After(wait):
				return fmt.Errorf("%w: no ping reply within %s", camera.ErrNotReady, wait)
			case <-alive:
			}
			return runActions(gctx, cfg, f, sess, env)
		})
	}

	err = g.Wait()
	if closeErr := ch.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("cli: failed to close channel")
	}
	return err
}

func runActions(ctx context.Context, cfg *config.Instance, f *Flags, sess *camera.Session, env Env) error {
	var store *runs.Store
	if cfg.SaveFrames() && (*f.Frames > 0 || *f.Shutter) {
		store = runs.NewStore(env.Fs, cfg.RunsDir(env.DataDir))
		if _, err := store.InitRun(); err != nil {
			return err
		}
		defer func() {
			if _, err := store.RemoveIfEmpty(); err != nil {
				log.Warn().Err(err).Msg("cli: failed to clean up run directory")
			}
		}()
	}

	if *f.Thermistor {
		v, err := sess.Thermistor(ctx)
		if err != nil {
			return fmt.Errorf("thermistor request failed: %w", err)
		}
		_, _ = fmt.Fprintf(env.Out, "Thermistor Value: %.2f\n", v)
	}

	if f.IsSet("calibrate") {
		offset, err := sess.Calibrate(ctx, *f.Calibrate)
		if err != nil {
			return fmt.Errorf("calibration failed: %w", err)
		}
		_, _ = fmt.Fprintf(env.Out, "Calibration offset: %.2f\n", offset)
	}

	if *f.Shutter {
		capture, err := sess.ShutterFrame(ctx)
		if err != nil {
			return fmt.Errorf("shutter request failed: %w", err)
		}
		if store != nil {
			dir, err := store.ShutterDir()
			if err != nil {
				return err
			}
			meta := runs.FrameMeta{Thermistor: capture.Thermistor}
			n := nextShutterFrame(env.Fs, dir)
			if err := saveFrame(store, sess, env, dir, n, capture.Grid, meta); err != nil {
				return err
			}
		}
		printFrame(env.Out, "Shutter Frame", capture.Grid, fmt.Sprintf(", Thermistor Value: %.2f", capture.Thermistor))
	}

	if *f.Frames > 0 {
		dataset := ""
		if store != nil {
			dir, err := store.NewDataset()
			if err != nil {
				return err
			}
			dataset = dir
		}
		for i := 1; i <= *f.Frames; i++ {
			g, err := sess.RequestFrame(ctx)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			if err := saveFrame(store, sess, env, dataset, i, g, runs.FrameMeta{}); err != nil {
				return err
			}
			printFrame(env.Out, fmt.Sprintf("Frame %d", i), g, "")
		}
		_, _ = fmt.Fprintf(env.Out, "Dataset with %d frames received.\n", *f.Frames)
	}
	return nil
}

func saveFrame(
	store *runs.Store,
	sess *camera.Session,
	env Env,
	dir string,
	n int,
	g *thermal.Grid,
	meta runs.FrameMeta,
) error {
	if store == nil {
		return nil
	}
	meta.Time = env.Clock.Now()
	meta.Offset = sess.Offset()
	meta.Session = sess.ID()
	_, err := store.SaveFrame(dir, n, g, meta)
	return err
}

func nextShutterFrame(fs afero.Fs, dir string) int {
	for n := 1; ; n++ {
		if ok, _ := afero.Exists(fs, runs.FramePath(dir, n)); !ok {
			return n
		}
	}
}

func printFrame(out io.Writer, title string, g *thermal.Grid, extra string) {
	st := g.Stats()
	_, _ = fmt.Fprintf(out, "%s, Minimum: %.2f Celsius, Maximum: %.2f Celsius, Average: %.2f Celsius%s\n",
		title, st.Min, st.Max, st.Mean, extra)
}
