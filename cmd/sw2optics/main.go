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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spaceworks2/sw2optics/pkg/cli"
	"github.com/spaceworks2/sw2optics/pkg/config"
	"github.com/spaceworks2/sw2optics/pkg/helpers"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags(flag.CommandLine)
	flag.Parse()

	exit, err := flags.Pre(os.Stdout)
	if err != nil {
		return err
	} else if exit {
		return nil
	}

	cfg, err := cli.Setup(
		flags,
		config.BaseDefaults,
		[]io.Writer{helpers.ConsoleWriter(os.Stderr)},
	)
	if err != nil {
		return err
	}

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	rev, err := cfg.Revision()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := cli.Env{Out: os.Stdout}
	ch, err := cli.OpenChannel(cfg, rev, env)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", cfg.SerialPort(), err)
	}
	log.Info().Str("port", cfg.SerialPort()).Str("revision", rev.Name).Msg("connected to camera")

	err = cli.Run(ctx, cfg, flags, ch, env)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
