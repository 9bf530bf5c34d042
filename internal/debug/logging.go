// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/govledger/treasury/internal/config"
)

// Setup installs the root log handler described by cfg. The returned
// closer flushes the log file, if any.
func Setup(cfg *config.LogConfig) (io.Closer, error) {
	level, err := log.LvlFromString(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var (
		output   io.Writer = os.Stderr
		closer   io.Closer = nopCloser{}
		useColor           = false
	)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		output, closer = rotating, rotating
	} else if isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("TERM") != "dumb" {
		output = colorable.NewColorableStderr()
		useColor = true
	}

	handler, err := newHandler(cfg.Format, output, useColor)
	if err != nil {
		return nil, err
	}
	glog := log.NewGlogHandler(handler)
	glog.Verbosity(level)
	log.SetDefault(log.NewLogger(glog))
	return closer, nil
}

func newHandler(format string, w io.Writer, useColor bool) (slog.Handler, error) {
	switch format {
	case "", "terminal":
		return log.NewTerminalHandler(w, useColor), nil
	case "json":
		return log.JSONHandler(w), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
