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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/log"

	"github.com/govledger/treasury/internal/config"
)

func logConfig(file, format, level string) *config.LogConfig {
	cfg := config.Defaults().Log
	cfg.File, cfg.Format, cfg.Level = file, format, level
	return &cfg
}

func TestSetupFile(t *testing.T) {
	defer log.SetDefault(log.Root())

	path := filepath.Join(t.TempDir(), "treasury.log")
	closer, err := Setup(logConfig(path, "json", "info"))
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	log.Info("Proposal created", "id", 7)
	log.Debug("Filtered out")
	if err := closer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"Proposal created"`) || !strings.Contains(out, `"id":7`) {
		t.Errorf("unexpected log output %q", out)
	}
	if strings.Contains(out, "Filtered out") {
		t.Error("debug record should be filtered at info level")
	}
}

func TestSetupTerminalFile(t *testing.T) {
	defer log.SetDefault(log.Root())

	path := filepath.Join(t.TempDir(), "treasury.log")
	closer, err := Setup(logConfig(path, "terminal", "debug"))
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	log.Debug("Call rejected", "op", "vote")
	closer.Close()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "Call rejected") || !strings.Contains(string(data), "op=vote") {
		t.Errorf("unexpected log output %q", string(data))
	}
}

func TestSetupErrors(t *testing.T) {
	if _, err := Setup(logConfig("", "terminal", "loud")); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := Setup(logConfig("", "xml", "info")); err == nil {
		t.Error("expected error for unknown format")
	}
}
