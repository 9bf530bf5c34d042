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

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/govledger/treasury/genesis"
	"github.com/govledger/treasury/storage"
)

// Token gate modes
const (
	TokenModeMemory = "memory"
	TokenModeERC20  = "erc20"
)

// Config is the full node configuration, as read from the TOML file
type Config struct {
	Node    NodeConfig
	RPC     RPCConfig
	Genesis GenesisConfig
	Token   TokenConfig
	Log     LogConfig
}

// NodeConfig configures the ledger database
type NodeConfig struct {
	DataDir  string // 数据目录
	InMemory bool   // 仅内存
	Cache    int    // 缓存大小（MB）
	Handles  int    // 文件句柄数

	CheckpointInterval time.Duration // 定期全量写入间隔，0 表示仅在退出时写入
}

// RPCConfig configures the JSON-RPC HTTP endpoint
type RPCConfig struct {
	HTTPHost    string
	HTTPPort    int
	CorsOrigins []string
	RateLimit   float64 // requests per second, 0 disables
	RateBurst   int
}

// Allocation is a genesis balance for one account. Amount is a decimal string.
type Allocation struct {
	Account common.Address
	Amount  string
}

// GenesisConfig describes the initial ledger state
type GenesisConfig struct {
	Admin   common.Address
	Members []common.Address
	Funds   []Allocation // 原生资金
	Tokens  []Allocation // 代币余额（仅 memory 模式）
}

// TokenConfig selects the token gate backend
type TokenConfig struct {
	Mode     string
	Decimals uint8          // memory 模式的精度
	Endpoint string         // erc20 模式的节点地址
	Contract common.Address // erc20 合约地址
}

// LogConfig configures logging output
type LogConfig struct {
	Level      string // trace, debug, info, warn, error, crit
	Format     string // terminal or json
	File       string // empty logs to stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Defaults returns the default configuration
func Defaults() *Config {
	st := storage.DefaultStorageConfig()
	return &Config{
		Node: NodeConfig{
			DataDir: st.DataDir,
			Cache:   st.Cache,
			Handles: st.Handles,
		},
		RPC: RPCConfig{
			HTTPHost:    "127.0.0.1",
			HTTPPort:    8645,
			CorsOrigins: []string{},
		},
		Token: TokenConfig{
			Mode:     TokenModeMemory,
			Decimals: 18,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "terminal",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the TOML file at path over the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config field %q in %s", undecoded[0].String(), path)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from TREASURY_* environment variables
func (c *Config) applyEnv() error {
	c.Node.DataDir = getEnvOrDefault("TREASURY_DATADIR", c.Node.DataDir)
	c.RPC.HTTPHost = getEnvOrDefault("TREASURY_HTTP_HOST", c.RPC.HTTPHost)
	c.Token.Endpoint = getEnvOrDefault("TREASURY_TOKEN_ENDPOINT", c.Token.Endpoint)
	c.Log.Level = getEnvOrDefault("TREASURY_LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("TREASURY_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TREASURY_HTTP_PORT %q: %w", v, err)
		}
		c.RPC.HTTPPort = port
	}
	if v := os.Getenv("TREASURY_ADMIN"); v != "" {
		if !common.IsHexAddress(v) {
			return fmt.Errorf("invalid TREASURY_ADMIN %q", v)
		}
		c.Genesis.Admin = common.HexToAddress(v)
	}
	return nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Genesis.Admin == (common.Address{}) {
		return errors.New("genesis admin must be set")
	}
	if c.RPC.HTTPPort <= 0 || c.RPC.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port %d", c.RPC.HTTPPort)
	}
	if c.RPC.RateLimit < 0 || (c.RPC.RateLimit > 0 && c.RPC.RateBurst <= 0) {
		return fmt.Errorf("invalid rate limit %v with burst %d", c.RPC.RateLimit, c.RPC.RateBurst)
	}
	if c.Node.CheckpointInterval < 0 {
		return fmt.Errorf("invalid checkpoint interval %v", c.Node.CheckpointInterval)
	}
	if !c.Node.InMemory && c.Node.DataDir == "" {
		return errors.New("data directory must be set unless running in memory")
	}
	switch c.Token.Mode {
	case TokenModeMemory:
	case TokenModeERC20:
		if c.Token.Endpoint == "" {
			return errors.New("erc20 token mode requires an endpoint")
		}
		if c.Token.Contract == (common.Address{}) {
			return errors.New("erc20 token mode requires a contract address")
		}
	default:
		return fmt.Errorf("unknown token mode %q", c.Token.Mode)
	}
	switch c.Log.Format {
	case "terminal", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if _, err := parseAllocations(c.Genesis.Funds); err != nil {
		return fmt.Errorf("genesis funds: %w", err)
	}
	if _, err := parseAllocations(c.Genesis.Tokens); err != nil {
		return fmt.Errorf("genesis tokens: %w", err)
	}
	return nil
}

// Storage returns the storage configuration
func (c *Config) Storage() *storage.StorageConfig {
	return &storage.StorageConfig{
		DataDir:  c.Node.DataDir,
		InMemory: c.Node.InMemory,
		Cache:    c.Node.Cache,
		Handles:  c.Node.Handles,
	}
}

// Bootstrap returns the genesis allocation
func (c *Config) Bootstrap() (*genesis.BootstrapConfig, error) {
	boot := genesis.DefaultBootstrapConfig(c.Genesis.Admin)
	boot.Members = append(boot.Members, c.Genesis.Members...)

	funds, err := parseAllocations(c.Genesis.Funds)
	if err != nil {
		return nil, fmt.Errorf("genesis funds: %w", err)
	}
	tokens, err := parseAllocations(c.Genesis.Tokens)
	if err != nil {
		return nil, fmt.Errorf("genesis tokens: %w", err)
	}
	boot.Funds, boot.Tokens = funds, tokens
	return boot, nil
}

// Dump writes the configuration as TOML
func (c *Config) Dump(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func parseAllocations(allocs []Allocation) (map[common.Address]*uint256.Int, error) {
	out := make(map[common.Address]*uint256.Int, len(allocs))
	for _, a := range allocs {
		amount, err := uint256.FromDecimal(a.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q for %s: %w", a.Amount, a.Account.Hex(), err)
		}
		if prev, ok := out[a.Account]; ok {
			amount = new(uint256.Int).Add(prev, amount)
		}
		out[a.Account] = amount
	}
	return out, nil
}

// getEnvOrDefault retrieves an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
