// treasuryd runs the governance treasury ledger and serves it over JSON-RPC.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/govledger/treasury/internal/config"
	"github.com/govledger/treasury/internal/debug"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "TOML configuration file",
		EnvVars: []string{"TREASURY_CONFIG"},
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the ledger database",
	}
	inMemoryFlag = &cli.BoolFlag{
		Name:  "dev",
		Usage: "Keep the ledger in memory only",
	}
	adminFlag = &cli.StringFlag{
		Name:  "admin",
		Usage: "Genesis admin address",
	}
	httpHostFlag = &cli.StringFlag{
		Name:  "http.addr",
		Usage: "HTTP-RPC server listening interface",
	}
	httpPortFlag = &cli.IntFlag{
		Name:  "http.port",
		Usage: "HTTP-RPC server listening port",
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Log level (trace, debug, info, warn, error, crit)",
	}
)

func main() {
	app := &cli.App{
		Name:  "treasuryd",
		Usage: "governance and treasury ledger",
		Flags: []cli.Flag{configFlag, dataDirFlag, inMemoryFlag, adminFlag, httpHostFlag, httpPortFlag, verbosityFlag},
		Commands: []*cli.Command{
			runCommand,
			dumpConfigCommand,
			inspectCommand,
		},
		DefaultCommand: "run",
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var dumpConfigCommand = &cli.Command{
	Name:  "dumpconfig",
	Usage: "Print the effective configuration as TOML",
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		return cfg.Dump(os.Stdout)
	},
}

// loadConfig reads the config file and applies command line overrides
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.Node.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(inMemoryFlag.Name) {
		cfg.Node.InMemory = ctx.Bool(inMemoryFlag.Name)
	}
	if ctx.IsSet(adminFlag.Name) {
		if err := cfg.Genesis.Admin.UnmarshalText([]byte(ctx.String(adminFlag.Name))); err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", adminFlag.Name, err)
		}
	}
	if ctx.IsSet(httpHostFlag.Name) {
		cfg.RPC.HTTPHost = ctx.String(httpHostFlag.Name)
	}
	if ctx.IsSet(httpPortFlag.Name) {
		cfg.RPC.HTTPPort = ctx.Int(httpPortFlag.Name)
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.Log.Level = ctx.String(verbosityFlag.Name)
	}
	return cfg, nil
}

// setupLogging installs the configured log handler and returns its closer
func setupLogging(cfg *config.Config) (func(), error) {
	closer, err := debug.Setup(&cfg.Log)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := closer.Close(); err != nil {
			log.Warn("Failed to close log output", "err", err)
		}
	}, nil
}
