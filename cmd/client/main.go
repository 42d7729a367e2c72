package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"adabank/internal/client"
	"adabank/internal/config"
	"adabank/internal/pkg/logging"
)

func main() {
	app := &cli.App{
		Name:      "client",
		Usage:     "AdaBank command-file driver",
		ArgsUsage: "<command_file> [server_fifo_name]",
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return fmt.Errorf("usage: %s <command_file> [server_fifo_name]", c.App.Name)
	}

	cfg := config.Load(c.Args().Get(1))
	logging.Init(cfg)
	return client.Run(cfg, c.Args().First())
}
