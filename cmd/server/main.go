package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"adabank/internal/config"
	"adabank/internal/pkg/components"
	"adabank/internal/pkg/logging"
	"adabank/internal/server"
	"adabank/internal/teller"
)

func main() {
	app := &cli.App{
		Name:      "server",
		Usage:     "AdaBank transaction broker",
		ArgsUsage: "<server_fifo_name>",
		Action:    runServer,
		Commands: []*cli.Command{
			{
				// Internal re-exec entry point: the broker spawns itself with
				// this command to run a Teller bound to one client pid.
				Name:      server.TellerCommand,
				Hidden:    true,
				ArgsUsage: "<client_pid>",
				Action:    runTeller,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: %s <server_fifo_name>", c.App.Name)
	}

	container, err := components.New(c.Args().First())
	if err != nil {
		return err
	}

	logging.Info("bank broker initialized",
		"bank", container.Config.Bank.Name,
		"fifo", container.Config.ServerFIFOPath(),
		"log", container.Config.Bank.LogPath,
	)
	return container.Start()
}

func runTeller(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("teller: missing client pid")
	}
	clientPID, err := strconv.Atoi(c.Args().First())
	if err != nil || clientPID <= 0 {
		return fmt.Errorf("teller: bad client pid %q", c.Args().First())
	}

	// The spawning server passed the bank name through the environment.
	cfg := config.Load("")
	logging.Init(cfg)
	return teller.Run(cfg, clientPID)
}
