// Command logdump replays a transaction log offline and prints the account
// table it implies. Useful for inspecting a bank without starting the broker.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"adabank/internal/domain/ledger"
	"adabank/internal/wal"
)

func main() {
	app := &cli.App{
		Name:      "logdump",
		Usage:     "replay an AdaBank transaction log and print the balances",
		ArgsUsage: "<logfile>",
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: %s <logfile>", c.App.Name)
	}

	tab := ledger.NewTable()
	stats, err := wal.Replay(c.Args().First(), tab)
	if err != nil {
		return err
	}

	snapshot := tab.Snapshot()
	ids := make([]int32, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		fmt.Printf("BankID_%d %d\n", id, snapshot[id])
	}
	fmt.Printf("# %d accounts, %d events applied, %d warnings\n",
		len(ids), stats.Applied, stats.Warnings)
	return nil
}
