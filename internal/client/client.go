// Package client implements the command-file driver. It announces its pid on
// the server FIFO, then exchanges one reply line per command with the Teller
// the server dedicated to it.
package client

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"adabank/internal/config"
	"adabank/internal/ipc"
	"adabank/internal/pkg/logging"
)

// Run executes every command in path against the bank and prints each reply
// verbatim to stdout. It returns an error on setup or IO failure; domain
// failures are ordinary replies.
func Run(cfg *config.Config, path string) error {
	cmdFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open command file: %w", err)
	}
	defer cmdFile.Close()

	pid := os.Getpid()
	reqPath, resPath := config.ClientFIFOPaths(cfg.IPC.FIFODir, pid)

	// The FIFO pair must exist before the Teller comes up, and any stale
	// pipes from a recycled pid must not confuse it.
	if err := ipc.MakeFIFO(reqPath, 0o600); err != nil {
		return err
	}
	defer unix.Unlink(reqPath)
	if err := ipc.MakeFIFO(resPath, 0o600); err != nil {
		return err
	}
	defer unix.Unlink(resPath)

	if err := announce(cfg.ServerFIFOPath(), pid); err != nil {
		return err
	}

	// Open order matches the Teller: request pipe first, then response pipe.
	// Both block until the peer arrives.
	reqF, err := ipc.OpenFIFO(reqPath, unix.O_WRONLY)
	if err != nil {
		return err
	}
	defer reqF.Close()
	resF, err := ipc.OpenFIFO(resPath, unix.O_RDONLY)
	if err != nil {
		return err
	}
	defer resF.Close()

	logging.Info("connected to bank", "bank", cfg.Bank.Name, "pid", pid)

	replies := bufio.NewReader(resF)
	scanner := bufio.NewScanner(cmdFile)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if _, err := reqF.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("send command: %w", err)
		}
		reply, err := replies.ReadString('\n')
		if err != nil {
			fmt.Println("bank disconnected")
			return fmt.Errorf("connection lost waiting for reply to %q: %w", line, err)
		}
		fmt.Print(reply)
	}
	return scanner.Err()
}

// announce writes the pid line on the server FIFO. The nonblocking open
// doubles as the liveness check: with no server holding the read side it
// fails with ENXIO instead of hanging.
func announce(fifoPath string, pid int) error {
	f, err := ipc.OpenFIFO(fifoPath, unix.O_WRONLY|unix.O_NONBLOCK)
	if err != nil {
		return fmt.Errorf("bank is not reachable: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%d\n", pid); err != nil {
		return fmt.Errorf("announce pid: %w", err)
	}
	return nil
}
