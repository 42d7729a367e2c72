// Traffic generator: drives a running bank broker with many concurrent
// sessions. Each worker announces its own session token, banks an opening
// deposit, then alternates deposits and withdrawals of 10 against the account
// it was assigned, and finally checks the balance came back to the opening
// amount.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"adabank/internal/config"
	"adabank/internal/ipc"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func main() {
	cfg := config.Load(getenv("BANK_NAME", config.DefaultBankName))
	workers := getenvInt("STRESS_WORKERS", 20)
	rounds := getenvInt("STRESS_ROUNDS", 50)

	log.Printf("stress: %d workers x %d rounds against bank %s", workers, rounds, cfg.Bank.Name)

	start := time.Now()
	var wg sync.WaitGroup
	failures := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			failures[i] = runWorker(cfg, os.Getpid()*100+i, rounds)
		}(i)
	}
	wg.Wait()

	failed := 0
	for i, err := range failures {
		if err != nil {
			failed++
			log.Printf("worker %d: %v", i, err)
		}
	}
	log.Printf("stress: %d/%d workers ok in %s", workers-failed, workers, time.Since(start))
	if failed > 0 {
		os.Exit(1)
	}
}

// runWorker opens one session under the given token. The token plays the role
// of the client pid: it only keys the FIFO pair the Teller binds to.
func runWorker(cfg *config.Config, token, rounds int) error {
	reqPath, resPath := config.ClientFIFOPaths(cfg.IPC.FIFODir, token)
	if err := ipc.MakeFIFO(reqPath, 0o600); err != nil {
		return err
	}
	defer unix.Unlink(reqPath)
	if err := ipc.MakeFIFO(resPath, 0o600); err != nil {
		return err
	}
	defer unix.Unlink(resPath)

	serverF, err := ipc.OpenFIFO(cfg.ServerFIFOPath(), unix.O_WRONLY|unix.O_NONBLOCK)
	if err != nil {
		return fmt.Errorf("bank not reachable: %w", err)
	}
	if _, err := fmt.Fprintf(serverF, "%d\n", token); err != nil {
		serverF.Close()
		return err
	}
	serverF.Close()

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
	replies := bufio.NewReader(resF)

	exchange := func(cmd string) (string, error) {
		if _, err := reqF.WriteString(cmd + "\n"); err != nil {
			return "", err
		}
		reply, err := replies.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("no reply to %q: %w", cmd, err)
		}
		return strings.TrimSpace(reply), nil
	}

	reply, err := exchange("N deposit 1000")
	if err != nil {
		return err
	}
	id, err := parseAssignedID(reply)
	if err != nil {
		return err
	}

	for i := 0; i < rounds; i++ {
		op := "deposit"
		if i%2 == 1 {
			op = "withdraw"
		}
		reply, err := exchange(fmt.Sprintf("BankID_%d %s 10", id, op))
		if err != nil {
			return err
		}
		if !strings.HasPrefix(reply, "OK ") {
			return fmt.Errorf("round %d: unexpected reply %q", i, reply)
		}
	}

	reply, err = exchange(fmt.Sprintf("BankID_%d withdraw 1000", id))
	if err != nil {
		return err
	}
	if reply != fmt.Sprintf("OK BankID_%d balance=0", id) {
		return fmt.Errorf("final balance mismatch: %q", reply)
	}
	return nil
}

func parseAssignedID(reply string) (int, error) {
	fields := strings.Fields(reply)
	if len(fields) != 3 || fields[0] != "OK" || !strings.HasPrefix(fields[1], "BankID_") {
		return 0, fmt.Errorf("opening deposit failed: %q", reply)
	}
	return strconv.Atoi(strings.TrimPrefix(fields[1], "BankID_"))
}
