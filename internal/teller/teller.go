// Package teller implements the per-client worker process. A Teller mediates
// between exactly one client's FIFO pair and the shared request ring: it
// parses command lines, submits well-formed requests, waits on its slot's
// response semaphore, and writes one reply line per command.
package teller

import (
	"bufio"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"adabank/internal/config"
	"adabank/internal/ipc"
	"adabank/internal/pkg/logging"
	"adabank/internal/proto"
)

// Run drives one Teller until the client closes its request FIFO, a write
// fails because the client is gone, or a termination signal arrives between
// commands. It never creates or destroys shared resources: the region and the
// client FIFOs are owned by the server and the client respectively.
func Run(cfg *config.Config, clientPID int) error {
	log := logging.With("teller_pid", os.Getpid(), "client_pid", clientPID)

	mapping, err := ipc.Attach(cfg.RegionName())
	if err != nil {
		return err
	}
	defer mapping.Close()
	region := mapping.Region

	reqPath, resPath := config.ClientFIFOPaths(cfg.IPC.FIFODir, clientPID)
	reqF, err := ipc.OpenFIFO(reqPath, unix.O_RDONLY)
	if err != nil {
		return err
	}
	defer reqF.Close()
	resF, err := ipc.OpenFIFO(resPath, unix.O_WRONLY)
	if err != nil {
		return err
	}
	defer resF.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	log.Info("teller connected")

	scanner := bufio.NewScanner(reqF)
	for scanner.Scan() {
		select {
		case <-sigCh:
			log.Info("teller terminating on signal")
			return nil
		default:
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		reply := serve(region, int32(clientPID), line, log)
		if _, err := resF.WriteString(reply); err != nil {
			if errors.Is(err, syscall.EPIPE) {
				log.Info("client hung up")
				return nil
			}
			return err
		}
	}

	log.Info("teller done", "err", scanner.Err())
	return scanner.Err()
}

// serve turns one command line into one reply line. Malformed commands are
// answered locally and never touch the queue.
func serve(region *ipc.Region, clientPID int32, line string, log *charmlog.Logger) string {
	op, id, amount, err := proto.ParseCommand(line)
	if err != nil {
		log.Warn("rejected command", "line", line, "err", err)
		return proto.FormatError(err)
	}

	idx := region.Push(ipc.Request{
		ClientPID: clientPID,
		Op:        op,
		BankID:    id,
		Amount:    amount,
	})
	resp := region.Await(idx)
	return proto.FormatResponse(resp)
}
