package server

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"adabank/internal/metrics"
	"adabank/internal/pkg/logging"
)

// TellerCommand is the hidden argv[1] the server binary recognizes to run as
// a Teller worker instead of the broker.
const TellerCommand = "teller"

type tellerProc struct {
	clientPID int
	cmd       *exec.Cmd
}

// spawnTeller re-execs this binary as a Teller bound to one client pid. The
// child inherits the environment, so bank name and FIFO directory carry over.
func (s *Server) spawnTeller(clientPID int) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	cmd := exec.Command(exe, TellerCommand, strconv.Itoa(clientPID))
	cmd.Env = append(os.Environ(), "BANK_NAME="+s.cfg.Bank.Name)
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start teller: %w", err)
	}

	s.tellersMu.Lock()
	s.tellers[cmd.Process.Pid] = &tellerProc{clientPID: clientPID, cmd: cmd}
	count := len(s.tellers)
	s.tellersMu.Unlock()
	metrics.ActiveTellersGauge.Set(float64(count))

	logging.Info("teller spawned", "teller_pid", cmd.Process.Pid, "client_pid", clientPID)

	go func() {
		err := cmd.Wait()
		s.tellersMu.Lock()
		delete(s.tellers, cmd.Process.Pid)
		count := len(s.tellers)
		s.tellersMu.Unlock()
		metrics.ActiveTellersGauge.Set(float64(count))
		logging.Info("teller exited", "teller_pid", cmd.Process.Pid, "client_pid", clientPID, "err", err)
	}()
	return nil
}

// TellerCount reports the number of live Teller processes.
func (s *Server) TellerCount() int {
	s.tellersMu.Lock()
	defer s.tellersMu.Unlock()
	return len(s.tellers)
}

func (s *Server) signalTellers(sig syscall.Signal) []int {
	s.tellersMu.Lock()
	defer s.tellersMu.Unlock()
	pids := make([]int, 0, len(s.tellers))
	for pid, tp := range s.tellers {
		if err := tp.cmd.Process.Signal(sig); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}

// awaitTellers waits until every tracked Teller has been reaped or the
// deadline passes.
func (s *Server) awaitTellers(deadline time.Time) bool {
	for time.Now().Before(deadline) {
		if s.TellerCount() == 0 {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return s.TellerCount() == 0
}
