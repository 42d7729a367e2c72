package server

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"adabank/internal/pkg/logging"
)

// teardown runs the ordered shutdown: stop accepting, terminate Tellers with
// a bounded grace period, force-kill stragglers, then release the FIFO, the
// shared region and finally the transaction log.
func (s *Server) teardown() error {
	logging.Info("bank closing")

	// 1. Stop accepting new clients.
	unix.Close(s.fifoRFd)
	unix.Close(s.fifoWFd)

	// 2-4. Ask every Teller to finish, then force the ones that did not.
	s.signalTellers(syscall.SIGTERM)
	if !s.awaitTellers(time.Now().Add(s.cfg.Shutdown.Grace)) {
		killed := s.signalTellers(syscall.SIGKILL)
		logging.Warn("tellers killed after grace period", "count", len(killed))
		s.awaitTellers(time.Now().Add(time.Second))
	}

	// 5. Remove the rendezvous FIFO.
	if err := unix.Unlink(s.cfg.ServerFIFOPath()); err != nil && err != unix.ENOENT {
		logging.Error("unlink server fifo", "err", err)
	}

	// 6. The server is the sole destroyer of the shared region.
	if err := s.mapping.Destroy(); err != nil {
		logging.Error("destroy shared region", "err", err)
	}

	// 7. Flush and close the log last so every served request is on disk.
	if err := s.log.Close(); err != nil {
		logging.Error("close transaction log", "err", err)
		return err
	}

	logging.Info("bank closed")
	return nil
}
