// Package server owns the broker side of the bank: it accepts client pids on
// the server FIFO, spawns one Teller process per client, drains the shared
// request ring, and applies every mutation under the database mutex with its
// write-ahead log record.
package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"adabank/internal/config"
	"adabank/internal/ipc"
	"adabank/internal/metrics"
	"adabank/internal/pkg/logging"
	"adabank/internal/wal"
)

type Server struct {
	cfg     *config.Config
	mapping *ipc.Mapping
	region  *ipc.Region
	engine  *Engine
	log     *wal.Log

	// Raw descriptors, deliberately not wrapped in os.File: the read side is
	// nonblocking and polled by hand, and the runtime poller must not own it.
	fifoRFd int // read side, nonblocking
	fifoWFd int // sentinel writer keeping the FIFO alive across client exits

	tellers   map[int]*tellerProc
	tellersMu sync.Mutex

	pending strings.Builder // partial pid line carried between reads
}

// New wires a Server over already-initialized dependencies. The mapping must
// be created (or attached and replayed) by the caller.
func New(cfg *config.Config, mapping *ipc.Mapping, engine *Engine, log *wal.Log) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		mapping: mapping,
		region:  mapping.Region,
		engine:  engine,
		log:     log,
		tellers: make(map[int]*tellerProc),
	}

	path := cfg.ServerFIFOPath()
	if err := ipc.MakeFIFO(path, 0o666); err != nil {
		return nil, err
	}

	rfd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		unix.Unlink(path)
		return nil, fmt.Errorf("open server fifo %s: %w", path, err)
	}
	wfd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		unix.Close(rfd)
		unix.Unlink(path)
		return nil, fmt.Errorf("open server fifo sentinel %s: %w", path, err)
	}
	s.fifoRFd, s.fifoWFd = rfd, wfd
	return s, nil
}

// Run is the main loop: wait briefly for the server FIFO, accept any pids,
// then drain whatever sits in the request ring. Returns once ctx is
// cancelled, after the ordered teardown completed.
func (s *Server) Run(ctx context.Context) error {
	logging.Info("bank open", "fifo", s.cfg.ServerFIFOPath(), "log", s.log.Path())

	pollMs := int(s.cfg.IPC.PollInterval.Milliseconds())
	for ctx.Err() == nil {
		readable, err := ipc.PollReadable(s.fifoRFd, pollMs)
		if err != nil {
			s.teardown()
			return err
		}
		if readable {
			s.acceptClients()
		}
		if err := s.drainQueue(); err != nil {
			s.teardown()
			return err
		}
	}

	return s.teardown()
}

// acceptClients consumes newline-terminated decimal pids from the server FIFO
// and spawns a Teller for each.
func (s *Server) acceptClients() {
	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(s.fifoRFd, buf)
		if n > 0 {
			s.pending.Write(buf[:n])
		}
		if err != nil || n < len(buf) {
			break
		}
	}

	data := s.pending.String()
	s.pending.Reset()
	if i := strings.LastIndexByte(data, '\n'); i >= 0 {
		complete := data[:i]
		s.pending.WriteString(data[i+1:])
		for _, tok := range strings.Fields(strings.ReplaceAll(complete, "\n", " ")) {
			pid, err := strconv.Atoi(tok)
			if err != nil || pid <= 0 {
				logging.Warn("ignoring bad client pid", "token", tok)
				continue
			}
			if err := s.spawnTeller(pid); err != nil {
				logging.Error("spawn teller", "client_pid", pid, "err", err)
			}
		}
	} else {
		s.pending.WriteString(data)
	}
}

// drainQueue serves every request currently in the ring. The per-request
// sequence is fixed: lock db, mutate, append log, write result fields, unlock
// db, post the slot's response semaphore.
func (s *Server) drainQueue() error {
	for {
		idx, req, ok := s.region.TryPop()
		if !ok {
			metrics.QueueDepthGauge.Set(float64(s.region.Depth()))
			return nil
		}

		s.region.DBMu.Wait()
		resp, err := s.engine.Apply(req)
		if err != nil {
			s.region.DBMu.Post()
			logging.Error("transaction log append failed, aborting", "err", err)
			return err
		}
		s.region.SetResult(idx, resp)
		s.region.DBMu.Post()
		s.region.PostResult(idx)

		logging.Debug("served request",
			"client_pid", req.ClientPID,
			"op", req.Op.String(),
			"bank_id", resp.BankID,
			"status", int(resp.Status),
			"balance", resp.Balance,
		)
	}
}
