package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adabank/internal/config"
	"adabank/internal/domain/bankerr"
	"adabank/internal/domain/ledger"
	"adabank/internal/ipc"
	"adabank/internal/wal"
)

// newBroker wires a Server over a real shared region and a temp log, without
// the FIFO plumbing, so the drain path can be driven directly.
func newBroker(t *testing.T) *Server {
	t.Helper()

	name := fmt.Sprintf("adabank-server-test-%d-%s.shm", os.Getpid(), t.Name())
	mapping, created, err := ipc.Create(name, time.Second)
	require.NoError(t, err)
	require.True(t, created)
	t.Cleanup(func() { mapping.Destroy() })

	logPath := filepath.Join(t.TempDir(), "AdaBank.bankLog")
	l, err := wal.Open(logPath)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	table := ledger.NewView(mapping.BalancesSlice(), mapping.NextIDPtr())

	return &Server{
		cfg:     config.Load("AdaBank-test"),
		mapping: mapping,
		region:  mapping.Region,
		engine:  &Engine{Table: table, Log: l},
		log:     l,
		tellers: make(map[int]*tellerProc),
	}
}

func TestDrainServesQueuedRequestsInOrder(t *testing.T) {
	s := newBroker(t)

	a := s.region.Push(ipc.Request{ClientPID: 1, Op: ipc.OpDeposit, BankID: ledger.NewAccount, Amount: 1000})
	b := s.region.Push(ipc.Request{ClientPID: 1, Op: ipc.OpWithdraw, BankID: 0, Amount: 400})

	require.NoError(t, s.drainQueue())

	respA := s.region.Await(a)
	assert.Equal(t, bankerr.StatusOK, respA.Status)
	assert.Equal(t, int32(0), respA.BankID)
	assert.Equal(t, int64(1000), respA.Balance)

	respB := s.region.Await(b)
	assert.Equal(t, bankerr.StatusOK, respB.Status)
	assert.Equal(t, int64(600), respB.Balance)
}

func TestDrainOnEmptyQueueIsANoop(t *testing.T) {
	s := newBroker(t)
	require.NoError(t, s.drainQueue())
	assert.Equal(t, int32(0), s.QueueDepth())
}

// Under N producers issuing M unit deposits each against one account, the
// final balance is exactly N*M regardless of interleaving.
func TestConcurrentDepositsFromManyProducers(t *testing.T) {
	s := newBroker(t)

	idx := s.region.Push(ipc.Request{Op: ipc.OpDeposit, BankID: ledger.NewAccount, Amount: 1})
	require.NoError(t, s.drainQueue())
	resp := s.region.Await(idx)
	require.Equal(t, bankerr.StatusOK, resp.Status)
	target := resp.BankID

	const producers = 10
	const deposits = 100

	done := make(chan struct{})
	go func() {
		// Consumer side: drain until every request has been answered.
		for {
			select {
			case <-done:
				return
			default:
			}
			if err := s.drainQueue(); err != nil {
				t.Error(err)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < deposits; i++ {
				idx := s.region.Push(ipc.Request{ClientPID: int32(p), Op: ipc.OpDeposit, BankID: target, Amount: 1})
				resp := s.region.Await(idx)
				assert.Equal(t, bankerr.StatusOK, resp.Status)
			}
		}(p)
	}
	wg.Wait()
	close(done)

	balance, ok := s.engine.Table.Balance(target)
	require.True(t, ok)
	assert.Equal(t, int64(1+producers*deposits), balance)
}
