package ipc

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adabank/internal/config"
	"adabank/internal/domain/ledger"
)

func TestCreateInitializesRegion(t *testing.T) {
	name := fmt.Sprintf("adabank-test-%d-create.shm", os.Getpid())
	m, created, err := Create(name, time.Second)
	require.NoError(t, err)
	defer m.Destroy()

	require.True(t, created)
	r := m.Region
	assert.Equal(t, int32(config.QueueLen), r.FreeSlots.Value())
	assert.Equal(t, int32(0), r.FilledSlots.Value())
	assert.Equal(t, int32(1), r.QueueMu.Value())
	assert.Equal(t, int32(1), r.DBMu.Value())
	for _, b := range r.Balances {
		assert.Equal(t, ledger.Inactive, b)
	}
}

func TestCreateAttachesToExistingRegion(t *testing.T) {
	name := fmt.Sprintf("adabank-test-%d-attach.shm", os.Getpid())
	m1, created, err := Create(name, time.Second)
	require.NoError(t, err)
	defer m1.Destroy()
	require.True(t, created)

	m1.Region.Balances[3] = 700

	m2, created, err := Create(name, time.Second)
	require.NoError(t, err)
	defer m2.Close()
	assert.False(t, created)
	assert.Equal(t, int64(700), m2.Region.Balances[3])
}

func TestCreateDetectsWedgedRegion(t *testing.T) {
	name := fmt.Sprintf("adabank-test-%d-wedged.shm", os.Getpid())
	m1, _, err := Create(name, time.Second)
	require.NoError(t, err)
	defer m1.Destroy()

	// Simulate a holder that died without releasing the database mutex.
	m1.Region.DBMu.Wait()

	_, _, err = Create(name, 100*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale")

	m1.Region.DBMu.Post()
}

func TestAttachRequiresExistingRegion(t *testing.T) {
	_, err := Attach(fmt.Sprintf("adabank-test-%d-missing.shm", os.Getpid()))
	assert.Error(t, err)
}

func TestTellerAttachSeesServerWrites(t *testing.T) {
	name := fmt.Sprintf("adabank-test-%d-shared.shm", os.Getpid())
	server, _, err := Create(name, time.Second)
	require.NoError(t, err)
	defer server.Destroy()

	teller, err := Attach(name)
	require.NoError(t, err)
	defer teller.Close()

	idx := teller.Region.Push(Request{ClientPID: 42, Op: OpWithdraw, BankID: 7, Amount: 50})
	gotIdx, req, ok := server.Region.TryPop()
	require.True(t, ok)
	assert.Equal(t, idx, gotIdx)
	assert.Equal(t, int32(42), req.ClientPID)
	assert.Equal(t, OpWithdraw, req.Op)
	assert.Equal(t, int32(7), req.BankID)
	assert.Equal(t, int64(50), req.Amount)
}
