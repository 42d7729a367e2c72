package server_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adabank/internal/config"
	"adabank/internal/domain/bankerr"
	"adabank/internal/domain/ledger"
	"adabank/internal/ipc"
	"adabank/internal/server"
	"adabank/internal/wal"
)

type engineFixture struct {
	engine  *server.Engine
	log     *wal.Log
	logPath string
}

func newEngine(t *testing.T) *engineFixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "AdaBank.bankLog")
	l, err := wal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return &engineFixture{
		engine:  &server.Engine{Table: ledger.NewTable(), Log: l},
		log:     l,
		logPath: path,
	}
}

func (f *engineFixture) records(t *testing.T) []string {
	t.Helper()
	require.NoError(t, f.log.Close())
	data, err := os.ReadFile(f.logPath)
	require.NoError(t, err)

	var records []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		records = append(records, line)
	}
	return records
}

func deposit(t *testing.T, e *server.Engine, id int32, amount int64) ipc.Response {
	t.Helper()
	resp, err := e.Apply(ipc.Request{Op: ipc.OpDeposit, BankID: id, Amount: amount})
	require.NoError(t, err)
	return resp
}

func withdraw(t *testing.T, e *server.Engine, id int32, amount int64) ipc.Response {
	t.Helper()
	resp, err := e.Apply(ipc.Request{Op: ipc.OpWithdraw, BankID: id, Amount: amount})
	require.NoError(t, err)
	return resp
}

func TestSingleClientLifecycle(t *testing.T) {
	f := newEngine(t)

	resp := deposit(t, f.engine, ledger.NewAccount, 1000)
	assert.Equal(t, bankerr.StatusOK, resp.Status)
	assert.Equal(t, int32(0), resp.BankID)
	assert.Equal(t, int64(1000), resp.Balance)

	resp = withdraw(t, f.engine, 0, 400)
	assert.Equal(t, bankerr.StatusOK, resp.Status)
	assert.Equal(t, int64(600), resp.Balance)

	// Withdrawing the full balance closes the account; the reply still names
	// the closed id with balance 0.
	resp = withdraw(t, f.engine, 0, 600)
	assert.Equal(t, bankerr.StatusOK, resp.Status)
	assert.Equal(t, int32(0), resp.BankID)
	assert.Equal(t, int64(0), resp.Balance)

	assert.Equal(t, []string{
		"CREATE 0 1000",
		"WITHDRAW 0 400 600",
		"WITHDRAW 0 600 0",
		"CLOSE 0",
	}, f.records(t))
}

func TestInsufficientFundsLeavesNoRecord(t *testing.T) {
	f := newEngine(t)

	resp := deposit(t, f.engine, ledger.NewAccount, 100)
	require.Equal(t, bankerr.StatusOK, resp.Status)

	resp = withdraw(t, f.engine, 0, 150)
	assert.Equal(t, bankerr.StatusInsufficient, resp.Status)
	assert.Equal(t, int64(100), resp.Balance)

	assert.Equal(t, []string{"CREATE 0 100"}, f.records(t))
}

func TestInvalidAccountLeavesNoRecord(t *testing.T) {
	f := newEngine(t)

	resp := deposit(t, f.engine, 5, 10)
	assert.Equal(t, bankerr.StatusError, resp.Status)

	resp = withdraw(t, f.engine, 5, 10)
	assert.Equal(t, bankerr.StatusError, resp.Status)

	assert.Empty(t, f.records(t))
}

func TestBankFullLeavesNoRecord(t *testing.T) {
	f := newEngine(t)

	for i := 0; i < config.MaxAccounts; i++ {
		resp := deposit(t, f.engine, ledger.NewAccount, 1)
		require.Equal(t, bankerr.StatusOK, resp.Status)
	}

	resp := deposit(t, f.engine, ledger.NewAccount, 1)
	assert.Equal(t, bankerr.StatusError, resp.Status)
	assert.Len(t, f.records(t), config.MaxAccounts)
}

func TestReplayReproducesEngineState(t *testing.T) {
	f := newEngine(t)

	deposit(t, f.engine, ledger.NewAccount, 1000)
	deposit(t, f.engine, ledger.NewAccount, 2000)
	withdraw(t, f.engine, 0, 250)
	deposit(t, f.engine, 1, 500)
	withdraw(t, f.engine, 1, 2500) // closes 1

	want := f.engine.Table.Snapshot()
	require.NoError(t, f.log.Close())

	replayed := ledger.NewTable()
	stats, err := wal.Replay(f.logPath, replayed)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Warnings)
	assert.Equal(t, want, replayed.Snapshot())
	assert.Equal(t, map[int32]int64{0: 750}, replayed.Snapshot())
}

func TestClosedIDReusableOnlyThroughNew(t *testing.T) {
	f := newEngine(t)

	deposit(t, f.engine, ledger.NewAccount, 100)
	resp := withdraw(t, f.engine, 0, 100)
	require.Equal(t, bankerr.StatusOK, resp.Status)

	// Direct deposit to the closed id is rejected...
	resp = deposit(t, f.engine, 0, 50)
	assert.Equal(t, bankerr.StatusError, resp.Status)

	// ...while a NEW allocation still succeeds. The hint moved past 0, so
	// the freed id is only handed out again once the scan wraps.
	resp = deposit(t, f.engine, ledger.NewAccount, 50)
	assert.Equal(t, bankerr.StatusOK, resp.Status)
	assert.Equal(t, int32(1), resp.BankID)
}
