package server

import (
	"errors"
	"time"

	"adabank/internal/domain/bankerr"
	"adabank/internal/domain/ledger"
	"adabank/internal/events"
	"adabank/internal/ipc"
	"adabank/internal/metrics"
	"adabank/internal/wal"
)

// Engine applies the banking rules: every accepted request mutates the
// account table and appends exactly one matching set of log records before
// the response becomes visible. Callers serialize Apply under the shared
// database mutex.
type Engine struct {
	Table  *ledger.Table
	Log    *wal.Log
	Broker *events.Broker
}

// Apply serves one request and returns the response to publish. A non-nil
// error means the transaction log could not be appended after the in-memory
// mutation: the at-most-once pairing of mutation and record is broken and the
// server must abort rather than respond.
func (e *Engine) Apply(req ipc.Request) (ipc.Response, error) {
	switch req.Op {
	case ipc.OpDeposit:
		return e.deposit(req)
	case ipc.OpWithdraw:
		return e.withdraw(req)
	default:
		metrics.ObserveOperation("unknown", "error", 0)
		return ipc.Response{Status: bankerr.StatusError, BankID: req.BankID}, nil
	}
}

func (e *Engine) deposit(req ipc.Request) (ipc.Response, error) {
	id, balance, created, err := e.Table.Deposit(req.BankID, req.Amount)
	if err != nil {
		metrics.ObserveOperation("deposit", "error", 0)
		return ipc.Response{Status: statusOf(err), BankID: req.BankID, Balance: balance}, nil
	}

	if created {
		if err := e.Log.AppendCreate(id, balance); err != nil {
			return ipc.Response{}, err
		}
		metrics.AccountsCreatedTotal.Inc()
		metrics.ActiveAccountsGauge.Inc()
		e.publish(wal.VerbCreate, id, req.Amount, balance)
	} else {
		if err := e.Log.AppendDeposit(id, req.Amount, balance); err != nil {
			return ipc.Response{}, err
		}
		e.publish(wal.VerbDeposit, id, req.Amount, balance)
	}

	metrics.ObserveOperation("deposit", "ok", req.Amount)
	return ipc.Response{Status: bankerr.StatusOK, BankID: id, Balance: balance}, nil
}

func (e *Engine) withdraw(req ipc.Request) (ipc.Response, error) {
	balance, closed, err := e.Table.Withdraw(req.BankID, req.Amount)
	if err != nil {
		status := statusOf(err)
		if status == bankerr.StatusInsufficient {
			metrics.ObserveOperation("withdraw", "insufficient", 0)
		} else {
			metrics.ObserveOperation("withdraw", "error", 0)
		}
		return ipc.Response{Status: status, BankID: req.BankID, Balance: balance}, nil
	}

	if err := e.Log.AppendWithdraw(req.BankID, req.Amount, balance); err != nil {
		return ipc.Response{}, err
	}
	e.publish(wal.VerbWithdraw, req.BankID, req.Amount, balance)
	if closed {
		if err := e.Log.AppendClose(req.BankID); err != nil {
			return ipc.Response{}, err
		}
		metrics.AccountsClosedTotal.Inc()
		metrics.ActiveAccountsGauge.Dec()
		e.publish(wal.VerbClose, req.BankID, 0, 0)
	}

	metrics.ObserveOperation("withdraw", "ok", req.Amount)
	return ipc.Response{Status: bankerr.StatusOK, BankID: req.BankID, Balance: balance}, nil
}

func (e *Engine) publish(verb string, id int32, amount, balance int64) {
	if e.Broker == nil {
		return
	}
	e.Broker.Publish(events.TransactionEvent{
		Type:      verb,
		AccountID: id,
		Amount:    amount,
		Balance:   balance,
		Timestamp: time.Now().UTC(),
	})
}

func statusOf(err error) bankerr.Status {
	var be *bankerr.BankError
	if errors.As(err, &be) {
		return be.Status
	}
	return bankerr.StatusError
}
