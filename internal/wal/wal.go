// Package wal persists the append-only transaction log. The log is the sole
// durable state of the bank: on startup the account table is rebuilt by
// replaying every event in file order.
package wal

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Event verbs as they appear on disk.
const (
	VerbCreate   = "CREATE"
	VerbDeposit  = "DEPOSIT"
	VerbWithdraw = "WITHDRAW"
	VerbClose    = "CLOSE"
)

// Log is an append-only event file. Appends are not safe for concurrent use;
// the server serializes them under the same mutex that guards the account
// table, so an append is always paired with the mutation it records.
type Log struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// Open opens the log for appending, creating it with a header when it does
// not exist yet. Every open stamps a run marker comment so restarts are
// visible in the file; comments are skipped on replay.
func Open(path string) (*Log, error) {
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transaction log %s: %w", path, err)
	}

	l := &Log{path: path, f: f, w: bufio.NewWriter(f)}
	if fresh {
		if err := l.comment("AdaBank transaction log"); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := l.comment(fmt.Sprintf("run %s at %s", uuid.NewString(), time.Now().UTC().Format(time.RFC3339))); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the on-disk location of the log.
func (l *Log) Path() string {
	return l.path
}

func (l *Log) comment(text string) error {
	if _, err := fmt.Fprintf(l.w, "# %s\n", text); err != nil {
		return fmt.Errorf("append log comment: %w", err)
	}
	return l.w.Flush()
}

// append writes one record and flushes it. The flush is the commit point: the
// caller must not signal a response before append returns.
func (l *Log) append(format string, args ...interface{}) error {
	if _, err := fmt.Fprintf(l.w, format+"\n", args...); err != nil {
		return fmt.Errorf("append transaction log: %w", err)
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("flush transaction log: %w", err)
	}
	return nil
}

// AppendCreate records allocation of a fresh account with its opening balance.
func (l *Log) AppendCreate(id int32, balance int64) error {
	return l.append("%s %d %d", VerbCreate, id, balance)
}

// AppendDeposit records a deposit and the balance it produced.
func (l *Log) AppendDeposit(id int32, amount, balance int64) error {
	return l.append("%s %d %d %d", VerbDeposit, id, amount, balance)
}

// AppendWithdraw records a withdrawal and the balance it produced.
func (l *Log) AppendWithdraw(id int32, amount, balance int64) error {
	return l.append("%s %d %d %d", VerbWithdraw, id, amount, balance)
}

// AppendClose records that an account drained to zero and its id was freed.
func (l *Log) AppendClose(id int32) error {
	return l.append("%s %d", VerbClose, id)
}

// Close flushes buffered records and syncs the file.
func (l *Log) Close() error {
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return fmt.Errorf("flush transaction log: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		l.f.Close()
		return fmt.Errorf("sync transaction log: %w", err)
	}
	return l.f.Close()
}
