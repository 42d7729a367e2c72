// Package proto implements the line protocol spoken over the per-client
// FIFOs: command parsing on the way in, reply formatting on the way out.
package proto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"adabank/internal/config"
	"adabank/internal/domain/bankerr"
	"adabank/internal/domain/ledger"
	"adabank/internal/ipc"
)

// Reply lines. ErrBadFormat is produced locally by the Teller for commands
// that never reach the queue.
const (
	ReplyInvalidAccount = "FAIL invalid account\n"
	ErrBadFormat        = "ERR bad format\n"
)

const bankIDPrefix = "BankID_"

// ParseCommand parses one whitespace-delimited command line:
// <account-token> <op> <amount>. The account token is N or BankID_None for a
// fresh account, else BankID_<decimal> or a bare decimal.
func ParseCommand(line string) (ipc.Op, int32, int64, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return 0, 0, 0, bankerr.NewValidationError("expected <account> <op> <amount>")
	}

	id, err := parseAccountToken(fields[0])
	if err != nil {
		return 0, 0, 0, err
	}

	var op ipc.Op
	switch fields[1] {
	case "deposit":
		op = ipc.OpDeposit
	case "withdraw":
		op = ipc.OpWithdraw
	default:
		return 0, 0, 0, bankerr.NewValidationError("unknown operation " + fields[1])
	}

	amount, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || amount <= 0 {
		return 0, 0, 0, bankerr.NewInvalidAmountError("amount must be a positive integer")
	}

	return op, id, amount, nil
}

func parseAccountToken(tok string) (int32, error) {
	if tok == "N" || tok == bankIDPrefix+"None" {
		return ledger.NewAccount, nil
	}
	digits := strings.TrimPrefix(tok, bankIDPrefix)
	id, err := strconv.ParseInt(digits, 10, 32)
	if err != nil {
		return 0, bankerr.NewValidationError("bad account token " + tok)
	}
	if id < 0 || id >= config.MaxAccounts {
		// Well-formed but unservable: answered as an invalid account, not as
		// a malformed line.
		return 0, bankerr.NewAccountNotFoundError(int32(id))
	}
	return int32(id), nil
}

// FormatError renders the local reply for a command that never reached the
// queue: out-of-range ids read as invalid accounts, everything else as a
// malformed line.
func FormatError(err error) string {
	var be *bankerr.BankError
	if errors.As(err, &be) && be.Code == bankerr.ErrCodeAccountNotFound {
		return ReplyInvalidAccount
	}
	return ErrBadFormat
}

// FormatResponse renders the reply line for a served request.
func FormatResponse(resp ipc.Response) string {
	switch resp.Status {
	case bankerr.StatusOK:
		return fmt.Sprintf("OK %s%d balance=%d\n", bankIDPrefix, resp.BankID, resp.Balance)
	case bankerr.StatusInsufficient:
		return fmt.Sprintf("FAIL insufficient balance=%d\n", resp.Balance)
	default:
		return ReplyInvalidAccount
	}
}
