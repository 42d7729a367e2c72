package proto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adabank/internal/domain/bankerr"
	"adabank/internal/domain/ledger"
	"adabank/internal/ipc"
	"adabank/internal/proto"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		op      ipc.Op
		id      int32
		amount  int64
		wantErr bool
	}{
		{"new shorthand", "N deposit 1000", ipc.OpDeposit, ledger.NewAccount, 1000, false},
		{"new explicit", "BankID_None deposit 50", ipc.OpDeposit, ledger.NewAccount, 50, false},
		{"existing prefixed", "BankID_3 withdraw 400", ipc.OpWithdraw, 3, 400, false},
		{"bare decimal", "12 deposit 7", ipc.OpDeposit, 12, 7, false},
		{"extra whitespace", "  BankID_0   withdraw   600  ", ipc.OpWithdraw, 0, 600, false},
		{"missing amount", "N deposit", 0, 0, 0, true},
		{"too many fields", "N deposit 10 20", 0, 0, 0, true},
		{"unknown op", "N transfer 10", 0, 0, 0, true},
		{"uppercase op", "N Deposit 10", 0, 0, 0, true},
		{"zero amount", "N deposit 0", 0, 0, 0, true},
		{"negative amount", "BankID_1 withdraw -5", 0, 0, 0, true},
		{"non-numeric amount", "N deposit ten", 0, 0, 0, true},
		{"id out of range", "BankID_1024 deposit 10", 0, 0, 0, true},
		{"negative id", "-2 deposit 10", 0, 0, 0, true},
		{"garbage token", "BankID_x deposit 10", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, id, amount, err := proto.ParseCommand(tt.line)
			if tt.wantErr {
				var be *bankerr.BankError
				require.ErrorAs(t, err, &be)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.amount, amount)
		})
	}
}

func TestFormatError(t *testing.T) {
	_, _, _, err := proto.ParseCommand("BankID_1024 deposit 10")
	require.Error(t, err)
	assert.Equal(t, "FAIL invalid account\n", proto.FormatError(err))

	_, _, _, err = proto.ParseCommand("complete nonsense")
	require.Error(t, err)
	assert.Equal(t, "ERR bad format\n", proto.FormatError(err))
}

func TestFormatResponse(t *testing.T) {
	tests := []struct {
		name string
		resp ipc.Response
		want string
	}{
		{"ok", ipc.Response{Status: bankerr.StatusOK, BankID: 0, Balance: 1000}, "OK BankID_0 balance=1000\n"},
		{"ok zero balance keeps closed id", ipc.Response{Status: bankerr.StatusOK, BankID: 7, Balance: 0}, "OK BankID_7 balance=0\n"},
		{"insufficient carries unchanged balance", ipc.Response{Status: bankerr.StatusInsufficient, Balance: 100}, "FAIL insufficient balance=100\n"},
		{"error", ipc.Response{Status: bankerr.StatusError}, "FAIL invalid account\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, proto.FormatResponse(tt.resp))
		})
	}
}
