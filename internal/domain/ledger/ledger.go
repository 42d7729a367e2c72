package ledger

import (
	"adabank/internal/config"
	"adabank/internal/domain/bankerr"
)

// Inactive marks an unused account slot. Active slots always hold a
// non-negative balance.
const Inactive int64 = -1

// NewAccount is the deposit target requesting allocation of a fresh id.
const NewAccount int32 = -1

// Table is a view over the account balances and the free-slot hint. The
// backing storage may be process-local (tests, log replay) or a slice mapped
// over the shared region. Callers serialize access; the table itself does not
// lock.
type Table struct {
	balances []int64
	nextID   *int32
}

// NewTable returns a process-local table with every slot inactive.
func NewTable() *Table {
	t := &Table{
		balances: make([]int64, config.MaxAccounts),
		nextID:   new(int32),
	}
	t.Reset()
	return t
}

// NewView wraps externally owned storage, typically the shared region.
// The storage is used as-is; call Reset only when this process owns it.
func NewView(balances []int64, nextID *int32) *Table {
	return &Table{balances: balances, nextID: nextID}
}

// Reset marks every slot inactive and rewinds the allocation hint.
func (t *Table) Reset() {
	for i := range t.balances {
		t.balances[i] = Inactive
	}
	*t.nextID = 0
}

func (t *Table) inRange(id int32) bool {
	return id >= 0 && int(id) < len(t.balances)
}

// Active reports whether id names a live account.
func (t *Table) Active(id int32) bool {
	return t.inRange(id) && t.balances[id] != Inactive
}

// Balance returns the balance of an active account.
func (t *Table) Balance(id int32) (int64, bool) {
	if !t.Active(id) {
		return 0, false
	}
	return t.balances[id], true
}

// AllocateNew finds the first inactive slot at or after the hint, wrapping
// around once. The hint advances past the winning id so consecutive
// allocations spread forward.
func (t *Table) AllocateNew() (int32, error) {
	n := int32(len(t.balances))
	for i := int32(0); i < n; i++ {
		id := (*t.nextID + i) % n
		if t.balances[id] == Inactive {
			*t.nextID = (id + 1) % n
			return id, nil
		}
	}
	return 0, bankerr.NewBankFullError()
}

// Deposit applies amount to id, allocating a fresh account when id is
// NewAccount. It returns the (possibly newly assigned) id, the resulting
// balance, and whether the account was created by this call.
func (t *Table) Deposit(id int32, amount int64) (int32, int64, bool, error) {
	if amount <= 0 {
		return id, 0, false, bankerr.NewInvalidAmountError("amount must be greater than zero")
	}
	if id == NewAccount {
		newID, err := t.AllocateNew()
		if err != nil {
			return id, 0, false, err
		}
		t.balances[newID] = amount
		return newID, amount, true, nil
	}
	if !t.Active(id) {
		return id, 0, false, bankerr.NewAccountNotFoundError(id)
	}
	t.balances[id] += amount
	return id, t.balances[id], false, nil
}

// Withdraw removes amount from id. Draining the balance to zero closes the
// account and frees the id for a future allocation; closed is true in that
// case and the returned balance is 0.
func (t *Table) Withdraw(id int32, amount int64) (int64, bool, error) {
	if amount <= 0 {
		return 0, false, bankerr.NewInvalidAmountError("amount must be greater than zero")
	}
	if !t.Active(id) {
		return 0, false, bankerr.NewAccountNotFoundError(id)
	}
	if t.balances[id] < amount {
		return t.balances[id], false, bankerr.NewInsufficientFundsError(t.balances[id])
	}
	t.balances[id] -= amount
	if t.balances[id] == 0 {
		t.balances[id] = Inactive
		return 0, true, nil
	}
	return t.balances[id], false, nil
}

// Set forces a balance during log replay, activating the slot.
func (t *Table) Set(id int32, balance int64) {
	if t.inRange(id) {
		t.balances[id] = balance
	}
}

// Close marks the slot inactive during log replay.
func (t *Table) Close(id int32) {
	if t.inRange(id) {
		t.balances[id] = Inactive
	}
}

// ActiveCount reports the number of live accounts.
func (t *Table) ActiveCount() int {
	n := 0
	for _, b := range t.balances {
		if b != Inactive {
			n++
		}
	}
	return n
}

// Snapshot returns the active accounts as an id -> balance map.
func (t *Table) Snapshot() map[int32]int64 {
	out := make(map[int32]int64)
	for id, b := range t.balances {
		if b != Inactive {
			out[int32(id)] = b
		}
	}
	return out
}
