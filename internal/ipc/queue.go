package ipc

import (
	"adabank/internal/config"
	"adabank/internal/domain/bankerr"
)

// Op is the request kind carried through a slot.
type Op int32

const (
	OpDeposit Op = iota
	OpWithdraw
)

func (o Op) String() string {
	switch o {
	case OpDeposit:
		return "deposit"
	case OpWithdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

// Request is what a Teller submits. BankID -1 asks for a fresh account on
// deposit.
type Request struct {
	ClientPID int32
	Op        Op
	BankID    int32
	Amount    int64
}

// Response is what the server hands back through the same slot. BankID
// carries the assigned id when the request created an account.
type Response struct {
	Status  bankerr.Status
	BankID  int32
	Balance int64
}

// Push submits a request and returns the ring index it landed on. Blocks
// while the ring is full: the free-slot ticket is taken before the queue
// mutex so a full queue parks the producer without holding the lock.
func (r *Region) Push(req Request) int {
	r.FreeSlots.Wait()

	r.QueueMu.Wait()
	idx := int(r.Tail)
	s := &r.Slots[idx]
	s.ClientPID = req.ClientPID
	s.Op = int32(req.Op)
	s.BankID = req.BankID
	s.Amount = req.Amount
	r.Tail = (r.Tail + 1) % config.QueueLen
	r.QueueMu.Post()

	r.FilledSlots.Post()
	return idx
}

// TryPop takes the oldest filled slot without blocking. The server drains the
// ring with this between FIFO polls.
func (r *Region) TryPop() (int, Request, bool) {
	if !r.FilledSlots.TryWait() {
		return 0, Request{}, false
	}
	idx, req := r.take()
	return idx, req, true
}

func (r *Region) take() (int, Request) {
	r.QueueMu.Wait()
	idx := int(r.Head)
	s := &r.Slots[idx]
	req := Request{
		ClientPID: s.ClientPID,
		Op:        Op(s.Op),
		BankID:    s.BankID,
		Amount:    s.Amount,
	}
	r.Head = (r.Head + 1) % config.QueueLen
	r.QueueMu.Post()
	return idx, req
}

// SetResult fills the result fields of slot idx. The server calls this while
// still holding the database mutex so the fields are complete before any
// wakeup.
func (r *Region) SetResult(idx int, resp Response) {
	s := &r.Slots[idx]
	s.Status = int32(resp.Status)
	s.ResultID = resp.BankID
	s.ResultBalance = resp.Balance
}

// PostResult wakes the Teller owning slot idx and hands the ring position
// back to producers.
func (r *Region) PostResult(idx int) {
	r.Slots[idx].Ready.Post()
	r.FreeSlots.Post()
}

// Respond publishes the result of slot idx in one step.
func (r *Region) Respond(idx int, resp Response) {
	r.SetResult(idx, resp)
	r.PostResult(idx)
}

// Await blocks until the server responded on slot idx and returns the result.
// Only the Teller that pushed at idx may call this; the per-slot semaphore is
// what routes each response to exactly one waiter.
func (r *Region) Await(idx int) Response {
	s := &r.Slots[idx]
	s.Ready.Wait()
	return Response{
		Status:  bankerr.Status(s.Status),
		BankID:  s.ResultID,
		Balance: s.ResultBalance,
	}
}

// Depth reports the number of filled slots. Diagnostics only.
func (r *Region) Depth() int32 {
	return r.FilledSlots.Value()
}
