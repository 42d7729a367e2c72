package ipc

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Sem is a counting semaphore resident in shared memory, usable across
// processes. The counter doubles as the futex word; waiters park in the
// kernel, so there is no spinning on queue state. The futex ops are not
// PRIVATE because server and Tellers share the word through the mapping.
type Sem struct {
	v int32
	_ int32
}

// FUTEX_WAIT and FUTEX_WAKE are the standard Linux futex(2) operation codes
// (linux/futex.h). golang.org/x/sys/unix does not export them.
const (
	futexWait int32 = 0
	futexWake int32 = 1
)

func futex(addr *int32, op int32, val int32, ts *unix.Timespec) unix.Errno {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(op),
		uintptr(val),
		uintptr(unsafe.Pointer(ts)),
		0, 0,
	)
	return errno
}

// Init sets the counter. Only the region creator calls this, before any other
// process can see the segment.
func (s *Sem) Init(val int32) {
	atomic.StoreInt32(&s.v, val)
}

// Post increments the counter and wakes one waiter.
func (s *Sem) Post() {
	atomic.AddInt32(&s.v, 1)
	futex(&s.v, futexWake, 1, nil)
}

// Wait decrements the counter, blocking while it is zero. Interrupted waits
// are retried.
func (s *Sem) Wait() {
	for {
		v := atomic.LoadInt32(&s.v)
		if v > 0 {
			if atomic.CompareAndSwapInt32(&s.v, v, v-1) {
				return
			}
			continue
		}
		futex(&s.v, futexWait, v, nil)
	}
}

// TryWait decrements the counter without blocking. It reports false when the
// counter is zero.
func (s *Sem) TryWait() bool {
	for {
		v := atomic.LoadInt32(&s.v)
		if v <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&s.v, v, v-1) {
			return true
		}
	}
}

// WaitTimeout is Wait bounded by d. It reports false when the deadline passed
// without acquiring.
func (s *Sem) WaitTimeout(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		v := atomic.LoadInt32(&s.v)
		if v > 0 {
			if atomic.CompareAndSwapInt32(&s.v, v, v-1) {
				return true
			}
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		ts := unix.NsecToTimespec(remaining.Nanoseconds())
		futex(&s.v, futexWait, v, &ts)
	}
}

// Value reads the current counter. Diagnostics only.
func (s *Sem) Value() int32 {
	return atomic.LoadInt32(&s.v)
}
