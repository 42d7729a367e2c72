// Package ipc carries all inter-process state of the bank: the shared memory
// region with the request ring and account balances, the futex-backed
// semaphores synchronizing it, and the FIFO plumbing between clients, Tellers
// and the server.
package ipc

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"adabank/internal/config"
	"adabank/internal/domain/ledger"
)

const regionMagic uint32 = 0xADAB0001

const shmDir = "/dev/shm"

// Slot is one fixed-position record in the request ring. The producing Teller
// fills the request fields before posting FilledSlots; the server fills the
// result fields before posting Ready. The two never write concurrently.
type Slot struct {
	ClientPID int32
	Op        int32
	BankID    int32
	Status    int32
	Amount    int64

	ResultID      int32
	_             int32
	ResultBalance int64

	// Ready is the per-slot response channel: posted by the server once the
	// result fields are in place, awaited by the Teller that pushed here.
	Ready Sem
}

// Region is the typed layout of the shared segment. The server exclusively
// creates, initializes and destroys it; Tellers attach read/write. Fields are
// only touched through the queue and ledger operations, which name the locks
// they require.
type Region struct {
	Magic uint32
	_     uint32

	FreeSlots   Sem
	FilledSlots Sem
	QueueMu     Sem
	DBMu        Sem

	Head   int32
	Tail   int32
	NextID int32
	_      int32

	Slots    [config.QueueLen]Slot
	Balances [config.MaxAccounts]int64
}

// RegionSize is the byte size of the mapped segment.
var RegionSize = int(unsafe.Sizeof(Region{}))

// Mapping is one process's view of the shared region.
type Mapping struct {
	Region *Region
	mem    []byte
	path   string
}

func regionPath(name string) string {
	return shmDir + "/" + name
}

func mapRegion(fd int) ([]byte, *Region, error) {
	mem, err := unix.Mmap(fd, 0, RegionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap shared region: %w", err)
	}
	return mem, (*Region)(unsafe.Pointer(&mem[0])), nil
}

// Create builds the shared region for a bank. When a segment with the same
// name already survives from an unclean exit, it attaches instead and treats
// the existing semaphores as authoritative: the database mutex is probed with
// a bounded wait so a wedged region is detected rather than hung on.
// The created return tells the caller whether the segment was freshly created
// (and initialized with every account slot inactive) or attached, in which
// case it still carries the balances of the previous run.
func Create(name string, attachTimeout time.Duration) (m *Mapping, created bool, err error) {
	path := regionPath(name)

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0o600)
	switch err {
	case nil:
		created = true
	case unix.EEXIST:
		fd, err = unix.Open(path, unix.O_RDWR, 0o600)
		if err != nil {
			return nil, false, fmt.Errorf("open existing shared region %s: %w", path, err)
		}
	default:
		return nil, false, fmt.Errorf("create shared region %s: %w", path, err)
	}
	defer unix.Close(fd)

	if created {
		if err := unix.Ftruncate(fd, int64(RegionSize)); err != nil {
			unix.Unlink(path)
			return nil, false, fmt.Errorf("size shared region %s: %w", path, err)
		}
	}

	mem, region, err := mapRegion(fd)
	if err != nil {
		if created {
			unix.Unlink(path)
		}
		return nil, false, err
	}
	m = &Mapping{Region: region, mem: mem, path: path}

	if created {
		m.initialize()
		return m, true, nil
	}

	if region.Magic != regionMagic {
		m.Close()
		return nil, false, fmt.Errorf("shared region %s has unknown layout", path)
	}
	if !region.DBMu.WaitTimeout(attachTimeout) {
		m.Close()
		return nil, false, fmt.Errorf("shared region %s is stale: database mutex held past %s", path, attachTimeout)
	}
	region.DBMu.Post()
	return m, false, nil
}

// Attach maps an existing region. Tellers use this; they never create or
// destroy the segment.
func Attach(name string) (*Mapping, error) {
	path := regionPath(name)
	fd, err := unix.Open(path, unix.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("attach shared region %s: %w", path, err)
	}
	defer unix.Close(fd)

	mem, region, err := mapRegion(fd)
	if err != nil {
		return nil, err
	}
	if region.Magic != regionMagic {
		unix.Munmap(mem)
		return nil, fmt.Errorf("shared region %s has unknown layout", path)
	}
	return &Mapping{Region: region, mem: mem, path: path}, nil
}

func (m *Mapping) initialize() {
	r := m.Region
	r.FreeSlots.Init(config.QueueLen)
	r.FilledSlots.Init(0)
	r.QueueMu.Init(1)
	r.DBMu.Init(1)
	r.Head = 0
	r.Tail = 0
	r.NextID = 0
	for i := range r.Slots {
		r.Slots[i].Ready.Init(0)
	}
	for i := range r.Balances {
		r.Balances[i] = ledger.Inactive
	}
	r.Magic = regionMagic
}

// BalancesSlice exposes the account table storage for a ledger view.
func (m *Mapping) BalancesSlice() []int64 {
	return m.Region.Balances[:]
}

// NextIDPtr exposes the free-slot search hint for a ledger view.
func (m *Mapping) NextIDPtr() *int32 {
	return &m.Region.NextID
}

// Close unmaps the region, leaving the segment in place.
func (m *Mapping) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	m.Region = nil
	return err
}

// Destroy unmaps and unlinks the segment. Only the server calls this, during
// teardown after every Teller is gone.
func (m *Mapping) Destroy() error {
	path := m.path
	if err := m.Close(); err != nil {
		unix.Unlink(path)
		return err
	}
	if err := unix.Unlink(path); err != nil {
		return fmt.Errorf("unlink shared region %s: %w", path, err)
	}
	return nil
}
