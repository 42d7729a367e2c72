package components

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"adabank/internal/admin"
	"adabank/internal/config"
	"adabank/internal/domain/ledger"
	"adabank/internal/events"
	"adabank/internal/ipc"
	"adabank/internal/metrics"
	"adabank/internal/pkg/logging"
	"adabank/internal/server"
	"adabank/internal/wal"
)

// Container holds all broker components and their dependencies.
type Container struct {
	Config  *config.Config
	Lock    *flock.Flock
	Log     *wal.Log
	Mapping *ipc.Mapping
	Table   *ledger.Table
	Broker  *events.Broker
	Server  *server.Server
	Admin   *http.Server
}

// New creates and initializes all broker components for the named bank.
func New(bankName string) (*Container, error) {
	c := &Container{}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"config", c.initConfig(bankName)},
		{"logging", c.initLogging},
		{"lock", c.initLock},
		{"shared region", c.initRegion},
		{"state", c.initState},
		{"server", c.initServer},
		{"admin", c.initAdmin},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			c.releasePartial()
			return nil, fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
	}

	logging.Info("all components initialized", "bank", c.Config.Bank.Name)
	return c, nil
}

func (c *Container) initConfig(bankName string) func() error {
	return func() error {
		c.Config = config.Load(bankName)
		return nil
	}
}

func (c *Container) initLogging() error {
	logging.Init(c.Config)
	return nil
}

// initLock takes the per-bank file lock so two servers never arbitrate the
// same region.
func (c *Container) initLock() error {
	c.Lock = flock.New(c.Config.LockPath())
	locked, err := c.Lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire %s: %w", c.Config.LockPath(), err)
	}
	if !locked {
		return fmt.Errorf("another server is already arbitrating bank %s", c.Config.Bank.Name)
	}
	return nil
}

func (c *Container) initRegion() error {
	mapping, created, err := ipc.Create(c.Config.RegionName(), c.Config.IPC.AttachTimeout)
	if err != nil {
		return err
	}
	c.Mapping = mapping
	if created {
		logging.Info("shared region created", "name", c.Config.RegionName(), "bytes", ipc.RegionSize)
	} else {
		logging.Warn("attached to shared region from a previous run", "name", c.Config.RegionName())
	}
	return nil
}

// initState opens the transaction log and rebuilds the account table in the
// shared region by replay. The log alone is authoritative: whatever balances
// an attached region carried are discarded first.
func (c *Container) initState() error {
	log, err := wal.Open(c.Config.Bank.LogPath)
	if err != nil {
		return err
	}
	c.Log = log

	c.Table = ledger.NewView(c.Mapping.BalancesSlice(), c.Mapping.NextIDPtr())

	region := c.Mapping.Region
	region.DBMu.Wait()
	defer region.DBMu.Post()

	start := time.Now()
	c.Table.Reset()
	stats, err := wal.Replay(c.Config.Bank.LogPath, c.Table)
	if err != nil {
		return err
	}
	metrics.ReplayDuration.Set(time.Since(start).Seconds())
	metrics.ReplayWarningsTotal.Add(float64(stats.Warnings))
	metrics.ActiveAccountsGauge.Set(float64(c.Table.ActiveCount()))

	logging.Info("transaction log replayed",
		"path", c.Config.Bank.LogPath,
		"events", stats.Applied,
		"warnings", stats.Warnings,
		"active_accounts", c.Table.ActiveCount(),
	)
	return nil
}

func (c *Container) initServer() error {
	c.Broker = events.NewBroker()
	engine := &server.Engine{Table: c.Table, Log: c.Log, Broker: c.Broker}
	srv, err := server.New(c.Config, c.Mapping, engine, c.Log)
	if err != nil {
		return err
	}
	c.Server = srv
	return nil
}

func (c *Container) initAdmin() error {
	addr := c.Config.Admin.ListenAddr
	if addr == "" {
		return nil
	}
	c.Admin = &http.Server{
		Addr:    addr,
		Handler: admin.NewRouter(c.Config.Bank.Name, c.Server, c.Broker),
	}
	logging.Info("admin surface enabled", "addr", addr)
	return nil
}

// Start blocks until a termination signal arrives and the ordered teardown
// completes. The signal path only cancels the context; every teardown step
// runs from the main loop.
func (c *Container) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Server.Run(ctx)
	})
	if c.Admin != nil {
		g.Go(func() error {
			if err := c.Admin.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return c.Admin.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	c.Lock.Unlock()
	return err
}

// releasePartial unwinds whatever New managed to set up before failing.
func (c *Container) releasePartial() {
	if c.Log != nil {
		c.Log.Close()
	}
	if c.Mapping != nil {
		c.Mapping.Destroy()
	}
	if c.Lock != nil {
		c.Lock.Unlock()
	}
}
