package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// DefaultBankName is used when no server FIFO name is given on the command line.
	DefaultBankName = "AdaBank"

	// MaxAccounts is the size of the account table. Account ids live in [0, MaxAccounts).
	MaxAccounts = 1024

	// QueueLen is the capacity of the shared request ring.
	QueueLen = 64
)

type Config struct {
	Bank     BankConfig
	IPC      IPCConfig
	Admin    AdminConfig
	Logging  LoggingConfig
	Shutdown ShutdownConfig
}

type BankConfig struct {
	// Name doubles as the server FIFO name and the shared region name.
	Name string
	// LogPath is the transaction log. Defaults to <Name>.bankLog in the working directory.
	LogPath string
}

type IPCConfig struct {
	// FIFODir holds the server FIFO and all per-client FIFO pairs.
	FIFODir string
	// AttachTimeout bounds the db mutex probe when attaching to a region
	// left behind by a previous unclean exit.
	AttachTimeout time.Duration
	// PollInterval bounds each wait for server-FIFO readability in the main loop.
	PollInterval time.Duration
}

type AdminConfig struct {
	// ListenAddr serves /metrics, /healthz and /events. Empty disables the admin surface.
	ListenAddr string
}

type LoggingConfig struct {
	Level  string
	Format string
	// File, when set, mirrors diagnostics to a size-rotated file.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type ShutdownConfig struct {
	// Grace is how long Tellers get to exit after SIGTERM before they are killed.
	Grace time.Duration
}

// Load builds the configuration from the environment. bankName comes from the
// command line and wins over BANK_NAME; pass "" to use the environment or default.
func Load(bankName string) *Config {
	if bankName == "" {
		bankName = getEnv("BANK_NAME", DefaultBankName)
	}
	return &Config{
		Bank: BankConfig{
			Name:    bankName,
			LogPath: getEnv("BANK_LOG_PATH", bankName+".bankLog"),
		},
		IPC: IPCConfig{
			FIFODir:       getEnv("BANK_FIFO_DIR", "/tmp"),
			AttachTimeout: getEnvAsDuration("BANK_ATTACH_TIMEOUT", 5*time.Second),
			PollInterval:  getEnvAsDuration("BANK_POLL_INTERVAL", 200*time.Millisecond),
		},
		Admin: AdminConfig{
			ListenAddr: getEnv("BANK_ADMIN_ADDR", ""),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "text"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 50),
			MaxBackups: getEnvAsInt("LOG_FILE_MAX_BACKUPS", 3),
		},
		Shutdown: ShutdownConfig{
			Grace: getEnvAsDuration("BANK_SHUTDOWN_GRACE", 5*time.Second),
		},
	}
}

// ServerFIFOPath is the rendezvous pipe clients announce themselves on.
func (c *Config) ServerFIFOPath() string {
	return filepath.Join(c.IPC.FIFODir, c.Bank.Name)
}

// LockPath guards against two servers arbitrating the same bank.
func (c *Config) LockPath() string {
	return filepath.Join(c.IPC.FIFODir, c.Bank.Name+".lock")
}

// RegionName names the shared memory segment for this bank.
func (c *Config) RegionName() string {
	return c.Bank.Name + ".shm"
}

// ClientFIFOPaths returns the request and response FIFO paths for a client pid.
func ClientFIFOPaths(fifoDir string, pid int) (req, res string) {
	base := filepath.Join(fifoDir, "bank_"+strconv.Itoa(pid))
	return base + "_req", base + "_res"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultVal
}
