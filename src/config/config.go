package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/mirrornet/mirror/src/common"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing a source
	// node's private signing key (cf. mirror keygen).
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the
	// Badger checkpoint database.
	DefaultBadgerFile = "badger_db"

	// DefaultNodeBookFile is the default name of the JSON file containing the
	// genesis node book.
	DefaultNodeBookFile = "nodes.json"

	// DefaultStreamsDir is the default name of the folder containing the
	// per-node stream file trees.
	DefaultStreamsDir = "streams"
)

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultFetchTimeout     = 30 * time.Second
	DefaultRecordFrequency  = 60 * time.Second
	DefaultEventFrequency   = 60 * time.Second
	DefaultBalanceFrequency = 15 * time.Minute
	DefaultStore            = false
	DefaultTreasuryAccount  = "0.98"
)

// Config contains all the configuration properties of a mirror ingestor.
type Config struct {
	// DataDir is the top-level directory containing mirror configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogDir, when set, is a directory where info and debug log files are
	// written in addition to stderr.
	LogDir string `mapstructure:"log-dir"`

	// StreamDir is the directory containing the per-node stream file trees
	// that the downloader reads from.
	StreamDir string `mapstructure:"streams"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service. If not
	// specified, and "no-service" is not set, the API handlers are registered
	// with the DefaultServerMux of the http package, which may be shared with
	// another server in the same process.
	ServiceAddr string `mapstructure:"service-listen"`

	// Store activates persistent checkpoint storage. Without it, checkpoints
	// are kept in memory and ingestion restarts from the beginning of the
	// streams on every run.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing the checkpoint database files.
	DatabaseDir string `mapstructure:"db"`

	// PostgresDSN, when set, makes the reconciler persist to postgres instead
	// of in-memory maps.
	PostgresDSN string `mapstructure:"postgres"`

	// FetchTimeout is the timeout of a single per-node file fetch within a
	// round.
	FetchTimeout time.Duration `mapstructure:"fetch-timeout"`

	// EnableRecords controls ingestion of the record stream.
	EnableRecords bool `mapstructure:"records"`

	// EnableEvents controls ingestion of the event stream.
	EnableEvents bool `mapstructure:"events"`

	// EnableBalances controls ingestion of the balance stream.
	EnableBalances bool `mapstructure:"balances"`

	// RecordFrequency is the period of the record stream round timer.
	RecordFrequency time.Duration `mapstructure:"record-frequency"`

	// EventFrequency is the period of the event stream round timer.
	EventFrequency time.Duration `mapstructure:"event-frequency"`

	// BalanceFrequency is the period of the balance stream round timer.
	BalanceFrequency time.Duration `mapstructure:"balance-frequency"`

	// PersistCryptoTransfers controls writing itemized transfer rows.
	PersistCryptoTransfers bool `mapstructure:"crypto-transfers"`

	// PersistNonFeeTransfers controls writing derived non-fee transfer rows.
	PersistNonFeeTransfers bool `mapstructure:"non-fee-transfers"`

	// NonFeeAggregated selects the two-line net form of non-fee rows.
	NonFeeAggregated bool `mapstructure:"non-fee-aggregated"`

	// TreasuryAccount is the account that receives network and service fees.
	TreasuryAccount string `mapstructure:"treasury"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:                DefaultDataDir(),
		LogLevel:               DefaultLogLevel,
		ServiceAddr:            DefaultServiceAddr,
		Store:                  DefaultStore,
		DatabaseDir:            DefaultDatabaseDir(),
		StreamDir:              DefaultStreamDir(),
		FetchTimeout:           DefaultFetchTimeout,
		EnableRecords:          true,
		EnableEvents:           true,
		EnableBalances:         true,
		RecordFrequency:        DefaultRecordFrequency,
		EventFrequency:         DefaultEventFrequency,
		BalanceFrequency:       DefaultBalanceFrequency,
		PersistCryptoTransfers: true,
		PersistNonFeeTransfers: true,
		TreasuryAccount:        DefaultTreasuryAccount,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level mirror directory, and updates the database and
// stream directories if they are currently set to the default values. If a
// directory is not currently the default, the user has explicitely set it to
// something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
	if c.StreamDir == DefaultStreamDir() {
		c.StreamDir = filepath.Join(dataDir, DefaultStreamsDir)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// NodeBookFile returns the full path of the genesis node book file.
func (c *Config) NodeBookFile() string {
	return filepath.Join(c.DataDir, DefaultNodeBookFile)
}

// Logger returns a formatted logrus Entry, with prefix set to "mirror".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogDir != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				lfshook.PathMap{
					logrus.InfoLevel:  filepath.Join(c.LogDir, "mirror_info.log"),
					logrus.DebugLevel: filepath.Join(c.LogDir, "mirror_debug.log"),
				},
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "mirror")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultStreamDir returns the default path for the stream file trees.
func DefaultStreamDir() string {
	return filepath.Join(DefaultDataDir(), DefaultStreamsDir)
}

// DefaultDataDir return the default directory name for top-level mirror config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Mirror")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Mirror")
		} else {
			return filepath.Join(home, ".mirror")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
