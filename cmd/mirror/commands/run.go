package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mirrornet/mirror/src/mirror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts the ingestor
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run ingestor",
		PreRunE: loadConfig,
		RunE:    runMirror,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runMirror(cmd *cobra.Command, args []string) error {
	engine := mirror.NewMirror(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	//stop cleanly on interrupt, so in-flight rounds finish and the stores are
	//released
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		engine.Shutdown()
	}()

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-dir", _config.LogDir, "Optional directory for info and debug log files")

	// Streams
	cmd.Flags().String("streams", _config.StreamDir, "Directory containing the per-node stream trees")
	cmd.Flags().DurationP("fetch-timeout", "t", _config.FetchTimeout, "Per-node fetch timeout")
	cmd.Flags().Bool("records", _config.EnableRecords, "Ingest the record stream")
	cmd.Flags().Bool("events", _config.EnableEvents, "Ingest the event stream")
	cmd.Flags().Bool("balances", _config.EnableBalances, "Ingest the balance stream")
	cmd.Flags().Duration("record-frequency", _config.RecordFrequency, "Record stream round period")
	cmd.Flags().Duration("event-frequency", _config.EventFrequency, "Event stream round period")
	cmd.Flags().Duration("balance-frequency", _config.BalanceFrequency, "Balance stream round period")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem checkpoints")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
	cmd.Flags().String("postgres", _config.PostgresDSN, "Postgres DSN for the reconciler repository")

	// Reconciler
	cmd.Flags().Bool("crypto-transfers", _config.PersistCryptoTransfers, "Persist itemized transfer rows")
	cmd.Flags().Bool("non-fee-transfers", _config.PersistNonFeeTransfers, "Persist derived non-fee transfer rows")
	cmd.Flags().Bool("non-fee-aggregated", _config.NonFeeAggregated, "Aggregate non-fee rows per account")
	cmd.Flags().String("treasury", _config.TreasuryAccount, "Treasury account")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db or --streams, this will
	// update the default directories to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"mirror.DataDir":          _config.DataDir,
		"mirror.LogLevel":         _config.LogLevel,
		"mirror.StreamDir":        _config.StreamDir,
		"mirror.ServiceAddr":      _config.ServiceAddr,
		"mirror.NoService":        _config.NoService,
		"mirror.Store":            _config.Store,
		"mirror.FetchTimeout":     _config.FetchTimeout,
		"mirror.EnableRecords":    _config.EnableRecords,
		"mirror.EnableEvents":     _config.EnableEvents,
		"mirror.EnableBalances":   _config.EnableBalances,
		"mirror.RecordFrequency":  _config.RecordFrequency,
		"mirror.EventFrequency":   _config.EventFrequency,
		"mirror.BalanceFrequency": _config.BalanceFrequency,
	}

	if _config.Store {
		logFields["mirror.DatabaseDir"] = _config.DatabaseDir
	}
	if _config.PostgresDSN != "" {
		logFields["mirror.PostgresDSN"] = "set"
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/mirror.toml (.json, .yaml also work)
	viper.SetConfigName("mirror")        // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
