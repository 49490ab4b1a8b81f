package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/toritsejumoju/stakepoolbackup.io/internal/config"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/logging"
)

var (
	cfgPath      string
	loggingLevel string
	dbPath       string
)

var rootCmd = &cobra.Command{
	Use:   "stakepool-status",
	Short: "Tracks the outcome of the slots assigned to stake pools",
	Long: `stakepool-status stores the leader logs of stake pools, reconciles their
assigned slots against the chain and aggregates the pool rewards of
finished epochs.`,
	SilenceUsage: true,
}

// Execute runs the command given on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"path to the YAML config file.")
	rootCmd.PersistentFlags().StringVar(&loggingLevel, "level", "",
		"level of logging (overrides the config).")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "",
		"path to the directory with the sqlite db (overrides the config).")
}

// loadConfig loads and validates the configuration, applies the flags and
// initializes the logging.
func loadConfig(cmd *cobra.Command, needsChain bool) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("level") {
		cfg.Logging.Level = loggingLevel
	}
	if cmd.Flags().Changed("db-path") {
		cfg.Database.Path = dbPath
	}
	err = logging.InitLogging(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	err = cfg.Validate(needsChain)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
