package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hammal/modred"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile        string
	logLevel       string
	maxVecsPerNode int
	workers        int
	numProcs       int

	cfg    modred.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "modred",
	Short: "Empirical model reduction with POD and balanced POD",
	Long: `modred computes POD and balanced POD modes from stored snapshots and
projects systems onto them to form reduced order models.

Vectors are read from and written to array text files or a SQLite store,
selected in the YAML configuration.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("modred %s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&maxVecsPerNode, "max-vecs-per-node", 0, "vectors held in memory per node")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", -1, "goroutines per rank, 0 for GOMAXPROCS")
	rootCmd.PersistentFlags().IntVar(&numProcs, "procs", 1, "number of ranks")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(podCmd)
	rootCmd.AddCommand(bpodCmd)
	rootCmd.AddCommand(romCmd)
	rootCmd.AddCommand(impulseCmd)
	rootCmd.AddCommand(advanceCmd)
}

// initConfig reads the config file, applies flag overrides and builds the
// logger tagged with a fresh run ID.
func initConfig(cmd *cobra.Command) error {
	cfg = modred.DefaultConfig()
	if cfgFile != "" {
		var err error
		if cfg, err = modred.LoadConfig(cfgFile); err != nil {
			return err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("max-vecs-per-node") {
		cfg.MaxVecsPerNode = maxVecsPerNode
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if numProcs < 1 {
		return fmt.Errorf("procs = %d must be positive", numProcs)
	}

	l, err := modred.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	logger = l.With("run", uuid.New().String())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
