package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/cmsbulk/internal/config"
	"github.com/rshade/cmsbulk/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger = zerolog.Nop() //nolint:gochecknoglobals // Required for zerolog context integration

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configFile  string
	envFile     string
	debug       bool
	batchSize   int
	delay       time.Duration
	metricsFile string
}

// app carries the state resolved in PersistentPreRunE to the subcommands.
type app struct {
	flags     globalFlags
	lookupEnv func(string) (string, bool)
	newAPI    apiFactory
	cfg       *config.Config
	logResult *logging.LogPathResult
}

// NewRootCmd creates the root Cobra command for the cmsbulk CLI.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit env lookup for testability.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	return newRootCmd(ver, lookupEnv, newCMSClient)
}

func newRootCmd(ver string, lookupEnv func(string) (string, bool), newAPI apiFactory) *cobra.Command {
	a := &app{lookupEnv: lookupEnv, newAPI: newAPI}
	return a.rootCmd(ver)
}

func (a *app) rootCmd(ver string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cmsbulk",
		Short: "Bulk writes against a headless CMS",
		Long: `cmsbulk creates, reorders and deletes CMS records in rate-limited groups.

Each group is submitted concurrently and always allowed to finish; the next
group starts after a fixed pause. Ctrl+C stops scheduling new groups, a second
Ctrl+C aborts the requests in flight.`,
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.prepare(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "config file (default ./"+config.DefaultConfigFile+" if present)")
	pf.StringVar(&a.flags.envFile, "env-file", "", "dotenv file (default ./.env if present)")
	pf.BoolVar(&a.flags.debug, "debug", false, "enable debug logging")
	pf.IntVar(&a.flags.batchSize, "batch-size", config.DefaultBatchSize, "mutations submitted concurrently per group")
	pf.DurationVar(&a.flags.delay, "delay", time.Duration(config.DefaultDelayMS)*time.Millisecond,
		"pause between groups")
	pf.StringVar(&a.flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile when done")

	cmd.AddCommand(newChaptersCmd(a), newDeleteCmd(a), newParseCmd(), newConfigCmd(a))
	a.closeLogAfterRun(cmd)
	return cmd
}

// closeLogAfterRun wraps every RunE in the tree so the log file is closed
// whether or not the command fails. Cobra skips PersistentPostRunE on error.
func (a *app) closeLogAfterRun(cmd *cobra.Command) {
	for _, sub := range cmd.Commands() {
		a.closeLogAfterRun(sub)
	}
	run := cmd.RunE
	if run == nil {
		return
	}
	cmd.RunE = func(c *cobra.Command, args []string) (err error) {
		defer func() {
			if closeErr := a.logResult.Close(); err == nil {
				err = closeErr
			}
		}()
		return run(c, args)
	}
}

// prepare loads configuration, applies flag overrides and sets up logging.
func (a *app) prepare(cmd *cobra.Command) error {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: a.flags.configFile,
		EnvFile:    a.flags.envFile,
		LookupEnv:  a.lookupEnv,
	})
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// CLI flags override environment variables and config file
	if cmd.Flags().Changed("batch-size") {
		cfg.Batch.Size = a.flags.batchSize
	}
	if cmd.Flags().Changed("delay") {
		cfg.Batch.DelayMS = int(a.flags.delay.Milliseconds())
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	result := setupLogging(cmd, cfg, a.flags.debug)
	a.logResult = &result
	return nil
}

const rootCmdExample = `  # Preview chapter creation for work 12 from a file
  cmsbulk chapters create --work 12 --file chapters.txt --dry-run

  # Create the chapters, 40 per group, writing leftovers for a retry
  cmsbulk chapters create --work 12 --file chapters.txt --batch-size 40 --failed-out retry.txt

  # Renumber the chapters of work 12 to 1..N
  cmsbulk chapters reorder --work 12

  # Delete records from a collection
  cmsbulk delete works 31 32 33

  # Check an input file without contacting the CMS
  cmsbulk parse --file chapters.txt`

// newConfigCmd creates the config command group.
func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration commands"}
	cmd.AddCommand(newConfigShowCmd(a))
	return cmd
}
