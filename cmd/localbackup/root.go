package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fgeck/localbackup/internal/config"
	"github.com/fgeck/localbackup/internal/models"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "localbackup",
	Short: "Back up to encrypted removable media",
	Long: `localbackup runs a full backup to an encrypted removable volume:
  - Mount the VeraCrypt volume and find its drive letter
  - Run the FreeFileSync backup job against it
  - Unmount the volume
  - Record which medium was used
  - Email the result and prune old backup logs

Use as a one-shot command with an external scheduler (Task Scheduler, cron, etc.)`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	SilenceErrors: true,
	SilenceUsage:  true,
	Version:       Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: localbackup.yaml in . or the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(mediaCmd)
}

func setupLogging() {
	// Set output format
	if jsonOutput {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
			NoColor:    !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()),
		}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// loadConfig reads --config, or searches the default locations.
func loadConfig() (*models.RunConfig, string, error) {
	parser := config.NewParser()
	if configFile != "" {
		cfg, err := parser.LoadFile(configFile)
		return cfg, configFile, err
	}
	return parser.LoadDefault()
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd, err := rootCmd.ExecuteC()
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	// Asking for help on run counts as a validation failure.
	if cmd == runCmd {
		if help, _ := cmd.Flags().GetBool("help"); help {
			return models.ExitBackupFail
		}
	}

	return 0
}
