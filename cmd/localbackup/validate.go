package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fgeck/localbackup/internal/config"
	"github.com/fgeck/localbackup/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [" + models.MediaTypeNames(" | ") + "]",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without mounting, backing up or sending anything.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	// Check if file exists
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			log.Error().Str("file", configFile).Msg("config file not found")
			return withExitCode(models.ExitBackupFail, fmt.Errorf("config file not found: %s", configFile))
		}
	}

	// Load configuration
	cfg, path, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("failed to parse config")
		return withExitCode(models.ExitBackupFail, err)
	}

	var mediaArg string
	if len(args) > 0 {
		mediaArg = args[0]
	}
	src := config.NewSource(*cfg, mediaArg)

	// Validate configuration
	if err := src.Validate(); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return withExitCode(models.ExitBackupFail, err)
	}

	eff := src.Config()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Configuration is valid!")
	fmt.Fprintf(out, "Loaded from: %s\n\n", path)
	fmt.Fprintln(out, keyValueTable(summaryRows(eff)))

	return nil
}

func summaryRows(cfg models.RunConfig) [][]string {
	rows := [][]string{
		{"Media type", fmt.Sprintf("%s (%s)", cfg.Media.Type, cfg.Media.Type.DisplayName())},
		{"Volume label", cfg.Media.VolumeName},
		{"Device", cfg.Media.Device},
		{"Label lookups", fmt.Sprintf("%d every %s", cfg.Media.PollAttempts, cfg.Media.PollInterval)},
		{"VeraCrypt", cfg.Tools.VeraCrypt},
		{"FreeFileSync", cfg.Tools.FreeFileSync},
		{"Backup job", cfg.Job.BatchFile},
		{"Drive variable", cfg.Job.DriveEnv},
		{"SMTP server", cfg.SMTP.URL + ":" + strconv.Itoa(cfg.SMTP.Port)},
		{"SMTP account", cfg.SMTP.Account},
		{"Recipient", cfg.Recipient},
		{"Usage backend", string(cfg.Usage.Backend)},
	}

	switch cfg.Usage.Backend {
	case models.UsageBackendLedger:
		rows = append(rows, []string{"Ledger", cfg.Usage.LedgerPath})
	default:
		rows = append(rows, []string{"Usage command", strings.Join(append([]string{cfg.Usage.Command}, cfg.Usage.Args...), " ")})
	}

	rows = append(rows,
		[]string{"Log directory", cfg.Logs.Dir},
		[]string{"Logs kept per group", fmt.Sprintf("%d (group = first %d chars)", cfg.Logs.KeepPerGroup, cfg.Logs.PrefixLen)},
		[]string{"Telegram", strconv.FormatBool(cfg.Telegram != nil)},
	)

	if cfg.Telegram != nil {
		rows = append(rows,
			[]string{"Telegram chat", cfg.Telegram.ChatID},
			[]string{"Telegram bot token", "(configured)"},
		)
	}

	return rows
}
