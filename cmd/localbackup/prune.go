package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fgeck/localbackup/internal/config"
	"github.com/fgeck/localbackup/internal/models"
	"github.com/fgeck/localbackup/internal/services/retention"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	pruneDryRun bool
	pruneDir    string
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the log retention policy",
	Long: `Delete old backup logs, keeping the most recently modified files of
each group. Files are grouped by the first characters of their name.`,
	Args: cobra.NoArgs,
	RunE: pruneLogs,
}

func init() {
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "show what would be deleted without deleting")
	pruneCmd.Flags().StringVar(&pruneDir, "dir", "", "log directory (overrides logs.dir)")
}

func pruneLogs(cmd *cobra.Command, args []string) error {
	settings := models.LogSettings{
		KeepPerGroup: config.DefaultKeepPerGroup,
		PrefixLen:    config.DefaultPrefixLen,
	}

	cfg, path, err := loadConfig()
	switch {
	case err == nil:
		settings = cfg.Logs
	case pruneDir == "":
		log.Error().Err(err).Str("file", path).Msg("failed to load config")
		return err
	default:
		log.Debug().Err(err).Msg("no config, using default retention settings")
	}
	if pruneDir != "" {
		settings.Dir = pruneDir
	}

	if errs := config.ValidateLogs(settings); len(errs) > 0 {
		return fmt.Errorf("%w: %w", config.ErrInvalid, errors.Join(errs...))
	}

	svc := retention.New(log.Logger, settings)
	out := cmd.OutOrStdout()

	if pruneDryRun {
		decisions, err := svc.Plan(cmd.Context(), settings.Dir)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Group", "File", "Modified", "#", "Action"},
			planRows(decisions),
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		))
		return nil
	}

	result, err := svc.Prune(cmd.Context(), settings.Dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Kept %d, deleted %d log file(s).\n", len(result.Kept), len(result.Deleted))
	if len(result.Errors) > 0 {
		return fmt.Errorf("some logs could not be deleted: %w", errors.Join(result.Errors...))
	}
	return nil
}

func planRows(decisions []models.PruneDecision) [][]string {
	rows := make([][]string, 0, len(decisions))
	for _, d := range decisions {
		action := "keep"
		if !d.Keep {
			action = "delete"
		}
		rows = append(rows, []string{
			d.Record.GroupKey,
			d.Record.FileName,
			d.Record.LastModified.Format("2006-01-02 15:04:05"),
			strconv.Itoa(d.Position),
			action,
		})
	}
	return rows
}
