package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fgeck/localbackup/internal/config"
	"github.com/fgeck/localbackup/internal/medialedger"
	"github.com/fgeck/localbackup/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var ledgerPath string

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage the media ledger",
	Long: `Manage the media ledger used by the ledger usage backend. Each backup
records a use of the least recently used active medium of its type.`,
}

var mediaAddCmd = &cobra.Command{
	Use:   "add <id> <" + models.MediaTypeNames("|") + ">",
	Short: "Register a new medium",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mt, ok := models.ParseMediaType(args[1])
		if !ok {
			return fmt.Errorf("media type must be one of: %s", models.MediaTypeNames(", "))
		}
		return withLedger(cmd, func(store *medialedger.Store) error {
			if err := store.Add(cmd.Context(), args[0], mt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s medium %s.\n", mt.DisplayName(), args[0])
			return nil
		})
	},
}

var mediaListCmd = &cobra.Command{
	Use:   "list [" + models.MediaTypeNames("|") + "]",
	Short: "List registered media",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var mt models.MediaType
		if len(args) == 1 {
			var ok bool
			if mt, ok = models.ParseMediaType(args[0]); !ok {
				return fmt.Errorf("media type must be one of: %s", models.MediaTypeNames(", "))
			}
		}
		return withLedger(cmd, func(store *medialedger.Store) error {
			media, err := store.List(cmd.Context(), mt)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Type", "First use", "Last use", "Uses", "Active"},
				mediaRows(media),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		})
	},
}

var mediaRetireCmd = &cobra.Command{
	Use:   "retire <id>",
	Short: "Take a medium out of rotation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(cmd, args[0], false)
	},
}

var mediaActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Put a retired medium back into rotation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(cmd, args[0], true)
	},
}

func init() {
	mediaCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "ledger database (overrides usage.ledger_path)")
	mediaCmd.AddCommand(mediaAddCmd, mediaListCmd, mediaRetireCmd, mediaActivateCmd)
}

func setActive(cmd *cobra.Command, id string, active bool) error {
	return withLedger(cmd, func(store *medialedger.Store) error {
		if err := store.SetActive(cmd.Context(), id, active); err != nil {
			return err
		}
		state := "retired"
		if active {
			state = "active"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Medium %s is now %s.\n", id, state)
		return nil
	})
}

// resolveLedgerPath prefers --ledger, then the config, then the default location.
func resolveLedgerPath() string {
	if ledgerPath != "" {
		return ledgerPath
	}
	if cfg, _, err := loadConfig(); err == nil && cfg.Usage.LedgerPath != "" {
		return cfg.Usage.LedgerPath
	}
	return config.DefaultLedgerPath()
}

func withLedger(cmd *cobra.Command, fn func(store *medialedger.Store) error) error {
	path := resolveLedgerPath()
	store, err := medialedger.Open(cmd.Context(), path)
	if err != nil {
		log.Error().Err(err).Str("ledger", path).Msg("failed to open media ledger")
		return err
	}
	defer func() { _ = store.Close() }()

	log.Debug().Str("ledger", path).Msg("media ledger opened")
	return fn(store)
}

func mediaRows(media []models.Medium) [][]string {
	rows := make([][]string, 0, len(media))
	for _, m := range media {
		rows = append(rows, []string{
			m.ID,
			m.Type.DisplayName(),
			formatUse(m.FirstUse),
			formatUse(m.LastUse),
			strconv.Itoa(m.UseCount),
			strconv.FormatBool(m.Active),
		})
	}
	return rows
}

func formatUse(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
