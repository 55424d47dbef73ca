package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/localbackup/internal/config"
	"github.com/fgeck/localbackup/internal/models"
	"github.com/fgeck/localbackup/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var askPassword bool

var runCmd = &cobra.Command{
	Use:   "run [-h|--help] [" + models.MediaTypeNames(" | ") + "]",
	Short: "Execute the backup workflow",
	Long: `Execute the complete backup workflow:
1. Validate the configuration
2. Mount the encrypted backup volume
3. Run the backup job
4. Unmount the volume
5. Record the media usage
6. Email the usage result
7. Prune old backup logs

A media type given on the command line overrides media.type from the config.
An unrecognised media type is ignored.

Exit codes: 0 success, 1 nothing to record or email failed,
2 invalid configuration, mount or backup failure (also for --help).`,
	Args: cobra.ArbitraryArgs,
	RunE: runBackup,
}

func init() {
	runCmd.Flags().BoolVar(&askPassword, "ask-password", false, "prompt for the media password instead of reading it from the config")
	runCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		_ = cmd.Usage()
		return withExitCode(models.ExitBackupFail, err)
	})
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("failed to load config")
		return withExitCode(models.ExitBackupFail, err)
	}

	var mediaArg string
	if len(args) > 0 {
		mediaArg = args[0]
		if _, ok := models.ParseMediaType(mediaArg); !ok {
			log.Warn().Str("media_type", mediaArg).Msg("ignoring unrecognised media type argument")
		}
	}

	if askPassword {
		password, err := promptPassword("Media password: ")
		if err != nil {
			log.Error().Err(err).Msg("failed to read media password")
			return withExitCode(models.ExitBackupFail, err)
		}
		cfg.Media.Password = password
	}

	src := config.NewSource(*cfg, mediaArg)

	log.Info().
		Str("config", path).
		Str("media_type", string(src.MediaType())).
		Str("volume", cfg.Media.VolumeName).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	// Run backup
	runnerSvc := runner.New(log.Logger, cmd.OutOrStdout())
	res := runnerSvc.Run(ctx, src)

	if res.ExitCode != models.ExitSuccess {
		log.Error().
			Err(res.Error).
			Str("failed_step", string(res.FailedStep)).
			Int("exit_code", res.ExitCode).
			Msg("backup run did not complete")
		return withExitCode(res.ExitCode, res.Error)
	}

	log.Info().Dur("duration", res.Duration).Msg("backup completed successfully")
	return nil
}

func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--ask-password needs an interactive terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}
