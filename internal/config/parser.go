// Package config provides configuration file parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fgeck/localbackup/internal/models"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Defaults applied when a key is absent.
const (
	DefaultDevice       = `\Device\Harddisk1\Partition1`
	DefaultPollAttempts = 5
	DefaultPollInterval = time.Second
	DefaultVeraCrypt    = `C:\Program Files\VeraCrypt\VeraCrypt.exe`
	DefaultFreeFileSync = `C:\Program Files\FreeFileSync\FreeFileSync.exe`
	DefaultDriveEnv     = "LOCALBACKUP_DRIVE"
	DefaultKeepPerGroup = 2
	DefaultPrefixLen    = 4
	DefaultSMTPPort     = 587
	defaultConfigName   = "localbackup"
	defaultLedgerName   = "media.db"
	envPrefix           = "LOCALBACKUP"
)

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path. The format follows the extension.
func (p *Parser) LoadFile(path string) (*models.RunConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadDefault searches the working directory and the user config directory
// for localbackup.{yaml,toml,json}.
func (p *Parser) LoadDefault() (*models.RunConfig, string, error) {
	p.v.SetConfigName(defaultConfigName)
	p.v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		p.v.AddConfigPath(filepath.Join(dir, defaultConfigName))
	}

	if err := p.v.ReadInConfig(); err != nil {
		return nil, "", fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := p.parse()
	return cfg, p.v.ConfigFileUsed(), err
}

// LoadReader loads YAML configuration from a string (useful for testing).
func (p *Parser) LoadReader(content string) (*models.RunConfig, error) {
	p.v.SetConfigType("yaml")
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

// parse maps viper keys onto RunConfig and applies defaults. Required values
// are left for Validate so that a bad config still fails as a validation error.
//
//nolint:gocognit,gocyclo // parsing config requires checking many fields
func (p *Parser) parse() (*models.RunConfig, error) {
	cfg := &models.RunConfig{}

	// Media settings.
	cfg.Media = models.MediaSettings{
		Type:       models.MediaType(p.v.GetString("media.type")),
		VolumeName: p.v.GetString("media.volume_name"),
		Password:   p.expandSecret(p.v.GetString("media.password")),
		Device:     p.v.GetString("media.device"),
	}
	if cfg.Media.Device == "" {
		cfg.Media.Device = DefaultDevice
	}

	attempts, err := p.intOr("media.poll_attempts", DefaultPollAttempts)
	if err != nil {
		return nil, err
	}
	cfg.Media.PollAttempts = attempts

	interval, err := p.durationOr("media.poll_interval", DefaultPollInterval)
	if err != nil {
		return nil, err
	}
	cfg.Media.PollInterval = interval

	// SMTP settings.
	port, err := p.intOr("smtp.port", DefaultSMTPPort)
	if err != nil {
		return nil, err
	}
	cfg.SMTP = models.SMTPConfig{
		URL:      p.v.GetString("smtp.url"),
		Port:     port,
		Account:  p.expandSecret(p.v.GetString("smtp.account")),
		Password: p.expandSecret(p.v.GetString("smtp.password")),
		From:     p.v.GetString("smtp.from"),
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Account
	}
	cfg.Recipient = p.expandSecret(p.v.GetString("notify.recipient"))

	// External tools.
	cfg.Tools = models.ToolPaths{
		VeraCrypt:    p.stringOr("tools.veracrypt", DefaultVeraCrypt),
		FreeFileSync: p.stringOr("tools.freefilesync", DefaultFreeFileSync),
	}

	cfg.Job = models.BackupJobConfig{
		BatchFile: p.expandEnv(p.v.GetString("job.batch_file")),
		DriveEnv:  p.stringOr("job.drive_env", DefaultDriveEnv),
	}

	// Usage recorder.
	cfg.Usage = models.UsageSettings{
		Backend:    models.UsageBackend(p.stringOr("usage.backend", string(models.UsageBackendCommand))),
		Command:    p.expandEnv(p.v.GetString("usage.command")),
		Args:       p.v.GetStringSlice("usage.args"),
		LedgerPath: p.expandEnv(p.v.GetString("usage.ledger_path")),
	}
	if cfg.Usage.Backend == models.UsageBackendLedger && cfg.Usage.LedgerPath == "" {
		cfg.Usage.LedgerPath = DefaultLedgerPath()
	}

	// Log retention.
	cfg.Logs = models.LogSettings{
		Dir: p.expandEnv(p.v.GetString("logs.dir")),
	}
	if cfg.Logs.KeepPerGroup, err = p.intOr("logs.keep_per_group", DefaultKeepPerGroup); err != nil {
		return nil, err
	}
	if cfg.Logs.PrefixLen, err = p.intOr("logs.prefix_len", DefaultPrefixLen); err != nil {
		return nil, err
	}

	// Optional Telegram summary.
	if p.v.IsSet("telegram") {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: p.expandSecret(p.v.GetString("telegram.bot_token")),
			ChatID:   p.expandSecret(p.v.GetString("telegram.chat_id")),
		}

		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if cfg.Telegram.ChatID == "" {
			return nil, fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	return cfg, nil
}

// intOr returns def only when key is absent. A value that does not convert
// is an error rather than a silent fallback.
func (p *Parser) intOr(key string, def int) (int, error) {
	if !p.v.IsSet(key) {
		return def, nil
	}
	n, err := cast.ToIntE(p.v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func (p *Parser) durationOr(key string, def time.Duration) (time.Duration, error) {
	if !p.v.IsSet(key) {
		return def, nil
	}
	d, err := cast.ToDurationE(p.v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func (p *Parser) stringOr(key, def string) string {
	if s := p.v.GetString(key); s != "" {
		return p.expandEnv(s)
	}
	return def
}

var (
	envRef      = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)
	wholeEnvRef = regexp.MustCompile(`^(?:\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*))$`)
)

// expandEnv expands ${VAR} and $VAR references to set environment variables.
// References to unset variables and any other '$' are left as written.
func (p *Parser) expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1] + m[2]); ok {
			return v
		}
		return ref
	})
}

// expandSecret reads a secret from the environment only when the whole value
// is a single ${VAR} or $VAR reference, so passwords may contain '$'.
func (p *Parser) expandSecret(s string) string {
	m := wholeEnvRef.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	if v, ok := os.LookupEnv(m[1] + m[2]); ok {
		return v
	}
	return s
}

// DefaultLedgerPath is where the media ledger lives when usage.ledger_path is unset.
func DefaultLedgerPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return defaultLedgerName
	}
	return filepath.Join(dir, defaultConfigName, defaultLedgerName)
}

// ErrInvalid marks configuration validation failures.
var ErrInvalid = errors.New("invalid configuration")
