package config

import "github.com/fgeck/localbackup/internal/models"

// Source combines the loaded configuration with the optional media type
// given on the command line.
type Source struct {
	cfg      models.RunConfig
	override string
}

// NewSource creates a Source. mediaArg is the first positional argument, or "".
func NewSource(cfg models.RunConfig, mediaArg string) *Source {
	return &Source{cfg: cfg, override: mediaArg}
}

// MediaType returns the command line media type when it is recognised,
// otherwise the configured one.
func (s *Source) MediaType() models.MediaType {
	if mt, ok := models.ParseMediaType(s.override); ok {
		return mt
	}
	return s.cfg.Media.Type
}

// Config returns the effective configuration for the run.
func (s *Source) Config() models.RunConfig {
	cfg := s.cfg
	cfg.Media.Type = s.MediaType()
	return cfg
}

// Validate validates the effective configuration.
func (s *Source) Validate() error {
	cfg := s.Config()
	return Validate(&cfg)
}
