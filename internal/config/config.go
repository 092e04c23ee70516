// Package config loads configuration from an optional YAML file and
// environment variables. Environment variables win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fruitsalade/docnav/internal/profile"
	"github.com/fruitsalade/docnav/internal/provider/local"
	"github.com/fruitsalade/docnav/internal/provider/s3"
	"github.com/fruitsalade/docnav/internal/provider/sqlstore"
	"github.com/fruitsalade/docnav/internal/sorting"
	"github.com/fruitsalade/docnav/internal/state"
	"github.com/fruitsalade/docnav/pkg/models"
)

// EnvConfigPath names the YAML file to load when no path is given.
const EnvConfigPath = "DOCNAV_CONFIG"

// Provider types.
const (
	ProviderMemory = "memory"
	ProviderLocal  = "local"
	ProviderS3     = "s3"
	ProviderSQL    = "sql"
)

// Config holds all session configuration.
type Config struct {
	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogOutput string `yaml:"log_output"`

	// Metrics; empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// Session
	Profile        string        `yaml:"profile"`
	Action         string        `yaml:"action"`
	Sort           string        `yaml:"sort"`
	LoadTimeout    time.Duration `yaml:"load_timeout"`
	Retries        int           `yaml:"retries"`
	RecentsLimit   int           `yaml:"recents_limit"`
	RecentsDefault bool          `yaml:"recents_default"`

	Features Features `yaml:"features"`

	// Consent
	ShareAcrossProfiles bool            `yaml:"share_across_profiles"`
	ProfileConsent      map[string]bool `yaml:"profile_consent"`

	// Archive cache
	CacheDir      string `yaml:"cache_dir"`
	CacheMaxBytes int64  `yaml:"cache_max_bytes"`

	Profiles []ProfileConfig `yaml:"profiles"`
}

// Features are session feature switches.
type Features struct {
	LaunchToDocument  bool `yaml:"launch_to_document"`
	PerProfileConsent bool `yaml:"per_profile_consent"`
}

// ProfileConfig describes one profile and the providers it owns.
type ProfileConfig struct {
	ID        string           `yaml:"id"`
	Kind      string           `yaml:"kind"`
	Label     string           `yaml:"label"`
	Quiet     bool             `yaml:"quiet"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig selects a provider type and carries its settings. Only the
// block matching Type is read.
type ProviderConfig struct {
	Type   string           `yaml:"type"`
	Memory *MemoryConfig    `yaml:"memory,omitempty"`
	Local  *local.Config    `yaml:"local,omitempty"`
	S3     *s3.Config       `yaml:"s3,omitempty"`
	SQL    *sqlstore.Config `yaml:"sql,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "console",
		LogOutput:     "stderr",
		Profile:       "personal",
		Action:        state.ActionBrowse.String(),
		Sort:          "title:asc",
		LoadTimeout:   30 * time.Second,
		Retries:       1,
		RecentsLimit:  64,
		Features:      Features{LaunchToDocument: true, PerProfileConsent: true},
		CacheDir:      filepath.Join(os.TempDir(), "docnav-cache"),
		CacheMaxBytes: 256 * 1024 * 1024,
	}
}

// Load reads the YAML file at path (or $DOCNAV_CONFIG when path is empty),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = envOr("DOCNAV_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("DOCNAV_LOG_FORMAT", c.LogFormat)
	c.LogOutput = envOr("DOCNAV_LOG_OUTPUT", c.LogOutput)
	c.MetricsAddr = envOr("DOCNAV_METRICS_ADDR", c.MetricsAddr)
	c.Profile = envOr("DOCNAV_PROFILE", c.Profile)
	c.Action = envOr("DOCNAV_ACTION", c.Action)
	c.Sort = envOr("DOCNAV_SORT", c.Sort)
	c.LoadTimeout = envDuration("DOCNAV_LOAD_TIMEOUT", c.LoadTimeout)
	c.Retries = envInt("DOCNAV_RETRIES", c.Retries)
	c.RecentsLimit = envInt("DOCNAV_RECENTS_LIMIT", c.RecentsLimit)
	c.RecentsDefault = envBool("DOCNAV_RECENTS_DEFAULT", c.RecentsDefault)
	c.Features.LaunchToDocument = envBool("DOCNAV_LAUNCH_TO_DOCUMENT", c.Features.LaunchToDocument)
	c.Features.PerProfileConsent = envBool("DOCNAV_PER_PROFILE_CONSENT", c.Features.PerProfileConsent)
	c.ShareAcrossProfiles = envBool("DOCNAV_SHARE_ACROSS_PROFILES", c.ShareAcrossProfiles)
	c.CacheDir = envOr("DOCNAV_CACHE_DIR", c.CacheDir)
	c.CacheMaxBytes = envInt64("DOCNAV_CACHE_MAX_BYTES", c.CacheMaxBytes)
}

// Validate checks the configuration for values the session cannot use.
func (c *Config) Validate() error {
	if c.Profile == "" {
		return errors.New("profile is required")
	}
	if _, err := state.ParseAction(c.Action); err != nil {
		return err
	}
	if _, err := sorting.Parse(c.Sort); err != nil {
		return err
	}
	if c.LoadTimeout < 0 {
		return fmt.Errorf("load_timeout must not be negative, got %s", c.LoadTimeout)
	}

	seen := make(map[string]bool)
	for i, p := range c.Profiles {
		if p.ID == "" {
			return fmt.Errorf("profiles[%d]: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("profiles[%d]: duplicate profile %q", i, p.ID)
		}
		seen[p.ID] = true
		switch profile.Kind(p.Kind) {
		case "", profile.KindPersonal, profile.KindWork, profile.KindPrivate:
		default:
			return fmt.Errorf("profile %s: unknown kind %q", p.ID, p.Kind)
		}
		for j, pc := range p.Providers {
			if err := pc.validate(); err != nil {
				return fmt.Errorf("profile %s: providers[%d]: %w", p.ID, j, err)
			}
		}
	}
	return nil
}

func (pc ProviderConfig) validate() error {
	switch pc.Type {
	case ProviderMemory:
		if pc.Memory == nil || pc.Memory.Authority == "" {
			return errors.New("memory provider needs an authority")
		}
	case ProviderLocal:
		if pc.Local == nil || pc.Local.RootPath == "" {
			return errors.New("local provider needs a root_path")
		}
	case ProviderS3:
		if pc.S3 == nil || pc.S3.Bucket == "" {
			return errors.New("s3 provider needs a bucket")
		}
	case ProviderSQL:
		if pc.SQL == nil || pc.SQL.DSN == "" {
			return errors.New("sql provider needs a dsn")
		}
	default:
		return fmt.Errorf("unknown provider type %q", pc.Type)
	}
	return nil
}

// SessionAction returns the parsed session action.
func (c *Config) SessionAction() state.Action {
	a, _ := state.ParseAction(c.Action)
	return a
}

// SortSpec returns the parsed sort.
func (c *Config) SortSpec() sorting.Spec {
	s, err := sorting.Parse(c.Sort)
	if err != nil {
		return sorting.Default()
	}
	return s
}

// Self returns the session's own profile id.
func (c *Config) Self() models.ProfileID {
	return models.ProfileID(c.Profile)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
