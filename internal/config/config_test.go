package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/docnav/internal/sorting"
	"github.com/fruitsalade/docnav/internal/state"
	"github.com/fruitsalade/docnav/pkg/models"
)

const sampleYAML = `
log_level: debug
profile: personal
sort: modified:desc
load_timeout: 5s
features:
  launch_to_document: false
  per_profile_consent: true
profile_consent:
  work: true
profiles:
  - id: personal
    providers:
      - type: memory
        memory:
          authority: home
          root_id: home-root
          title: Home
          tree:
            id: f0
            name: Home
            children:
              - id: f1
                name: Folder 1
                children:
                  - {id: a, name: notes.txt, content: hello}
              - {id: empty, name: Empty, dir: true}
      - type: local
        local:
          root_path: /srv/docs
  - id: work
    kind: work
    quiet: true
    providers:
      - type: sql
        sql:
          driver: sqlite
          dsn: ":memory:"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docnav.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, models.ProfileID("personal"), cfg.Self())
	assert.Equal(t, state.ActionBrowse, cfg.SessionAction())
	assert.Equal(t, sorting.Default(), cfg.SortSpec())
	assert.Equal(t, 30*time.Second, cfg.LoadTimeout)
	assert.True(t, cfg.Features.LaunchToDocument)
	assert.True(t, cfg.Features.PerProfileConsent)
	assert.Empty(t, cfg.Profiles)
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.LoadTimeout)
	assert.Equal(t, sorting.Spec{Dimension: sorting.ByModified, Direction: sorting.Descending}, cfg.SortSpec())
	assert.False(t, cfg.Features.LaunchToDocument)
	assert.Equal(t, map[string]bool{"work": true}, cfg.ProfileConsent)

	require.Len(t, cfg.Profiles, 2)
	assert.Len(t, cfg.Profiles[0].Providers, 2)
	assert.Equal(t, "/srv/docs", cfg.Profiles[0].Providers[1].Local.RootPath)
	assert.True(t, cfg.Profiles[1].Quiet)
	assert.Equal(t, "sqlite", cfg.Profiles[1].Providers[0].SQL.Driver)
}

func TestLoadFromEnvPath(t *testing.T) {
	t.Setenv(EnvConfigPath, writeConfig(t, sampleYAML))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Len(t, cfg.Profiles, 2)
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("DOCNAV_LOG_LEVEL", "warn")
	t.Setenv("DOCNAV_LOAD_TIMEOUT", "250ms")
	t.Setenv("DOCNAV_LAUNCH_TO_DOCUMENT", "true")
	t.Setenv("DOCNAV_RETRIES", "4")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.LoadTimeout)
	assert.True(t, cfg.Features.LaunchToDocument)
	assert.Equal(t, 4, cfg.Retries)
	assert.Equal(t, "modified:desc", cfg.Sort)
}

func TestEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DOCNAV_LOAD_TIMEOUT", "soon")
	t.Setenv("DOCNAV_RETRIES", "many")
	t.Setenv("DOCNAV_RECENTS_DEFAULT", "maybe")

	cfg, err := Load(writeConfig(t, "profile: personal\n"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.LoadTimeout)
	assert.Equal(t, 1, cfg.Retries)
	assert.False(t, cfg.RecentsDefault)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "profle: typo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty profile", func(c *Config) { c.Profile = "" }, "profile is required"},
		{"bad action", func(c *Config) { c.Action = "fly" }, "unknown action"},
		{"bad sort", func(c *Config) { c.Sort = "color" }, ""},
		{"negative timeout", func(c *Config) { c.LoadTimeout = -time.Second }, "load_timeout"},
		{"profile without id", func(c *Config) { c.Profiles = []ProfileConfig{{}} }, "id is required"},
		{"duplicate profile", func(c *Config) {
			c.Profiles = []ProfileConfig{{ID: "a"}, {ID: "a"}}
		}, "duplicate profile"},
		{"unknown kind", func(c *Config) { c.Profiles = []ProfileConfig{{ID: "a", Kind: "guest"}} }, "unknown kind"},
		{"unknown provider", func(c *Config) {
			c.Profiles = []ProfileConfig{{ID: "a", Providers: []ProviderConfig{{Type: "ftp"}}}}
		}, "unknown provider type"},
		{"local without root", func(c *Config) {
			c.Profiles = []ProfileConfig{{ID: "a", Providers: []ProviderConfig{{Type: ProviderLocal}}}}
		}, "root_path"},
		{"s3 without bucket", func(c *Config) {
			c.Profiles = []ProfileConfig{{ID: "a", Providers: []ProviderConfig{{Type: ProviderS3}}}}
		}, "bucket"},
		{"sql without dsn", func(c *Config) {
			c.Profiles = []ProfileConfig{{ID: "a", Providers: []ProviderConfig{{Type: ProviderSQL}}}}
		}, "dsn"},
		{"memory without authority", func(c *Config) {
			c.Profiles = []ProfileConfig{{ID: "a", Providers: []ProviderConfig{{Type: ProviderMemory, Memory: &MemoryConfig{}}}}}
		}, "authority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestMemoryTree(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	mc := cfg.Profiles[0].Providers[0].Memory
	require.NotNil(t, mc)

	p := mc.Provider(cfg.Self())
	ctx := context.Background()

	roots, err := p.Roots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "home-root", roots[0].RootID)
	assert.Equal(t, "Home", roots[0].Title)
	assert.True(t, roots[0].SupportsFindPath())

	children, err := p.ListChildren(ctx, "f0")
	require.NoError(t, err)
	require.Len(t, children, 2)

	empty, err := p.Document(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, empty.IsDirectory())

	notes, err := p.Document(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", notes.MimeType)
	assert.Equal(t, int64(5), notes.Size)
}

func TestMemoryFindPathOff(t *testing.T) {
	off := false
	mc := MemoryConfig{Authority: "m", FindPath: &off, Tree: NodeConfig{ID: "r", Name: "R", Dir: true}}
	roots, err := mc.Provider("personal").Roots(context.Background())
	require.NoError(t, err)
	assert.False(t, roots[0].SupportsFindPath())
}
