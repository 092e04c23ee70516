package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fruitsalade/docnav/internal/config"
	"github.com/fruitsalade/docnav/internal/docs"
	"github.com/fruitsalade/docnav/internal/files"
	"github.com/fruitsalade/docnav/internal/handler"
	"github.com/fruitsalade/docnav/internal/logging"
	"github.com/fruitsalade/docnav/internal/model"
	"github.com/fruitsalade/docnav/internal/profile"
	"github.com/fruitsalade/docnav/internal/provider"
	"github.com/fruitsalade/docnav/internal/provider/archive"
	"github.com/fruitsalade/docnav/internal/provider/local"
	"github.com/fruitsalade/docnav/internal/provider/s3"
	"github.com/fruitsalade/docnav/internal/provider/sqlstore"
	"github.com/fruitsalade/docnav/internal/state"
	"github.com/fruitsalade/docnav/pkg/models"
)

// Session is one wired browsing session.
type Session struct {
	Config   *config.Config
	Registry *provider.Registry
	Profiles *profile.Manager
	State    *state.State
	Model    *model.Model
	Resolver *docs.Resolver
	Handler  *handler.Handler
	Surface  *files.Surface
	Search   *handler.Search
}

// NewSession builds providers, profiles and the navigation stack from cfg.
// Opened files and previews are written through out.
func NewSession(ctx context.Context, cfg *config.Config, out *Formatter) (*Session, error) {
	self := cfg.Self()
	registry := provider.NewRegistry()
	profiles := profile.NewManager(self)

	inventory := cfg.Profiles
	if len(inventory) == 0 {
		inventory = []config.ProfileConfig{{
			ID: string(self),
			Providers: []config.ProviderConfig{{
				Type:  config.ProviderLocal,
				Local: &local.Config{RootPath: ".", Title: "Working directory"},
			}},
		}}
	}

	for _, pc := range inventory {
		id := models.ProfileID(pc.ID)
		kind := profile.Kind(pc.Kind)
		if kind == "" {
			kind = profile.KindPersonal
		}
		label := pc.Label
		if label == "" {
			label = pc.ID
		}
		profiles.Add(profile.Profile{ID: id, Kind: kind, Label: label, Quiet: pc.Quiet})

		for _, prc := range pc.Providers {
			p, err := buildProvider(ctx, id, prc)
			if err != nil {
				registry.Close()
				return nil, fmt.Errorf("profile %s: %w", id, err)
			}
			registry.Register(id, p)
		}

		cache, err := archive.NewCache(filepath.Join(cfg.CacheDir, pc.ID), cfg.CacheMaxBytes)
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("archive cache: %w", err)
		}
		registry.Register(id, archive.New(id, registry, cache))
	}

	st := state.New(self)
	st.Action = cfg.SessionAction()
	st.Sort = cfg.SortSpec()
	st.CanShareAcrossProfile = cfg.ShareAcrossProfiles
	st.PerProfileConsent = cfg.Features.PerProfileConsent
	for p, allowed := range cfg.ProfileConsent {
		st.SetProfileConsent(models.ProfileID(p), allowed)
	}

	m := model.New(registry, profiles, model.WithRecentsLimit(cfg.RecentsLimit))
	resolver := docs.NewResolver(registry)
	search := &handler.Search{}
	h := handler.New(st, resolver, m,
		handler.WithHost(&host{}),
		handler.WithSearch(search),
		handler.WithFeatures(handler.Features{LaunchToDocument: cfg.Features.LaunchToDocument}),
	)
	surface := files.New(h, registry, resolver,
		files.WithViewer(&viewer{registry: registry, state: st, out: out.Writer, format: out.Format}),
		files.WithRecentsDefault(cfg.RecentsDefault),
	)

	logging.WithContext(logging.WithSession(ctx, h.SessionID())).Debug("session ready",
		zap.String("profile", string(self)),
		zap.Int("profiles", len(inventory)))

	return &Session{
		Config:   cfg,
		Registry: registry,
		Profiles: profiles,
		State:    st,
		Model:    m,
		Resolver: resolver,
		Handler:  h,
		Surface:  surface,
		Search:   search,
	}, nil
}

func buildProvider(ctx context.Context, id models.ProfileID, pc config.ProviderConfig) (provider.Provider, error) {
	switch pc.Type {
	case config.ProviderMemory:
		return pc.Memory.Provider(id), nil
	case config.ProviderLocal:
		c := *pc.Local
		c.Profile = id
		return local.New(c)
	case config.ProviderS3:
		c := *pc.S3
		c.Profile = id
		return s3.New(ctx, c)
	case config.ProviderSQL:
		c := *pc.SQL
		c.Profile = id
		return sqlstore.New(c)
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

// Close stops loading and releases provider resources.
func (s *Session) Close() error {
	s.Model.Close()
	return s.Registry.Close()
}

// Await waits for the loads started so far and returns the latest outcome.
func (s *Session) Await() model.Outcome {
	s.Model.Wait()
	return s.Model.Outcome()
}

type host struct{}

func (*host) RefreshCurrentRootAndDirectory() {}

func (*host) UpdateNavigator() {}

func (*host) NotifyDirectoryNavigated(doc models.Document) {
	logging.Debug("directory navigated", zap.String("document", doc.Key()))
}
