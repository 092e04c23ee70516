// Package cli implements the docnav command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fruitsalade/docnav/internal/config"
	"github.com/fruitsalade/docnav/internal/logging"
	"github.com/fruitsalade/docnav/internal/metrics"
	"github.com/fruitsalade/docnav/internal/model"
	"github.com/fruitsalade/docnav/pkg/models"
	"github.com/fruitsalade/docnav/pkg/retry"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath    string
	Format        string
	Verbose       bool
	Profile       string
	Timeout       time.Duration
	Retries       int
	MetricsAddr   string
	AllowProfiles []string
	DenyProfiles  []string

	cfg           *config.Config
	metricsServer *http.Server
}

// NewRootCommand creates the root command for the docnav CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "docnav",
		Short: "Browse documents across profiles and storage providers",
		Long: `docnav navigates document trees served by local, S3, SQL and in-memory
providers, including the contents of zip archives, with per-profile access
checks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			opts.teardown()
			return nil
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.ConfigPath, "config", "", "path to YAML config (default $"+config.EnvConfigPath+")")
	f.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	f.StringVar(&opts.Profile, "profile", "", "profile the session runs as")
	f.DurationVar(&opts.Timeout, "timeout", 0, "load timeout (default from config)")
	f.IntVar(&opts.Retries, "retries", -1, "attempts for failed loads (default from config)")
	f.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.StringSliceVar(&opts.AllowProfiles, "allow-profile", nil, "grant access to another profile's documents")
	f.StringSliceVar(&opts.DenyProfiles, "deny-profile", nil, "deny access to another profile's documents")

	cmd.AddCommand(NewRootsCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewOpenCommand(opts))
	cmd.AddCommand(NewPreviewCommand(opts))
	cmd.AddCommand(NewPathCommand(opts))
	cmd.AddCommand(NewBrowseCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return WrapExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats), nil)
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Profile != "" {
		cfg.Profile = o.Profile
	}
	if o.Timeout > 0 {
		cfg.LoadTimeout = o.Timeout
	}
	if o.Retries >= 0 {
		cfg.Retries = o.Retries
	}
	if o.MetricsAddr != "" {
		cfg.MetricsAddr = o.MetricsAddr
	}
	if cfg.ProfileConsent == nil {
		cfg.ProfileConsent = make(map[string]bool)
	}
	for _, p := range o.AllowProfiles {
		cfg.ProfileConsent[p] = true
	}
	for _, p := range o.DenyProfiles {
		cfg.ProfileConsent[p] = false
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	o.cfg = cfg

	if err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		OutputPath: cfg.LogOutput,
	}); err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize logging", err)
	}

	if cfg.MetricsAddr != "" {
		o.metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := o.metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
	}
	return nil
}

func (o *RootOptions) teardown() {
	if o.metricsServer != nil {
		o.metricsServer.Close()
	}
	_ = logging.Sync()
}

// session builds a session writing to the command's output.
func (o *RootOptions) session(cmd *cobra.Command) (*Session, *Formatter, error) {
	out := &Formatter{Format: o.Format, Writer: cmd.OutOrStdout()}
	s, err := NewSession(cmd.Context(), o.cfg, out)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to start session", err)
	}
	return s, out, nil
}

// loadContext bounds one user-level operation by the load timeout.
func (o *RootOptions) loadContext(parent context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.LoadTimeout > 0 {
		return context.WithTimeout(parent, o.cfg.LoadTimeout)
	}
	return context.WithCancel(parent)
}

// await waits for the current load. Failed loads that are neither access
// problems nor timeouts are reloaded up to the configured attempts.
func (o *RootOptions) await(ctx context.Context, s *Session) model.Outcome {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = o.cfg.Retries
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}

	var out model.Outcome
	_ = retry.Do(ctx, rc, func(attempt int) error {
		if attempt > 1 {
			logging.WithContext(ctx).Info("reloading", zap.Int("attempt", attempt))
			s.Handler.LoadDocumentsForCurrentStack(ctx)
		}
		out = s.Await()
		if out.Err != nil && ErrorCode(out.Err) == CodeLoadFailed && ctx.Err() == nil {
			return retry.Retryable(out.Err)
		}
		return nil
	})
	return out
}

// Listing is the result of loading a location.
type Listing struct {
	Root      *models.Root      `json:"root,omitempty"`
	Stack     []models.Document `json:"stack"`
	Documents []models.Document `json:"documents"`
}

// report prints the current location and its outcome.
func report(out *Formatter, s *Session, o model.Outcome) error {
	if o.Err != nil {
		code := ErrorCode(o.Err)
		if err := out.Failure(code, o.Err.Error()); err != nil {
			return err
		}
		return &ExitError{Code: ExitFailure, Err: o.Err, Reported: true}
	}

	l := Listing{Stack: s.State.Stack.Documents(), Documents: o.Documents}
	if root, ok := s.State.Stack.Root(); ok {
		l.Root = &root
	}
	if l.Documents == nil {
		l.Documents = []models.Document{}
	}
	return out.Success(l, func(w io.Writer) {
		fmt.Fprintf(w, "%s\n", s.State.Stack)
		writeDocuments(w, o.Documents)
	})
}
