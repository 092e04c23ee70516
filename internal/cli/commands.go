package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/docnav/internal/docs"
	"github.com/fruitsalade/docnav/internal/events"
	"github.com/fruitsalade/docnav/internal/handler"
	"github.com/fruitsalade/docnav/pkg/models"
)

// RootInfo describes one root of the roots listing.
type RootInfo struct {
	models.Root
	ProfileLabel string `json:"profile_label"`
	Quiet        bool   `json:"quiet"`
	Accessible   bool   `json:"accessible"`
}

// NewRootsCommand creates the roots command.
func NewRootsCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "roots",
		Short: "List the roots the session can open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, out, err := rootOpts.session(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			profiles := []models.ProfileID{s.State.Self}
			if all {
				profiles = s.Registry.Profiles()
			}

			var infos []RootInfo
			for _, p := range profiles {
				info, _ := s.Profiles.Get(p)
				for _, r := range s.Registry.Roots(cmd.Context(), p) {
					infos = append(infos, RootInfo{
						Root:         r,
						ProfileLabel: info.Label,
						Quiet:        s.Profiles.IsQuietMode(p),
						Accessible:   s.State.CanAccessProfile(p),
					})
				}
			}
			return out.Success(infos, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, r := range infos {
					status := ""
					switch {
					case !r.Accessible:
						status = "no access"
					case r.Quiet:
						status = "quiet"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s:%s\t%s\n", r.Profile, r.Title, r.Authority, r.RootID, status)
				}
				tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include roots of every profile")
	return cmd
}

// NewListCommand creates the ls command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		query   string
		recents bool
		target  string
	)
	cmd := &cobra.Command{
		Use:   "ls [document-uri]",
		Short: "List a folder",
		Long: `List the folder a document reference points to, or the default location.

Examples:
  docnav ls
  docnav ls content://home/document/f2
  docnav ls --recents
  docnav ls --search report
  docnav ls --target work --allow-profile work`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, out, err := rootOpts.session(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := rootOpts.loadContext(cmd.Context())
			defer cancel()

			switch {
			case recents:
				err = s.Handler.OpenRoot(ctx, models.RecentsRoot(s.State.Self))
			case target != "" && models.ProfileID(target) != s.State.Self:
				roots := s.Registry.Roots(ctx, models.ProfileID(target))
				if len(roots) == 0 {
					return WrapExitError(ExitCommandError, fmt.Sprintf("profile %s has no roots", target), nil)
				}
				err = s.Handler.OpenRoot(ctx, roots[0])
			default:
				req := handler.LaunchRequest{}
				if len(args) == 1 {
					req.URI = args[0]
				}
				err = s.Handler.InitLocation(ctx, req)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open location", err)
			}

			if query != "" {
				s.Search.Set(query)
				s.Handler.LoadDocumentsForCurrentStack(ctx)
			}
			return report(out, s, rootOpts.await(ctx, s))
		},
	}
	cmd.Flags().StringVar(&query, "search", "", "search the root instead of listing the folder")
	cmd.Flags().BoolVar(&recents, "recents", false, "list recent documents")
	cmd.Flags().StringVar(&target, "target", "", "list the first root of another profile")
	return cmd
}

// NewOpenCommand creates the open command.
func NewOpenCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <document-uri>",
		Short: "Write a document's content to stdout, or list it if it is a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, out, err := rootOpts.session(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := rootOpts.loadContext(cmd.Context())
			defer cancel()

			doc, err := s.Resolver.GetDocument(ctx, args[0], s.State.Self)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to resolve document", err)
			}
			if !doc.IsContainer() {
				if _, err := s.Handler.OpenItem(ctx, doc); err != nil {
					return WrapExitError(ExitFailure, "failed to open document", err)
				}
				return nil
			}

			if s.Resolver.IsArchiveURI(args[0]) {
				return WrapExitError(ExitCommandError, "cannot open a folder inside an archive", docs.ErrArchiveReference)
			}
			if !s.Config.Features.LaunchToDocument {
				return WrapExitError(ExitCommandError, "opening folders by reference is disabled", nil)
			}
			if err := s.Handler.InitLocation(ctx, handler.LaunchRequest{URI: args[0]}); err != nil {
				return WrapExitError(ExitCommandError, "failed to open location", err)
			}
			return report(out, s, rootOpts.await(ctx, s))
		},
	}
	return cmd
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <document-uri>",
		Short: "Show a document's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := rootOpts.session(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := rootOpts.loadContext(cmd.Context())
			defer cancel()

			doc, err := s.Resolver.GetDocument(ctx, args[0], s.State.Self)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to resolve document", err)
			}
			if err := s.Handler.PreviewItem(ctx, doc); err != nil {
				return WrapExitError(ExitFailure, "failed to preview document", err)
			}
			return nil
		},
	}
}

// NewPathCommand creates the path command.
func NewPathCommand(rootOpts *RootOptions) *cobra.Command {
	var newWindow bool
	cmd := &cobra.Command{
		Use:   "path <document-uri>",
		Short: "Resolve a document reference to its root and ancestors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, out, err := rootOpts.session(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := rootOpts.loadContext(cmd.Context())
			defer cancel()

			st, err := s.Resolver.LoadStack(ctx, args[0], s.State.Self)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to resolve path", err)
			}

			if newWindow {
				e := s.Handler.OpenInNewWindow(st)
				data, err := events.MarshalEvent(e)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out.Writer, string(data))
				return err
			}
			return out.Success(st, func(w io.Writer) {
				fmt.Fprintln(w, st)
			})
		},
	}
	cmd.Flags().BoolVar(&newWindow, "new-window", false, "emit an open-window request for the path")
	return cmd
}
