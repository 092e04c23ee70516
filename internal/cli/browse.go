package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fruitsalade/docnav/internal/events"
	"github.com/fruitsalade/docnav/internal/handler"
	"github.com/fruitsalade/docnav/internal/logging"
	"github.com/fruitsalade/docnav/pkg/models"
)

const browseHelp = `commands:
  ls                 reload the current folder
  cd <name>|..       enter a folder or archive, or go up
  open <name>        open a file
  preview <name>     show a document's details
  search [query]     search the current root; no query ends the search
  roots              list roots
  root <n>           open root number n
  recents            open recent documents
  window             request the current location in a new window
  quit`

// NewBrowseCommand creates the interactive browse command.
func NewBrowseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "browse [document-uri]",
		Short: "Navigate interactively, reading commands from stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, out, err := rootOpts.session(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			b := &browser{opts: rootOpts, s: s, out: out}
			req := handler.LaunchRequest{}
			if len(args) == 1 {
				req.URI = args[0]
			}
			if err := b.step(cmd.Context(), func(ctx context.Context) error {
				return s.Handler.InitLocation(ctx, req)
			}); err != nil {
				return WrapExitError(ExitCommandError, "failed to open location", err)
			}
			return b.run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

type browser struct {
	opts  *RootOptions
	s     *Session
	out   *Formatter
	roots []models.Root
}

func (b *browser) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(b.out.Writer, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		if name == "quit" || name == "exit" {
			return nil
		}
		if err := b.exec(ctx, name, arg); err != nil {
			fmt.Fprintf(b.out.Writer, "error: %v\n", err)
		}
	}
}

func (b *browser) exec(ctx context.Context, name, arg string) error {
	h := b.s.Handler
	switch name {
	case "help":
		fmt.Fprintln(b.out.Writer, browseHelp)
		return nil
	case "ls":
		return b.step(ctx, func(ctx context.Context) error {
			h.LoadDocumentsForCurrentStack(ctx)
			return nil
		})
	case "cd":
		if arg == ".." {
			b.s.Search.Clear()
			return b.step(ctx, func(ctx context.Context) error {
				if b.s.State.Stack.Size() > 1 {
					if _, err := b.s.State.Stack.Pop(); err != nil {
						return err
					}
				}
				h.LoadDocumentsForCurrentStack(ctx)
				return nil
			})
		}
		doc, err := b.find(arg)
		if err != nil {
			return err
		}
		if !doc.IsContainer() {
			return fmt.Errorf("%s is not a folder", doc.DisplayName)
		}
		return b.step(ctx, func(ctx context.Context) error {
			_, err := h.OpenItem(ctx, doc)
			return err
		})
	case "open":
		doc, err := b.find(arg)
		if err != nil {
			return err
		}
		if doc.IsContainer() {
			return b.exec(ctx, "cd", arg)
		}
		_, err = h.OpenItem(ctx, doc)
		fmt.Fprintln(b.out.Writer)
		return err
	case "preview":
		doc, err := b.find(arg)
		if err != nil {
			return err
		}
		return h.PreviewItem(ctx, doc)
	case "search":
		b.s.Search.Set(arg)
		return b.step(ctx, func(ctx context.Context) error {
			h.LoadDocumentsForCurrentStack(ctx)
			return nil
		})
	case "roots":
		b.roots = b.s.Registry.Roots(ctx, b.s.State.Self)
		for i, r := range b.roots {
			fmt.Fprintf(b.out.Writer, "%d  %s\n", i+1, r)
		}
		return nil
	case "root":
		if b.roots == nil {
			b.roots = b.s.Registry.Roots(ctx, b.s.State.Self)
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(b.roots) {
			return fmt.Errorf("no root %q", arg)
		}
		root := b.roots[n-1]
		b.s.Search.Clear()
		return b.step(ctx, func(ctx context.Context) error {
			return h.OpenRoot(ctx, root)
		})
	case "recents":
		b.s.Search.Clear()
		return b.step(ctx, func(ctx context.Context) error {
			return h.OpenRoot(ctx, models.RecentsRoot(b.s.State.Self))
		})
	case "window":
		e := h.OpenInNewWindow(b.s.State.Stack)
		data, err := events.MarshalEvent(e)
		if err != nil {
			return err
		}
		fmt.Fprintln(b.out.Writer, string(data))
		return nil
	default:
		return fmt.Errorf("unknown command %q (try help)", name)
	}
}

// step runs a navigation action, waits for the load it started and prints
// the result.
func (b *browser) step(parent context.Context, action func(ctx context.Context) error) error {
	ctx, cancel := b.opts.loadContext(parent)
	defer cancel()
	if err := action(ctx); err != nil {
		return err
	}
	err := report(b.out, b.s, b.opts.await(ctx, b.s))
	if IsReported(err) {
		logging.WithContext(logging.WithSession(ctx, b.s.Handler.SessionID())).Debug("load failed", zap.Error(err))
		return nil
	}
	return err
}

// find looks a document up by name in the current listing.
func (b *browser) find(name string) (models.Document, error) {
	if name == "" {
		return models.Document{}, fmt.Errorf("missing name")
	}
	outcome := b.s.Model.Outcome()
	for _, d := range outcome.Documents {
		if d.DisplayName == name {
			return d, nil
		}
	}
	for _, d := range outcome.Documents {
		if strings.EqualFold(d.DisplayName, name) {
			return d, nil
		}
	}
	return models.Document{}, fmt.Errorf("no document named %q here", name)
}
