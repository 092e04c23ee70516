package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fruitsalade/docnav/internal/model"
	"github.com/fruitsalade/docnav/internal/provider"
	"github.com/fruitsalade/docnav/internal/state"
	"github.com/fruitsalade/docnav/pkg/models"
)

// viewer streams file contents and prints document details.
type viewer struct {
	registry *provider.Registry
	state    *state.State
	out      io.Writer
	format   string
}

func (v *viewer) checkAccess(doc models.Document) error {
	if !v.state.CanAccessProfile(doc.Profile) {
		return &model.CrossProfileNoPermissionError{Profile: doc.Profile}
	}
	return nil
}

// View copies the document's content to the output.
func (v *viewer) View(ctx context.Context, doc models.Document) error {
	if err := v.checkAccess(doc); err != nil {
		return err
	}
	rc, _, err := v.registry.Open(ctx, doc.Profile, doc.Authority, doc.DocumentID)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(v.out, rc)
	return err
}

// Details prints the document's metadata.
func (v *viewer) Details(_ context.Context, doc models.Document) error {
	if err := v.checkAccess(doc); err != nil {
		return err
	}
	f := &Formatter{Format: v.format, Writer: v.out}
	return f.Success(doc, func(w io.Writer) {
		fmt.Fprintf(w, "Name:      %s\n", doc.DisplayName)
		fmt.Fprintf(w, "Type:      %s\n", doc.MimeType)
		fmt.Fprintf(w, "Size:      %d\n", doc.Size)
		if !doc.ModTime.IsZero() {
			fmt.Fprintf(w, "Modified:  %s\n", doc.ModTime.Format(time.RFC3339))
		}
		fmt.Fprintf(w, "Profile:   %s\n", doc.Profile)
		fmt.Fprintf(w, "Authority: %s\n", doc.Authority)
		fmt.Fprintf(w, "ID:        %s\n", doc.DocumentID)
	})
}
