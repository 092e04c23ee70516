package model

import (
	"errors"
	"fmt"

	"github.com/fruitsalade/docnav/internal/metrics"
	"github.com/fruitsalade/docnav/internal/provider"
	"github.com/fruitsalade/docnav/pkg/models"
)

// ErrInvalidState is published when a load is requested for an empty stack
// whose root is not the recents root.
var ErrInvalidState = errors.New("no document to load: stack is empty")

// CrossProfileQuietModeError is published when the profile owning the
// location is locked.
type CrossProfileQuietModeError struct {
	Profile models.ProfileID
}

func (e *CrossProfileQuietModeError) Error() string {
	return fmt.Sprintf("profile %s is in quiet mode", e.Profile)
}

// CrossProfileNoPermissionError is published when the session may not load
// documents of another profile.
type CrossProfileNoPermissionError struct {
	Profile models.ProfileID
}

func (e *CrossProfileNoPermissionError) Error() string {
	return fmt.Sprintf("no permission to access profile %s", e.Profile)
}

// LoadFailedError wraps any other provider failure, including an external
// deadline expiring.
type LoadFailedError struct {
	Err error
}

func (e *LoadFailedError) Error() string {
	return "load failed: " + e.Err.Error()
}

func (e *LoadFailedError) Unwrap() error {
	return e.Err
}

// classify converts a provider failure into the error published in the outcome.
func classify(err error, target models.ProfileID) error {
	switch provider.KindOf(err) {
	case provider.KindQuietMode:
		return &CrossProfileQuietModeError{Profile: target}
	case provider.KindNoPermission:
		return &CrossProfileNoPermissionError{Profile: target}
	default:
		return &LoadFailedError{Err: err}
	}
}

// resultOf names an outcome for metrics.
func resultOf(o Outcome) string {
	var quiet *CrossProfileQuietModeError
	var denied *CrossProfileNoPermissionError
	switch {
	case o.Err == nil && len(o.Documents) == 0:
		return metrics.LoadEmpty
	case o.Err == nil:
		return metrics.LoadOK
	case errors.Is(o.Err, ErrInvalidState):
		return metrics.LoadInvalidState
	case errors.As(o.Err, &quiet):
		return metrics.LoadQuietMode
	case errors.As(o.Err, &denied):
		return metrics.LoadNoPermission
	default:
		return metrics.LoadFailed
	}
}
