package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fruitsalade/docnav/internal/model"
	"github.com/fruitsalade/docnav/pkg/models"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the location loaded with an error
	ExitCommandError = 2 // bad arguments, configuration or references
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error
	// Reported is set when the failure was already written to the output.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// IsReported reports whether err was already written to the output.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// GetExitCode extracts the exit code from an error.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope of every command.
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed load or command.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes reported for load outcomes.
const (
	CodeInvalidState = "invalid_state"
	CodeQuietMode    = "quiet_mode"
	CodeNoPermission = "no_permission"
	CodeLoadFailed   = "load_failed"
)

// ErrorCode names a load outcome error.
func ErrorCode(err error) string {
	var quiet *model.CrossProfileQuietModeError
	var denied *model.CrossProfileNoPermissionError
	switch {
	case errors.Is(err, model.ErrInvalidState):
		return CodeInvalidState
	case errors.As(err, &quiet):
		return CodeQuietMode
	case errors.As(err, &denied):
		return CodeNoPermission
	default:
		return CodeLoadFailed
	}
}

// Formatter writes command results as text or JSON.
type Formatter struct {
	Format string
	Writer io.Writer
}

// JSON reports whether output is JSON.
func (f *Formatter) JSON() bool { return f.Format == "json" }

// Success writes a successful result. Text output uses text.
func (f *Formatter) Success(data interface{}, text func(w io.Writer)) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Failure writes an error result.
func (f *Formatter) Failure(code, message string) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &ErrorBody{Code: code, Message: message},
		})
	}
	_, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return err
}

// writeDocuments prints documents as a table.
func writeDocuments(w io.Writer, docs []models.Document) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, d := range docs {
		kind := "file"
		switch {
		case d.IsDirectory():
			kind = "dir"
		case d.IsArchive():
			kind = "archive"
		}
		modified := "-"
		if !d.ModTime.IsZero() {
			modified = d.ModTime.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", kind, d.DisplayName, d.Size, modified, d.DocumentID)
	}
	tw.Flush()
}
