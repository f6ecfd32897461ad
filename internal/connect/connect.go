// Package connect holds the database connection form logic: field
// validation before any network call, and mapping of connection failures to
// user-facing guidance.
package connect

import (
	"errors"
	"fmt"

	"github.com/querygenie/querygenie/internal/api"
)

// FieldError is a validation failure on a single form field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the form before submission. Validation failures never
// reach the server.
func Validate(cfg api.ConnectionConfig) []FieldError {
	var errs []FieldError
	if cfg.Host == "" {
		errs = append(errs, FieldError{Field: "host", Message: "host is required"})
	}
	if cfg.User == "" {
		errs = append(errs, FieldError{Field: "user", Message: "username is required"})
	}
	if cfg.Database == "" {
		errs = append(errs, FieldError{Field: "database", Message: "database name is required"})
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, FieldError{Field: "port", Message: "port must be between 1 and 65535"})
	}
	return errs
}

// Severity grades how a connection failure should be presented.
type Severity int

const (
	// SeverityInfo marks benign conditions: the server answered, the target
	// just is not there (yet).
	SeverityInfo Severity = iota
	// SeverityError marks hard failures that need user action.
	SeverityError
)

// Advice is the user-facing presentation of a connection failure.
type Advice struct {
	Severity   Severity
	Icon       string
	Title      string
	Message    string
	Suggestion string
}

// Error codes the server reports in its structured connect errors.
const (
	CodeDatabaseNotFound   = "DATABASE_NOT_FOUND"
	CodeHostNotFound       = "HOST_NOT_FOUND"
	CodeAuthFailed         = "AUTH_FAILED"
	CodeConnectionRefused  = "CONNECTION_REFUSED"
	CodeTimeout            = "TIMEOUT"
	CodeNetworkUnreachable = "NETWORK_UNREACHABLE"
)

// Classify maps a connect failure to display guidance. Transport-level
// failures (the API server itself is unreachable) get a locally synthesized
// advice distinct from anything the server sent.
func Classify(err error) Advice {
	if err == nil {
		return Advice{}
	}

	if api.IsUnreachable(err) {
		return Advice{
			Severity:   SeverityError,
			Icon:       "⚠",
			Title:      "Server Unreachable",
			Message:    "Could not reach the Query Genie server.",
			Suggestion: "Check that the backend is running and the server URL is correct.",
		}
	}

	if se, ok := serverError(err); ok {
		adv, known := adviceForCode(se.Code)
		if !known {
			adv = Advice{Severity: SeverityError, Icon: "✗", Title: "Connection Failed"}
		}
		if se.Message != "" {
			adv.Message = se.Message
		}
		if se.Suggestion != "" {
			adv.Suggestion = se.Suggestion
		}
		return adv
	}

	// Unstructured server error: wrap into a generic message.
	return Advice{
		Severity:   SeverityError,
		Icon:       "✗",
		Title:      "Connection Failed",
		Message:    err.Error(),
		Suggestion: "Verify the connection details and try again.",
	}
}

func adviceForCode(code string) (Advice, bool) {
	switch code {
	case CodeDatabaseNotFound:
		return Advice{
			Severity:   SeverityInfo,
			Icon:       "ℹ",
			Title:      "Database Not Found",
			Suggestion: "Check the database name, or create the database first.",
		}, true
	case CodeHostNotFound:
		return Advice{
			Severity:   SeverityInfo,
			Icon:       "ℹ",
			Title:      "Host Not Found",
			Suggestion: "Check the hostname for typos.",
		}, true
	case CodeAuthFailed:
		return Advice{
			Severity:   SeverityError,
			Icon:       "✗",
			Title:      "Authentication Failed",
			Suggestion: "Check the username and password.",
		}, true
	case CodeConnectionRefused:
		return Advice{
			Severity:   SeverityError,
			Icon:       "✗",
			Title:      "Connection Refused",
			Suggestion: "Is the database server running on that host and port?",
		}, true
	case CodeTimeout:
		return Advice{
			Severity:   SeverityError,
			Icon:       "✗",
			Title:      "Connection Timed Out",
			Suggestion: "The database host did not answer in time. Check firewalls and network access.",
		}, true
	case CodeNetworkUnreachable:
		return Advice{
			Severity:   SeverityError,
			Icon:       "✗",
			Title:      "Network Unreachable",
			Suggestion: "Check your network connection.",
		}, true
	}
	return Advice{}, false
}

func serverError(err error) (*api.ServerError, bool) {
	var se *api.ServerError
	ok := errors.As(err, &se)
	return se, ok
}
