package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// IdentityProviderError enhances identity provider failures with a category and
// a suggestion the user can act on.
func IdentityProviderError(operation string, err error) error {
	if err == nil {
		return nil
	}
	// Already categorized errors and cancellation pass through untouched
	var ae *AuthError
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	category, suggestion := classifyProviderError(err)
	return &AuthError{
		Category:   category,
		Message:    fmt.Sprintf("identity provider error during %s", operation),
		Suggestion: suggestion,
		Err:        err,
	}
}

// classifyProviderError maps well-known identity provider responses to a
// category and suggestion
func classifyProviderError(err error) (Category, string) {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "AADSTS70008"), strings.Contains(errStr, "AADSTS700082"):
		return CategoryTokenExpired, "The refresh token has expired. Run 'tokenbroker connect' to sign in again"
	case strings.Contains(errStr, "invalid_grant"):
		return CategoryAuthentication, "The stored grant was rejected. Run 'tokenbroker connect' to sign in again"
	case strings.Contains(errStr, "AADSTS50076"), strings.Contains(errStr, "AADSTS50079"):
		return CategoryAuthentication, "Multi-factor authentication is required. Use --device-code or the interactive browser flow"
	case strings.Contains(errStr, "AADSTS50126"):
		return CategoryAuthentication, "Invalid username or password"
	case strings.Contains(errStr, "AADSTS90002"):
		return CategoryConfiguration, "The tenant was not found. Check the --tenant value"
	case strings.Contains(errStr, "AADSTS700016"):
		return CategoryConfiguration, "The application id is not registered in this tenant. Check the environment application id"
	case strings.Contains(errStr, "authorization_pending"), strings.Contains(errStr, "expired_token"):
		return CategoryTokenExpired, "The device code expired before sign-in completed. Try again"
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") {
		return CategoryNetwork, "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return CategoryNetwork, "Unable to connect. Check your network and environment configuration"
	}

	return CategoryAuthentication, ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(strings.ToLower(errStr), pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	// Already a user-friendly error
	if _, ok := err.(UserError); ok {
		return err
	}
	if _, ok := err.(ConfigError); ok {
		return err
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return err
	}

	// Simplify common technical errors
	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "json:") {
		return ConfigError{
			Message:    "Invalid JSON format",
			Suggestion: "The token cache may be corrupt. Run 'tokenbroker cache clear'",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	// Return original error if we can't simplify it
	return err
}
