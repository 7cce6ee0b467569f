package errors

import (
	"errors"
	"fmt"
)

// Category classifies broker failures.
type Category int

const (
	CategoryUnknown Category = iota
	// CategoryAuthentication covers resolver and strategy failures.
	CategoryAuthentication
	// CategoryNetwork covers port exhaustion and transport failures.
	CategoryNetwork
	// CategoryConfiguration covers missing or invalid providers and settings.
	CategoryConfiguration
	// CategoryTokenExpired covers expired tokens and grants.
	CategoryTokenExpired
)

func (c Category) String() string {
	switch c {
	case CategoryAuthentication:
		return "Authentication"
	case CategoryNetwork:
		return "Network"
	case CategoryConfiguration:
		return "Configuration"
	case CategoryTokenExpired:
		return "TokenExpired"
	default:
		return "Unknown"
	}
}

// AuthError is a categorized broker error.
type AuthError struct {
	Category   Category
	Message    string
	Suggestion string
	Err        error
}

func (e *AuthError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Suggestion != "" {
		msg += "\n  💡 Try: " + e.Suggestion
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func newAuthError(c Category, err error, format string, args ...interface{}) *AuthError {
	return &AuthError{Category: c, Message: fmt.Sprintf(format, args...), Err: err}
}

// Authentication returns an Authentication-category error.
func Authentication(err error, format string, args ...interface{}) *AuthError {
	return newAuthError(CategoryAuthentication, err, format, args...)
}

// Network returns a Network-category error.
func Network(err error, format string, args ...interface{}) *AuthError {
	return newAuthError(CategoryNetwork, err, format, args...)
}

// Configuration returns a Configuration-category error.
func Configuration(err error, format string, args ...interface{}) *AuthError {
	return newAuthError(CategoryConfiguration, err, format, args...)
}

// TokenExpired returns a TokenExpired-category error.
func TokenExpired(err error, format string, args ...interface{}) *AuthError {
	return newAuthError(CategoryTokenExpired, err, format, args...)
}

// WithSuggestion sets the suggestion and returns the receiver.
func (e *AuthError) WithSuggestion(s string) *AuthError {
	e.Suggestion = s
	return e
}

// CategoryOf returns the category of the outermost AuthError in err's chain.
func CategoryOf(err error) Category {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return CategoryUnknown
}

// IsCategory reports whether err carries category c.
func IsCategory(err error, c Category) bool {
	return CategoryOf(err) == c
}

// Leaves flattens aggregate errors (those implementing Unwrap() []error)
// recursively and returns the non-aggregate causes in order. A nil error has
// no leaves.
func Leaves(err error) []error {
	if err == nil {
		return nil
	}
	multi, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	var out []error
	for _, e := range multi.Unwrap() {
		out = append(out, Leaves(e)...)
	}
	return out
}
