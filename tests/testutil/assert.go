package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
)

// AssertSecretRedacted verifies that secretValue does not appear in output
// and that the [REDACTED] marker does.
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertNoSecretLeak verifies that none of secrets appear in output.
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		assert.NotContains(t, output, secret, "Secret leaked in output")
	}
}

// AssertCategory verifies that err is an authentication error of category want.
func AssertCategory(t *testing.T, err error, want tberrors.Category) bool {
	t.Helper()

	if !assert.Error(t, err) {
		return false
	}
	return assert.Equal(t, want, tberrors.CategoryOf(err),
		"Expected %s error, got %s: %v", want, tberrors.CategoryOf(err), err)
}
