//go:build darwin

package tokencache

import "os"

const platformSupported = true

func platformAvailable() bool {
	return true
}

// The login keychain may prompt for approval, which nobody can answer over
// SSH or in CI.
func platformHeadless() bool {
	return os.Getenv("SSH_TTY") != "" || os.Getenv("CI") != ""
}
