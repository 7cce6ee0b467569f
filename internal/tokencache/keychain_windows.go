//go:build windows

package tokencache

const platformSupported = true

func platformAvailable() bool {
	return true
}

func platformHeadless() bool {
	return false
}
