//go:build !darwin && !linux && !windows

package tokencache

const platformSupported = false

func platformAvailable() bool {
	return false
}

func platformHeadless() bool {
	return false
}
