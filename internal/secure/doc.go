// Package secure keeps sensitive bytes out of ordinary Go memory.
//
// SecureBuffer wraps a memguard enclave: the plaintext is encrypted while at
// rest in memory and is only decrypted into a locked buffer for the duration
// of a read. The broker uses it for the in-memory token cache blob and for
// passwords and refresh tokens carried through authentication parameters.
//
//	buf := secure.FromString(password)
//	defer buf.Destroy()
//
//	plain, err := buf.String()
//
// Callers that need the bytes without copying them into the heap can use
// Open and must Destroy the returned locked buffer.
//
// Platform behavior of memory locking is that of memguard: on Linux it is
// bounded by RLIMIT_MEMLOCK. Call memguard.Purge at process exit to wipe all
// remaining enclaves.
package secure
