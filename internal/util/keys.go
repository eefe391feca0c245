package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// EntryKey namespaces a user key in a shared store.
func EntryKey(ns, key string) string { return "entry:" + ns + ":" + key }

// LockKey namespaces a lock resource in a shared store.
func LockKey(ns, resource string) string { return "lock:" + ns + ":" + resource }

// FileStem hashes a user key into a fixed-length filesystem-safe stem.
func FileStem(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8]) // 16 hex chars
}
