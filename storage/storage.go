package storage

// Store defines the key-value operations shared by every connection.
//
// Implementations must be safe for concurrent use: writes take an exclusive
// lock, reads a shared one.
type Store interface {
	// Get returns the value stored under key.
	Get(key string) (string, bool)

	// Set inserts or overwrites key.
	Set(key, value string)

	// Del removes keys and returns how many existed. Absent keys are ignored.
	Del(keys ...string) int64

	// Exists reports whether key is present.
	Exists(key string) bool

	// KeyCount returns the number of stored keys.
	KeyCount() int64

	// Keys returns a snapshot of every stored key in no particular order.
	Keys() []string

	// FlushAll removes every key.
	FlushAll()
}
