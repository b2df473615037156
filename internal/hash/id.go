package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 identifier of a response or command name.
func ID(name string) uint64 {
	return xxhash.Sum64String(name)
}

// Sum computes the xxHash64 checksum of a byte payload.
// Used for capture frame integrity checks.
func Sum(data []byte) uint64 {
	return xxhash.Sum64(data)
}
