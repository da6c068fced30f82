// Package util provides shared utility functions.
package util

import (
	"hash/fnv"
	"net/netip"
)

// SessionTag computes a 4-byte hash from a peer's address and port, used as
// a stable prefix in session log lines. The hash is used solely for
// identification and does not need to be reversible.
func SessionTag(addr netip.AddrPort) uint32 {
	h := fnv.New32a()
	h.Write([]byte(addr.String()))
	return h.Sum32()
}
