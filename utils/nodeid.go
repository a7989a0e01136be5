package utils

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// NodeID returns the stable identifier of a pod: its pubkey when known,
// otherwise a hash of its gossip address.
func NodeID(pubkey, address string) string {
	if pubkey != "" {
		return pubkey
	}
	return fmt.Sprintf("addr-%016x", xxhash.Sum64String(address))
}
