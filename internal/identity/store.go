package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Store maps a billing email to the payment provider's customer id. The key
// is a one-way hash of the lowercased email so no PII lands in the key.
// Entries are written on first successful lookup or creation and read before
// every checkout attempt; there is no TTL. Delete exists for manual repair
// only, nothing calls it automatically.
type Store interface {
	Get(ctx context.Context, email string) (id string, ok bool, err error)
	Put(ctx context.Context, email, id string) error
	Delete(ctx context.Context, email string) error
}

// HashEmail returns the storage key for an email address.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
