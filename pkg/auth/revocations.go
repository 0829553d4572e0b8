package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/plannerhq/vendorbook/pkg/cache"
)

// revokedKeyPrefix namespaces revocation markers in Redis alongside the
// other vendorbook cache keys.
const revokedKeyPrefix = "auth:revoked:"

// RevocationList tracks tokens that were invalidated before their
// expiry. Entries live in Redis for the remaining token lifetime, so a
// revoked token stays rejected until it would have expired anyway.
type RevocationList struct {
	cache *cache.Client
}

func NewRevocationList(cacheClient *cache.Client) *RevocationList {
	return &RevocationList{cache: cacheClient}
}

// Revoke marks a token as invalid for ttl. Only a digest of the token
// is stored.
func (r *RevocationList) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	return r.cache.Set(ctx, r.key(token), "revoked", ttl)
}

// IsRevoked reports whether the token was revoked and has not yet aged
// out.
func (r *RevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	return r.cache.Exists(ctx, r.key(token))
}

func (r *RevocationList) key(token string) string {
	digest := sha256.Sum256([]byte(token))
	return revokedKeyPrefix + hex.EncodeToString(digest[:])
}
