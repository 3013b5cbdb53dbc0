package auth

import (
	"context"
	"time"
)

// TokenBlacklist stores revoked token IDs (JTIs) until their original
// expiry, at which point JWT validation rejects them on its own.
type TokenBlacklist interface {
	// Add puts a jti on the blacklist until the token's original expiry.
	Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error
	// IsBlacklisted reports whether the jti has been revoked.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}
