package repository

import (
	"context"
	"time"
)

// StateNonceRepository remembers which OAuth state nonces were already redeemed.
type StateNonceRepository interface {
	// Consume marks nonce as used for ttl. It returns false if the nonce was already used.
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}
