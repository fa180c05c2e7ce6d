package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const stateNonceKeyPrefix = "oauth:state:nonce:"

// StateNonceRepo implements repository.StateNonceRepository on top of SETNX.
type StateNonceRepo struct {
	client redis.UniversalClient
}

func NewStateNonceRepo(client redis.UniversalClient) (*StateNonceRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil for StateNonceRepo")
	}
	return &StateNonceRepo{client: client}, nil
}

// Consume reports true the first time a nonce is seen within ttl.
func (r *StateNonceRepo) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if nonce == "" {
		return false, fmt.Errorf("nonce is empty")
	}
	ok, err := r.client.SetNX(ctx, stateNonceKeyPrefix+nonce, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record state nonce: %w", err)
	}
	return ok, nil
}
