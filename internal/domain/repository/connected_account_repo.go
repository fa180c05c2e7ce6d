package repository

import (
	"context"

	"github.com/yourusername/agency-crm/internal/domain/entity"
)

// ConnectedAccountRepository stores linked social accounts, one per (client, platform).
type ConnectedAccountRepository interface {
	// Upsert inserts the account or overwrites the existing row for its (client, platform).
	Upsert(ctx context.Context, account *entity.ConnectedAccount) error
	GetByClientAndPlatform(ctx context.Context, clientID string, platform entity.Platform) (*entity.ConnectedAccount, error)
	ListByClient(ctx context.Context, clientID string) ([]entity.ConnectedAccount, error)
	// Transaction runs fn against a repository bound to a single database transaction.
	Transaction(ctx context.Context, fn func(repo ConnectedAccountRepository) error) error
}
