package repository

import (
	"context"

	"github.com/yourusername/agency-crm/internal/domain/entity"
)

// ClientRepository reads clients through agency membership.
type ClientRepository interface {
	GetByID(ctx context.Context, clientID string) (*entity.Client, error)
	// GetAccessible returns the client only when userID is a member of its agency.
	GetAccessible(ctx context.Context, userID, clientID string) (*entity.Client, error)
	ListAccessible(ctx context.Context, userID string) ([]entity.Client, error)
}
