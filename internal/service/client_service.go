package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yourusername/agency-crm/internal/domain/entity"
	"github.com/yourusername/agency-crm/internal/domain/repository"
	apperrors "github.com/yourusername/agency-crm/internal/pkg/errors"
)

// ClientService serves the read side of client pages.
type ClientService struct {
	clients  repository.ClientRepository
	accounts repository.ConnectedAccountRepository
}

func NewClientService(clients repository.ClientRepository, accounts repository.ConnectedAccountRepository) (*ClientService, error) {
	if clients == nil {
		return nil, fmt.Errorf("ClientRepository is required for ClientService")
	}
	if accounts == nil {
		return nil, fmt.Errorf("ConnectedAccountRepository is required for ClientService")
	}
	return &ClientService{clients: clients, accounts: accounts}, nil
}

// ListClients returns every client in the agencies userID belongs to.
func (s *ClientService) ListClients(ctx context.Context, userID string) ([]entity.Client, error) {
	clients, err := s.clients.ListAccessible(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	if clients == nil {
		clients = []entity.Client{}
	}
	return clients, nil
}

// ListAccounts returns the client's connected accounts. Tokens never leave the repository
// in serialized form; callers still must not log them.
func (s *ClientService) ListAccounts(ctx context.Context, userID, clientID string) ([]entity.ConnectedAccount, error) {
	if _, err := uuid.Parse(clientID); err != nil {
		return nil, fmt.Errorf("%w: invalid client id", apperrors.ErrValidation)
	}
	if _, err := s.clients.GetAccessible(ctx, userID, clientID); err != nil {
		return nil, err
	}
	accounts, err := s.accounts.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connected accounts: %w", err)
	}
	if accounts == nil {
		accounts = []entity.ConnectedAccount{}
	}
	return accounts, nil
}
