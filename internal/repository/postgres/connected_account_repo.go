package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/agency-crm/internal/domain/entity"
	"github.com/yourusername/agency-crm/internal/domain/repository"
	apperrors "github.com/yourusername/agency-crm/internal/pkg/errors"
	"github.com/yourusername/agency-crm/pkg/tokencrypt"
)

// ConnectedAccountRepo implements repository.ConnectedAccountRepository.
// Access tokens are sealed on write and opened on read.
type ConnectedAccountRepo struct {
	db     *gorm.DB
	cipher *tokencrypt.Cipher
}

func NewConnectedAccountRepo(db *gorm.DB, cipher *tokencrypt.Cipher) (*ConnectedAccountRepo, error) {
	if db == nil {
		return nil, errors.New("gorm DB instance is required")
	}
	if cipher == nil {
		return nil, errors.New("token cipher is required")
	}
	return &ConnectedAccountRepo{db: db, cipher: cipher}, nil
}

func (r *ConnectedAccountRepo) Upsert(ctx context.Context, account *entity.ConnectedAccount) error {
	if account == nil {
		return fmt.Errorf("%w: account is nil", apperrors.ErrValidation)
	}
	if account.ClientID == "" || account.ExternalID == "" || !account.Platform.IsValid() {
		return fmt.Errorf("%w: client_id, external_id and a known platform are required", apperrors.ErrValidation)
	}

	sealed, err := r.cipher.Seal(account.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to seal access token: %w", err)
	}

	row := *account
	row.ID = ""
	row.AccessToken = sealed
	if row.LinkedAt.IsZero() {
		row.LinkedAt = time.Now().UTC()
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{"external_id", "display_name", "access_token", "linked_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %s account for client %s: %w", account.Platform, account.ClientID, err)
	}
	return nil
}

func (r *ConnectedAccountRepo) GetByClientAndPlatform(ctx context.Context, clientID string, platform entity.Platform) (*entity.ConnectedAccount, error) {
	var account entity.ConnectedAccount
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND platform = ?", clientID, platform).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connected account by client/platform: %w", err)
	}
	if err := r.open(&account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *ConnectedAccountRepo) ListByClient(ctx context.Context, clientID string) ([]entity.ConnectedAccount, error) {
	var accounts []entity.ConnectedAccount
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("platform ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list connected accounts: %w", err)
	}
	for i := range accounts {
		if err := r.open(&accounts[i]); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

func (r *ConnectedAccountRepo) Transaction(ctx context.Context, fn func(repo repository.ConnectedAccountRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ConnectedAccountRepo{db: tx, cipher: r.cipher})
	})
}

func (r *ConnectedAccountRepo) open(account *entity.ConnectedAccount) error {
	token, err := r.cipher.Open(account.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to open access token of account %s: %w", account.ID, err)
	}
	account.AccessToken = token
	return nil
}
