package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/agency-crm/internal/domain/entity"
	apperrors "github.com/yourusername/agency-crm/internal/pkg/errors"
)

type ClientRepo struct {
	db *gorm.DB
}

func NewClientRepo(db *gorm.DB) *ClientRepo {
	return &ClientRepo{db: db}
}

func (r *ClientRepo) GetByID(ctx context.Context, clientID string) (*entity.Client, error) {
	var client entity.Client
	err := r.db.WithContext(ctx).Where("id = ?", clientID).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client by id: %w", err)
	}
	return &client, nil
}

func (r *ClientRepo) GetAccessible(ctx context.Context, userID, clientID string) (*entity.Client, error) {
	var client entity.Client
	err := r.memberScope(ctx, userID).
		Where("clients.id = ?", clientID).
		First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client for user: %w", err)
	}
	return &client, nil
}

func (r *ClientRepo) ListAccessible(ctx context.Context, userID string) ([]entity.Client, error) {
	var clients []entity.Client
	err := r.memberScope(ctx, userID).
		Order("clients.name ASC").
		Find(&clients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list clients for user: %w", err)
	}
	return clients, nil
}

func (r *ClientRepo) memberScope(ctx context.Context, userID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&entity.Client{}).
		Select("clients.*").
		Joins("JOIN agency_members ON agency_members.agency_id = clients.agency_id").
		Where("agency_members.user_id = ?", userID)
}
