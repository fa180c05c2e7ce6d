package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client is a tenant-owned record that social connections attach to.
type Client struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	AgencyID  string    `gorm:"type:uuid;not null;index" json:"agency_id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Client) TableName() string {
	return "clients"
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
