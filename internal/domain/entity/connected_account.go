package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Platform identifies the social network a ConnectedAccount belongs to.
type Platform string

const (
	// PlatformFacebook is the page the user authorizes directly.
	PlatformFacebook Platform = "facebook"
	// PlatformInstagram is the business account linked to the authorized page.
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
)

// IsValid reports whether p is one of the known platforms.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformFacebook, PlatformInstagram, PlatformTikTok, PlatformYouTube:
		return true
	}
	return false
}

// ConnectedAccount is one linked social presence of a client.
// At most one row exists per (ClientID, Platform); later links overwrite it.
type ConnectedAccount struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_connected_accounts_client_platform,priority:1" json:"client_id"`
	Platform    Platform  `gorm:"size:20;not null;uniqueIndex:idx_connected_accounts_client_platform,priority:2" json:"platform"`
	ExternalID  string    `gorm:"size:255;not null" json:"external_id"`
	DisplayName string    `gorm:"size:255;not null;default:''" json:"display_name"`
	AccessToken string    `gorm:"type:text;not null" json:"-"`
	LinkedAt    time.Time `gorm:"not null" json:"linked_at"`
}

func (ConnectedAccount) TableName() string {
	return "connected_accounts"
}

func (a *ConnectedAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
