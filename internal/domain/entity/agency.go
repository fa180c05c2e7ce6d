package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Agency is a workspace that owns clients. Users reach clients only through membership.
type Agency struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Agency) TableName() string {
	return "agencies"
}

func (a *Agency) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Agency member roles.
const (
	AgencyRoleOwner  = "owner"
	AgencyRoleMember = "member"
)

// AgencyMember binds an identity-provider user to an agency.
type AgencyMember struct {
	AgencyID  string    `gorm:"type:uuid;primaryKey" json:"agency_id"`
	UserID    string    `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	Role      string    `gorm:"size:20;not null;default:member" json:"role"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (AgencyMember) TableName() string {
	return "agency_members"
}
