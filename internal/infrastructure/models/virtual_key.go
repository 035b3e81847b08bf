package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VirtualKey struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	UserID        *uuid.UUID `gorm:"type:uuid;index"`
	Name          string     `gorm:"type:varchar(100);not null"`
	KeyHash       string     `gorm:"type:varchar(100);not null"` // bcrypt
	KeyLookupHash *string    `gorm:"type:varchar(64);uniqueIndex"` // SHA256 hex
	KeyPrefix     string     `gorm:"type:varchar(20);not null"`
	MaxBudget     *float64
	CurrentSpend  float64 `gorm:"not null;default:0"`
	RateLimitRPM  *int
	RateLimitTPM  *int
	AllowedModels string `gorm:"type:text;not null;default:'[]'"` // JSON string
	Blocked       bool   `gorm:"not null;default:false"`
	ExpiresAt     *time.Time
	LastUsedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (VirtualKey) TableName() string {
	return "virtual_keys"
}
