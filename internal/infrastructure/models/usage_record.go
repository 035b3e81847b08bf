package models

import (
	"time"

	"github.com/google/uuid"
)

type UsageRecord struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	KeyID            *uuid.UUID `gorm:"type:uuid;index"`
	Model            string     `gorm:"type:varchar(100);not null;index"`
	Provider         string     `gorm:"type:varchar(50);not null"`
	PromptTokens     int        `gorm:"not null;default:0"`
	CompletionTokens int        `gorm:"not null;default:0"`
	TotalTokens      int        `gorm:"not null;default:0"`
	CostUSD          float64    `gorm:"not null;default:0"`
	LatencyMs        int64      `gorm:"not null;default:0"`
	Cached           bool       `gorm:"not null;default:false"`
	Error            *string    `gorm:"type:text"`
	CreatedAt        time.Time  `gorm:"index"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}
