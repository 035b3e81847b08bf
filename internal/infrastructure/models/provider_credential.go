package models

import "time"

type ProviderCredential struct {
	Provider      string `gorm:"type:varchar(50);primaryKey"`
	APIKey        string `gorm:"type:text;not null"`
	AzureEndpoint string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ProviderCredential) TableName() string {
	return "provider_credentials"
}
