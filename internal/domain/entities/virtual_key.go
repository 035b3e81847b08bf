package entities

import (
	"time"

	"github.com/google/uuid"
)

// VirtualKey represents a gateway API key issued to a consumer.
// The plaintext key is returned once at creation and never stored.
type VirtualKey struct {
	ID            uuid.UUID  `json:"id"`
	UserID        *uuid.UUID `json:"userId,omitempty"`
	Name          string     `json:"name"`
	KeyHash       string     `json:"-"`
	KeyLookupHash *string    `json:"-"`
	KeyPrefix     string     `json:"keyPrefix"`
	MaxBudget     *float64   `json:"maxBudget,omitempty"`
	CurrentSpend  float64    `json:"currentSpend"`
	RateLimitRPM  *int       `json:"rateLimitRpm,omitempty"`
	RateLimitTPM  *int       `json:"rateLimitTpm,omitempty"`
	AllowedModels []string   `json:"allowedModels,omitempty"`
	Blocked       bool       `json:"blocked"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt    *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsExpired reports whether the key's expiry has passed
func (k *VirtualKey) IsExpired() bool {
	return k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt)
}

// IsOverBudget reports whether accumulated spend has reached the budget
func (k *VirtualKey) IsOverBudget() bool {
	return k.MaxBudget != nil && k.CurrentSpend >= *k.MaxBudget
}

// CanAccessModel checks the allow-list. An empty list allows every model.
func (k *VirtualKey) CanAccessModel(model string) bool {
	if len(k.AllowedModels) == 0 {
		return true
	}
	for _, m := range k.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}

type CreateVirtualKeyInput struct {
	Name          string     `json:"name" binding:"required"`
	UserID        *uuid.UUID `json:"userId"`
	MaxBudget     *float64   `json:"maxBudget"`
	RateLimitRPM  *int       `json:"rateLimitRpm"`
	RateLimitTPM  *int       `json:"rateLimitTpm"`
	AllowedModels []string   `json:"allowedModels"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

type UpdateVirtualKeyInput struct {
	ID            uuid.UUID  `json:"id" binding:"required"`
	Name          *string    `json:"name"`
	MaxBudget     *float64   `json:"maxBudget"`
	RateLimitRPM  *int       `json:"rateLimitRpm"`
	RateLimitTPM  *int       `json:"rateLimitTpm"`
	AllowedModels []string   `json:"allowedModels"`
	Blocked       *bool      `json:"blocked"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

type CreateVirtualKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	KeyPrefix string    `json:"keyPrefix"`
	CreatedAt time.Time `json:"createdAt"`
}
