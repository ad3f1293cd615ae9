// models/wallet_mirror.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletMirror mirrors a user's linked payment wallet (from the sync service or the link endpoint).
// Table name: wallet_mirror
type WalletMirror struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:64;not null;index" json:"user_id"`
	Chain     string    `gorm:"type:varchar(64);not null" json:"chain"`
	Address   string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"address"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (WalletMirror) TableName() string { return "wallet_mirror" }

func (w *WalletMirror) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// Subscription records a verified premium payment.
type Subscription struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	UserID        string          `gorm:"size:64;not null;index" json:"user_id"`
	PaymentID     string          `gorm:"size:128;not null;uniqueIndex" json:"payment_id"`
	WalletAddress string          `gorm:"type:varchar(128);not null" json:"wallet_address"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"amount"`
	Asset         string          `gorm:"size:16;not null" json:"asset"`
	ConfirmedAt   time.Time       `gorm:"not null" json:"confirmed_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
