package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"plane-spot-system/logger"
	"plane-spot-system/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var walletAddressPattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]{8,128}$`)

// WalletService reads and writes the local wallet_mirror table.
type WalletService struct {
	DB  *gorm.DB
	now func() time.Time
	log zerolog.Logger
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{
		DB:  db,
		now: func() time.Time { return time.Now().UTC() },
		log: logger.WithComponent("wallets"),
	}
}

// ActiveWallet returns the user's active address, or "" when none is linked.
func (s *WalletService) ActiveWallet(ctx context.Context, userID string) (string, error) {
	var w models.WalletMirror
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("updated_at DESC").
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return w.Address, nil
}

// OwnsAddress reports whether address is linked to userID (active or not).
func (s *WalletService) OwnsAddress(ctx context.Context, userID, address string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.WalletMirror{}).
		Where("user_id = ? AND address = ?", userID, address).
		Count(&n).Error
	return n > 0, err
}

// LinkWallet makes address the user's only active wallet.
func (s *WalletService) LinkWallet(ctx context.Context, userID, chain, address string) (*models.WalletMirror, error) {
	address = strings.TrimSpace(address)
	if !walletAddressPattern.MatchString(address) {
		return nil, invalid("address", "wallet address is malformed")
	}
	if chain == "" {
		chain = "hedera"
	}

	now := s.now()
	var linked models.WalletMirror
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.WalletMirror
		err := tx.Where("address = ?", address).First(&existing).Error
		switch {
		case err == nil && existing.UserID != userID:
			return &AppError{Kind: KindForbidden, Message: "wallet is linked to another account"}
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if err := tx.Model(&models.WalletMirror{}).
			Where("user_id = ? AND address <> ?", userID, address).
			Updates(map[string]any{"is_active": false, "updated_at": now}).Error; err != nil {
			return err
		}

		linked = models.WalletMirror{
			UserID:    userID,
			Chain:     chain,
			Address:   address,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"chain", "is_active", "updated_at"}),
		}).Create(&linked).Error; err != nil {
			return err
		}
		var stored models.WalletMirror
		if err := tx.Where("address = ?", address).First(&stored).Error; err != nil {
			return err
		}
		linked = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", userID).Str("chain", chain).Msg("👛 wallet linked")
	return &linked, nil
}

// UpsertMirrors applies a batch of wallet changes from the sync service.
func (s *WalletService) UpsertMirrors(ctx context.Context, wallets []models.WalletMirror) error {
	if len(wallets) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "chain", "is_active", "updated_at"}),
	}).Create(&wallets).Error
}
