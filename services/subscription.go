package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"plane-spot-system/logger"
	"plane-spot-system/models"
	"plane-spot-system/utils"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PremiumPrice is the minimum confirmed payment that unlocks premium.
var PremiumPrice = decimal.RequireFromString("10")

// PaymentReceipt is the payment service's view of one payment.
type PaymentReceipt struct {
	PaymentID     string          `json:"payment_id"`
	WalletAddress string          `json:"wallet_address"`
	Amount        decimal.Decimal `json:"amount"`
	Asset         string          `json:"asset"`
	Status        string          `json:"status"`
}

// PaymentVerifier looks up a payment by id.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, paymentID string) (*PaymentReceipt, error)
}

type PaymentAPIClient struct {
	BaseURL      string
	ServiceToken string
	HTTP         *http.Client
}

func NewPaymentAPIClient(baseURL, token string, timeout time.Duration) *PaymentAPIClient {
	return &PaymentAPIClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ServiceToken: token,
		HTTP:         utils.NewHTTPClient(timeout),
	}
}

func (c *PaymentAPIClient) VerifyPayment(ctx context.Context, paymentID string) (*PaymentReceipt, error) {
	var receipt PaymentReceipt
	endpoint := c.BaseURL + "/api/v1/payments/" + url.PathEscape(paymentID)
	err := utils.GetJSON(ctx, c.HTTP, endpoint, map[string]string{"X-Service-Token": c.ServiceToken}, &receipt)
	if err != nil {
		var statusErr *utils.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, notFound("payment", paymentID)
		}
		return nil, upstreamFailure("payment service", err)
	}
	return &receipt, nil
}

// SubscriptionService upgrades users to premium after a verified payment.
type SubscriptionService struct {
	DB       *gorm.DB
	Verifier PaymentVerifier
	Wallets  *WalletService
	now      func() time.Time
	log      zerolog.Logger
}

func NewSubscriptionService(db *gorm.DB, verifier PaymentVerifier, wallets *WalletService) *SubscriptionService {
	return &SubscriptionService{
		DB:       db,
		Verifier: verifier,
		Wallets:  wallets,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.WithComponent("subscriptions"),
	}
}

// Confirm verifies paymentID and switches userID to the premium tier.
// Confirming the same payment twice for the same user is a no-op.
func (s *SubscriptionService) Confirm(ctx context.Context, userID, paymentID string) (*models.Subscription, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, invalid("payment_id", "payment_id is required")
	}
	if s.Verifier == nil {
		return nil, &AppError{Kind: KindUpstreamUnavailable, Message: "payment service not configured"}
	}

	receipt, err := s.Verifier.VerifyPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(receipt.Status, "confirmed") {
		return nil, invalid("payment_id", "payment is not confirmed")
	}
	if receipt.Amount.LessThan(PremiumPrice) {
		return nil, invalid("payment_id", "payment amount is below the premium price")
	}
	owns, err := s.Wallets.OwnsAddress(ctx, userID, receipt.WalletAddress)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, &AppError{Kind: KindForbidden, Message: "payment was not made from a wallet linked to this account"}
	}

	now := s.now()
	sub := models.Subscription{
		UserID:        userID,
		PaymentID:     paymentID,
		WalletAddress: receipt.WalletAddress,
		Amount:        receipt.Amount,
		Asset:         receipt.Asset,
		ConfirmedAt:   now,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&sub)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var existing models.Subscription
			if err := tx.Where("payment_id = ?", paymentID).First(&existing).Error; err != nil {
				return err
			}
			if existing.UserID != userID {
				return &AppError{Kind: KindForbidden, Message: "payment already used by another account"}
			}
			sub = existing
			return nil
		}
		upd := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"premium":          true,
			"daily_spot_limit": models.PremiumDailySpotLimit,
			"spots_remaining":  models.PremiumDailySpotLimit,
		})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return notFound("user", userID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", userID).Str("amount", sub.Amount.String()).Str("asset", sub.Asset).Msg("💎 premium activated")
	return &sub, nil
}
