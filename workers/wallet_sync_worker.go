// workers/wallet_sync_worker.go
package workers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"plane-spot-system/logger"
	"plane-spot-system/models"
	"plane-spot-system/services"
	"plane-spot-system/utils"

	"github.com/rs/zerolog"
)

// WalletSyncClient pulls wallet changes from the sync service.
type WalletSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Wallets    *services.WalletService
	log        zerolog.Logger
}

func NewWalletSyncClient(wallets *services.WalletService, baseURL, token string) *WalletSyncClient {
	return &WalletSyncClient{
		BaseURL:    baseURL,
		Token:      token,
		Wallets:    wallets,
		HTTPClient: utils.NewHTTPClient(30 * time.Second),
		log:        logger.WithComponent("wallet-sync"),
	}
}

func (c *WalletSyncClient) GetChangedWallets(ctx context.Context, since time.Time) ([]models.WalletMirror, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/wallets", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	var response struct {
		Wallets []models.WalletMirror `json:"wallets"`
	}
	if err := utils.GetJSON(ctx, c.HTTPClient, u.String(), map[string]string{"X-Service-Token": c.Token}, &response); err != nil {
		return nil, fmt.Errorf("failed to call sync service: %w", err)
	}
	return response.Wallets, nil
}

// PollOnce fetches and applies one batch. The returned cursor only moves on success.
func (c *WalletSyncClient) PollOnce(ctx context.Context, since time.Time) (time.Time, error) {
	pollTime := time.Now().UTC()
	wallets, err := c.GetChangedWallets(ctx, since)
	if err != nil {
		return since, err
	}
	if len(wallets) == 0 {
		return pollTime, nil
	}
	if err := c.Wallets.UpsertMirrors(ctx, wallets); err != nil {
		return since, fmt.Errorf("upsert %d wallet(s): %w", len(wallets), err)
	}
	c.log.Info().Int("wallets", len(wallets)).Msg("✅ upserted wallet changes into wallet_mirror")
	return pollTime, nil
}

// PollWallets runs PollOnce every pollInterval until ctx is done.
func PollWallets(ctx context.Context, client *WalletSyncClient, pollInterval time.Duration) {
	client.log.Info().Dur("interval", pollInterval).Msg("Starting wallet polling (DB-backed)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			client.log.Info().Msg("Wallet polling stopped.")
			return
		case <-ticker.C:
			next, err := client.PollOnce(ctx, lastSyncTime)
			if err != nil {
				client.log.Error().Err(err).Msg("❌ Error polling wallets")
				continue
			}
			lastSyncTime = next
		}
	}
}
