// workers/user_sync_worker.go
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

// GetUserChangesResponse is the top-level structure of the sync service response.
type GetUserChangesResponse struct {
	Users []models.RemoteProfile `json:"users"`
}

// UserSyncWorker mirrors player identities from the sync service into the users table.
// New players get the free tier and a seeded achievement set.
type UserSyncWorker struct {
	users        *services.UserService
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
	lastSync     time.Time
	log          zerolog.Logger
}

func NewUserSyncWorker(users *services.UserService, syncServiceBaseURL, endpointPath, serviceToken string) *UserSyncWorker {
	return &UserSyncWorker{
		users:        users,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.NewHTTPClient(30 * time.Second),
		log:          logger.WithComponent("user-sync"),
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	w.log.Info().Msg("🔁 Starting User Sync Worker (sync-service → users)…")
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	// backfill from the beginning of time
	if err := w.SyncOnce(ctx); err != nil {
		w.log.Warn().Err(err).Msg("⚠️ initial sync failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.SyncOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("❌ sync batch failed")
			}
		case <-ctx.Done():
			w.log.Info().Msg("⏹️ User Sync Worker stopped")
			return
		}
	}
}

// SyncOnce fetches profile changes since the newest one already applied.
func (w *UserSyncWorker) SyncOnce(ctx context.Context) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base sync service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", w.lastSync.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()

	var response GetUserChangesResponse
	headers := map[string]string{"X-Service-Token": w.serviceToken}
	if err := utils.GetJSON(ctx, w.httpClient, endpointURL.String(), headers, &response); err != nil {
		return fmt.Errorf("sync service request failed: %w", err)
	}
	if len(response.Users) == 0 {
		w.log.Debug().Time("since", w.lastSync).Msg("✅ no user changes")
		return nil
	}

	var created, updated, failed int
	latest := w.lastSync
	for _, p := range response.Users {
		isNew, err := w.users.UpsertProfile(ctx, p)
		switch {
		case err != nil:
			failed++
			w.log.Warn().Err(err).Str("external_id", p.ExternalID).Msg("⚠️ failed to upsert user")
			continue
		case isNew:
			created++
		default:
			updated++
		}
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
	}
	// a failed row is retried next tick because the cursor only advances past applied rows
	if failed == 0 {
		w.lastSync = latest
	}

	w.log.Info().Int("created", created).Int("updated", updated).Int("failed", failed).
		Time("latest", latest).Msg("✅ user sync batch applied")
	return nil
}
