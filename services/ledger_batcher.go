package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"plane-spot-system/logger"
	"plane-spot-system/metrics"
	"plane-spot-system/models"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	BatchScopeGlobal = "global"
	BatchScopeUser   = "user"
)

// LedgerItem is one persisted spot waiting for a ledger batch.
type LedgerItem struct {
	SpotID string
	UserID string
	Entry  LedgerEntry
}

// BatchArchiver stores a copy of each flushed batch (R2 in production).
type BatchArchiver interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

type batchWindow struct {
	start time.Time
	items []LedgerItem
	timer *time.Timer
	gen   uint64
}

// LedgerBatcher coalesces spots that arrive within Window of each other into one
// ledger transaction. Every arrival restarts the window; a window with no arrival
// for Window is flushed. With scope "user" each user gets an independent window.
type LedgerBatcher struct {
	DB      *gorm.DB
	Ledger  LedgerLogger
	Archive BatchArchiver
	Window  time.Duration
	Scope   string

	mu      sync.Mutex
	windows map[string]*batchWindow
	closed  bool
	flushes sync.WaitGroup
	log     zerolog.Logger
}

func NewLedgerBatcher(db *gorm.DB, ledger LedgerLogger, window time.Duration, scope string) *LedgerBatcher {
	if window <= 0 {
		window = time.Second
	}
	if scope != BatchScopeUser {
		scope = BatchScopeGlobal
	}
	return &LedgerBatcher{
		DB:      db,
		Ledger:  ledger,
		Window:  window,
		Scope:   scope,
		windows: make(map[string]*batchWindow),
		log:     logger.WithComponent("ledger-batcher"),
	}
}

func (b *LedgerBatcher) keyFor(item LedgerItem) string {
	if b.Scope == BatchScopeUser {
		return item.UserID
	}
	return ""
}

// Enqueue adds a spot to its open window, or opens a new one. Flushes run on
// their own goroutine, never under the lock. After Close the spot is flushed
// synchronously in the caller, so no flush is added once Close is waiting.
func (b *LedgerBatcher) Enqueue(item LedgerItem) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.flush(context.Background(), []LedgerItem{item})
		return
	}
	defer b.mu.Unlock()

	key := b.keyFor(item)
	now := time.Now()
	w := b.windows[key]
	if w != nil && now.Sub(w.start) >= b.Window {
		w.timer.Stop()
		delete(b.windows, key)
		b.dispatch(w.items)
		w = nil
	}
	if w == nil {
		w = &batchWindow{}
		b.windows[key] = w
	}

	w.items = append(w.items, item)
	w.start = now
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
	}
	gen := w.gen
	w.timer = time.AfterFunc(b.Window, func() { b.expire(key, w, gen) })
}

func (b *LedgerBatcher) expire(key string, w *batchWindow, gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// a newer arrival re-armed the timer, or Close already took the window
	if b.windows[key] != w || w.gen != gen {
		return
	}
	delete(b.windows, key)
	b.dispatch(w.items)
}

// dispatch must be called with mu held and before closed is set.
func (b *LedgerBatcher) dispatch(items []LedgerItem) {
	if len(items) == 0 {
		return
	}
	b.flushes.Add(1)
	go func() {
		defer b.flushes.Done()
		b.flush(context.Background(), items)
	}()
}

// Pending reports how many spots are buffered in open windows.
func (b *LedgerBatcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, w := range b.windows {
		n += len(w.items)
	}
	return n
}

// Close flushes every open window and waits for in-flight flushes or ctx.
func (b *LedgerBatcher) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	for key, w := range b.windows {
		w.timer.Stop()
		delete(b.windows, key)
		b.dispatch(w.items)
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.flushes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type ledgerBatchRecord struct {
	GroupID   string        `json:"group_id"`
	FlushedAt time.Time     `json:"flushed_at"`
	SpotIDs   []string      `json:"spot_ids"`
	Entries   []LedgerEntry `json:"entries"`
}

// flush writes one ledger transaction and stamps its group id on the spots.
// Failures are logged and the batch is dropped; spots stay without a group id.
func (b *LedgerBatcher) flush(ctx context.Context, items []LedgerItem) {
	entries := make([]LedgerEntry, len(items))
	ids := make([]string, len(items))
	for i, it := range items {
		entries[i] = it.Entry
		ids[i] = it.SpotID
	}

	groupID, err := b.Ledger.LogBatch(ctx, entries)
	if err != nil {
		metrics.LedgerBatches.WithLabelValues("failed").Inc()
		b.log.Error().Err(err).Int("spots", len(items)).Msg("❌ ledger batch failed, dropping")
		return
	}
	metrics.LedgerBatches.WithLabelValues("ok").Inc()
	metrics.LedgerBatchSize.Observe(float64(len(items)))

	if err := b.DB.WithContext(ctx).Model(&models.Spot{}).
		Where("id IN ?", ids).
		Update("ledger_group_id", groupID).Error; err != nil {
		b.log.Error().Err(err).Str("group_id", groupID).Msg("failed to annotate spots with ledger group")
	}
	b.log.Info().Str("group_id", groupID).Int("spots", len(items)).Msg("📒 ledger batch written")

	if b.Archive == nil {
		return
	}
	now := time.Now().UTC()
	body, err := json.Marshal(ledgerBatchRecord{GroupID: groupID, FlushedAt: now, SpotIDs: ids, Entries: entries})
	if err != nil {
		return
	}
	key := fmt.Sprintf("ledger/%s/%s.json", now.Format("2006/01/02"), slug.Make(groupID))
	if err := b.Archive.Put(ctx, key, body, "application/json"); err != nil {
		b.log.Warn().Err(err).Str("key", key).Msg("ledger batch archive failed")
	}
}
