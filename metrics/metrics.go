package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SpotsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planespot_spots_created_total",
			Help: "Spots persisted, by kind (gps, teleport)",
		},
		[]string{"kind"},
	)

	QuotaRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "planespot_quota_rejections_total",
			Help: "Spot submissions rejected because the daily quota was exhausted",
		},
	)

	GuessBonusXP = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planespot_guess_bonus_xp",
			Help:    "Bonus XP awarded per guess submission",
			Buckets: []float64{0, 10, 20, 30},
		},
	)

	LedgerBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planespot_ledger_batches_total",
			Help: "Ledger batch flushes, by result (ok, failed)",
		},
		[]string{"result"},
	)

	LedgerBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planespot_ledger_batch_size",
			Help:    "Number of spots per ledger batch",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)

	FlightCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planespot_flight_cache_total",
			Help: "Flight lookup cache outcomes (hit, miss)",
		},
		[]string{"outcome"},
	)

	ResetSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planespot_reset_sweeps_total",
			Help: "Quota/XP reset sweeps, by kind (daily, weekly, manual)",
		},
		[]string{"kind"},
	)
)

// Register adds every collector to the default registry. Call once from main.
func Register() {
	prometheus.MustRegister(
		SpotsCreated,
		QuotaRejections,
		GuessBonusXP,
		LedgerBatches,
		LedgerBatchSize,
		FlightCache,
		ResetSweeps,
	)
}
