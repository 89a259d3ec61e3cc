// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	DonationsRecorded prometheus.Counter
	GiftSubsRecorded  prometheus.Counter
	CommandsRecorded  prometheus.Counter
	SpinAlerts        prometheus.Counter
	SpinsCompleted    prometheus.Counter
	SpinsReset        prometheus.Counter
	StoreMigrations   prometheus.Counter
	ImportedRows      prometheus.Counter

	// Histograms (seconds)
	StoreRewriteDuration prometheus.Observer

	// Gauges
	PendingSpinsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		DonationsRecorded = promauto.NewCounter(prometheus.CounterOpts{Name: "spin_donations_recorded_total", Help: "Number of bit donations recorded"})
		GiftSubsRecorded = promauto.NewCounter(prometheus.CounterOpts{Name: "spin_gift_subs_recorded_total", Help: "Number of gift sub bundles recorded"})
		CommandsRecorded = promauto.NewCounter(prometheus.CounterOpts{Name: "spin_commands_recorded_total", Help: "Number of spin commands recorded"})
		SpinAlerts = promauto.NewCounter(prometheus.CounterOpts{Name: "spin_alerts_total", Help: "Number of spin alerts published"})
		SpinsCompleted = promauto.NewCounter(prometheus.CounterOpts{Name: "spin_completions_total", Help: "Number of spin completion increments"})
		SpinsReset = promauto.NewCounter(prometheus.CounterOpts{Name: "spin_resets_total", Help: "Number of spin completion resets"})
		StoreMigrations = promauto.NewCounter(prometheus.CounterOpts{Name: "spin_store_migrations_total", Help: "Number of on-read store file schema migrations"})
		ImportedRows = promauto.NewCounter(prometheus.CounterOpts{Name: "spin_imported_rows_total", Help: "Number of novel rows merged by imports"})
		StoreRewriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "spin_store_rewrite_duration_seconds", Help: "Store file rewrite duration seconds", Buckets: prometheus.DefBuckets})
		PendingSpinsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "spin_pending_spins", Help: "Pending spins across all credit items at last derivation"})
	})
}

// Increment helpers tolerate an uninitialized registry so library code can be
// exercised in tests without calling Init.

func IncDonationRecorded() { if DonationsRecorded != nil { DonationsRecorded.Inc() } }
func IncGiftSubRecorded()  { if GiftSubsRecorded != nil { GiftSubsRecorded.Inc() } }
func IncCommandRecorded()  { if CommandsRecorded != nil { CommandsRecorded.Inc() } }
func IncSpinAlert()        { if SpinAlerts != nil { SpinAlerts.Inc() } }
func IncSpinCompleted()    { if SpinsCompleted != nil { SpinsCompleted.Inc() } }
func IncSpinReset()        { if SpinsReset != nil { SpinsReset.Inc() } }
func IncStoreMigrations()  { if StoreMigrations != nil { StoreMigrations.Inc() } }

// AddSpinsReset records how many completion counts a bulk clear zeroed.
func AddSpinsReset(n int) { if SpinsReset != nil && n > 0 { SpinsReset.Add(float64(n)) } }

// AddImportedRows records how many novel rows an import merged.
func AddImportedRows(n int) { if ImportedRows != nil && n > 0 { ImportedRows.Add(float64(n)) } }

// SetPendingSpins records the pending spin total from the latest credit derivation.
func SetPendingSpins(n int) { if PendingSpinsGauge != nil { PendingSpinsGauge.Set(float64(n)) } }

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil { obs.Observe(d.Seconds()) }
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}
var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context { return context.WithValue(ctx, corrKey, id) }

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok { return s }
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" { return slog.Default().With(slog.String("corr", id)) }
	return slog.Default()
}
