package clientdata

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SweepReport is the outcome of one expiry sweep over the provider cache.
type SweepReport struct {
	// Deleted holds the number of expired rows removed, keyed by the Table*
	// constants. Every cache table is present, including those with no
	// expired rows.
	Deleted  map[string]int64 `json:"deleted"`
	Total    int64            `json:"total"`
	SweptAt  time.Time        `json:"swept_at"`
	Duration time.Duration    `json:"duration_ns"`
}

// CleanupJob sweeps expired provider responses out of the cache tables.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
	now  func() time.Time

	mu   sync.Mutex
	last *SweepReport
}

// NewCleanupJob creates the cache expiry job for repo.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "client_data_cleanup").Logger(),
		now:  time.Now,
	}
}

// Sweep deletes expired rows from every cache table and reports the counts.
func (j *CleanupJob) Sweep() (SweepReport, error) {
	started := j.now()

	deleted, err := j.repo.DeleteAllExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Cache sweep failed")
		return SweepReport{}, err
	}

	report := SweepReport{
		Deleted:  make(map[string]int64, len(AllTables)),
		SweptAt:  started,
		Duration: j.now().Sub(started),
	}
	for _, table := range AllTables {
		report.Deleted[table] = deleted[table]
		report.Total += deleted[table]
	}

	j.mu.Lock()
	j.last = &report
	j.mu.Unlock()

	ev := j.log.Debug()
	if report.Total > 0 {
		ev = j.log.Info()
	}
	ev.Int64(TablePriceHistory, report.Deleted[TablePriceHistory]).
		Int64(TableRiskFreeRate, report.Deleted[TableRiskFreeRate]).
		Int64(TableTickerQuotes, report.Deleted[TableTickerQuotes]).
		Int64("total", report.Total).
		Msg("Swept expired cache entries")

	return report, nil
}

// LastSweep returns the report of the most recent successful sweep.
func (j *CleanupJob) LastSweep() (SweepReport, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.last == nil {
		return SweepReport{}, false
	}
	return *j.last, true
}

// Run implements scheduler.Job.
func (j *CleanupJob) Run() error {
	_, err := j.Sweep()
	return err
}

// Name implements scheduler.Job.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
