package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	defaultSweepInterval  = 10 * time.Minute
	defaultSweepBatchSize = 500
)

var (
	idempotencySweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_idempotency_sweeps_total",
		Help: "Total number of idempotency sweep runs grouped by result.",
	}, []string{"result"})
	idempotencyKeysPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_idempotency_keys_purged_total",
		Help: "Total number of purged expired idempotency keys.",
	})
	idempotencyLastSweepPurged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_idempotency_last_sweep_purged",
		Help: "Number of keys purged during the last sweep.",
	})
)

// SweeperOptions задает параметры фоновой очистки idempotency-ключей.
type SweeperOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
}

// SweeperOption настраивает Sweeper.
type SweeperOption func(*SweeperOptions)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.Logger = logger
	}
}

// WithSweepInterval задает интервал между проходами очистки.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.Interval = interval
	}
}

// WithSweepBatchSize задает число ключей, удаляемых одним запросом.
func WithSweepBatchSize(batchSize int) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.BatchSize = batchSize
	}
}

// Sweeper периодически удаляет просроченные idempotency-ключи,
// чтобы таблица не росла бесконечно после истечения TTL ответов.
type Sweeper struct {
	repo      domain.IdempotencyRepository
	logger    *log.Entry
	interval  time.Duration
	batchSize int
}

// NewSweeper создает воркер очистки idempotency-ключей.
func NewSweeper(repo domain.IdempotencyRepository, options ...SweeperOption) *Sweeper {
	opts := SweeperOptions{
		Interval:  defaultSweepInterval,
		BatchSize: defaultSweepBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "idempotency-sweeper")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSweepBatchSize
	}

	return &Sweeper{
		repo:      repo,
		logger:    logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	if s.repo == nil {
		s.logger.Warn("idempotency sweeper is disabled: repo is nil")
		return
	}

	s.sweep(ctx, time.Now().UTC())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx, time.Now().UTC())
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, before time.Time) {
	purged, err := s.SweepExpired(ctx, before)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		idempotencySweepsTotal.WithLabelValues("error").Inc()
		s.logger.WithError(err).Warn("idempotency sweep failed")
		return
	}

	idempotencySweepsTotal.WithLabelValues("ok").Inc()
	idempotencyLastSweepPurged.Set(float64(purged))
	if purged > 0 {
		s.logger.WithField("purged", purged).Info("idempotency sweep completed")
	}
}

// SweepExpired удаляет все записи с истёкшим сроком хранения
// порциями batchSize, пока репозиторий возвращает полные батчи.
func (s *Sweeper) SweepExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		purged, err := s.repo.DeleteExpired(before, s.batchSize)
		if err != nil {
			return total, err
		}

		total += purged
		if purged > 0 {
			idempotencyKeysPurgedTotal.Add(float64(purged))
		}

		if purged < s.batchSize {
			break
		}
	}

	return total, nil
}
