package tracking

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultPollInterval = time.Minute
	defaultBatchSize    = 20
	defaultCheckEvery   = 30 * time.Minute
	defaultRetryMin     = 5 * time.Minute
	defaultRetryMax     = 6 * time.Hour
)

// TimelineSource produces the courier timeline for a tracking code,
// oldest event first. *Client implements it.
type TimelineSource interface {
	Track(ctx context.Context, trackingCode string) ([]domain.ShipmentEvent, error)
}

// ShipmentChecker is the storage subset the poller drives.
type ShipmentChecker interface {
	GetShipment(ctx context.Context, shipmentID string) (domain.Shipment, error)
	ListDueShipments(ctx context.Context, now time.Time, limit int) ([]domain.Shipment, error)
	RecordShipmentCheck(ctx context.Context, input storage.ShipmentCheckInput) (storage.ShipmentCheckResult, error)
}

// Config controls the polling loop.
type Config struct {
	// PollInterval is the delay between sweeps over due shipments.
	PollInterval time.Duration
	// BatchSize caps how many shipments one sweep checks.
	BatchSize int
	// CheckEvery is how long a shipment rests after a clean check.
	CheckEvery time.Duration
	// RetryMin is the delay after a first failed check; consecutive
	// failures double it up to RetryMax.
	RetryMin time.Duration
	RetryMax time.Duration
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.CheckEvery <= 0 {
		c.CheckEvery = defaultCheckEvery
	}
	if c.RetryMin <= 0 {
		c.RetryMin = defaultRetryMin
	}
	if c.RetryMax < c.RetryMin {
		c.RetryMax = defaultRetryMax
	}
	return c
}

// Poller periodically checks due shipments against the courier and
// records the outcome. Terminal transitions land notifications in the
// outbox through the store; the poller itself only reschedules.
type Poller struct {
	store   ShipmentChecker
	source  TimelineSource
	cfg     Config
	metrics *Metrics
	retry   *backoff.Backoff
	now     func() time.Time

	mu sync.Mutex
	// failures counts consecutive failed checks per shipment, feeding
	// the retry curve. Reset on success. Process-local: a restart just
	// retries sooner.
	failures map[string]int
}

// NewPoller builds a Poller. A nil metrics keeps counters local and
// unregistered; a nil clock uses time.Now.
func NewPoller(store ShipmentChecker, source TimelineSource, cfg Config, metrics *Metrics, clock func() time.Time) *Poller {
	cfg = cfg.normalized()
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	if clock == nil {
		clock = time.Now
	}
	return &Poller{
		store:   store,
		source:  source,
		cfg:     cfg,
		metrics: metrics,
		retry: &backoff.Backoff{
			Min:    cfg.RetryMin,
			Max:    cfg.RetryMax,
			Factor: 2,
			Jitter: false,
		},
		now:      clock,
		failures: make(map[string]int),
	}
}

// Run sweeps due shipments until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	log.Printf("tracker: polling every %s, batch %d", p.cfg.PollInterval, p.cfg.BatchSize)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := p.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("tracker: sweep: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep checks every due shipment once. Per-shipment failures are
// logged and rescheduled, not returned: one broken shipment must not
// stall the rest of the batch.
func (p *Poller) Sweep(ctx context.Context) error {
	due, err := p.store.ListDueShipments(ctx, p.now().UTC(), p.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list due shipments: %w", err)
	}

	for _, shipment := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := p.check(ctx, shipment); err != nil {
			log.Printf("tracker: shipment %s (%s): %v", shipment.ID, shipment.TrackingCode, err)
		}
	}
	return nil
}

// CheckNow runs one courier check for a single shipment outside the
// regular schedule.
func (p *Poller) CheckNow(ctx context.Context, shipmentID string) (storage.ShipmentCheckResult, error) {
	shipment, err := p.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return storage.ShipmentCheckResult{}, err
	}
	if shipment.Status.Terminal() {
		return storage.ShipmentCheckResult{}, domain.ErrShipmentTerminal
	}
	return p.check(ctx, shipment)
}

// check fetches the courier timeline for one shipment and records the
// outcome. A failed fetch is still recorded so the shipment reschedules
// with backoff instead of going dark.
func (p *Poller) check(ctx context.Context, shipment domain.Shipment) (storage.ShipmentCheckResult, error) {
	p.metrics.ChecksTotal.Inc()
	checkedAt := p.now().UTC()

	input := storage.ShipmentCheckInput{
		ShipmentID: shipment.ID,
		CheckedAt:  checkedAt,
	}

	events, trackErr := p.source.Track(ctx, shipment.TrackingCode)
	if trackErr != nil {
		p.metrics.CheckFailures.Inc()
		input.CheckError = trackErr.Error()
		input.NextCheckAt = checkedAt.Add(p.nextRetryDelay(shipment.ID))
	} else {
		p.resetRetry(shipment.ID)
		input.Events = events
		input.NextCheckAt = checkedAt.Add(p.cfg.CheckEvery)
	}

	result, err := p.store.RecordShipmentCheck(ctx, input)
	if err != nil {
		return storage.ShipmentCheckResult{}, fmt.Errorf("record shipment check: %w", err)
	}

	if len(result.FreshEvents) > 0 {
		p.metrics.EventsAppended.Add(float64(len(result.FreshEvents)))
	}
	if result.Shipment.Status.Terminal() && !shipment.Status.Terminal() {
		p.metrics.TerminalTransitions.Inc()
		log.Printf("tracker: shipment %s reached %s", shipment.ID, result.Shipment.Status)
	}

	if trackErr != nil {
		return result, trackErr
	}
	return result, nil
}

func (p *Poller) nextRetryDelay(shipmentID string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	attempt := p.failures[shipmentID]
	p.failures[shipmentID] = attempt + 1
	return p.retry.ForAttempt(float64(attempt))
}

func (p *Poller) resetRetry(shipmentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, shipmentID)
}
