// Package maintenance implements offline admin operations on the
// back-office database: outbox depth reports, dead-event requeue, and
// shipment timeline pruning.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage/sqlite"
	"github.com/caarlos0/env/v11"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath                 string        `env:"ATELIER_DB_PATH"`
	Timeout                time.Duration `env:"ATELIER_MAINTENANCE_TIMEOUT" envDefault:"10m"`
	JSONOutput             bool
	OutboxReport           bool
	OutboxRequeueDead      bool
	OutboxRequeueDeadLimit int
	PruneShipmentEvents    bool
	PruneKeep              int
	PruneOlderThan         time.Duration
}

type envConfig struct {
	DBPath  string        `env:"ATELIER_DB_PATH"`
	Timeout time.Duration `env:"ATELIER_MAINTENANCE_TIMEOUT" envDefault:"10m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		DBPath:  envCfg.DBPath,
		Timeout: envCfg.Timeout,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "atelier.db")
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the back-office sqlite database")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.BoolVar(&cfg.OutboxReport, "outbox-report", false, "report notification outbox depth per status")
	fs.BoolVar(&cfg.OutboxRequeueDead, "outbox-requeue-dead", false, "requeue a bounded batch of dead outbox events")
	fs.IntVar(&cfg.OutboxRequeueDeadLimit, "outbox-requeue-dead-limit", 0, "max dead outbox events to requeue (required with -outbox-requeue-dead)")
	fs.BoolVar(&cfg.PruneShipmentEvents, "prune-shipment-events", false, "prune timeline events of old delivered shipments")
	fs.IntVar(&cfg.PruneKeep, "keep", 1, "timeline events to keep per pruned shipment")
	fs.DurationVar(&cfg.PruneOlderThan, "older-than", 720*time.Hour, "prune shipments delivered longer ago than this")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	modes := 0
	if cfg.OutboxReport {
		modes++
	}
	if cfg.OutboxRequeueDead {
		modes++
	}
	if cfg.PruneShipmentEvents {
		modes++
	}
	if modes == 0 {
		return errors.New("one of -outbox-report, -outbox-requeue-dead or -prune-shipment-events is required")
	}
	if modes > 1 {
		return errors.New("-outbox-report, -outbox-requeue-dead and -prune-shipment-events cannot be combined")
	}
	if cfg.OutboxRequeueDead && cfg.OutboxRequeueDeadLimit <= 0 {
		return errors.New("-outbox-requeue-dead-limit must be > 0")
	}
	if cfg.PruneShipmentEvents {
		if cfg.PruneKeep < 0 {
			return errors.New("-keep must be >= 0")
		}
		if cfg.PruneOlderThan <= 0 {
			return errors.New("-older-than must be > 0")
		}
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close store: %v\n", closeErr)
		}
	}()

	now := time.Now().UTC()
	switch {
	case cfg.OutboxReport:
		return runOutboxReport(ctx, store, cfg.JSONOutput, out)
	case cfg.OutboxRequeueDead:
		return runOutboxRequeueDead(ctx, store, cfg.OutboxRequeueDeadLimit, now, cfg.JSONOutput, out)
	default:
		return runPruneShipmentEvents(ctx, store, cfg.PruneKeep, now.Add(-cfg.PruneOlderThan), cfg.JSONOutput, out)
	}
}

type outboxCounter interface {
	CountOutboxEvents(ctx context.Context) (map[storage.OutboxStatus]int64, error)
}

type outboxRequeuer interface {
	RequeueDeadOutboxEvents(ctx context.Context, limit int, now time.Time) (int64, error)
}

type shipmentPruner interface {
	PruneShipmentEvents(ctx context.Context, keep int, deliveredBefore time.Time) (int64, error)
}

type outboxReport struct {
	Mode   string           `json:"mode"`
	Counts map[string]int64 `json:"counts"`
}

type requeueDeadResult struct {
	Mode     string `json:"mode"`
	Limit    int    `json:"limit"`
	Requeued int64  `json:"requeued"`
}

type pruneResult struct {
	Mode            string `json:"mode"`
	Keep            int    `json:"keep"`
	DeliveredBefore string `json:"delivered_before"`
	Removed         int64  `json:"removed"`
}

func runOutboxReport(ctx context.Context, counter outboxCounter, jsonOutput bool, out io.Writer) error {
	if counter == nil {
		return fmt.Errorf("outbox counter is not configured")
	}
	counts, err := counter.CountOutboxEvents(ctx)
	if err != nil {
		return fmt.Errorf("count outbox events: %w", err)
	}

	if jsonOutput {
		report := outboxReport{Mode: "outbox-report", Counts: make(map[string]int64, len(counts))}
		for status, count := range counts {
			report.Counts[string(status)] = count
		}
		encoded, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("encode outbox report: %w", err)
		}
		fmt.Fprintln(out, string(encoded))
		return nil
	}

	fmt.Fprintf(
		out,
		"Outbox depth: pending=%d leased=%d succeeded=%d dead=%d\n",
		counts[storage.OutboxStatusPending],
		counts[storage.OutboxStatusLeased],
		counts[storage.OutboxStatusSucceeded],
		counts[storage.OutboxStatusDead],
	)
	return nil
}

func runOutboxRequeueDead(ctx context.Context, requeuer outboxRequeuer, limit int, now time.Time, jsonOutput bool, out io.Writer) error {
	if requeuer == nil {
		return fmt.Errorf("outbox requeuer is not configured")
	}
	if limit <= 0 {
		return fmt.Errorf("requeue limit must be > 0")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	requeued, err := requeuer.RequeueDeadOutboxEvents(ctx, limit, now)
	if err != nil {
		return fmt.Errorf("requeue dead outbox events: %w", err)
	}

	if jsonOutput {
		encoded, err := json.Marshal(requeueDeadResult{
			Mode:     "outbox-requeue-dead",
			Limit:    limit,
			Requeued: requeued,
		})
		if err != nil {
			return fmt.Errorf("encode requeue report: %w", err)
		}
		fmt.Fprintln(out, string(encoded))
		return nil
	}

	fmt.Fprintf(out, "Requeued dead outbox events: %d (limit=%d)\n", requeued, limit)
	return nil
}

func runPruneShipmentEvents(ctx context.Context, pruner shipmentPruner, keep int, deliveredBefore time.Time, jsonOutput bool, out io.Writer) error {
	if pruner == nil {
		return fmt.Errorf("shipment pruner is not configured")
	}
	if keep < 0 {
		return fmt.Errorf("keep must be >= 0")
	}
	if deliveredBefore.IsZero() {
		return fmt.Errorf("cutoff is required")
	}

	removed, err := pruner.PruneShipmentEvents(ctx, keep, deliveredBefore)
	if err != nil {
		return fmt.Errorf("prune shipment events: %w", err)
	}

	if jsonOutput {
		encoded, err := json.Marshal(pruneResult{
			Mode:            "prune-shipment-events",
			Keep:            keep,
			DeliveredBefore: deliveredBefore.Format(time.RFC3339),
			Removed:         removed,
		})
		if err != nil {
			return fmt.Errorf("encode prune report: %w", err)
		}
		fmt.Fprintln(out, string(encoded))
		return nil
	}

	fmt.Fprintf(
		out,
		"Pruned shipment events: %d (keep=%d, delivered before %s)\n",
		removed, keep, deliveredBefore.Format(time.RFC3339),
	)
	return nil
}

func openStore(path string) (*sqlite.Store, error) {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}
