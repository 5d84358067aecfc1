// Package daemon runs the reaper as a long-lived process: periodic sweeps,
// SQS state-change intake, and an HTTP surface for health and metrics.
// Each concern is an oklog/run actor; the first one to exit stops the rest.
package daemon

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"

	"github.com/solarekm/reaper/orchestrator"
	"github.com/solarekm/reaper/providers/aws"
	"github.com/solarekm/reaper/telemetry"
	"github.com/solarekm/reaper/wal"
)

const (
	receiveBatch       = 10
	pollWait           = 20 * time.Second
	errorBackoff       = 5 * time.Second
	walCleanupInterval = 6 * time.Hour
	shutdownTimeout    = 5 * time.Second
)

// Pipeline is the part of the orchestrator the daemon drives.
type Pipeline interface {
	Sweep(ctx context.Context) (*orchestrator.SweepSummary, error)
	HandleEvent(ctx context.Context, payload []byte) (*orchestrator.SweepSummary, error)
}

// Queue receives EC2 state-change events.
type Queue interface {
	Receive(ctx context.Context, max int32, wait time.Duration) ([]aws.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Config holds daemon settings.
type Config struct {
	SweepInterval time.Duration
	ListenAddr    string
	WALDir        string
	WALConfig     wal.Config
}

// Daemon composes the reaper's long-running actors.
type Daemon struct {
	pipeline  Pipeline
	queue     Queue
	journal   *wal.WAL
	config    Config
	logger    *telemetry.Logger
	metrics   *Metrics
	startTime time.Time
	ready     atomic.Bool
}

// New creates a daemon around an orchestrator pipeline.
func New(pipeline Pipeline, cfg Config) (*Daemon, error) {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9090"
	}

	metrics, err := NewMetrics()
	if err != nil {
		return nil, err
	}

	return &Daemon{
		pipeline:  pipeline,
		config:    cfg,
		logger:    telemetry.NewLogger("daemon"),
		metrics:   metrics,
		startTime: time.Now(),
	}, nil
}

// WithQueue enables SQS state-change intake.
func (d *Daemon) WithQueue(q Queue) *Daemon {
	d.queue = q
	return d
}

// WithWAL wires the audit WAL into health reporting and periodic cleanup.
func (d *Daemon) WithWAL(w *wal.WAL) *Daemon {
	d.journal = w
	return d
}

// Run blocks until a signal arrives, the context is canceled, or an actor
// fails. A signal or context cancellation is a clean shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var group run.Group

	group.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	group.Add(func() error {
		return d.sweepLoop(ctx)
	}, func(error) {
		cancel()
	})

	if d.queue != nil {
		group.Add(func() error {
			return d.eventLoop(ctx)
		}, func(error) {
			cancel()
		})
	}

	if d.config.WALDir != "" {
		group.Add(func() error {
			return d.maintenanceLoop(ctx)
		}, func(error) {
			cancel()
		})
	}

	server := &http.Server{
		Addr:              d.config.ListenAddr,
		Handler:           d.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	group.Add(func() error {
		d.logger.Info().Str("addr", d.config.ListenAddr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
		cancel()
	})

	d.logger.Info().
		Dur("sweep_interval", d.config.SweepInterval).
		Bool("events_enabled", d.queue != nil).
		Msg("daemon starting")

	err := group.Run()

	var sig run.SignalError
	if errors.As(err, &sig) {
		d.logger.Info().Str("signal", sig.Signal.String()).Msg("daemon stopped on signal")
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// sweepLoop runs one sweep immediately, then one per interval. The first
// completed sweep flips the readiness probe.
func (d *Daemon) sweepLoop(ctx context.Context) error {
	d.sweep(ctx)
	d.ready.Store(true)

	ticker := time.NewTicker(d.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.sweep(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Daemon) sweep(ctx context.Context) {
	summary, err := d.pipeline.Sweep(ctx)
	if err != nil {
		d.metrics.RecordSweep(ctx, "error")
		d.logger.WithContext(ctx).Error().Err(err).Msg("scheduled sweep failed")
		return
	}

	d.metrics.RecordSweep(ctx, "ok")
	d.logger.WithContext(ctx).Info().
		Int("scanned", summary.Scanned).
		Int("stopped", summary.Stopped).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("scheduled sweep complete")
}

// eventLoop long-polls the state-change queue. Events are acknowledged even
// when handling fails: the periodic sweep is the ground truth, queue intake
// only cuts reaction latency.
func (d *Daemon) eventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := d.queue.Receive(ctx, receiveBatch, pollWait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.metrics.RecordQueueOperation(ctx, "receive", "error")
			d.logger.WithContext(ctx).Error().Err(err).Msg("event receive failed")

			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		d.metrics.RecordQueueOperation(ctx, "receive", "ok")
		for _, msg := range messages {
			d.handleEvent(ctx, msg)
		}
	}
}

func (d *Daemon) handleEvent(ctx context.Context, msg aws.Message) {
	if _, err := d.pipeline.HandleEvent(ctx, []byte(msg.Body)); err != nil {
		d.metrics.RecordEvent(ctx, "failed")
		d.logger.WithContext(ctx).Error().
			Err(err).
			Str("message_id", msg.ID).
			Msg("state-change event failed")
	} else {
		d.metrics.RecordEvent(ctx, "handled")
	}

	if err := d.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		d.metrics.RecordQueueOperation(ctx, "delete", "error")
		d.logger.WithContext(ctx).Warn().
			Err(err).
			Str("message_id", msg.ID).
			Msg("acknowledging event failed")
		return
	}
	d.metrics.RecordQueueOperation(ctx, "delete", "ok")
}

// maintenanceLoop prunes WAL segments past retention.
func (d *Daemon) maintenanceLoop(ctx context.Context) error {
	d.cleanupWAL(ctx)

	ticker := time.NewTicker(walCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.cleanupWAL(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Daemon) cleanupWAL(ctx context.Context) {
	stats, err := wal.CleanupWithStats(d.config.WALDir, d.config.WALConfig)
	if err != nil {
		d.metrics.RecordWALCleanup(ctx, "error")
		d.logger.WithContext(ctx).Warn().Err(err).Msg("wal cleanup failed")
		return
	}

	d.metrics.RecordWALCleanup(ctx, "ok")
	if stats.FilesRemoved > 0 {
		d.logger.WithContext(ctx).Info().
			Int("files_removed", stats.FilesRemoved).
			Int64("bytes_freed", stats.BytesFreed).
			Msg("wal segments pruned")
	}
}
