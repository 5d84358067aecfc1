// Package tracker persists when an instance went idle. The watermark is
// the only state carried between invocations, so every transition has to
// survive a store hiccup without crashing the sweep.
package tracker

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/providers"
	"github.com/solarekm/reaper/telemetry"
)

// Tracker latches idle watermarks in a store
type Tracker struct {
	store  providers.WatermarkStore
	logger *telemetry.Logger
	tracer trace.Tracer
}

// New creates a tracker over the given watermark store
func New(store providers.WatermarkStore) *Tracker {
	return &Tracker{
		store:  store,
		logger: telemetry.NewLogger("inactivity-tracker"),
		tracer: otel.Tracer("inactivity-tracker"),
	}
}

// Reconcile applies one evaluation verdict to the stored watermark and
// returns when idleness began. ok is false when the instance is active
// or no usable watermark could be established.
//
// Transitions:
//   - idle with a valid watermark: keep it. The start timestamp is never
//     overwritten while an instance stays idle.
//   - idle without one: latch the current wall clock.
//   - active with any record: clear it.
//   - active without one: nothing to do.
//
// Store failures are logged and treated as "no record" for this
// invocation; worst case the idle accrual restarts one cycle late.
// The advisory last-check mark is refreshed on every reconcile.
func (t *Tracker) Reconcile(ctx context.Context, instanceID string, idle bool) (time.Time, bool) {
	ctx, span := t.tracer.Start(ctx, "ReconcileWatermark",
		trace.WithAttributes(
			attribute.String("instance.id", instanceID),
			attribute.Bool("verdict.idle", idle),
		))
	defer span.End()
	defer t.touch(ctx, instanceID)

	mark, present, err := t.store.Get(ctx, instanceID)
	if err != nil {
		t.logger.WithContext(ctx).Warn().
			Err(err).
			Str("instance_id", instanceID).
			Msg("watermark read failed, treating as absent")
		present = false
	}

	var startedAt time.Time
	valid := false
	if present {
		parsed, perr := parseMark(mark)
		if perr != nil {
			t.logger.WithContext(ctx).Warn().
				Err(perr).
				Str("instance_id", instanceID).
				Msg("discarding unreadable watermark")
		} else {
			startedAt = parsed
			valid = true
		}
	}

	switch {
	case idle && valid:
		return startedAt, true

	case idle:
		now := time.Now()
		if err := t.store.Set(ctx, instanceID, encodeMark(now)); err != nil {
			t.logger.WithContext(ctx).Warn().
				Err(err).
				Str("instance_id", instanceID).
				Msg("watermark write failed")
			return time.Time{}, false
		}
		t.logger.WithContext(ctx).Info().
			Str("instance_id", instanceID).
			Time("started_at", now).
			Msg("idle watermark latched")
		return now, true

	case present:
		if err := t.store.Clear(ctx, instanceID); err != nil {
			t.logger.WithContext(ctx).Warn().
				Err(err).
				Str("instance_id", instanceID).
				Msg("watermark clear failed")
		} else {
			t.logger.WithContext(ctx).Info().
				Str("instance_id", instanceID).
				Msg("watermark cleared on activity")
		}
		return time.Time{}, false

	default:
		return time.Time{}, false
	}
}

// Forget drops the watermark after a stop so a stale record cannot
// instantly re-stop the instance on its next boot. Best effort.
func (t *Tracker) Forget(ctx context.Context, instanceID string) {
	ctx, span := t.tracer.Start(ctx, "ForgetWatermark",
		trace.WithAttributes(attribute.String("instance.id", instanceID)))
	defer span.End()

	if err := t.store.Clear(ctx, instanceID); err != nil {
		t.logger.WithContext(ctx).Warn().
			Err(err).
			Str("instance_id", instanceID).
			Msg("watermark clear after stop failed")
		return
	}
	t.logger.WithContext(ctx).Info().
		Str("instance_id", instanceID).
		Msg("watermark cleared after stop")
}

// touch refreshes the advisory last-check mark; failures never matter
func (t *Tracker) touch(ctx context.Context, instanceID string) {
	if err := t.store.Touch(ctx, instanceID, encodeMark(time.Now())); err != nil {
		t.logger.WithContext(ctx).Warn().
			Err(err).
			Str("instance_id", instanceID).
			Msg("last-check mark refresh failed")
	}
}

// encodeMark formats a watermark as unix seconds with fractional precision
func encodeMark(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}

// parseMark reads a unix-seconds watermark back into a time
func parseMark(mark string) (time.Time, error) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(mark), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed watermark %q: %w", mark, err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return time.Time{}, fmt.Errorf("malformed watermark %q", mark)
	}

	sec := int64(seconds)
	nsec := int64((seconds - float64(sec)) * 1e9)
	return time.Unix(sec, nsec), nil
}
