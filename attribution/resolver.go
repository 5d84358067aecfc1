// Package attribution resolves who launched an instance so shutdown
// notifications can name an owner. Lookups are best effort: CloudTrail
// keeps ninety days of management events, so misses are normal and
// never block a shutdown.
package attribution

import (
	"context"
	"time"

	"github.com/solarekm/reaper/providers/aws"
	"github.com/solarekm/reaper/telemetry"
)

// DefaultLookback matches the CloudTrail management event retention window
const DefaultLookback = 90 * 24 * time.Hour

// LaunchResolver finds the creation event for an instance
type LaunchResolver interface {
	LookupLaunch(ctx context.Context, instanceID string, lookback time.Duration) (*aws.LaunchRecord, error)
}

// Resolver turns CloudTrail launch records into a display name
type Resolver struct {
	lookup   LaunchResolver
	lookback time.Duration
	logger   *telemetry.Logger
}

// NewResolver wraps a launch lookup with the default lookback window
func NewResolver(lookup LaunchResolver) *Resolver {
	return &Resolver{
		lookup:   lookup,
		lookback: DefaultLookback,
		logger:   telemetry.NewLogger("attribution"),
	}
}

// LaunchedBy names who started the instance, or empty when unknown.
// Lookup failures are logged and swallowed.
func (r *Resolver) LaunchedBy(ctx context.Context, instanceID string) string {
	record, err := r.lookup.LookupLaunch(ctx, instanceID, r.lookback)
	if err != nil {
		r.logger.WithContext(ctx).Warn().
			Err(err).
			Str("instance_id", instanceID).
			Msg("launch attribution failed")
		return ""
	}
	if record == nil {
		return ""
	}
	return record.Username
}
