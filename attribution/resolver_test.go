package attribution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/solarekm/reaper/providers/aws"
)

// mockLookup implements LaunchResolver for testing.
type mockLookup struct {
	record     *aws.LaunchRecord
	err        error
	instanceID string
	lookback   time.Duration
}

func (m *mockLookup) LookupLaunch(_ context.Context, instanceID string, lookback time.Duration) (*aws.LaunchRecord, error) {
	m.instanceID = instanceID
	m.lookback = lookback
	return m.record, m.err
}

func TestResolver_LaunchedBy(t *testing.T) {
	lookup := &mockLookup{record: &aws.LaunchRecord{
		EventID:   "evt-1",
		Username:  "deploy-bot",
		EventTime: time.Now().Add(-24 * time.Hour),
	}}
	resolver := NewResolver(lookup)

	got := resolver.LaunchedBy(context.Background(), "i-0abc123")

	assert.Equal(t, "deploy-bot", got)
	assert.Equal(t, "i-0abc123", lookup.instanceID)
	assert.Equal(t, DefaultLookback, lookup.lookback)
}

func TestResolver_NoRecord(t *testing.T) {
	resolver := NewResolver(&mockLookup{})

	got := resolver.LaunchedBy(context.Background(), "i-0abc123")

	assert.Equal(t, "", got)
}

func TestResolver_LookupErrorSwallowed(t *testing.T) {
	resolver := NewResolver(&mockLookup{err: errors.New("access denied")})

	got := resolver.LaunchedBy(context.Background(), "i-0abc123")

	assert.Equal(t, "", got)
}
