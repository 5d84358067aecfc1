package providers

import (
	"context"
	"testing"
	"time"

	"github.com/solarekm/reaper/types"
)

// MockDirectory for testing
type MockDirectory struct {
	instances []types.Instance
}

func (m *MockDirectory) ListRunning(ctx context.Context) ([]types.Instance, error) {
	var running []types.Instance
	for _, inst := range m.instances {
		if inst.IsRunning() {
			running = append(running, inst)
		}
	}
	return running, nil
}

func (m *MockDirectory) Describe(ctx context.Context, instanceID string) (*types.Instance, error) {
	for _, inst := range m.instances {
		if inst.ID == instanceID {
			return &inst, nil
		}
	}
	return nil, ErrInstanceNotFound
}

func TestDirectoryInterface(t *testing.T) {
	var _ Directory = (*MockDirectory)(nil)

	dir := &MockDirectory{
		instances: []types.Instance{
			{ID: "i-running", State: types.StateRunning},
			{ID: "i-stopped", State: types.StateStopped},
		},
	}

	ctx := context.Background()

	running, err := dir.ListRunning(ctx)
	if err != nil {
		t.Fatalf("ListRunning() error = %v", err)
	}
	if len(running) != 1 {
		t.Errorf("ListRunning() returned %d instances, want 1", len(running))
	}

	inst, err := dir.Describe(ctx, "i-running")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if inst.ID != "i-running" {
		t.Errorf("Describe() ID = %v, want i-running", inst.ID)
	}

	_, err = dir.Describe(ctx, "i-missing")
	if err != ErrInstanceNotFound {
		t.Errorf("Describe() error = %v, want ErrInstanceNotFound", err)
	}
}

func TestMetricQueryWindow(t *testing.T) {
	end := time.Now()
	start := end.Add(-3 * time.Hour)

	q := MetricQuery{
		InstanceID: "i-abc123",
		Metric:     "CPUUtilization",
		Start:      start,
		End:        end,
		Period:     300,
	}

	if !q.Start.Before(q.End) {
		t.Error("query start should precede end")
	}
	if q.Period != 300 {
		t.Errorf("Period = %d, want 300", q.Period)
	}
}
