package types

import (
	"testing"
)

func TestDecision_Validate(t *testing.T) {
	tests := []struct {
		name     string
		decision Decision
		wantErr  bool
	}{
		{
			name: "valid stop decision",
			decision: Decision{
				Action:     ActionStop,
				ResourceID: "i-123456",
				Reason:     "idle 4.2h exceeds 3h limit",
			},
			wantErr: false,
		},
		{
			name: "valid keep decision",
			decision: Decision{
				Action:     ActionKeep,
				ResourceID: "i-123456",
				Reason:     "idle 1.1h below 3h limit",
			},
			wantErr: false,
		},
		{
			name: "invalid - empty action",
			decision: Decision{
				ResourceID: "i-123456",
				Reason:     "some reason",
			},
			wantErr: true,
		},
		{
			name: "invalid - empty resource ID",
			decision: Decision{
				Action: ActionStop,
				Reason: "some reason",
			},
			wantErr: true,
		},
		{
			name: "invalid - empty reason",
			decision: Decision{
				Action:     ActionStop,
				ResourceID: "i-123456",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decision.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecision_IsDisruptive(t *testing.T) {
	tests := []struct {
		action string
		want   bool
	}{
		{ActionStop, true},
		{ActionKeep, false},
		{ActionSkip, false},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			d := Decision{Action: tt.action}
			if got := d.IsDisruptive(); got != tt.want {
				t.Errorf("IsDisruptive() = %v, want %v", got, tt.want)
			}
		})
	}
}
