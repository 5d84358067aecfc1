package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/solarekm/reaper/types"
)

const protectProdPolicy = `package reaper

import rego.v1

decision := "deny" if {
	input.resource.tags.environment == "prod"
}

reason := "production instances are protected" if {
	input.resource.tags.environment == "prod"
}`

const minimumIdlePolicy = `package reaper

import rego.v1

decision := "deny" if {
	input.decision.action == "stop"
	input.decision.idle_hours < 2
}

reason := "idle for less than two hours" if {
	decision == "deny"
}`

const allowInstancesPolicy = `package reaper

import rego.v1

decision := "allow" if {
	startswith(input.resource.id, "i-")
}

reason := "instances may be stopped" if {
	decision == "allow"
}`

func stopInput(env string, idleHours float64) Input {
	return Input{
		Resource: types.Instance{
			ID:     "i-0abc123",
			Region: "eu-central-1",
			State:  types.StateRunning,
			Tags: types.Tags{
				Name:         "batch-worker",
				Environment:  env,
				AutoShutdown: true,
			},
		},
		Decision: types.Decision{
			Action:     types.ActionStop,
			ResourceID: "i-0abc123",
			Reason:     "idle past limit",
			IdleHours:  idleHours,
			CreatedAt:  time.Now(),
		},
	}
}

func TestEngine_NoPoliciesAllowsEverything(t *testing.T) {
	engine := NewEngine()

	verdict := engine.Evaluate(context.Background(), stopInput("prod", 8))

	if !verdict.Allowed {
		t.Errorf("empty engine should allow, got %+v", verdict)
	}
	if verdict.Reason != "no policies loaded" {
		t.Errorf("Reason = %q", verdict.Reason)
	}
}

func TestEngine_DenyingPolicy(t *testing.T) {
	engine := NewEngine()
	if err := engine.LoadPolicy(context.Background(), "protect-prod", protectProdPolicy); err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}

	verdict := engine.Evaluate(context.Background(), stopInput("prod", 8))

	if verdict.Allowed {
		t.Fatal("prod instance should be denied")
	}
	if verdict.Reason != "production instances are protected" {
		t.Errorf("Reason = %q", verdict.Reason)
	}
	if len(verdict.Policies) != 1 || verdict.Policies[0] != "protect-prod" {
		t.Errorf("Policies = %v", verdict.Policies)
	}
}

func TestEngine_PolicyNotMatching(t *testing.T) {
	engine := NewEngine()
	if err := engine.LoadPolicy(context.Background(), "protect-prod", protectProdPolicy); err != nil {
		t.Fatal(err)
	}

	verdict := engine.Evaluate(context.Background(), stopInput("dev", 8))

	if !verdict.Allowed {
		t.Errorf("dev instance should pass, got %+v", verdict)
	}
	if len(verdict.Policies) != 0 {
		t.Errorf("No policy should have matched, got %v", verdict.Policies)
	}
}

func TestEngine_DenyWinsOverAllow(t *testing.T) {
	engine := NewEngine()
	ctx := context.Background()
	if err := engine.LoadPolicy(ctx, "allow-instances", allowInstancesPolicy); err != nil {
		t.Fatal(err)
	}
	if err := engine.LoadPolicy(ctx, "protect-prod", protectProdPolicy); err != nil {
		t.Fatal(err)
	}

	verdict := engine.Evaluate(ctx, stopInput("prod", 8))

	if verdict.Allowed {
		t.Fatal("deny must win over allow")
	}
	if len(verdict.Policies) != 2 {
		t.Errorf("Both policies should have matched, got %v", verdict.Policies)
	}
}

func TestEngine_MinimumIdleGuard(t *testing.T) {
	tests := []struct {
		name      string
		idleHours float64
		allowed   bool
	}{
		{"barely idle", 1.5, false},
		{"well past limit", 5.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine()
			if err := engine.LoadPolicy(context.Background(), "minimum-idle", minimumIdlePolicy); err != nil {
				t.Fatal(err)
			}

			verdict := engine.Evaluate(context.Background(), stopInput("dev", tt.idleHours))

			if verdict.Allowed != tt.allowed {
				t.Errorf("allowed = %v, want %v (verdict %+v)", verdict.Allowed, tt.allowed, verdict)
			}
		})
	}
}

func TestEngine_CompileErrorIsFatal(t *testing.T) {
	engine := NewEngine()

	err := engine.LoadPolicy(context.Background(), "broken", "this is not rego")
	if err == nil {
		t.Fatal("expected compile error")
	}
	if engine.PolicyCount() != 0 {
		t.Errorf("broken policy must not be registered")
	}
}

func TestEngine_LoadDir(t *testing.T) {
	dir := t.TempDir()
	writePolicy := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writePolicy("protect-prod.rego", protectProdPolicy)
	writePolicy("minimum-idle.rego", minimumIdlePolicy)
	writePolicy("README.md", "not a policy")

	engine := NewEngine()
	if err := engine.LoadDir(context.Background(), dir); err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}

	if engine.PolicyCount() != 2 {
		t.Errorf("PolicyCount = %d, want 2", engine.PolicyCount())
	}

	verdict := engine.Evaluate(context.Background(), stopInput("prod", 8))
	if verdict.Allowed {
		t.Error("loaded policies should gate evaluation")
	}
}

func TestEngine_LoadDir_Missing(t *testing.T) {
	engine := NewEngine()

	if err := engine.LoadDir(context.Background(), "/does/not/exist"); err == nil {
		t.Fatal("expected error for missing policy directory")
	}
}

func TestEngine_LoadDir_BrokenPolicyAborts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.rego"), []byte("package reaper\n\ndecision :="), 0o644); err != nil {
		t.Fatal(err)
	}

	engine := NewEngine()
	if err := engine.LoadDir(context.Background(), dir); err == nil {
		t.Fatal("expected LoadDir to fail on uncompilable policy")
	}
}
