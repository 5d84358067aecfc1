// Package policy gates stop decisions through OPA. Operators drop Rego
// files under the configured directory to veto shutdowns the evaluator
// would otherwise carry out. With no policies loaded everything is
// allowed, and evaluation failures fail open so a broken policy cannot
// take the reaper down with it.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/telemetry"
)

// Rego documents gate a stop by setting these two rules
const (
	decisionAllow = "allow"
	decisionDeny  = "deny"
)

// Engine evaluates OPA policies against pending stop decisions
type Engine struct {
	logger  *telemetry.Logger
	tracer  trace.Tracer
	queries map[string]rego.PreparedEvalQuery
}

// NewEngine creates an empty policy engine
func NewEngine() *Engine {
	return &Engine{
		logger:  telemetry.NewLogger("policy-engine"),
		tracer:  otel.Tracer("policy-engine"),
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// PolicyCount returns how many policies are loaded
func (e *Engine) PolicyCount() int {
	return len(e.queries)
}

// LoadPolicy compiles one Rego module. Policies declare `package reaper`
// and may set `decision` ("allow" or "deny") and `reason`. A compile
// error is returned to the caller, which treats it as fatal.
func (e *Engine) LoadPolicy(ctx context.Context, name string, regoCode string) error {
	ctx, span := e.tracer.Start(ctx, "policy_engine.load_policy",
		trace.WithAttributes(attribute.String("policy.name", name)))
	defer span.End()

	query := rego.New(
		rego.Query("data.reaper"),
		rego.Module(name, regoCode),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("compile policy %s: %w", name, err)
	}

	e.queries[name] = prepared

	e.logger.WithContext(ctx).Info().
		Str("policy_name", name).
		Msg("policy loaded")

	return nil
}

// Evaluate runs every loaded policy over the input. Any deny wins; a
// policy that crashes is logged and skipped rather than blocking the
// stop, so the gate degrades to permissive.
func (e *Engine) Evaluate(ctx context.Context, input Input) Verdict {
	ctx, span := e.tracer.Start(ctx, "policy_engine.evaluate",
		trace.WithAttributes(
			attribute.String("resource.id", input.Resource.ID),
			attribute.String("decision.action", input.Decision.Action),
			attribute.Int("policies.loaded", len(e.queries))))
	defer span.End()

	if len(e.queries) == 0 {
		return Verdict{Allowed: true, Reason: "no policies loaded"}
	}

	verdict := Verdict{Allowed: true, Reason: "no policy objected"}

	for name, query := range e.queries {
		results, err := query.Eval(ctx, rego.EvalInput(input))
		if err != nil {
			e.logger.WithContext(ctx).Warn().
				Err(err).
				Str("policy_name", name).
				Str("resource_id", input.Resource.ID).
				Msg("policy evaluation failed, failing open")
			continue
		}

		outcome := parseOutcome(results)
		if outcome.decision == "" {
			continue
		}

		verdict.Policies = append(verdict.Policies, name)

		if outcome.decision == decisionDeny && verdict.Allowed {
			verdict.Allowed = false
			verdict.Reason = outcome.reason
			if verdict.Reason == "" {
				verdict.Reason = fmt.Sprintf("denied by policy %s", name)
			}
		}
	}

	if !verdict.Allowed {
		e.logger.WithContext(ctx).Info().
			Str("resource_id", input.Resource.ID).
			Str("reason", verdict.Reason).
			Strs("policies", verdict.Policies).
			Msg("stop denied by policy")
	}

	return verdict
}

// outcome is what one policy said about the input
type outcome struct {
	decision string
	reason   string
}

// parseOutcome extracts decision and reason from an OPA result set.
// OPA returns untyped JSON here; the shape is decided by the policy at
// runtime, so this stays on maps.
func parseOutcome(results rego.ResultSet) outcome {
	var out outcome

	for _, res := range results {
		for _, value := range res.Bindings {
			bindOutcomeValue("", value, &out)
		}
		for _, expr := range res.Expressions {
			doc, ok := expr.Value.(map[string]interface{})
			if !ok {
				continue
			}
			for key, value := range doc {
				bindOutcomeValue(key, value, &out)
			}
		}
	}

	return out
}

func bindOutcomeValue(key string, value interface{}, out *outcome) {
	switch v := value.(type) {
	case string:
		switch key {
		case "decision":
			out.decision = v
		case "reason":
			out.reason = v
		}
	case map[string]interface{}:
		// One level of nesting for policies that group their rules
		for k, nested := range v {
			if s, ok := nested.(string); ok {
				bindOutcomeValue(k, s, out)
			}
		}
	}
}
