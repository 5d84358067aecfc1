package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/telemetry"
	"github.com/solarekm/reaper/types"
)

const (
	cardSchema      = "http://adaptivecards.io/schemas/adaptive-card.json"
	cardVersion     = "1.4"
	cardContentType = "application/vnd.microsoft.card.adaptive"
)

// TeamsWebhook posts shutdown cards to Microsoft Teams incoming webhooks.
// Every configured URL gets the card independently so one dead channel
// cannot silence the others.
type TeamsWebhook struct {
	urls   []string
	client *http.Client
	logger *telemetry.Logger
	tracer trace.Tracer
}

// NewTeamsWebhook creates a webhook publisher for the given URLs
func NewTeamsWebhook(urls []string) *TeamsWebhook {
	return &TeamsWebhook{
		urls:   urls,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: telemetry.NewLogger("teams-webhook"),
		tracer: otel.Tracer("teams-webhook"),
	}
}

// Publish renders the event as an Adaptive Card and posts it everywhere
func (t *TeamsWebhook) Publish(ctx context.Context, event types.ShutdownEvent) error {
	return t.PublishMessage(ctx, ToMessage(event))
}

// PublishMessage posts an already-flattened wire message. The relay uses
// this path for events it pulls off the queue.
func (t *TeamsWebhook) PublishMessage(ctx context.Context, msg ShutdownMessage) error {
	ctx, span := t.tracer.Start(ctx, "PublishTeamsCard",
		trace.WithAttributes(
			attribute.String("instance.id", msg.InstanceID),
			attribute.Int("webhook.count", len(t.urls)),
		))
	defer span.End()

	payload, err := json.Marshal(BuildShutdownCard(msg))
	if err != nil {
		return fmt.Errorf("marshal adaptive card: %w", err)
	}

	var delivered int
	for _, url := range t.urls {
		if err := t.post(ctx, url, payload); err != nil {
			t.logger.WithContext(ctx).Error().
				Err(err).
				Str("webhook", redactURL(url)).
				Str("instance_id", msg.InstanceID).
				Msg("teams delivery failed")
			continue
		}
		delivered++
	}

	t.logger.WithContext(ctx).Info().
		Str("instance_id", msg.InstanceID).
		Int("delivered", delivered).
		Int("webhooks", len(t.urls)).
		Msg("teams cards posted")

	return nil
}

func (t *TeamsWebhook) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post card: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

// redactURL trims a webhook URL for logging. The path segment carries
// the secret, the host is enough to identify the endpoint.
func redactURL(url string) string {
	if len(url) > 50 {
		return url[:50] + "..."
	}
	return url
}

// TeamsCard is the envelope Teams expects around an Adaptive Card
type TeamsCard struct {
	Type        string           `json:"type"`
	Attachments []cardAttachment `json:"attachments"`
}

type cardAttachment struct {
	ContentType string       `json:"contentType"`
	Content     adaptiveCard `json:"content"`
}

type adaptiveCard struct {
	Schema  string        `json:"$schema"`
	Type    string        `json:"type"`
	Version string        `json:"version"`
	Body    []cardElement `json:"body"`
}

// cardElement covers the handful of Adaptive Card node types the
// shutdown card uses. Unused fields stay empty and marshal away.
type cardElement struct {
	Type     string        `json:"type"`
	Style    string        `json:"style,omitempty"`
	Items    []cardElement `json:"items,omitempty"`
	Text     string        `json:"text,omitempty"`
	Weight   string        `json:"weight,omitempty"`
	Size     string        `json:"size,omitempty"`
	IsSubtle bool          `json:"isSubtle,omitempty"`
	Spacing  string        `json:"spacing,omitempty"`
	Wrap     bool          `json:"wrap,omitempty"`
	Facts    []cardFact    `json:"facts,omitempty"`
}

type cardFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// BuildShutdownCard renders the red shutdown card for one instance
func BuildShutdownCard(msg ShutdownMessage) TeamsCard {
	facts := []cardFact{
		{Title: "Name:", Value: msg.InstanceName},
		{Title: "Instance ID:", Value: msg.InstanceID},
		{Title: "Idle Time:", Value: fmt.Sprintf("%.2f hours", msg.IdleTimeHours)},
		{Title: "Avg CPU:", Value: withUnit(msg.CPUAvg, "%")},
		{Title: "Avg Network:", Value: withUnit(msg.NetworkAvg, " bytes")},
		{Title: "Disk Type:", Value: msg.DiskType},
	}
	if msg.LaunchedBy != "" {
		facts = append(facts, cardFact{Title: "Launched By:", Value: msg.LaunchedBy})
	}
	facts = append(facts, cardFact{Title: "Timestamp:", Value: msg.Timestamp})

	return TeamsCard{
		Type: "message",
		Attachments: []cardAttachment{{
			ContentType: cardContentType,
			Content: adaptiveCard{
				Schema:  cardSchema,
				Type:    "AdaptiveCard",
				Version: cardVersion,
				Body: []cardElement{
					{
						Type:  "Container",
						Style: "attention",
						Items: []cardElement{
							{Type: "TextBlock", Text: "🔴 EC2 Instance Shutdown", Weight: "Bolder", Size: "Large", Wrap: true},
							{Type: "TextBlock", Text: "Automatic shutdown due to inactivity", IsSubtle: true, Spacing: "None", Wrap: true},
						},
					},
					{Type: "FactSet", Facts: facts},
				},
			},
		}},
	}
}

// withUnit appends a unit unless the value is the unavailable marker
func withUnit(value, unit string) string {
	if value == types.SummaryUnavailable {
		return value
	}
	return value + unit
}
