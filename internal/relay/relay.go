// Package relay consumes SNS-wrapped shutdown events from an SQS queue
// and posts Teams cards. Delivery is best effort end to end: every
// message is acknowledged after its webhook attempts, and malformed
// payloads are discarded rather than left to poison the queue.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/notify"
	"github.com/solarekm/reaper/providers/aws"
	"github.com/solarekm/reaper/telemetry"
)

const (
	receiveBatch = 10
	pollWait     = 20 * time.Second
	errorBackoff = 5 * time.Second
)

// Queue is the slice of the SQS consumer the relay needs
type Queue interface {
	Receive(ctx context.Context, max int32, wait time.Duration) ([]aws.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// CardPoster posts one wire message to the configured webhooks
type CardPoster interface {
	PublishMessage(ctx context.Context, msg notify.ShutdownMessage) error
}

// Relay pumps queue messages into the card poster
type Relay struct {
	queue  Queue
	poster CardPoster
	logger *telemetry.Logger
	tracer trace.Tracer
}

// New creates a relay over the given queue and poster
func New(queue Queue, poster CardPoster) *Relay {
	return &Relay{
		queue:  queue,
		poster: poster,
		logger: telemetry.NewLogger("teams-relay"),
		tracer: otel.Tracer("teams-relay"),
	}
}

// snsEnvelope is the wrapper SNS puts around notifications it delivers
// to SQS when raw message delivery is off
type snsEnvelope struct {
	Type    string `json:"Type"`
	Subject string `json:"Subject"`
	Message string `json:"Message"`
}

// Run polls until the context ends
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().Msg("relay started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.WithContext(ctx).Error().Err(err).Msg("queue poll failed")

			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Poll drains one receive batch
func (r *Relay) Poll(ctx context.Context) error {
	messages, err := r.queue.Receive(ctx, receiveBatch, pollWait)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		r.handle(ctx, msg)
	}

	return nil
}

// handle posts one message's card and acknowledges it no matter what
func (r *Relay) handle(ctx context.Context, msg aws.Message) {
	ctx, span := r.tracer.Start(ctx, "RelayMessage",
		trace.WithAttributes(attribute.String("message.id", msg.ID)))
	defer span.End()

	wire, err := decodeWire([]byte(msg.Body))
	switch {
	case err != nil:
		r.logger.WithContext(ctx).Warn().
			Err(err).
			Str("message_id", msg.ID).
			Msg("discarding malformed notification")
	default:
		if err := r.poster.PublishMessage(ctx, *wire); err != nil {
			r.logger.WithContext(ctx).Error().
				Err(err).
				Str("instance_id", wire.InstanceID).
				Msg("card delivery failed")
		}
	}

	if err := r.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		r.logger.WithContext(ctx).Warn().
			Err(err).
			Str("message_id", msg.ID).
			Msg("acknowledging message failed")
	}
}

// decodeWire unwraps the SNS envelope when present and parses the
// shutdown message. Raw message delivery hands us the wire JSON directly.
func decodeWire(body []byte) (*notify.ShutdownMessage, error) {
	payload := body
	var envelope snsEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		payload = []byte(envelope.Message)
	}

	var msg notify.ShutdownMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("parse shutdown message: %w", err)
	}
	if msg.InstanceID == "" {
		return nil, fmt.Errorf("shutdown message missing instance id")
	}

	return &msg, nil
}
