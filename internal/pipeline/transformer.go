// Package pipeline contains the core message processing components for the service.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-push-gateway/pkg/push"
)

// PushEnvelopeTransformer is a dataflow Transformer that unmarshals and
// validates a raw message payload into a routable push.Envelope.
func PushEnvelopeTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*push.Envelope, bool, error) {
	var envelope push.Envelope

	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		// Malformed payloads are skipped so the StreamingService can
		// handle the Nack/DLQ logic.
		return nil, true, fmt.Errorf("failed to unmarshal push envelope from message %s: %w", msg.ID, err)
	}
	if err := envelope.Validate(); err != nil {
		return nil, true, fmt.Errorf("unroutable push envelope in message %s: %w", msg.ID, err)
	}

	return &envelope, false, nil
}
