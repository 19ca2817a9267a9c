package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-push-gateway/pkg/eventlog"
	"github.com/tinywideclouds/go-push-gateway/pkg/push"
)

// Dispatcher is the routing surface the processor needs from the push
// service.
type Dispatcher interface {
	MakeRequest(pType push.PushType, info *push.PushInfo) (push.Request, error)
	SendPush(req push.Request) error
}

// DedupGuard suppresses repeat wake-ups for the same call and device.
type DedupGuard interface {
	FirstSeen(ctx context.Context, callID, token string) bool
}

// AuditWriter records one event per delivery attempt.
type AuditWriter interface {
	Write(ev eventlog.Event)
}

// NewProcessor creates the dispatch logic applied to each consumed
// envelope: dedup guard, backend resolution, submission, audit trail.
//
// Error policy: resolution failures and missing backends are permanent
// for this envelope, so they are logged, audited and dropped. A full
// send queue is transient; the error is returned so the message is
// redelivered once the backend drains.
func NewProcessor(
	dispatcher Dispatcher,
	dedup DedupGuard,
	audit AuditWriter,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[push.Envelope] {

	return func(ctx context.Context, original messagepipeline.Message, envelope *push.Envelope) error {
		dest, _ := envelope.Info.Destination(envelope.PushType)
		procLogger := logger.With(
			"push_type", envelope.PushType,
			"app_id", dest.Param,
			"call_id", envelope.Info.CallID,
			"pubsub_msg_id", original.ID,
		)

		if dedup != nil && envelope.Info.CallID != "" {
			if !dedup.FirstSeen(ctx, envelope.Info.CallID, dest.PushID) {
				procLogger.Info("Duplicate wake-up suppressed")
				return nil
			}
		}

		req, err := dispatcher.MakeRequest(envelope.PushType, &envelope.Info)
		if err != nil {
			procLogger.Error("Could not resolve push backend", "err", err)
			writeAudit(audit, envelope, 501, fmt.Sprintf("resolution failed: %v", err))
			return nil
		}

		if err := dispatcher.SendPush(req); err != nil {
			if errors.Is(err, push.ErrQueueFull) {
				procLogger.Warn("Push queue full, returning message for redelivery")
				return err
			}
			procLogger.Error("Push submission failed", "err", err)
			writeAudit(audit, envelope, 503, fmt.Sprintf("submission failed: %v", err))
			return nil
		}

		procLogger.Info("Push submitted", "provider", dest.Provider)
		writeAudit(audit, envelope, 200, fmt.Sprintf("pn-type=%s provider=%s app-id=%s",
			envelope.PushType, dest.Provider, dest.Param))
		return nil
	}
}

func writeAudit(audit AuditWriter, envelope *push.Envelope, status int, text string) {
	if audit == nil {
		return
	}
	ev := eventlog.NewPushEvent(envelope.Info.To, status, text)
	audit.Write(ev)
}
