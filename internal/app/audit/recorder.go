package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const notifyTimeout = 5 * time.Second

// Recorder appends audit events and forwards them to the operator's chat
// recipient when one is configured.
type Recorder struct {
	Events     ports.AuditRepository
	Recipients ports.RecipientRepository
	Notifier   ports.Notifier
	Logger     zerolog.Logger
	Now        func() time.Time
}

func (r Recorder) Record(ctx context.Context, event kami.AuditEvent) error {
	nowFn := r.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = nowFn().UTC()
	}
	if event.Status == "" {
		event.Status = kami.StatusInfo
	}

	logEvent(r.Logger, event)
	if err := r.Events.Append(ctx, event); err != nil {
		r.Logger.Error().Err(err).Str("action", event.Action).Str("agent_id", event.AgentID).Msg("append audit event")
		return fmt.Errorf("append audit event: %w", err)
	}
	r.notify(ctx, event)
	return nil
}

func (r Recorder) notify(ctx context.Context, event kami.AuditEvent) {
	if r.Notifier == nil || r.Recipients == nil {
		return
	}
	recipient, err := r.Recipients.RecipientFor(ctx, event.OperatorIdentity)
	if err != nil {
		r.Logger.Warn().Err(err).Str("operator", event.OperatorIdentity).Msg("lookup notification recipient")
		return
	}
	if recipient == "" {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := r.Notifier.Notify(notifyCtx, recipient, FormatMessage(event)); err != nil {
		r.Logger.Warn().Err(err).Str("operator", event.OperatorIdentity).Str("action", event.Action).Msg("send notification")
	}
}

var statusIcons = map[kami.AuditStatus]string{
	kami.StatusInfo:    "ℹ️",
	kami.StatusSuccess: "✅",
	kami.StatusWarning: "⚠️",
	kami.StatusError:   "❌",
}

func FormatMessage(event kami.AuditEvent) string {
	var b strings.Builder
	if icon, ok := statusIcons[event.Status]; ok {
		b.WriteString(icon)
		b.WriteString(" ")
	}
	b.WriteString(event.Action)
	if event.AgentID != "" {
		b.WriteString(" [kami ")
		b.WriteString(event.AgentID)
		b.WriteString("]")
	}
	if event.Message != "" {
		b.WriteString(": ")
		b.WriteString(event.Message)
	}
	return b.String()
}

func logEvent(logger zerolog.Logger, event kami.AuditEvent) {
	var e *zerolog.Event
	switch event.Status {
	case kami.StatusError:
		e = logger.Error()
	case kami.StatusWarning:
		e = logger.Warn()
	default:
		e = logger.Info()
	}
	e.Str("action", event.Action).
		Str("operator", event.OperatorIdentity).
		Str("agent_id", event.AgentID).
		Str("status", string(event.Status)).
		Msg(event.Message)
}
