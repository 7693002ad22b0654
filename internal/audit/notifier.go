package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/suufi/mit-lobby7-verification/internal/domain"
	"github.com/suufi/mit-lobby7-verification/internal/pkg/id"
)

// EventStore persists audit events.
type EventStore interface {
	Append(ctx context.Context, e *Event) error
}

// ChannelSink posts a plain-text line to a channel.
type ChannelSink interface {
	SendChannelMessage(ctx context.Context, channelID, content string) error
}

// SettingsSource resolves the currently configured audit channel.
type SettingsSource interface {
	Get(ctx context.Context) (*domain.GuildSettings, error)
}

// AlertPublisher fans severe events out to an ops topic. Optional.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, subject, message string) error
}

// Notifier records every state transition: it appends the event to the store,
// posts the marker-prefixed line to the configured audit channel, and pushes
// blocked/failure events to the alert publisher when one is wired. Emission
// never fails the calling flow; problems are logged and dropped.
type Notifier struct {
	store    EventStore
	sink     ChannelSink
	settings SettingsSource
	alerts   AlertPublisher
}

func NewNotifier(store EventStore, sink ChannelSink, settings SettingsSource, alerts AlertPublisher) *Notifier {
	return &Notifier{store: store, sink: sink, settings: settings, alerts: alerts}
}

// Emit records a status-marked transition.
func (n *Notifier) Emit(ctx context.Context, status Status, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	e := &Event{
		EventID:   id.New(),
		Status:    status,
		Message:   msg,
		CreatedAt: time.Now().UTC(),
	}
	if n.store != nil {
		if err := n.store.Append(ctx, e); err != nil {
			slog.Warn("failed to persist audit event", "status", status, "err", err)
		}
	}

	line := msg
	if marker := status.Marker(); marker != "" {
		line = marker + " " + msg
	}
	n.post(ctx, line)

	if n.alerts != nil && (status == StatusBlocked || status == StatusFailure) {
		if err := n.alerts.PublishAlert(ctx, "lobby7-verification: "+string(status), msg); err != nil {
			slog.Warn("failed to publish ops alert", "err", err)
		}
	}
}

// Info posts an unmarked line. Used for reconciliation updates, which are
// deliberately distinct from the standard assignment audit log.
func (n *Notifier) Info(ctx context.Context, format string, args ...interface{}) {
	n.Emit(ctx, StatusInfo, format, args...)
}

func (n *Notifier) post(ctx context.Context, line string) {
	if n.sink == nil || n.settings == nil {
		return
	}
	s, err := n.settings.Get(ctx)
	if err != nil {
		slog.Warn("failed to load settings for audit channel", "err", err)
		return
	}
	if s.AuditChannelID == "" {
		return
	}
	if err := n.sink.SendChannelMessage(ctx, s.AuditChannelID, line); err != nil {
		slog.Warn("failed to post audit line", "channel", s.AuditChannelID, "err", err)
	}
}
