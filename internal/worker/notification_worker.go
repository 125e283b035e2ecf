package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// auditedEvents are written to the audit log stream.
var auditedEvents = []events.EventType{
	events.EventTicketCreated,
	events.EventTicketUpdated,
	events.EventTicketStatusChanged,
	events.EventTicketsReordered,
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartAuditLogger writes one structured line per ticket event. Nothing is
// persisted.
func StartAuditLogger(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil || logger == nil {
		return
	}
	audit := logger.Named("audit")
	for _, eventType := range auditedEvents {
		dispatcher.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
			audit.Info(string(event.Type),
				zap.String("event_id", event.ID),
				zap.String("ticket_id", event.TicketID),
				zap.Time("at", event.Timestamp),
				zap.Any("payload", event.Payload))
			return nil
		})
	}
}
