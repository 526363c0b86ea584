package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// StartNotificationWorker subscribes the notification handlers to the
// lifecycle event stream.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	logger.Info("notification handlers registered",
		zap.Int("event_types", len(events.AllTypes)))
}
