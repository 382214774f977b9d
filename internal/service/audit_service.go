package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/booking-service/internal/events"
)

// AuditService records authentication events in the structured log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventUserRegistered, a.handleUserRegistered)
	a.dispatcher.Subscribe(events.EventUserLoggedIn, a.handleSessionEvent)
	a.dispatcher.Subscribe(events.EventSessionRefreshed, a.handleSessionEvent)
	a.dispatcher.Subscribe(events.EventSessionLoggedOut, a.handleLoggedOut)
}

func (a *AuditService) handleUserRegistered(_ context.Context, event events.Event) error {
	a.logger.Info("UserRegistered",
		zap.String("event_id", event.ID),
		zap.Int64("user_id", event.UserID),
		zap.String("username", event.Username))
	return nil
}

func (a *AuditService) handleSessionEvent(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int64("user_id", event.UserID),
		zap.String("username", event.Username),
	}
	if payload, ok := event.Payload.(events.SessionPayload); ok {
		fields = append(fields,
			zap.Time("access_expires_at", payload.AccessExpiresAt),
			zap.Time("refresh_expires_at", payload.RefreshExpiresAt))
	}
	a.logger.Info("SessionIssued", fields...)
	return nil
}

func (a *AuditService) handleLoggedOut(_ context.Context, event events.Event) error {
	a.logger.Info("SessionLoggedOut", zap.String("event_id", event.ID))
	return nil
}
