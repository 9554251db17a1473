package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/lead-manager/internal/events"
)

// ActivityService writes a structured activity log entry for each lead event.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventLeadCreated, a.handleLeadCreated)
	a.dispatcher.Subscribe(events.EventLeadUpdated, a.handleLeadUpdated)
	a.dispatcher.Subscribe(events.EventLeadDeleted, a.handleLeadDeleted)
	a.dispatcher.Subscribe(events.EventLeadsImported, a.handleLeadsImported)
}

func (a *ActivityService) handleLeadCreated(_ context.Context, event events.Event) error {
	a.logger.Info("LeadCreated", zap.String("lead_id", event.LeadID), zap.Any("payload", event.Payload))
	return nil
}

func (a *ActivityService) handleLeadUpdated(_ context.Context, event events.Event) error {
	fields := []zap.Field{zap.String("lead_id", event.LeadID)}
	if payload, ok := event.Payload.(events.LeadUpdatedPayload); ok {
		fields = append(fields, zap.Strings("fields", payload.Fields))
		if payload.OldStatus != payload.NewStatus {
			fields = append(fields,
				zap.String("old_status", string(payload.OldStatus)),
				zap.String("new_status", string(payload.NewStatus)))
		}
	}
	a.logger.Info("LeadUpdated", fields...)
	return nil
}

func (a *ActivityService) handleLeadDeleted(_ context.Context, event events.Event) error {
	a.logger.Info("LeadDeleted", zap.String("lead_id", event.LeadID))
	return nil
}

func (a *ActivityService) handleLeadsImported(_ context.Context, event events.Event) error {
	a.logger.Info("LeadsImported", zap.Any("payload", event.Payload))
	return nil
}
