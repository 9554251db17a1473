package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/lead-manager/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLeadCreated   EventType = "lead.created"
	EventLeadUpdated   EventType = "lead.updated"
	EventLeadDeleted   EventType = "lead.deleted"
	EventLeadsImported EventType = "leads.imported"
)

// AllEventTypes lists every event the services publish.
var AllEventTypes = []EventType{EventLeadCreated, EventLeadUpdated, EventLeadDeleted, EventLeadsImported}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	LeadID    string      `json:"lead_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, leadID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		LeadID:    leadID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LeadCreatedPayload payload.
type LeadCreatedPayload struct {
	CompanyName string            `json:"company_name"`
	Status      domain.LeadStatus `json:"status"`
	Category    string            `json:"category"`
}

// LeadUpdatedPayload payload.
type LeadUpdatedPayload struct {
	OldStatus domain.LeadStatus `json:"old_status"`
	NewStatus domain.LeadStatus `json:"new_status"`
	Fields    []string          `json:"fields"`
}

// LeadsImportedPayload payload.
type LeadsImportedPayload struct {
	Inserted int `json:"inserted"`
	Rejected int `json:"rejected"`
}
