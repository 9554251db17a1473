package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/lead-manager/internal/domain"
	"github.com/spec-kit/lead-manager/internal/events"
	"github.com/spec-kit/lead-manager/internal/repository"
	apperrors "github.com/spec-kit/lead-manager/pkg/util/errorutil"
)

// LeadService coordinates single-record lead workflows.
type LeadService struct {
	leads        repository.LeadRepository
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	now          func() time.Time
	strictUpdate bool
}

// LeadDependencies bundles collaborators for the lead service.
type LeadDependencies struct {
	LeadRepo   repository.LeadRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
	// StrictUpdate rejects patches that blank name or companyName.
	StrictUpdate bool
}

// LeadInput describes lead creation payload.
type LeadInput struct {
	Name                   string
	CompanyName            string
	Website                string
	Email                  string
	PhoneNumber            string
	Address                string
	Status                 domain.LeadStatus
	Category               string
	AdditionalRequirements string
	ContactedBy            *domain.StaffMember
}

// OptionalStaff distinguishes an absent contactedBy from an explicit null.
type OptionalStaff struct {
	Set   bool
	Value *domain.StaffMember
}

// LeadPatch describes a partial update. Nil fields are left untouched.
type LeadPatch struct {
	Name                   *string
	CompanyName            *string
	Website                *string
	Email                  *string
	PhoneNumber            *string
	Address                *string
	Status                 *domain.LeadStatus
	Category               *string
	AdditionalRequirements *string
	ContactedBy            OptionalStaff
}

// NewLeadService constructs the service.
func NewLeadService(deps LeadDependencies) *LeadService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadService{
		leads:        deps.LeadRepo,
		dispatcher:   deps.Dispatcher,
		logger:       logger,
		now:          clock,
		strictUpdate: deps.StrictUpdate,
	}
}

// CreateLead validates and persists a new lead.
func (s *LeadService) CreateLead(ctx context.Context, input LeadInput) (*domain.Lead, error) {
	name := strings.TrimSpace(input.Name)
	company := strings.TrimSpace(input.CompanyName)
	if name == "" || company == "" {
		return nil, apperrors.NewValidationError("name and company name are required", map[string]any{
			"fields": missingFields(name, company),
		})
	}

	status := input.Status
	if status == "" {
		status = domain.LeadStatusPending
	}
	if err := validateEnums(&status, input.ContactedBy); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	lead := &domain.Lead{
		Name:                   name,
		CompanyName:            company,
		Website:                strings.TrimSpace(input.Website),
		Email:                  strings.TrimSpace(input.Email),
		PhoneNumber:            strings.TrimSpace(input.PhoneNumber),
		Address:                strings.TrimSpace(input.Address),
		Status:                 status,
		Category:               domain.ResolveCategory(input.Category, company, input.AdditionalRequirements),
		AdditionalRequirements: strings.TrimSpace(input.AdditionalRequirements),
		ContactedBy:            input.ContactedBy,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, apperrors.NewStoreWriteError(err)
	}
	s.publishEvent(ctx, events.NewEvent(events.EventLeadCreated, lead.ID, events.LeadCreatedPayload{
		CompanyName: lead.CompanyName,
		Status:      lead.Status,
		Category:    lead.Category,
	}))
	return lead, nil
}

// GetLead fetches a lead by id.
func (s *LeadService) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, id)
	}
	return lead, nil
}

// ListLeads returns every lead in store order.
func (s *LeadService) ListLeads(ctx context.Context) ([]domain.Lead, error) {
	leads, err := s.leads.List(ctx)
	if err != nil {
		return nil, apperrors.NewStoreWriteError(err)
	}
	return leads, nil
}

// UpdateLead merges patch over the stored lead and always refreshes updatedAt.
func (s *LeadService) UpdateLead(ctx context.Context, id string, patch LeadPatch) (*domain.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, id)
	}
	if err := validateEnums(patch.Status, patch.ContactedBy.Value); err != nil {
		return nil, err
	}

	oldStatus := lead.Status
	changed := applyPatch(lead, patch)

	if s.strictUpdate && (strings.TrimSpace(lead.Name) == "" || strings.TrimSpace(lead.CompanyName) == "") {
		return nil, apperrors.NewValidationError("name and company name cannot be blank", map[string]any{
			"fields": missingFields(strings.TrimSpace(lead.Name), strings.TrimSpace(lead.CompanyName)),
		})
	}

	lead.UpdatedAt = s.now().UTC()
	if err := s.leads.Update(ctx, lead); err != nil {
		return nil, mapStoreError(err, id)
	}
	s.publishEvent(ctx, events.NewEvent(events.EventLeadUpdated, lead.ID, events.LeadUpdatedPayload{
		OldStatus: oldStatus,
		NewStatus: lead.Status,
		Fields:    changed,
	}))
	return lead, nil
}

// DeleteLead permanently removes a lead.
func (s *LeadService) DeleteLead(ctx context.Context, id string) error {
	if err := s.leads.Delete(ctx, id); err != nil {
		return mapStoreError(err, id)
	}
	s.publishEvent(ctx, events.NewEvent(events.EventLeadDeleted, id, nil))
	return nil
}

func applyPatch(lead *domain.Lead, patch LeadPatch) []string {
	changed := []string{}
	setString := func(field string, dst *string, src *string) {
		if src == nil {
			return
		}
		*dst = *src
		changed = append(changed, field)
	}
	setString("name", &lead.Name, patch.Name)
	setString("companyName", &lead.CompanyName, patch.CompanyName)
	setString("website", &lead.Website, patch.Website)
	setString("email", &lead.Email, patch.Email)
	setString("phoneNumber", &lead.PhoneNumber, patch.PhoneNumber)
	setString("address", &lead.Address, patch.Address)
	setString("category", &lead.Category, patch.Category)
	setString("additionalRequirements", &lead.AdditionalRequirements, patch.AdditionalRequirements)
	if patch.Status != nil {
		lead.Status = *patch.Status
		changed = append(changed, "status")
	}
	if patch.ContactedBy.Set {
		lead.ContactedBy = patch.ContactedBy.Value
		changed = append(changed, "contactedBy")
	}
	return changed
}

func validateEnums(status *domain.LeadStatus, contactedBy *domain.StaffMember) error {
	if status != nil && !status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{
			"status":  string(*status),
			"allowed": domain.LeadStatuses,
		})
	}
	if contactedBy != nil && !contactedBy.Valid() {
		return apperrors.NewValidationError("invalid contactedBy", map[string]any{
			"contactedBy": string(*contactedBy),
			"allowed":     domain.StaffMembers,
		})
	}
	return nil
}

func missingFields(name, company string) []string {
	fields := []string{}
	if name == "" {
		fields = append(fields, "name")
	}
	if company == "" {
		fields = append(fields, "companyName")
	}
	return fields
}

func mapStoreError(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("lead", map[string]any{"id": id})
	}
	return apperrors.NewStoreWriteError(err)
}

func (s *LeadService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
