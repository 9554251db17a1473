package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-manager/internal/api/dto"
	"github.com/spec-kit/lead-manager/internal/ingest"
	"github.com/spec-kit/lead-manager/internal/service"
	apperrors "github.com/spec-kit/lead-manager/pkg/util/errorutil"
)

// LeadsHandler serves the lead CRUD and upload endpoints.
type LeadsHandler struct {
	service  *service.LeadService
	pipeline *ingest.Pipeline
	staging  *ingest.Staging
	maxBytes int64
	logger   *zap.Logger
}

// LeadsHandlerDependencies bundles collaborators for the handler.
type LeadsHandlerDependencies struct {
	Service        *service.LeadService
	Pipeline       *ingest.Pipeline
	Staging        *ingest.Staging
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// NewLeadsHandler constructs handler.
func NewLeadsHandler(deps LeadsHandlerDependencies) *LeadsHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadsHandler{
		service:  deps.Service,
		pipeline: deps.Pipeline,
		staging:  deps.Staging,
		maxBytes: deps.MaxUploadBytes,
		logger:   logger,
	}
}

// List GET /leads.
func (h *LeadsHandler) List(c *fiber.Ctx) error {
	leads, err := h.service.ListLeads(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope{Success: true, Data: leads})
}

// Get GET /leads/:id.
func (h *LeadsHandler) Get(c *fiber.Ctx) error {
	lead, err := h.service.GetLead(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope{Success: true, Data: lead})
}

// Create POST /leads.
func (h *LeadsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateLeadRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	lead, err := h.service.CreateLead(c.UserContext(), service.LeadInput{
		Name:                   req.Name,
		CompanyName:            req.CompanyName,
		Website:                req.Website,
		Email:                  req.Email,
		PhoneNumber:            req.PhoneNumber,
		Address:                req.Address,
		Status:                 req.Status,
		Category:               req.Category,
		AdditionalRequirements: req.AdditionalRequirements,
		ContactedBy:            req.ContactedBy,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.Envelope{Success: true, Data: lead})
}

// Update PUT /leads/:id.
func (h *LeadsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateLeadRequest
	// An empty body is an empty patch.
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	lead, err := h.service.UpdateLead(c.UserContext(), c.Params("id"), service.LeadPatch{
		Name:                   req.Name,
		CompanyName:            req.CompanyName,
		Website:                req.Website,
		Email:                  req.Email,
		PhoneNumber:            req.PhoneNumber,
		Address:                req.Address,
		Status:                 req.Status,
		Category:               req.Category,
		AdditionalRequirements: req.AdditionalRequirements,
		ContactedBy:            service.OptionalStaff{Set: req.ContactedBy.Set, Value: req.ContactedBy.Value},
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope{Success: true, Data: lead})
}

// Delete DELETE /leads/:id.
func (h *LeadsHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.DeleteLead(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.Envelope{Success: true, Message: "Lead deleted successfully"})
}

// Upload POST /leads/upload.
func (h *LeadsHandler) Upload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("No file uploaded", nil)
	}
	if !ingest.AcceptsUpload(header.Header.Get(fiber.HeaderContentType), header.Filename) {
		return apperrors.NewUnsupportedFormat("Only Excel or CSV files are allowed", nil)
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		return apperrors.NewPayloadTooLarge(h.maxBytes)
	}

	src, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("open upload: %w", err))
	}
	defer src.Close()

	staged, err := h.staging.Stage(src, header.Filename, h.maxBytes)
	if errors.Is(err, ingest.ErrFileTooLarge) {
		return apperrors.NewPayloadTooLarge(h.maxBytes)
	}
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	result, err := h.pipeline.IngestStaged(c.UserContext(), h.staging, staged)
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope{
		Success: true,
		Data:    result.Inserted,
		Message: fmt.Sprintf("%d leads imported successfully", len(result.Inserted)),
		Meta:    dto.ImportMeta{Inserted: len(result.Inserted), Rejected: result.Rejected},
	})
}
