// Package client talks to the lead API and keeps a local copy of what it has
// seen, so list and single-record commands keep working while the API is
// unreachable.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-manager/internal/api/dto"
	"github.com/spec-kit/lead-manager/internal/domain"
)

// LocalIDPrefix marks leads created while the API was unreachable.
const LocalIDPrefix = "local-"

var (
	// ErrNotFound is returned when neither the API nor the cache knows the lead.
	ErrNotFound = errors.New("lead not found")
	// ErrInvalidLead rejects offline writes the API would refuse.
	ErrInvalidLead = errors.New("invalid lead")
)

// APIError is a non-2xx response. Server answers are final and never
// replaced by cached data.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match a 404 response.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// TransportError means the request never produced a response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "lead api unreachable: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// UploadResult is the outcome of a spreadsheet upload.
type UploadResult struct {
	Inserted []domain.Lead
	Rejected int
	Message  string
}

// Client is the lead API client.
type Client struct {
	baseURL string
	http    *http.Client
	cache   Cache
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a client for baseURL (for example http://127.0.0.1:5000/api).
// A nil httpClient gets a 10 second timeout and a nil cache an in-memory one.
func New(baseURL string, httpClient *http.Client, cache Cache, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Meta    dto.ImportMeta  `json:"meta"`
}

// ListLeads fetches every lead and refreshes the cache. When the API is
// unreachable the cached leads are returned.
func (c *Client) ListLeads(ctx context.Context) ([]domain.Lead, error) {
	env, err := c.do(ctx, http.MethodGet, "/leads", nil, "")
	if IsTransport(err) {
		c.logger.Warn("serving cached leads", zap.Error(err))
		return c.cache.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	var leads []domain.Lead
	if err := decodeData(env, &leads); err != nil {
		return nil, err
	}
	if err := c.cache.Replace(ctx, leads); err != nil {
		c.logger.Warn("cache refresh failed", zap.Error(err))
	}
	return leads, nil
}

// GetLead fetches one lead, falling back to the cache when offline.
func (c *Client) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	env, err := c.do(ctx, http.MethodGet, "/leads/"+url.PathEscape(id), nil, "")
	if IsTransport(err) {
		c.logger.Warn("serving cached lead", zap.String("id", id), zap.Error(err))
		return c.cached(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return c.storeLead(ctx, env)
}

// CreateLead creates a lead. When offline the lead is kept in the cache
// under a local- id.
func (c *Client) CreateLead(ctx context.Context, req dto.CreateLeadRequest) (*domain.Lead, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode lead: %w", err)
	}
	env, err := c.do(ctx, http.MethodPost, "/leads", bytes.NewReader(body), "application/json")
	if IsTransport(err) {
		c.logger.Warn("creating lead locally", zap.Error(err))
		return c.createLocal(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return c.storeLead(ctx, env)
}

// UpdateLead sends a partial update. When offline the patch is merged into
// the cached copy.
func (c *Client) UpdateLead(ctx context.Context, id string, req dto.UpdateLeadRequest) (*domain.Lead, error) {
	body, err := json.Marshal(req.Fields())
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	env, err := c.do(ctx, http.MethodPut, "/leads/"+url.PathEscape(id), bytes.NewReader(body), "application/json")
	if IsTransport(err) {
		c.logger.Warn("updating cached lead", zap.String("id", id), zap.Error(err))
		return c.updateLocal(ctx, id, req)
	}
	if err != nil {
		return nil, err
	}
	return c.storeLead(ctx, env)
}

// DeleteLead removes a lead remotely and from the cache.
func (c *Client) DeleteLead(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/leads/"+url.PathEscape(id), nil, "")
	if err != nil && !IsTransport(err) {
		return err
	}
	removed, cacheErr := c.cache.Delete(ctx, id)
	if cacheErr != nil {
		c.logger.Warn("cache delete failed", zap.String("id", id), zap.Error(cacheErr))
	}
	if err != nil {
		c.logger.Warn("deleted cached lead only", zap.String("id", id), zap.Error(err))
		if cacheErr != nil {
			return cacheErr
		}
		if !removed {
			return ErrNotFound
		}
	}
	return nil
}

// UploadLeads sends a spreadsheet to the import endpoint. Uploads have no
// offline fallback.
func (c *Client) UploadLeads(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", uploadContentType(filename))
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	env, err := c.do(ctx, http.MethodPost, "/leads/upload", &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var inserted []domain.Lead
	if err := decodeData(env, &inserted); err != nil {
		return nil, err
	}
	for _, lead := range inserted {
		if err := c.cache.Put(ctx, lead); err != nil {
			c.logger.Warn("cache put failed", zap.String("id", lead.ID), zap.Error(err))
		}
	}
	return &UploadResult{Inserted: inserted, Rejected: env.Meta.Rejected, Message: env.Message}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := env.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Code: env.Code, Message: message}
	}
	return &env, nil
}

func decodeData(env *envelope, out any) error {
	if len(env.Data) == 0 {
		return errors.New("response has no data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func (c *Client) storeLead(ctx context.Context, env *envelope) (*domain.Lead, error) {
	var lead domain.Lead
	if err := decodeData(env, &lead); err != nil {
		return nil, err
	}
	if err := c.cache.Put(ctx, lead); err != nil {
		c.logger.Warn("cache put failed", zap.String("id", lead.ID), zap.Error(err))
	}
	return &lead, nil
}

func (c *Client) cached(ctx context.Context, id string) (*domain.Lead, error) {
	lead, ok, err := c.cache.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return lead, nil
}

func (c *Client) createLocal(ctx context.Context, req dto.CreateLeadRequest) (*domain.Lead, error) {
	name := strings.TrimSpace(req.Name)
	company := strings.TrimSpace(req.CompanyName)
	if name == "" || company == "" {
		return nil, fmt.Errorf("%w: name and company name are required", ErrInvalidLead)
	}
	status := req.Status
	if status == "" {
		status = domain.LeadStatusPending
	}
	if err := checkEnums(&status, req.ContactedBy); err != nil {
		return nil, err
	}
	now := c.now().UTC()
	lead := domain.Lead{
		ID:                     LocalIDPrefix + uuid.NewString(),
		Name:                   name,
		CompanyName:            company,
		Website:                req.Website,
		Email:                  req.Email,
		PhoneNumber:            req.PhoneNumber,
		Address:                req.Address,
		Status:                 status,
		Category:               domain.ResolveCategory(req.Category, company, req.AdditionalRequirements),
		AdditionalRequirements: req.AdditionalRequirements,
		ContactedBy:            req.ContactedBy,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := c.cache.Put(ctx, lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (c *Client) updateLocal(ctx context.Context, id string, req dto.UpdateLeadRequest) (*domain.Lead, error) {
	if err := checkEnums(req.Status, req.ContactedBy.Value); err != nil {
		return nil, err
	}
	lead, err := c.cached(ctx, id)
	if err != nil {
		return nil, err
	}
	merge(lead, req)
	lead.UpdatedAt = c.now().UTC()
	if err := c.cache.Put(ctx, *lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func checkEnums(status *domain.LeadStatus, contactedBy *domain.StaffMember) error {
	if status != nil && !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidLead, *status)
	}
	if contactedBy != nil && !contactedBy.Valid() {
		return fmt.Errorf("%w: unknown staff member %q", ErrInvalidLead, *contactedBy)
	}
	return nil
}

func merge(lead *domain.Lead, req dto.UpdateLeadRequest) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&lead.Name, req.Name)
	set(&lead.CompanyName, req.CompanyName)
	set(&lead.Website, req.Website)
	set(&lead.Email, req.Email)
	set(&lead.PhoneNumber, req.PhoneNumber)
	set(&lead.Address, req.Address)
	set(&lead.Category, req.Category)
	set(&lead.AdditionalRequirements, req.AdditionalRequirements)
	if req.Status != nil {
		lead.Status = *req.Status
	}
	if req.ContactedBy.Set {
		lead.ContactedBy = req.ContactedBy.Value
	}
}

func uploadContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".csv":
		return "text/csv"
	}
	return "application/octet-stream"
}
