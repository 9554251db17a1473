package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-manager/internal/api/http/handlers"
	"github.com/spec-kit/lead-manager/internal/domain"
	"github.com/spec-kit/lead-manager/internal/events"
	"github.com/spec-kit/lead-manager/internal/ingest"
	"github.com/spec-kit/lead-manager/internal/observability"
	"github.com/spec-kit/lead-manager/internal/repository"
	"github.com/spec-kit/lead-manager/internal/service"
)

const csvMime = "text/csv"

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Meta    map[string]int  `json:"meta"`
}

type testServer struct {
	app     *fiber.App
	repo    *repository.MemoryLeadRepository
	staging *ingest.Staging
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	repo := repository.NewMemoryLeadRepository()
	dispatcher := events.NewInMemoryDispatcher()

	staging, err := ingest.NewStaging(t.TempDir())
	require.NoError(t, err)

	leadService := service.NewLeadService(service.LeadDependencies{LeadRepo: repo, Dispatcher: dispatcher, Logger: logger})
	pipeline := ingest.NewPipeline(ingest.PipelineDependencies{
		LeadRepo:     repo,
		Dispatcher:   dispatcher,
		Recorder:     metrics,
		Logger:       logger,
		ParseTimeout: 5 * time.Second,
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger, metrics), BodyLimit: 1 << 20})
	RegisterMiddlewares(app, MiddlewareConfig{Logger: logger, Metrics: metrics, Timeout: 5 * time.Second})
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("lead-manager", "test", "memory", repo),
		Leads: handlers.NewLeadsHandler(handlers.LeadsHandlerDependencies{
			Service:        leadService,
			Pipeline:       pipeline,
			Staging:        staging,
			MaxUploadBytes: maxUpload,
			Logger:         logger,
		}),
		Metrics: metrics.Handler(),
	})
	return &testServer{app: app, repo: repo, staging: staging}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) (int, testEnvelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env testEnvelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (s *testServer) doJSON(t *testing.T, method, path, body string) (int, testEnvelope) {
	t.Helper()
	return s.do(t, method, path, strings.NewReader(body), fiber.MIMEApplicationJSON)
}

func (s *testServer) stagedFiles(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(s.staging.Dir())
	require.NoError(t, err)
	return entries
}

func multipartFile(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeLead(t *testing.T, raw json.RawMessage) domain.Lead {
	t.Helper()
	var lead domain.Lead
	require.NoError(t, json.Unmarshal(raw, &lead))
	return lead
}

func TestCreateLeadEndToEnd(t *testing.T) {
	srv := newTestServer(t, 0)

	status, env := srv.doJSON(t, fiber.MethodPost, "/leads", `{"name":"Jane","companyName":"Acme"}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.True(t, env.Success)

	lead := decodeLead(t, env.Data)
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, domain.LeadStatusPending, lead.Status)
	assert.Equal(t, "others", lead.Category)
	assert.Nil(t, lead.ContactedBy)
	assert.False(t, lead.CreatedAt.IsZero())
	assert.True(t, lead.CreatedAt.Equal(lead.UpdatedAt))

	status, env = srv.do(t, fiber.MethodGet, "/api/leads/"+lead.ID, nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, lead.ID, decodeLead(t, env.Data).ID)
}

func TestCreateLeadValidation(t *testing.T) {
	srv := newTestServer(t, 0)

	status, env := srv.doJSON(t, fiber.MethodPost, "/api/leads", `{"name":"Jane"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)

	status, env = srv.doJSON(t, fiber.MethodPost, "/api/leads", `{"name":"Jane","companyName":"Acme","contactedBy":"BOB"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)

	status, _ = srv.doJSON(t, fiber.MethodPost, "/api/leads", `{"name":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, 0, srv.repo.Len())
}

func TestListLeads(t *testing.T) {
	srv := newTestServer(t, 0)

	status, env := srv.do(t, fiber.MethodGet, "/api/leads", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))

	srv.doJSON(t, fiber.MethodPost, "/api/leads", `{"name":"A","companyName":"Acme"}`)
	srv.doJSON(t, fiber.MethodPost, "/api/leads", `{"name":"B","companyName":"Beta"}`)

	_, env = srv.do(t, fiber.MethodGet, "/leads", nil, "")
	var leads []domain.Lead
	require.NoError(t, json.Unmarshal(env.Data, &leads))
	require.Len(t, leads, 2)
	assert.Equal(t, "A", leads[0].Name)
}

func TestUpdateLead(t *testing.T) {
	srv := newTestServer(t, 0)
	_, env := srv.doJSON(t, fiber.MethodPost, "/api/leads", `{"name":"Jane","companyName":"Acme","contactedBy":"NAZEEB","email":"jane@acme.test"}`)
	created := decodeLead(t, env.Data)

	status, env := srv.doJSON(t, fiber.MethodPut, "/api/leads/"+created.ID, `{"status":"contacted","contactedBy":null}`)
	require.Equal(t, fiber.StatusOK, status)
	updated := decodeLead(t, env.Data)
	assert.Equal(t, domain.LeadStatusContacted, updated.Status)
	assert.Nil(t, updated.ContactedBy)
	assert.Equal(t, "jane@acme.test", updated.Email)

	status, env = srv.doJSON(t, fiber.MethodPut, "/api/leads/"+created.ID, `{"status":"won"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)

	status, env = srv.doJSON(t, fiber.MethodPut, "/api/leads/nope", `{}`)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestUpdateLeadWithEmptyBodyIsEmptyPatch(t *testing.T) {
	srv := newTestServer(t, 0)
	_, env := srv.doJSON(t, fiber.MethodPost, "/api/leads", `{"name":"Jane","companyName":"Acme","email":"jane@acme.test"}`)
	created := decodeLead(t, env.Data)

	for _, contentType := range []string{"", fiber.MIMEApplicationJSON} {
		status, env := srv.do(t, fiber.MethodPut, "/api/leads/"+created.ID, nil, contentType)
		require.Equal(t, fiber.StatusOK, status, "content type %q", contentType)
		updated := decodeLead(t, env.Data)
		assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
		assert.Equal(t, created.Name, updated.Name)
		assert.Equal(t, created.Email, updated.Email)
		assert.Equal(t, created.Status, updated.Status)
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	}
}

func TestDeleteLead(t *testing.T) {
	srv := newTestServer(t, 0)
	_, env := srv.doJSON(t, fiber.MethodPost, "/api/leads", `{"name":"Jane","companyName":"Acme"}`)
	created := decodeLead(t, env.Data)

	status, env := srv.do(t, fiber.MethodDelete, "/api/leads/"+created.ID, nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Lead deleted successfully", env.Message)

	status, env = srv.do(t, fiber.MethodDelete, "/api/leads/"+created.ID, nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestUploadCSV(t *testing.T) {
	srv := newTestServer(t, 1<<16)
	content := "name,Company Name,email,Phone Number\n" +
		"Jane,Acme Health Corp,jane@acme.test,\n" +
		"Bob,,,555-0100\n" +
		"Ghost,Nowhere,,\n"
	body, ct := multipartFile(t, "file", "leads.csv", csvMime, []byte(content))

	status, env := srv.do(t, fiber.MethodPost, "/api/leads/upload", body, ct)
	require.Equal(t, fiber.StatusOK, status, env.Message)
	assert.Equal(t, map[string]int{"inserted": 2, "rejected": 1}, env.Meta)

	var inserted []domain.Lead
	require.NoError(t, json.Unmarshal(env.Data, &inserted))
	require.Len(t, inserted, 2)
	assert.Equal(t, "healthcare", inserted[0].Category)
	assert.Equal(t, 2, srv.repo.Len())
	assert.Empty(t, srv.stagedFiles(t))
}

func TestUploadOctetStreamFallsBackToExtension(t *testing.T) {
	srv := newTestServer(t, 1<<16)
	body, ct := multipartFile(t, "file", "leads.csv", "application/octet-stream", []byte("name,email\nJane,jane@acme.test\n"))

	status, env := srv.do(t, fiber.MethodPost, "/leads/upload", body, ct)
	require.Equal(t, fiber.StatusOK, status, env.Message)
	assert.Equal(t, 1, env.Meta["inserted"])
}

func TestUploadFailures(t *testing.T) {
	cases := []struct {
		name        string
		field       string
		filename    string
		contentType string
		content     string
		status      int
		code        string
	}{
		{"no file", "other", "leads.csv", csvMime, "name,email\n", fiber.StatusBadRequest, "VALIDATION_FAILED"},
		{"wrong type", "file", "leads.png", "image/png", "\x89PNG", fiber.StatusBadRequest, "UNSUPPORTED_FORMAT"},
		{"too large", "file", "leads.csv", csvMime, strings.Repeat("x", 200), fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{"no valid rows", "file", "leads.csv", csvMime, "name,email\nJane,\n", fiber.StatusBadRequest, "NO_VALID_ROWS"},
		{"unreadable", "file", "leads.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "PK\x03\x04garbage", fiber.StatusBadRequest, "UNSUPPORTED_FORMAT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, 128)
			body, ct := multipartFile(t, tc.field, tc.filename, tc.contentType, []byte(tc.content))

			status, env := srv.do(t, fiber.MethodPost, "/api/leads/upload", body, ct)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, env.Code)
			assert.False(t, env.Success)
			assert.Equal(t, 0, srv.repo.Len())
			assert.Empty(t, srv.stagedFiles(t))
		})
	}
}

func TestUploadNoFileMessage(t *testing.T) {
	srv := newTestServer(t, 128)
	body, ct := multipartFile(t, "attachment", "leads.csv", csvMime, []byte("name\n"))
	_, env := srv.do(t, fiber.MethodPost, "/api/leads/upload", body, ct)
	assert.Equal(t, "No file uploaded", env.Message)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	srv := newTestServer(t, 0)

	status, env := srv.do(t, fiber.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)

	status, env = srv.do(t, fiber.MethodGet, "/health/live", nil, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)

	status, env = srv.do(t, fiber.MethodGet, "/nothing-here", nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, 0)
	srv.do(t, fiber.MethodGet, "/api/leads", nil, "")

	req := httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestMetricsSurviveNotFoundRequests(t *testing.T) {
	srv := newTestServer(t, 0)
	for _, path := range []string{"/api/leads/aaaaaaaa", "/api/leads/bbbbbbbb", "/api/leads/cccccccc", "/nope/1", "/nope/2"} {
		status, _ := srv.do(t, fiber.MethodGet, path, nil, "")
		require.Equal(t, fiber.StatusNotFound, status, path)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(raw))

	body := string(raw)
	assert.Contains(t, body, `path="/api/leads/:id"`)
	assert.Contains(t, body, `path="`+observability.UnmatchedRoute+`"`)
	assert.NotContains(t, body, "aaaaaaaa")
	assert.NotContains(t, body, "/nope/")
}
