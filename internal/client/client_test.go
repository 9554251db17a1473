package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/lead-manager/internal/api/dto"
	"github.com/spec-kit/lead-manager/internal/domain"
)

var fixedNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu        sync.Mutex
	leads     map[string]domain.Lead
	lastPatch map[string]any
	upload    string
}

func newFakeAPI(leads ...domain.Lead) *fakeAPI {
	api := &fakeAPI{leads: map[string]domain.Lead{}}
	for _, l := range leads {
		api.leads[l.ID] = l
	}
	return api
}

func writeEnvelope(w http.ResponseWriter, status int, env dto.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func notFound(w http.ResponseWriter) {
	writeEnvelope(w, http.StatusNotFound, dto.Envelope{Message: "lead not found", Code: "NOT_FOUND"})
}

func (a *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/leads", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		out := []domain.Lead{}
		for _, l := range a.leads {
			out = append(out, l)
		}
		writeEnvelope(w, http.StatusOK, dto.Envelope{Success: true, Data: out})
	})
	mux.HandleFunc("GET /api/leads/{id}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		lead, ok := a.leads[r.PathValue("id")]
		if !ok {
			notFound(w)
			return
		}
		writeEnvelope(w, http.StatusOK, dto.Envelope{Success: true, Data: lead})
	})
	mux.HandleFunc("POST /api/leads", func(w http.ResponseWriter, r *http.Request) {
		var req dto.CreateLeadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			writeEnvelope(w, http.StatusBadRequest, dto.Envelope{Message: "name required", Code: "VALIDATION_FAILED"})
			return
		}
		lead := domain.Lead{ID: "srv-1", Name: req.Name, CompanyName: req.CompanyName, Status: domain.LeadStatusPending, Category: "others", CreatedAt: fixedNow, UpdatedAt: fixedNow}
		a.mu.Lock()
		a.leads[lead.ID] = lead
		a.mu.Unlock()
		writeEnvelope(w, http.StatusCreated, dto.Envelope{Success: true, Data: lead})
	})
	mux.HandleFunc("PUT /api/leads/{id}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		lead, ok := a.leads[r.PathValue("id")]
		if !ok {
			notFound(w)
			return
		}
		patch := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&patch)
		a.lastPatch = patch
		if status, ok := patch["status"].(string); ok {
			lead.Status = domain.LeadStatus(status)
		}
		a.leads[lead.ID] = lead
		writeEnvelope(w, http.StatusOK, dto.Envelope{Success: true, Data: lead})
	})
	mux.HandleFunc("DELETE /api/leads/{id}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, ok := a.leads[r.PathValue("id")]; !ok {
			notFound(w)
			return
		}
		delete(a.leads, r.PathValue("id"))
		writeEnvelope(w, http.StatusOK, dto.Envelope{Success: true, Message: "Lead deleted successfully"})
	})
	mux.HandleFunc("POST /api/leads/upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, dto.Envelope{Message: "No file uploaded", Code: "VALIDATION_FAILED"})
			return
		}
		defer file.Close()
		raw, _ := io.ReadAll(file)
		a.mu.Lock()
		a.upload = header.Header.Get("Content-Type") + "|" + string(raw)
		a.mu.Unlock()
		inserted := []domain.Lead{{ID: "up-1", Name: "Jane", CompanyName: "Jane", Status: domain.LeadStatusPending, CreatedAt: fixedNow, UpdatedAt: fixedNow}}
		writeEnvelope(w, http.StatusOK, dto.Envelope{Success: true, Data: inserted, Message: "1 leads imported successfully", Meta: dto.ImportMeta{Inserted: 1, Rejected: 2}})
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI) (*Client, *MemoryCache) {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	cache := NewMemoryCache()
	c := New(srv.URL+"/api/", srv.Client(), cache, nil)
	c.now = func() time.Time { return fixedNow }
	return c, cache
}

func newOfflineClient(t *testing.T, cache *MemoryCache) *Client {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := New(url+"/api", &http.Client{Timeout: time.Second}, cache, nil)
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestListRefreshesCache(t *testing.T) {
	api := newFakeAPI(domain.Lead{ID: "a", Name: "A", CreatedAt: fixedNow})
	c, cache := newTestClient(t, api)
	require.NoError(t, cache.Put(context.Background(), domain.Lead{ID: "stale"}))

	leads, err := c.ListLeads(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 1)

	cached, err := cache.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "a", cached[0].ID)
}

func TestListFallsBackToCacheWhenOffline(t *testing.T) {
	cache := NewMemoryCache()
	require.NoError(t, cache.Replace(context.Background(), []domain.Lead{{ID: "a", Name: "A"}}))
	c := newOfflineClient(t, cache)

	leads, err := c.ListLeads(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "A", leads[0].Name)
}

func TestServerErrorsAreAuthoritative(t *testing.T) {
	c, cache := newTestClient(t, newFakeAPI())
	require.NoError(t, cache.Put(context.Background(), domain.Lead{ID: "ghost", Name: "cached"}))

	_, err := c.GetLead(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.False(t, IsTransport(err))

	_, err = c.CreateLead(context.Background(), dto.CreateLeadRequest{CompanyName: "Acme"})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestGetOffline(t *testing.T) {
	cache := NewMemoryCache()
	require.NoError(t, cache.Put(context.Background(), domain.Lead{ID: "a", Name: "A"}))
	c := newOfflineClient(t, cache)

	lead, err := c.GetLead(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "A", lead.Name)

	_, err = c.GetLead(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateCachesServerLead(t *testing.T) {
	c, cache := newTestClient(t, newFakeAPI())
	lead, err := c.CreateLead(context.Background(), dto.CreateLeadRequest{Name: "Jane", CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", lead.ID)

	_, ok, err := cache.Get(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateOfflineStoresLocalLead(t *testing.T) {
	cache := NewMemoryCache()
	c := newOfflineClient(t, cache)

	lead, err := c.CreateLead(context.Background(), dto.CreateLeadRequest{Name: "Jane", CompanyName: "Acme Health"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(lead.ID, LocalIDPrefix))
	assert.Equal(t, domain.LeadStatusPending, lead.Status)
	assert.Equal(t, "healthcare", lead.Category)
	assert.Equal(t, fixedNow, lead.CreatedAt)
	assert.Equal(t, lead.CreatedAt, lead.UpdatedAt)

	_, ok, err := cache.Get(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.CreateLead(context.Background(), dto.CreateLeadRequest{Name: "Jane"})
	assert.Error(t, err)
}

func TestUpdateSendsOnlySuppliedFields(t *testing.T) {
	api := newFakeAPI(domain.Lead{ID: "a", Name: "A", Status: domain.LeadStatusPending})
	c, _ := newTestClient(t, api)
	status := domain.LeadStatusContacted

	lead, err := c.UpdateLead(context.Background(), "a", dto.UpdateLeadRequest{Status: &status, ContactedBy: dto.NullableStaff{Set: true}})
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusContacted, lead.Status)
	assert.Equal(t, map[string]any{"status": "contacted", "contactedBy": nil}, api.lastPatch)
}

func TestUpdateOfflineMergesIntoCache(t *testing.T) {
	member := domain.StaffNazeeb
	cache := NewMemoryCache()
	require.NoError(t, cache.Put(context.Background(), domain.Lead{ID: "a", Name: "A", Email: "a@x.test", ContactedBy: &member, UpdatedAt: fixedNow.Add(-time.Hour)}))
	c := newOfflineClient(t, cache)
	phone := "555"

	lead, err := c.UpdateLead(context.Background(), "a", dto.UpdateLeadRequest{PhoneNumber: &phone, ContactedBy: dto.NullableStaff{Set: true}})
	require.NoError(t, err)
	assert.Equal(t, "555", lead.PhoneNumber)
	assert.Equal(t, "a@x.test", lead.Email)
	assert.Nil(t, lead.ContactedBy)
	assert.Equal(t, fixedNow, lead.UpdatedAt)

	_, err = c.UpdateLead(context.Background(), "missing", dto.UpdateLeadRequest{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOfflineWritesRejectUnknownEnums(t *testing.T) {
	cache := NewMemoryCache()
	require.NoError(t, cache.Put(context.Background(), domain.Lead{ID: "a", Name: "A", Status: domain.LeadStatusPending}))
	c := newOfflineClient(t, cache)
	bogusStatus := domain.LeadStatus("closed")
	bogusStaff := domain.StaffMember("BOB")

	_, err := c.CreateLead(context.Background(), dto.CreateLeadRequest{Name: "Jane", CompanyName: "Acme", Status: bogusStatus})
	assert.ErrorIs(t, err, ErrInvalidLead)
	_, err = c.CreateLead(context.Background(), dto.CreateLeadRequest{Name: "Jane", CompanyName: "Acme", ContactedBy: &bogusStaff})
	assert.ErrorIs(t, err, ErrInvalidLead)

	_, err = c.UpdateLead(context.Background(), "a", dto.UpdateLeadRequest{Status: &bogusStatus})
	assert.ErrorIs(t, err, ErrInvalidLead)
	_, err = c.UpdateLead(context.Background(), "a", dto.UpdateLeadRequest{ContactedBy: dto.NullableStaff{Set: true, Value: &bogusStaff}})
	assert.ErrorIs(t, err, ErrInvalidLead)

	leads, err := cache.List(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, domain.LeadStatusPending, leads[0].Status)
	assert.Nil(t, leads[0].ContactedBy)
}

func TestLeadIDsArePathEscaped(t *testing.T) {
	api := newFakeAPI(domain.Lead{ID: "a/b c", Name: "A"})
	c, _ := newTestClient(t, api)

	lead, err := c.GetLead(context.Background(), "a/b c")
	require.NoError(t, err)
	assert.Equal(t, "A", lead.Name)

	require.NoError(t, c.DeleteLead(context.Background(), "a/b c"))
	_, err = c.GetLead(context.Background(), "a/b c")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	api := newFakeAPI(domain.Lead{ID: "a"})
	c, cache := newTestClient(t, api)
	require.NoError(t, cache.Put(context.Background(), domain.Lead{ID: "a"}))

	require.NoError(t, c.DeleteLead(context.Background(), "a"))
	_, ok, _ := cache.Get(context.Background(), "a")
	assert.False(t, ok)
	assert.ErrorIs(t, c.DeleteLead(context.Background(), "a"), ErrNotFound)
}

func TestDeleteOffline(t *testing.T) {
	cache := NewMemoryCache()
	require.NoError(t, cache.Put(context.Background(), domain.Lead{ID: "a"}))
	c := newOfflineClient(t, cache)

	require.NoError(t, c.DeleteLead(context.Background(), "a"))
	assert.ErrorIs(t, c.DeleteLead(context.Background(), "a"), ErrNotFound)
}

func TestUpload(t *testing.T) {
	api := newFakeAPI()
	c, cache := newTestClient(t, api)

	result, err := c.UploadLeads(context.Background(), "/tmp/leads.csv", strings.NewReader("name,email\n"))
	require.NoError(t, err)
	assert.Len(t, result.Inserted, 1)
	assert.Equal(t, 2, result.Rejected)
	assert.Equal(t, "text/csv|name,email\n", api.upload)

	_, ok, _ := cache.Get(context.Background(), "up-1")
	assert.True(t, ok)
}

func TestUploadOfflineFails(t *testing.T) {
	c := newOfflineClient(t, NewMemoryCache())
	_, err := c.UploadLeads(context.Background(), "leads.xlsx", strings.NewReader("PK"))
	assert.True(t, IsTransport(err))
}

func TestMemoryCacheOrdersByCreation(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, domain.Lead{ID: "b", CreatedAt: fixedNow.Add(time.Minute)}))
	require.NoError(t, cache.Put(ctx, domain.Lead{ID: "a", CreatedAt: fixedNow}))

	leads, err := cache.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", leads[0].ID)
	assert.Equal(t, "b", leads[1].ID)

	removed, err := cache.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = cache.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, removed)
}
