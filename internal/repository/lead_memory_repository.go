package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/lead-manager/internal/domain"
)

// MemoryLeadRepository keeps leads in process memory. It backs memory://
// deployments and tests.
type MemoryLeadRepository struct {
	mu    sync.RWMutex
	order []string
	leads map[string]domain.Lead

	// FailInsertMany makes InsertMany fail without storing anything.
	FailInsertMany error
}

// NewMemoryLeadRepository returns an empty in-memory store.
func NewMemoryLeadRepository() *MemoryLeadRepository {
	return &MemoryLeadRepository{leads: make(map[string]domain.Lead)}
}

func (r *MemoryLeadRepository) Create(_ context.Context, lead *domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead.ID = uuid.NewString()
	r.put(*lead)
	return nil
}

func (r *MemoryLeadRepository) InsertMany(_ context.Context, leads []domain.Lead) ([]domain.Lead, error) {
	if r.FailInsertMany != nil {
		return nil, r.FailInsertMany
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := make([]domain.Lead, 0, len(leads))
	for _, lead := range leads {
		lead = lead.Clone()
		lead.ID = uuid.NewString()
		r.put(lead)
		inserted = append(inserted, lead.Clone())
	}
	return inserted, nil
}

func (r *MemoryLeadRepository) GetByID(_ context.Context, id string) (*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := lead.Clone()
	return &clone, nil
}

func (r *MemoryLeadRepository) List(_ context.Context) ([]domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.Lead, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.leads[id].Clone())
	}
	return result, nil
}

func (r *MemoryLeadRepository) Update(_ context.Context, lead *domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[lead.ID]; !ok {
		return ErrNotFound
	}
	r.leads[lead.ID] = lead.Clone()
	return nil
}

func (r *MemoryLeadRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[id]; !ok {
		return ErrNotFound
	}
	delete(r.leads, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryLeadRepository) Ping(context.Context) error {
	if r == nil {
		return errors.New("memory store not configured")
	}
	return nil
}

// Len reports the number of stored leads.
func (r *MemoryLeadRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.leads)
}

func (r *MemoryLeadRepository) put(lead domain.Lead) {
	if _, exists := r.leads[lead.ID]; !exists {
		r.order = append(r.order, lead.ID)
	}
	r.leads[lead.ID] = lead.Clone()
}
