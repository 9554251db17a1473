package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-manager/internal/domain"
)

// ErrNotFound is returned when no lead matches the requested id.
var ErrNotFound = errors.New("lead not found")

// LeadRepository encapsulates lead persistence.
type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	// InsertMany writes the batch atomically: either every lead is stored or none is.
	InsertMany(ctx context.Context, leads []domain.Lead) ([]domain.Lead, error)
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	List(ctx context.Context) ([]domain.Lead, error)
	Update(ctx context.Context, lead *domain.Lead) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type leadRepository struct {
	pool *pgxpool.Pool
}

// NewLeadRepository instantiates the PostgreSQL repository.
func NewLeadRepository(pool *pgxpool.Pool) LeadRepository {
	return &leadRepository{pool: pool}
}

const leadColumns = `id, name, company_name, website, email, phone_number, address,
               status, category, additional_requirements, contacted_by, created_at, updated_at`

const insertLead = `
        INSERT INTO leads (name, company_name, website, email, phone_number, address,
            status, category, additional_requirements, contacted_by, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id`

func insertArgs(lead *domain.Lead) []any {
	return []any{
		lead.Name,
		lead.CompanyName,
		lead.Website,
		lead.Email,
		lead.PhoneNumber,
		lead.Address,
		string(lead.Status),
		lead.Category,
		lead.AdditionalRequirements,
		staffArg(lead.ContactedBy),
		lead.CreatedAt,
		lead.UpdatedAt,
	}
}

func (r *leadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	return r.pool.QueryRow(ctx, insertLead, insertArgs(lead)...).Scan(&lead.ID)
}

func (r *leadRepository) InsertMany(ctx context.Context, leads []domain.Lead) ([]domain.Lead, error) {
	if len(leads) == 0 {
		return nil, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for i := range leads {
		batch.Queue(insertLead, insertArgs(&leads[i])...)
	}

	inserted := make([]domain.Lead, len(leads))
	results := tx.SendBatch(ctx, batch)
	for i := range leads {
		inserted[i] = leads[i].Clone()
		if err := results.QueryRow().Scan(&inserted[i].ID); err != nil {
			_ = results.Close()
			return nil, fmt.Errorf("insert lead %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return inserted, nil
}

func (r *leadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id=$1`
	lead, err := scanLead(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func (r *leadRepository) List(ctx context.Context) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+leadColumns+` FROM leads`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *lead)
	}
	return result, rows.Err()
}

func (r *leadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	if _, err := uuid.Parse(lead.ID); err != nil {
		return ErrNotFound
	}
	const query = `
        UPDATE leads SET name=$1, company_name=$2, website=$3, email=$4, phone_number=$5, address=$6,
            status=$7, category=$8, additional_requirements=$9, contacted_by=$10, updated_at=$11
        WHERE id=$12`
	cmd, err := r.pool.Exec(ctx, query,
		lead.Name,
		lead.CompanyName,
		lead.Website,
		lead.Email,
		lead.PhoneNumber,
		lead.Address,
		string(lead.Status),
		lead.Category,
		lead.AdditionalRequirements,
		staffArg(lead.ContactedBy),
		lead.UpdatedAt,
		lead.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *leadRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *leadRepository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return r.pool.Ping(ctx)
}

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var (
		lead        domain.Lead
		status      string
		contactedBy *string
	)
	if err := row.Scan(
		&lead.ID,
		&lead.Name,
		&lead.CompanyName,
		&lead.Website,
		&lead.Email,
		&lead.PhoneNumber,
		&lead.Address,
		&status,
		&lead.Category,
		&lead.AdditionalRequirements,
		&contactedBy,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lead.Status = domain.LeadStatus(status)
	if contactedBy != nil {
		member := domain.StaffMember(*contactedBy)
		lead.ContactedBy = &member
	}
	return &lead, nil
}

func staffArg(member *domain.StaffMember) *string {
	if member == nil {
		return nil
	}
	s := string(*member)
	return &s
}
