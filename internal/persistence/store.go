package persistence

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/lead-manager/internal/config"
	"github.com/spec-kit/lead-manager/internal/repository"
	apperrors "github.com/spec-kit/lead-manager/pkg/util/errorutil"
)

// Backend names a lead store implementation.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
	BackendMemory   Backend = "memory"
)

// LeadStore is an opened lead repository plus its connection lifecycle.
type LeadStore struct {
	Backend Backend
	Leads   repository.LeadRepository
	closeFn func()
}

// Close releases the underlying connection.
func (s *LeadStore) Close() {
	if s != nil && s.closeFn != nil {
		s.closeFn()
	}
}

// BackendFor maps a connection string to its backend by URL scheme.
func BackendFor(dsn string) (Backend, error) {
	u, err := url.Parse(strings.TrimSpace(dsn))
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "mongodb", "mongodb+srv":
		return BackendMongo, nil
	case "memory":
		return BackendMemory, nil
	}
	return "", fmt.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
}

// OpenLeadStore connects the backend named by cfg.DSN. Any failure is a
// store connection error; the service must not start serving.
func OpenLeadStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*LeadStore, error) {
	backend, err := BackendFor(cfg.DSN)
	if err != nil {
		return nil, apperrors.NewStoreConnectionError(err)
	}

	switch backend {
	case BackendPostgres:
		pg, err := NewPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, apperrors.NewStoreConnectionError(err)
		}
		if cfg.RunMigrations {
			if err := RunMigrations(ctx, pg.PoolHandle(), MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, apperrors.NewStoreConnectionError(err)
			}
		}
		return &LeadStore{Backend: backend, Leads: repository.NewLeadRepository(pg.PoolHandle()), closeFn: pg.Close}, nil
	case BackendMongo:
		m, err := NewMongo(ctx, cfg, logger)
		if err != nil {
			return nil, apperrors.NewStoreConnectionError(err)
		}
		return &LeadStore{Backend: backend, Leads: repository.NewMongoLeadRepository(m.Client, m.Database), closeFn: m.Close}, nil
	default:
		logger.Warn("using in-memory lead store; data is lost on restart")
		return &LeadStore{Backend: backend, Leads: repository.NewMemoryLeadRepository()}, nil
	}
}
