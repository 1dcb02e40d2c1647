package services

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresChecker probes PostgreSQL over a dedicated database/sql handle,
// independent of the repository pool, so readiness reflects whether new
// connections can be opened
type PostgresChecker struct {
	db *sql.DB
}

// NewPostgresChecker opens a lib/pq handle for dsn. The connection is lazy;
// failures surface on the first HealthCheck.
func NewPostgresChecker(dsn string) (*PostgresChecker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &PostgresChecker{db: db}, nil
}

// Name returns the dependency name
func (p *PostgresChecker) Name() string {
	return "postgres"
}

// HealthCheck runs a trivial query
func (p *PostgresChecker) HealthCheck(ctx context.Context) error {
	var one int
	if err := p.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

// Close closes the handle
func (p *PostgresChecker) Close() error {
	return p.db.Close()
}
