package postgresql_test

import (
	"context"
	"fmt"
	"os"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
)

// TestDatabaseSetup holds a connection to the integration database.
type TestDatabaseSetup struct {
	DB *database.DB
}

// ErrNoTestDatabase is returned when TEST_DATABASE_URL is not set.
var ErrNoTestDatabase = fmt.Errorf("TEST_DATABASE_URL is not set")

// NewTestDatabase connects to TEST_DATABASE_URL and applies the schema.
func NewTestDatabase(ctx context.Context) (*TestDatabaseSetup, error) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		return nil, ErrNoTestDatabase
	}

	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolConfig{MaxConns: 10})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	if err := postgresql.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &TestDatabaseSetup{DB: db}, nil
}

// TruncateAllTables removes every row written by the tests.
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	return postgresql.WithTransaction(ctx, t.DB, func(ctx context.Context) error {
		q := postgresql.GetQuerier(ctx, t.DB)
		for _, table := range []string{"attendance_records", "employees"} {
			if _, err := q.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
				return fmt.Errorf("failed to truncate %s: %w", table, err)
			}
		}
		return nil
	})
}

func (t *TestDatabaseSetup) Close() {
	t.DB.Close()
}
