package postgresql

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
)

//go:embed schema.sql
var schema string

const (
	openRecordIndex = "attendance_records_one_open_idx"
	intervalCheck   = "attendance_records_interval_check"
)

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	return WithTransaction(ctx, db, func(ctx context.Context) error {
		if _, err := GetQuerier(ctx, db).Exec(ctx, schema); err != nil {
			return fmt.Errorf("failed to apply schema: %w", classify(err))
		}
		return nil
	})
}
