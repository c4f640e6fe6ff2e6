package database

import (
	"fmt"
	"io/fs"
	"sort"

	dbsql "armora/api_payments/pkg/database/sql"
	"armora/api_payments/pkg/logging"
)

// ApplySchema executes the embedded schema files against db in filename
// order. Statements are written to be re-runnable (CREATE IF NOT EXISTS),
// so applying on every boot is safe.
func ApplySchema(db PostgresConn, logger logging.Logger) error {
	return applySchemaFS(dbsql.Content, db, logger)
}

func applySchemaFS(fsys fs.FS, db PostgresConn, logger logging.Logger) error {
	entries, err := fs.Glob(fsys, "schema/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list schema files: %w", err)
	}
	sort.Strings(entries)

	for _, name := range entries {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to apply schema file %s: %w", name, err)
		}
		logger.WithField("file", name).Info("Applied schema file")
	}

	return nil
}
