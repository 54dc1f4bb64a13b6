package store

import "fmt"

// ddlStatements builds the per-tenant schema. The same SQL text runs against both Postgres
// and SQLite: lower()-indexed uniqueness and partial indexes ("WHERE ... IS NOT NULL") are
// supported by both dialects. Resource filtering is done by internal/filter against
// decoded JSON in the application layer rather than with engine-specific JSON operators,
// so the DDL itself never needs to diverge between backends either.
func ddlStatements(usersTable, groupsTable, membershipsTable string) []string {
	return []string{
		resourceTableDDL(usersTable),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_natural_key_idx ON %s (lower(natural_key))`, usersTable, usersTable),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_external_id_idx ON %s (external_id) WHERE external_id IS NOT NULL`, usersTable, usersTable),

		resourceTableDDL(groupsTable),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_natural_key_idx ON %s (lower(natural_key))`, groupsTable, groupsTable),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_external_id_idx ON %s (external_id) WHERE external_id IS NOT NULL`, groupsTable, groupsTable),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			group_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			member_id TEXT NOT NULL,
			member_type TEXT NOT NULL,
			PRIMARY KEY (group_id, member_id, member_type)
		)`, membershipsTable, groupsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_group_idx ON %s (group_id)`, membershipsTable, membershipsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_member_idx ON %s (member_id)`, membershipsTable, membershipsTable),
	}
}

func resourceTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		external_id TEXT,
		natural_key TEXT NOT NULL,
		data_orig TEXT NOT NULL,
		data_norm TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`, table)
}
