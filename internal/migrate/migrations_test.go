package migrate_test

import (
	"testing"

	"comassist/internal/db"
	"comassist/internal/migrate"
)

func TestMigrateRecordsVersionAndIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	var version int
	if err := conn.QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read schema_version: %v", err)
	}
	if version < 1 {
		t.Fatalf("expected version >= 1, got %d", version)
	}

	// a second run must be a no-op, not a re-apply
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var again int
	if err := conn.QueryRow(`SELECT version FROM schema_version`).Scan(&again); err != nil {
		t.Fatalf("reread schema_version: %v", err)
	}
	if again != version {
		t.Fatalf("version changed on rerun: %d then %d", version, again)
	}

	var rows int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&rows); err != nil {
		t.Fatalf("count schema_version rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single version row, got %d", rows)
	}
}
