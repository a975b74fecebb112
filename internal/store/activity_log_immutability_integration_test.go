package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func seedActivityProject(ctx context.Context, t *testing.T, db *sql.DB, projectID string) {
	t.Helper()

	_, err := db.ExecContext(ctx, `
		INSERT INTO editors (id, display_name, email, password_hash, is_email_verified)
		VALUES ('edt-activity-test', 'Activity Tester', 'activity-test@example.com', 'x', TRUE)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		t.Fatalf("seed editor: %v", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO projects (id, editor_id, title, client_name, client_email)
		VALUES ($1, 'edt-activity-test', 'Activity Test Project', 'Test Client', '')
		ON CONFLICT (id) DO NOTHING
	`, projectID)
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
}

func cleanupActivityProject(ctx context.Context, db *sql.DB) {
	// Row deletes on activity_log are blocked, so cleanup truncates first.
	_, _ = db.ExecContext(ctx, `TRUNCATE activity_log`)
	_, _ = db.ExecContext(ctx, `DELETE FROM projects WHERE editor_id = 'edt-activity-test'`)
	_, _ = db.ExecContext(ctx, `DELETE FROM editors WHERE id = 'edt-activity-test'`)
}

// TestActivityLogImmutabilityBlocksUpdate verifies that UPDATE operations
// on activity_log are blocked by the database trigger with a hard failure.
func TestActivityLogImmutabilityBlocksUpdate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	databaseURL := getTestDatabaseURL(t)
	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	var triggerCount int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.triggers
		WHERE trigger_name = 'trg_activity_log_block_update'
	`).Scan(&triggerCount)
	if err != nil || triggerCount == 0 {
		t.Fatalf("immutability trigger not found; migration 0004 may not be applied: %v", err)
	}

	seedActivityProject(ctx, t, db, "prj-activity-update")
	defer cleanupActivityProject(ctx, db)

	_, err = db.ExecContext(ctx, `
		INSERT INTO activity_log (project_id, event_type, actor_name, metadata)
		VALUES ('prj-activity-update', 'note_added', 'Test Client', '{}'::jsonb)
	`)
	if err != nil {
		t.Fatalf("insert activity entry: %v", err)
	}

	_, err = db.ExecContext(ctx, `
		UPDATE activity_log
		SET actor_name = 'Someone Else'
		WHERE project_id = 'prj-activity-update'
	`)

	if err == nil {
		t.Fatal("expected UPDATE to be blocked, but it succeeded")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("expected PostgreSQL error, got: %v", err)
	}
	if pgErr.SQLState() != "55000" {
		t.Fatalf("expected SQLSTATE 55000 (object_not_in_prerequisite_state), got: %s", pgErr.SQLState())
	}
	if pgErr.Message != "activity_log is immutable; UPDATE is not allowed" {
		t.Fatalf("unexpected error message: %s", pgErr.Message)
	}
}

// TestActivityLogImmutabilityBlocksDelete verifies that DELETE operations
// on activity_log are blocked by the database trigger with a hard failure.
func TestActivityLogImmutabilityBlocksDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	databaseURL := getTestDatabaseURL(t)
	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	seedActivityProject(ctx, t, db, "prj-activity-delete")
	defer cleanupActivityProject(ctx, db)

	_, err = db.ExecContext(ctx, `
		INSERT INTO activity_log (project_id, event_type, actor_name, metadata)
		VALUES ('prj-activity-delete', 'round_submitted', 'Test Client', '{}'::jsonb)
	`)
	if err != nil {
		t.Fatalf("insert activity entry: %v", err)
	}

	_, err = db.ExecContext(ctx, `
		DELETE FROM activity_log
		WHERE project_id = 'prj-activity-delete'
	`)

	if err == nil {
		t.Fatal("expected DELETE to be blocked, but it succeeded")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("expected PostgreSQL error, got: %v", err)
	}
	if pgErr.SQLState() != "55000" {
		t.Fatalf("expected SQLSTATE 55000 (object_not_in_prerequisite_state), got: %s", pgErr.SQLState())
	}
	if pgErr.Message != "activity_log is immutable; DELETE is not allowed" {
		t.Fatalf("unexpected error message: %s", pgErr.Message)
	}
}

// TestActivityLogInsertStillWorks verifies that INSERT operations
// on activity_log continue to work normally.
func TestActivityLogInsertStillWorks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	databaseURL := getTestDatabaseURL(t)
	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	seedActivityProject(ctx, t, db, "prj-activity-insert")
	defer cleanupActivityProject(ctx, db)

	_, err = db.ExecContext(ctx, `
		INSERT INTO activity_log (project_id, event_type, actor_name, metadata)
		VALUES ('prj-activity-insert', 'version_uploaded', 'Avery', '{"versionNumber": 2}'::jsonb)
	`)
	if err != nil {
		t.Fatalf("insert activity entry should succeed: %v", err)
	}

	var count int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_log WHERE project_id = 'prj-activity-insert'`).Scan(&count)
	if err != nil {
		t.Fatalf("query activity log: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 activity entry, got %d", count)
	}
}

// getTestDatabaseURL returns the database URL for integration tests.
// TEST_DATABASE_URL wins; otherwise the standard Postgres environment
// variables are assembled into a local development URL.
func getTestDatabaseURL(t *testing.T) string {
	t.Helper()

	if url := getenv("TEST_DATABASE_URL", ""); url != "" {
		return url
	}

	host := getenv("POSTGRES_HOST", "localhost")
	port := getenv("POSTGRES_PORT", "5432")
	user := getenv("POSTGRES_USER", "scopelock")
	pass := getenv("POSTGRES_PASSWORD", "scopelock")
	dbname := getenv("POSTGRES_DB", "scopelock_test")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + dbname + "?sslmode=disable"
}

func getenv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
