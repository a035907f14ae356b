//go:build integration

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/testerhub/code-pool-reservation/internal/model"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn != "" {
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open test database: %v\n", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			fmt.Fprintf(os.Stderr, "ping test database: %v\n", err)
			os.Exit(1)
		}
		testDB = db
	}
	code := m.Run()
	if testDB != nil {
		_ = testDB.Close()
	}
	os.Exit(code)
}

func requireDB(t *testing.T) *sql.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	return testDB
}

func reset(t *testing.T, db *sql.DB) {
	t.Helper()
	for _, table := range []string{"logs", "code_countries", "codes", "refresh_tokens", "users", "countries", "regions"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
}

// insertLog appends one audit row directly, bypassing the service
// layer, so pagination tests control timestamps exactly.
func insertLog(t *testing.T, db *sql.DB, code, userName string, action model.AuditAction, at time.Time) {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	entry := model.AuditLogEntry{Code: code, UserName: userName, ContactEmail: userName + "@example.com", Action: action, LoggedAt: at}
	if err := NewAuditRepo(db).InsertTx(context.Background(), tx, entry); err != nil {
		t.Fatalf("insert log: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestAuditListFilteredPagination(t *testing.T) {
	db := requireDB(t)
	reset(t, db)
	repo := NewAuditRepo(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		insertLog(t, db, fmt.Sprintf("PG-%02d", i), "alice", model.ActionReserved, base.Add(time.Duration(i)*time.Minute))
	}

	total, page1, err := repo.ListFiltered(ctx, LogFilter{Limit: DefaultLogPageSize})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if total != 25 {
		t.Errorf("total = %d, want 25", total)
	}
	if len(page1) != DefaultLogPageSize {
		t.Fatalf("page 1 size = %d, want %d", len(page1), DefaultLogPageSize)
	}
	// Newest first.
	if page1[0].Code != "PG-24" {
		t.Errorf("first entry = %s, want PG-24", page1[0].Code)
	}

	_, page2, err := repo.ListFiltered(ctx, LogFilter{Limit: DefaultLogPageSize, Offset: DefaultLogPageSize})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page2) != 5 {
		t.Errorf("page 2 size = %d, want 5", len(page2))
	}
	if len(page2) > 0 && page2[len(page2)-1].Code != "PG-00" {
		t.Errorf("last entry = %s, want PG-00", page2[len(page2)-1].Code)
	}
}

func TestAuditListFilteredByCodeUserAndDate(t *testing.T) {
	db := requireDB(t)
	reset(t, db)
	repo := NewAuditRepo(db)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	insertLog(t, db, "F-1", "alice", model.ActionReserved, day1)
	insertLog(t, db, "F-1", "alice", model.ActionReleased, day2)
	insertLog(t, db, "F-2", "bob", model.ActionReserved, day2)

	total, entries, err := repo.ListFiltered(ctx, LogFilter{Code: "F-1"})
	if err != nil {
		t.Fatalf("filter by code: %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Errorf("code filter: total=%d len=%d, want 2/2", total, len(entries))
	}

	total, _, err = repo.ListFiltered(ctx, LogFilter{UserName: "bob"})
	if err != nil {
		t.Fatalf("filter by user: %v", err)
	}
	if total != 1 {
		t.Errorf("user filter total = %d, want 1", total)
	}

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	total, _, err = repo.ListFiltered(ctx, LogFilter{Start: &start})
	if err != nil {
		t.Fatalf("filter by start: %v", err)
	}
	if total != 2 {
		t.Errorf("start-bound total = %d, want 2", total)
	}

	lo, hi, err := repo.DateBounds(ctx)
	if err != nil {
		t.Fatalf("date bounds: %v", err)
	}
	if lo == nil || hi == nil || !lo.Equal(day1) || !hi.Equal(day2) {
		t.Errorf("date bounds = %v..%v, want %v..%v", lo, hi, day1, day2)
	}
}

func TestTokenRepoLifecycle(t *testing.T) {
	db := requireDB(t)
	reset(t, db)
	repo := NewTokenRepo(db)
	ctx := context.Background()

	res, err := db.Exec("INSERT INTO users (team, user_name, contact_email, password_hash, is_admin) VALUES ('TEAM_A','t','t@example.com','x',false)")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	uidRaw, _ := res.LastInsertId()
	uid := uint64(uidRaw)

	hash := "deadbeef00000000000000000000000000000000000000000000000000000000"
	if err := repo.StoreRefresh(ctx, uid, hash, time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("store refresh: %v", err)
	}
	got, err := repo.ValidateRefresh(ctx, hash)
	if err != nil {
		t.Fatalf("validate refresh: %v", err)
	}
	if got != uid {
		t.Errorf("validated user = %d, want %d", got, uid)
	}

	if err := repo.RevokeByHash(ctx, hash); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := repo.ValidateRefresh(ctx, hash); err == nil {
		t.Error("revoked token still validates")
	}
}

func TestUserDeleteGuardedByReservedCodes(t *testing.T) {
	db := requireDB(t)
	reset(t, db)
	users := NewUserRepo(db)
	ctx := context.Background()

	uid, err := users.Create(ctx, "TEAM_A", "held", "held@example.com", "pw", false, 4)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := db.Exec(
		"INSERT INTO codes (code, status, code_type, user_id, claim_token, claimed_at) VALUES ('G-1',?, 'TEAM_A', ?, 'tok', NOW())",
		model.StatusReserved, uid); err != nil {
		t.Fatalf("seed reserved code: %v", err)
	}

	if err := users.Delete(ctx, uid); err != ErrUserHasReservedCodes {
		t.Errorf("delete err = %v, want ErrUserHasReservedCodes", err)
	}

	if _, err := db.Exec("UPDATE codes SET status=?, user_id=NULL, claim_token=NULL, claimed_at=NULL WHERE code='G-1'", model.StatusAvailable); err != nil {
		t.Fatalf("free code: %v", err)
	}
	if err := users.Delete(ctx, uid); err != nil {
		t.Errorf("delete after release: %v", err)
	}
	if err := users.Delete(ctx, uid); err != ErrUserNotFound {
		t.Errorf("second delete err = %v, want ErrUserNotFound", err)
	}
}
