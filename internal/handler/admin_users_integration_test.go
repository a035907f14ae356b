//go:build integration

package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"

	"github.com/testerhub/code-pool-reservation/internal/config"
	"github.com/testerhub/code-pool-reservation/internal/repository"
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

func resetUsers(t *testing.T, db *sql.DB) {
	t.Helper()
	for _, table := range []string{"logs", "code_countries", "codes", "refresh_tokens", "users"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
}

func patchUser(t *testing.T, h *AdminUserHandler, id uint64, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/v1/admin/users/"+strconv.FormatUint(id, 10), strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(id, 10))
	if err := h.UpdateUser(c); err != nil {
		t.Fatalf("update user: %v", err)
	}
	return rec
}

func storeToken(t *testing.T, tokens *repository.TokenRepo, uid uint64, hash string) {
	t.Helper()
	exp := time.Now().UTC().Add(time.Hour)
	if err := tokens.StoreRefresh(context.Background(), uid, hash, exp); err != nil {
		t.Fatalf("store refresh: %v", err)
	}
}

func TestUpdateUserRevokesSessions(t *testing.T) {
	db := requireDB(t)
	resetUsers(t, db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	h := NewAdminUserHandler(config.Config{BcryptCost: 4}, users, tokens)
	ctx := context.Background()

	uid, err := users.Create(ctx, "TEAM_A", "resettee", "resettee@example.com", "oldpw", false, 4)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	hash := strings.Repeat("a1", 32)
	storeToken(t, tokens, uid, hash)

	// A plain rename keeps sessions alive.
	if rec := patchUser(t, h, uid, `{"user_name":"renamed"}`); rec.Code != http.StatusNoContent {
		t.Fatalf("rename status = %d, want 204", rec.Code)
	}
	if _, err := tokens.ValidateRefresh(ctx, hash); err != nil {
		t.Fatalf("token revoked by rename: %v", err)
	}

	// A password reset revokes every refresh token.
	if rec := patchUser(t, h, uid, `{"password":"newpw"}`); rec.Code != http.StatusNoContent {
		t.Fatalf("password reset status = %d, want 204", rec.Code)
	}
	if _, err := tokens.ValidateRefresh(ctx, hash); err == nil {
		t.Error("token still valid after password reset")
	}

	aid, err := users.Create(ctx, "TEAM_B", "exadmin", "exadmin@example.com", "pw", true, 4)
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	adminHash := strings.Repeat("b2", 32)
	storeToken(t, tokens, aid, adminHash)

	// Demotion revokes too.
	if rec := patchUser(t, h, aid, `{"is_admin":false}`); rec.Code != http.StatusNoContent {
		t.Fatalf("demotion status = %d, want 204", rec.Code)
	}
	if _, err := tokens.ValidateRefresh(ctx, adminHash); err == nil {
		t.Error("token still valid after demotion")
	}
}
