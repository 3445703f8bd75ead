package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/debemdeboas/memories/internal/db"
)

func TestClerkHandleWebhookUser(t *testing.T) {
	sqlite := db.NewSQLite(filepath.Join(t.TempDir(), "auth.db"))
	if err := sqlite.InitDB(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	defer sqlite.Close()

	provider := NewClerkAuthProvider("sk_test_dummy", sqlite)

	send := func(body string) int {
		rr := httptest.NewRecorder()
		provider.HandleWebhookUser(rr, httptest.NewRequest(http.MethodPost, "/webhook/clerk/user", strings.NewReader(body)))
		return rr.Code
	}
	username := func() (string, bool) {
		var name string
		err := sqlite.Get().QueryRow(`SELECT username FROM users WHERE id = 'user_1'`).Scan(&name)
		return name, err == nil
	}

	if code := send(`{"type":"user.created","data":{"id":"user_1","username":"ana"}}`); code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", code)
	}
	if name, ok := username(); !ok || name != "ana" {
		t.Errorf("Expected username 'ana', got %q (found=%v)", name, ok)
	}

	if code := send(`{"type":"user.updated","data":{"id":"user_1","username":"ana.m"}}`); code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", code)
	}
	if name, _ := username(); name != "ana.m" {
		t.Errorf("Expected username 'ana.m', got %q", name)
	}

	if code := send(`{"type":"user.deleted","data":{"id":"user_1"}}`); code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", code)
	}
	if _, ok := username(); ok {
		t.Error("Expected user to be deleted")
	}

	if code := send(`{"type":"session.created","data":{}}`); code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown event, got %d", code)
	}
	if code := send(`not json`); code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad payload, got %d", code)
	}
}
