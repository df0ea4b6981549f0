package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"buddybot/internal/domain"
	"buddybot/internal/service"
)

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]domain.User)}
}

func (r *memoryUserRepo) Create(ctx context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *memoryUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (r *memoryUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func newAuthServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	userServ := service.NewUserService(logger, newMemoryUserRepo())
	jwtServ := service.NewJWTServiceWithStore("test-secret", 15*time.Minute, 30*time.Minute, service.NewMemoryRefreshTokenStore())
	userH := NewUserHandler(logger, userServ, jwtServ)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	completionH := NewCompletionHandler(logger, "test-key", upstream.URL, "gpt-4o", 150, 0.7)
	statusH := NewStatusHandler(logger, nil)

	server := httptest.NewServer(NewRouter(logger, completionH, statusH, userH))
	return server, func() {
		server.Close()
		upstream.Close()
	}
}

func doJSON(t *testing.T, method, url, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, decoded
}

func TestUserEndpoints_RegisterLoginMe(t *testing.T) {
	server, cleanup := newAuthServer(t)
	defer cleanup()

	status, body := doJSON(t, http.MethodPost, server.URL+"/users",
		`{"email":"ana@example.com","display_name":"Ana","password":"secreta123"}`, nil)
	if status != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%v)", status, body)
	}

	status, body = doJSON(t, http.MethodPost, server.URL+"/auth/login",
		`{"email":"ana@example.com","password":"secreta123"}`, nil)
	if status != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%v)", status, body)
	}
	tokens, ok := body["tokens"].(map[string]any)
	if !ok {
		t.Fatalf("login response missing tokens: %v", body)
	}
	access, _ := tokens["access_token"].(string)
	if access == "" {
		t.Fatalf("empty access token: %v", tokens)
	}

	status, body = doJSON(t, http.MethodGet, server.URL+"/users/me", "",
		map[string]string{"Authorization": "Bearer " + access})
	if status != http.StatusOK {
		t.Fatalf("me: expected 200, got %d (%v)", status, body)
	}
	user, ok := body["user"].(map[string]any)
	if !ok || user["email"] != "ana@example.com" {
		t.Fatalf("me returned wrong user: %v", body)
	}
	if _, exposed := user["password_hash"]; exposed {
		t.Fatalf("password hash leaked in response: %v", user)
	}
}

func TestUserEndpoints_RegisterValidation(t *testing.T) {
	server, cleanup := newAuthServer(t)
	defer cleanup()

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad email", `{"email":"not-an-email","password":"secreta123"}`, http.StatusBadRequest},
		{"missing password", `{"email":"ana@example.com"}`, http.StatusBadRequest},
		{"short password", `{"email":"ana@example.com","password":"corta"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := doJSON(t, http.MethodPost, server.URL+"/users", tc.body, nil)
			if status != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, status)
			}
		})
	}
}

func TestUserEndpoints_DuplicateEmailConflicts(t *testing.T) {
	server, cleanup := newAuthServer(t)
	defer cleanup()

	body := `{"email":"ana@example.com","password":"secreta123"}`
	if status, _ := doJSON(t, http.MethodPost, server.URL+"/users", body, nil); status != http.StatusCreated {
		t.Fatalf("first register failed: %d", status)
	}
	status, decoded := doJSON(t, http.MethodPost, server.URL+"/users", body, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%v)", status, decoded)
	}
}

func TestUserEndpoints_LoginWrongPassword(t *testing.T) {
	server, cleanup := newAuthServer(t)
	defer cleanup()

	if status, _ := doJSON(t, http.MethodPost, server.URL+"/users",
		`{"email":"ana@example.com","password":"secreta123"}`, nil); status != http.StatusCreated {
		t.Fatalf("register failed")
	}

	status, _ := doJSON(t, http.MethodPost, server.URL+"/auth/login",
		`{"email":"ana@example.com","password":"equivocada"}`, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestUserEndpoints_RefreshAndLogout(t *testing.T) {
	server, cleanup := newAuthServer(t)
	defer cleanup()

	if status, _ := doJSON(t, http.MethodPost, server.URL+"/users",
		`{"email":"ana@example.com","password":"secreta123"}`, nil); status != http.StatusCreated {
		t.Fatalf("register failed")
	}
	_, body := doJSON(t, http.MethodPost, server.URL+"/auth/login",
		`{"email":"ana@example.com","password":"secreta123"}`, nil)
	tokens := body["tokens"].(map[string]any)
	refresh := tokens["refresh_token"].(string)

	// Rotación: el refresh emite un par nuevo y quema el anterior.
	status, body := doJSON(t, http.MethodPost, server.URL+"/auth/refresh",
		`{"refresh_token":"`+refresh+`"}`, nil)
	if status != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d (%v)", status, body)
	}
	rotated := body["tokens"].(map[string]any)["refresh_token"].(string)

	status, _ = doJSON(t, http.MethodPost, server.URL+"/auth/refresh",
		`{"refresh_token":"`+refresh+`"}`, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("burned refresh token accepted: %d", status)
	}

	// Logout revoca el token rotado.
	status, _ = doJSON(t, http.MethodPost, server.URL+"/auth/logout",
		`{"refresh_token":"`+rotated+`"}`, nil)
	if status != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", status)
	}
	status, _ = doJSON(t, http.MethodPost, server.URL+"/auth/refresh",
		`{"refresh_token":"`+rotated+`"}`, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("revoked refresh token accepted: %d", status)
	}
}
