package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/auth"
	"github.com/stackpass/identity/internal/config"
	"github.com/stackpass/identity/internal/db"
	"github.com/stackpass/identity/internal/models"
	"github.com/stackpass/identity/internal/ratelimit"
	"github.com/stackpass/identity/internal/security"
	"gorm.io/gorm"
)

// stubNotifier records delivered codes and tokens for assertions.
type stubNotifier struct {
	mu     sync.Mutex
	codes  []string
	tokens []string
}

func (n *stubNotifier) OTPCode(_ context.Context, _, _, code string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes = append(n.codes, code)
}

func (n *stubNotifier) PasswordReset(_ context.Context, _, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, token)
}

func (n *stubNotifier) AccountLocked(context.Context, string)      {}
func (n *stubNotifier) AccountUnlocked(context.Context, string)    {}
func (n *stubNotifier) SuspiciousActivity(context.Context, string) {}

func (n *stubNotifier) lastCode(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.codes) == 0 {
		t.Fatal("expected a delivered code")
	}
	return n.codes[len(n.codes)-1]
}

func (n *stubNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.tokens) == 0 {
		t.Fatal("expected a delivered reset token")
	}
	return n.tokens[len(n.tokens)-1]
}

type testServer struct {
	engine   *gin.Engine
	conn     *gorm.DB
	service  *auth.Service
	notifier *stubNotifier
}

func newTestServer(t *testing.T, limits config.RateLimitConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + filepath.Join(t.TempDir(), "api-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	stub := &stubNotifier{}
	service := auth.NewService(conn, stub, auth.TokenConfig{
		Secret:     "api-test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, nil)

	engine := gin.New()
	RegisterAuthRoutes(engine, conn, service, config.CookieConfig{}, ratelimit.NewManager(nil, ""), limits)

	return &testServer{engine: engine, conn: conn, service: service, notifier: stub}
}

func (s *testServer) createUser(t *testing.T, email, password string, mutate ...func(*models.User)) *models.User {
	t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	now := time.Now().UTC()
	user := models.User{
		Email:     email,
		Username:  "user-" + email,
		Password:  hash,
		Status:    models.UserStatusApproved,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, fn := range mutate {
		fn(&user)
	}
	if errCreate := s.conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return &user
}

func (s *testServer) postJSON(t *testing.T, path string, payload any, decorate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		t.Fatalf("marshal payload: %v", errMarshal)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range decorate {
		fn(req)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) getJSON(t *testing.T, path string, decorate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, fn := range decorate {
		fn(req)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	return out
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func defaultLimits() config.RateLimitConfig {
	return config.RateLimitConfig{ObtainPerMinute: 100, OTPPerMinute: 100}
}

func TestObtainEndpoint_Success(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	srv.createUser(t, "alice@example.com", "correct-horse-battery")

	rec := srv.postJSON(t, "/v0/token/obtain", gin.H{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["access_token"] == "" || body["refresh_token"] == "" {
		t.Fatal("expected tokens in response body")
	}

	cookies := rec.Result().Cookies()
	names := map[string]bool{}
	for _, cookie := range cookies {
		names[cookie.Name] = true
		if !cookie.HttpOnly {
			t.Fatalf("cookie %s must be HttpOnly", cookie.Name)
		}
	}
	if !names["access_token"] || !names["refresh_token"] {
		t.Fatalf("expected both token cookies, got %v", names)
	}
}

func TestObtainEndpoint_WrongPassword(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	srv.createUser(t, "alice@example.com", "correct-horse-battery")

	rec := srv.postJSON(t, "/v0/token/obtain", gin.H{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestObtainEndpoint_OTPRequired(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	srv.createUser(t, "alice@example.com", "correct-horse-battery", func(u *models.User) {
		u.OTPEnabled = true
	})

	rec := srv.postJSON(t, "/v0/token/obtain", gin.H{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	})
	if rec.Code != http.StatusPreconditionRequired {
		t.Fatalf("expected 428, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["otp_required"] != true {
		t.Fatal("expected otp_required flag")
	}

	code := srv.notifier.lastCode(t)
	rec = srv.postJSON(t, "/v0/token/obtain", gin.H{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
		"otp_code": code,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with code, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestObtainEndpoint_RateLimited(t *testing.T) {
	srv := newTestServer(t, config.RateLimitConfig{ObtainPerMinute: 3, OTPPerMinute: 100})
	srv.createUser(t, "alice@example.com", "correct-horse-battery")

	for i := 0; i < 3; i++ {
		rec := srv.postJSON(t, "/v0/token/obtain", gin.H{
			"email":    "alice@example.com",
			"password": "wrong",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}

	rec := srv.postJSON(t, "/v0/token/obtain", gin.H{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after cap, got %d", rec.Code)
	}
}

func TestObtainEndpoint_LockedAccount(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	srv.createUser(t, "alice@example.com", "correct-horse-battery")

	for i := 0; i < auth.LockoutThreshold; i++ {
		srv.postJSON(t, "/v0/token/obtain", gin.H{
			"email":    "alice@example.com",
			"password": "wrong",
		})
	}

	rec := srv.postJSON(t, "/v0/token/obtain", gin.H{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for locked account, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshEndpoint_ViaCookie(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	srv.createUser(t, "alice@example.com", "correct-horse-battery")

	obtain := srv.postJSON(t, "/v0/token/obtain", gin.H{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	})
	if obtain.Code != http.StatusOK {
		t.Fatalf("obtain: %d", obtain.Code)
	}

	var refreshCookie *http.Cookie
	for _, cookie := range obtain.Result().Cookies() {
		if cookie.Name == "refresh_token" {
			refreshCookie = cookie
		}
	}
	if refreshCookie == nil {
		t.Fatal("missing refresh cookie")
	}

	rec := srv.postJSON(t, "/v0/token/refresh", gin.H{}, func(r *http.Request) {
		r.AddCookie(refreshCookie)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["access_token"] == "" {
		t.Fatal("expected a fresh access token")
	}
}

func TestRefreshEndpoint_ViaBody(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	srv.createUser(t, "alice@example.com", "correct-horse-battery")

	obtain := srv.postJSON(t, "/v0/token/obtain", gin.H{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	})
	refresh := decodeBody(t, obtain)["refresh_token"].(string)

	rec := srv.postJSON(t, "/v0/token/refresh", gin.H{"refresh_token": refresh})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshEndpoint_MissingToken(t *testing.T) {
	srv := newTestServer(t, defaultLimits())

	rec := srv.postJSON(t, "/v0/token/refresh", gin.H{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLogoutEndpoint_ClearsCookies(t *testing.T) {
	srv := newTestServer(t, defaultLimits())

	rec := srv.postJSON(t, "/v0/logout", gin.H{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge >= 0 {
			t.Fatalf("cookie %s should be expired, got MaxAge=%d", cookie.Name, cookie.MaxAge)
		}
	}
}

func TestProfileEndpoint(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	user := srv.createUser(t, "alice@example.com", "correct-horse-battery")
	if errProfile := srv.conn.Model(&models.User{}).Where("id = ?", user.ID).
		Update("profile", []byte(`{"department":"finance"}`)).Error; errProfile != nil {
		t.Fatalf("set profile: %v", errProfile)
	}

	obtain := srv.postJSON(t, "/v0/token/obtain", gin.H{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	})
	access := decodeBody(t, obtain)["access_token"].(string)

	rec := srv.getJSON(t, "/v0/profile", withBearer(access))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["email"] != "alice@example.com" {
		t.Fatalf("unexpected email: %v", body["email"])
	}
	profile, ok := body["profile"].(map[string]any)
	if !ok || profile["department"] != "finance" {
		t.Fatalf("unexpected profile: %v", body["profile"])
	}
}

func TestProfileEndpoint_NoToken(t *testing.T) {
	srv := newTestServer(t, defaultLimits())

	rec := srv.getJSON(t, "/v0/profile")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	srv.createUser(t, "alice@example.com", "correct-horse-battery")

	rec := srv.postJSON(t, "/v0/password/forgot", gin.H{"email": "alice@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot: expected 200, got %d", rec.Code)
	}
	token := srv.notifier.lastToken(t)

	rec = srv.postJSON(t, "/v0/password/reset", gin.H{
		"token":        token,
		"new_password": "brand-new-passphrase",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = srv.postJSON(t, "/v0/token/obtain", gin.H{
		"email":    "alice@example.com",
		"password": "brand-new-passphrase",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login with new password: expected 200, got %d", rec.Code)
	}
}

func TestPasswordForgot_UnknownEmailSameResponse(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	srv.createUser(t, "alice@example.com", "correct-horse-battery")

	known := srv.postJSON(t, "/v0/password/forgot", gin.H{"email": "alice@example.com"})
	unknown := srv.postJSON(t, "/v0/password/forgot", gin.H{"email": "nobody@example.com"})

	if known.Code != unknown.Code {
		t.Fatalf("status codes differ: %d vs %d", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatal("response bodies must not reveal whether the email exists")
	}
}

func TestPasswordReset_WeakPasswordRejected(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	srv.createUser(t, "alice@example.com", "correct-horse-battery")

	srv.postJSON(t, "/v0/password/forgot", gin.H{"email": "alice@example.com"})
	token := srv.notifier.lastToken(t)

	rec := srv.postJSON(t, "/v0/password/reset", gin.H{
		"token":        token,
		"new_password": "short",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for weak password, got %d", rec.Code)
	}
}

func TestOTPRequestEndpoint_AntiEnumeration(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	srv.createUser(t, "alice@example.com", "correct-horse-battery", func(u *models.User) {
		u.OTPEnabled = true
	})

	known := srv.postJSON(t, "/v0/otp/request", gin.H{"email": "alice@example.com"})
	unknown := srv.postJSON(t, "/v0/otp/request", gin.H{"email": "nobody@example.com"})

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("expected 200/200, got %d/%d", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatal("response bodies must not reveal whether the email exists")
	}
}

func TestOTPVerifyEndpoint(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	srv.createUser(t, "alice@example.com", "correct-horse-battery")

	srv.postJSON(t, "/v0/otp/request", gin.H{"email": "alice@example.com"})
	code := srv.notifier.lastCode(t)

	rec := srv.postJSON(t, "/v0/otp/verify", gin.H{"email": "alice@example.com", "code": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = srv.postJSON(t, "/v0/otp/verify", gin.H{"email": "alice@example.com", "code": code})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on reuse, got %d", rec.Code)
	}
}

func TestOTPRequestEndpoint_PerUserRateLimit(t *testing.T) {
	srv := newTestServer(t, config.RateLimitConfig{ObtainPerMinute: 100, OTPPerMinute: 2})
	srv.createUser(t, "alice@example.com", "correct-horse-battery")

	for i := 0; i < 2; i++ {
		rec := srv.postJSON(t, "/v0/otp/request", gin.H{"email": "alice@example.com"})
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	rec := srv.postJSON(t, "/v0/otp/request", gin.H{"email": "alice@example.com"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after cap, got %d", rec.Code)
	}
}

func TestMFAEnrollmentFlow(t *testing.T) {
	srv := newTestServer(t, defaultLimits())
	srv.createUser(t, "alice@example.com", "correct-horse-battery")

	obtain := srv.postJSON(t, "/v0/token/obtain", gin.H{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	})
	access := decodeBody(t, obtain)["access_token"].(string)

	status := srv.getJSON(t, "/v0/mfa/status", withBearer(access))
	if status.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", status.Code)
	}
	body := decodeBody(t, status)
	if body["otp_enabled"] != false || body["totp_enrolled"] != false {
		t.Fatalf("unexpected initial mfa status: %v", body)
	}

	prepare := srv.postJSON(t, "/v0/mfa/totp/prepare", gin.H{}, withBearer(access))
	if prepare.Code != http.StatusOK {
		t.Fatalf("prepare: expected 200, got %d", prepare.Code)
	}
	secret := decodeBody(t, prepare)["secret"].(string)
	if secret == "" {
		t.Fatal("expected a generated secret")
	}

	// Nothing persisted until confirmation.
	var user models.User
	if errFind := srv.conn.Where("email = ?", "alice@example.com").First(&user).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if user.TOTPSecret != "" {
		t.Fatal("prepare must not persist the secret")
	}

	confirm := srv.postJSON(t, "/v0/mfa/totp/confirm", gin.H{
		"secret": secret,
		"code":   "000000",
	}, withBearer(access))
	if confirm.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong code, got %d", confirm.Code)
	}
}
