package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/anjun206/board-app/internal/core/domain"
	"github.com/anjun206/board-app/internal/infra/config"
	"github.com/anjun206/board-app/internal/infra/ratelimit"
	"github.com/anjun206/board-app/internal/infra/security"
	"github.com/anjun206/board-app/internal/repository"
	"github.com/anjun206/board-app/internal/usecase"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.NormalizedEmail == user.NormalizedEmail || existing.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	u := user
	r.users[u.ID] = &u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) GetByNormalizedEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.NormalizedEmail == email })
}

func (r *memUserRepo) GetByRawEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *memUserRepo) IncrementTokenVersion(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	u.TokenVersion++
	return u.TokenVersion, nil
}

func (r *memUserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memVerificationRepo struct {
	mu      sync.Mutex
	records map[string]*domain.EmailVerification
}

func newMemVerificationRepo() *memVerificationRepo {
	return &memVerificationRepo{records: make(map[string]*domain.EmailVerification)}
}

func (r *memVerificationRepo) Create(_ context.Context, record domain.EmailVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := record
	r.records[rec.ID] = &rec
	return nil
}

func (r *memVerificationRepo) LatestActive(_ context.Context, email string, now time.Time) (*domain.EmailVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []*domain.EmailVerification
	for _, rec := range r.records {
		if rec.Email == email && !rec.Used && now.Before(rec.ExpiresAt) {
			active = append(active, rec)
		}
	}
	if len(active) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })
	copy := *active[0]
	return &copy, nil
}

func (r *memVerificationRepo) IncrementAttempts(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Attempts++
	return nil
}

func (r *memVerificationRepo) MarkUsed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Used = true
	return nil
}

func (r *memVerificationRepo) InvalidatePending(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Email == email && !rec.Used {
			rec.Used = true
		}
	}
	return nil
}

func (r *memVerificationRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, rec := range r.records {
		if rec.ExpiresAt.Before(before) {
			delete(r.records, id)
			removed++
		}
	}
	return removed, nil
}

// captureNotifier hands issued codes to the test through a channel.
type captureNotifier struct {
	codes chan string
}

func (n *captureNotifier) SendVerificationCode(_ context.Context, _, code string) error {
	n.codes <- code
	return nil
}

type nopEvents struct{}

func (nopEvents) PublishUserRegistered(context.Context, domain.UserRegisteredEvent) error { return nil }
func (nopEvents) PublishVerificationStarted(context.Context, domain.VerificationStartedEvent) error {
	return nil
}
func (nopEvents) PublishLoginSucceeded(context.Context, domain.LoginSucceededEvent) error {
	return nil
}
func (nopEvents) PublishTokensRevoked(context.Context, domain.TokensRevokedEvent) error { return nil }

type authEnv struct {
	router *gin.Engine
	users  *memUserRepo
	codes  chan string
	tokens *security.TokenService
}

func newAuthEnv(t *testing.T, guards RouteGuards) *authEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	tokens, err := security.NewTokenService("handler-test-secret", time.Hour, 168*time.Hour, 15*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	users := newMemUserRepo()
	verifications := newMemVerificationRepo()
	notifier := &captureNotifier{codes: make(chan string, 8)}
	events := nopEvents{}

	authSettings := config.AuthSettings{
		CodeTTL:           10 * time.Minute,
		MaxCodeAttempts:   5,
		PasswordMinLength: 8,
	}
	limits := config.RateLimitSettings{
		Window:           time.Minute,
		StartIPLimit:     100,
		StartEmailLimit:  100,
		VerifyIPLimit:    100,
		VerifyEmailLimit: 100,
		LoginIPLimit:     100,
	}

	authSvc := usecase.NewAuthService(users, tokens, events, log)
	regSvc := usecase.NewRegistrationService(users, events, security.NewPasswordPolicy(authSettings.PasswordMinLength), log)
	verSvc := usecase.NewVerificationService(
		authSettings,
		limits,
		users,
		verifications,
		ratelimit.NewMemoryLimiter(),
		tokens,
		notifier,
		events,
		log,
	)

	handler := NewAuthHandler(authSvc, regSvc, verSvc, tokens, security.NewResponseFloor(0), limits.Window, false)

	router := gin.New()
	handler.RegisterRoutes(router.Group("/auth"), guards)

	return &authEnv{
		router: router,
		users:  users,
		codes:  notifier.codes,
		tokens: tokens,
	}
}

type request struct {
	method  string
	path    string
	json    any
	form    string
	bearer  string
	cookies []*http.Cookie
}

func (e *authEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	contentType := ""
	switch {
	case req.json != nil:
		payload, err := json.Marshal(req.json)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	case req.form != "":
		body = bytes.NewReader([]byte(req.form))
		contentType = "application/x-www-form-urlencoded"
	default:
		body = bytes.NewReader(nil)
	}

	httpReq := httptest.NewRequest(req.method, req.path, body)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	}
	for _, cookie := range req.cookies {
		httpReq.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httpReq)
	return rec
}

func (e *authEnv) waitForCode(t *testing.T) string {
	t.Helper()
	select {
	case code := <-e.codes:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("no verification code delivered")
		return ""
	}
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func signupUser(t *testing.T, env *authEnv, email, username, password string) UserSummary {
	t.Helper()
	rec := env.do(t, request{
		method: http.MethodPost,
		path:   "/auth/signup",
		json: SignupRequest{
			Email:    email,
			Username: username,
			Password: password,
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeJSON[UserSummary](t, rec)
}

func obtainProofCookie(t *testing.T, env *authEnv, email string) *http.Cookie {
	t.Helper()

	rec := env.do(t, request{method: http.MethodPost, path: "/auth/start", json: StartRequest{Email: email}})
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body.String())
	}
	code := env.waitForCode(t)

	rec = env.do(t, request{method: http.MethodPost, path: "/auth/verify", json: VerifyRequest{Email: email, Code: code}})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body %s", rec.Code, rec.Body.String())
	}

	cookie := findCookie(rec, "epp")
	if cookie == nil || cookie.Value == "" {
		t.Fatal("verify did not set the proof cookie")
	}
	return cookie
}

func formBody(pairs ...string) string {
	return strings.Join(pairs, "&")
}
