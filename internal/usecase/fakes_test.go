package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anjun206/board-app/internal/core/domain"
	"github.com/anjun206/board-app/internal/repository"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User

	createErr error
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for i := range users {
		u := users[i]
		repo.users[u.ID] = &u
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.users {
		if existing.NormalizedEmail == user.NormalizedEmail || existing.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	u := user
	r.users[u.ID] = &u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByNormalizedEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.NormalizedEmail == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByRawEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) IncrementTokenVersion(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	u.TokenVersion++
	return u.TokenVersion, nil
}

type fakeVerificationRepo struct {
	mu      sync.Mutex
	records map[string]*domain.EmailVerification
}

func newFakeVerificationRepo() *fakeVerificationRepo {
	return &fakeVerificationRepo{records: make(map[string]*domain.EmailVerification)}
}

func (r *fakeVerificationRepo) Create(_ context.Context, record domain.EmailVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := record
	r.records[rec.ID] = &rec
	return nil
}

func (r *fakeVerificationRepo) LatestActive(_ context.Context, email string, now time.Time) (*domain.EmailVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []*domain.EmailVerification
	for _, rec := range r.records {
		if rec.Email == email && !rec.Used && rec.ExpiresAt.After(now) {
			active = append(active, rec)
		}
	}
	if len(active) == 0 {
		return nil, repository.ErrNotFound
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})

	copy := *active[0]
	return &copy, nil
}

func (r *fakeVerificationRepo) IncrementAttempts(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Attempts++
	return nil
}

func (r *fakeVerificationRepo) MarkUsed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Used = true
	return nil
}

func (r *fakeVerificationRepo) InvalidatePending(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Email == email && !rec.Used {
			rec.Used = true
		}
	}
	return nil
}

func (r *fakeVerificationRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
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

func (r *fakeVerificationRepo) activeCount(email string, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, rec := range r.records {
		if rec.Email == email && !rec.Used && rec.ExpiresAt.After(now) {
			count++
		}
	}
	return count
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	codes []string
	err   error
}

func (n *fakeNotifier) SendVerificationCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, email)
	n.codes = append(n.codes, code)
	return nil
}

func (n *fakeNotifier) lastCode() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.codes) == 0 {
		return "", false
	}
	return n.codes[len(n.codes)-1], true
}

func (n *fakeNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeEventPublisher struct {
	mu           sync.Mutex
	registered   []domain.UserRegisteredEvent
	verification []domain.VerificationStartedEvent
	logins       []domain.LoginSucceededEvent
	revocations  []domain.TokensRevokedEvent
}

func (p *fakeEventPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, event)
	return nil
}

func (p *fakeEventPublisher) PublishVerificationStarted(_ context.Context, event domain.VerificationStartedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verification = append(p.verification, event)
	return nil
}

func (p *fakeEventPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins = append(p.logins, event)
	return nil
}

func (p *fakeEventPublisher) PublishTokensRevoked(_ context.Context, event domain.TokensRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revocations = append(p.revocations, event)
	return nil
}
