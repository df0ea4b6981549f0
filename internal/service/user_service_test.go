package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"buddybot/internal/domain"
)

type mockUserRepo struct {
	byEmail     map[string]domain.User
	byID        map[string]domain.User
	lastCreated domain.User
	createErr   error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		byEmail: make(map[string]domain.User),
		byID:    make(map[string]domain.User),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.lastCreated = user
	m.byEmail[user.Email] = user
	m.byID[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func TestUserServiceRegister_HashesAndNormalizes(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(nil, repo)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:       " User@Example.COM ",
		DisplayName: " Test ",
		Password:    "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "user@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.DisplayName != "Test" {
		t.Fatalf("expected trimmed display name, got %q", user.DisplayName)
	}
	if user.ID == "" || user.CreatedAt.IsZero() {
		t.Fatalf("expected generated id and created_at")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(repo.lastCreated.PasswordHash), []byte("hunter2hunter2")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestUserServiceRegister_Validation(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(nil, repo)

	if _, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "hunter2hunter2"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Register(context.Background(), RegisterInput{Email: "a@b.com", Password: "short"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestUserServiceRegister_EmailTaken(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(nil, repo)

	if _, err := svc.Register(context.Background(), RegisterInput{Email: "a@b.com", Password: "hunter2hunter2"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(context.Background(), RegisterInput{Email: "a@b.com", Password: "hunter2hunter2"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserServiceAuthenticate(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(nil, repo)

	if _, err := svc.Register(context.Background(), RegisterInput{Email: "a@b.com", Password: "hunter2hunter2"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.Authenticate(context.Background(), "A@B.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Email != "a@b.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := svc.Authenticate(context.Background(), "a@b.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "missing@b.com", "hunter2hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestUserServiceGetByID(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(nil, repo)

	created, err := svc.Register(context.Background(), RegisterInput{Email: "a@b.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.GetByID(context.Background(), created.ID)
	if err != nil || user.ID != created.ID {
		t.Fatalf("expected user back, got %+v, %v", user, err)
	}
	if _, err := svc.GetByID(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
