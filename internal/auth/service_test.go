package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/kaiwa/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	createFn      func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func testIssuer() *TokenIssuer {
	return NewTokenIssuer("test-secret", time.Hour)
}

// --- テスト ---

func TestService_Register_Success(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := NewService(repo, testIssuer())

	user, err := svc.Register(context.Background(), "alice", "Alice@Example.com", "password123", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if user.Email != "alice@example.com" {
		t.Errorf("Email = %q, want lowercased %q", user.Email, "alice@example.com")
	}
	if user.ID == "" {
		t.Error("expected generated user ID")
	}
	if user.PasswordHash == "" || user.PasswordHash == "password123" {
		t.Error("expected hashed password")
	}
	if created == nil {
		t.Fatal("expected Create to be called")
	}
}

func TestService_Register_MissingFields(t *testing.T) {
	svc := NewService(&mockUserRepo{}, testIssuer())

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"ユーザー名なし", "", "a@example.com", "pw"},
		{"メールなし", "alice", "", "pw"},
		{"パスワードなし", "alice", "a@example.com", ""},
		{"空白のみのユーザー名", "   ", "a@example.com", "pw"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.username, tc.email, tc.password, "")
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Category != "validation" {
				t.Errorf("Category = %q, want %q", apiErr.Category, "validation")
			}
		})
	}
}

func TestService_Register_DuplicateUser(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return &pq.Error{Code: "23505"}
		},
	}
	svc := NewService(repo, testIssuer())

	_, err := svc.Register(context.Background(), "alice", "a@example.com", "pw", "")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeDuplicateUser {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeDuplicateUser)
	}
}

func TestService_Login_Success(t *testing.T) {
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}

	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			if email != "alice@example.com" {
				t.Errorf("email = %q, want lowercased", email)
			}
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash}, nil
		},
	}
	svc := NewService(repo, testIssuer())

	token, user, err := svc.Login(context.Background(), "Alice@Example.com", "password123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token == "" {
		t.Error("expected non-empty token")
	}
	if user.ID != "user-1" {
		t.Errorf("user.ID = %q, want %q", user.ID, "user-1")
	}

	claims, err := testIssuer().Verify(token)
	if err != nil {
		t.Fatalf("issued token failed verification: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("claims.UserID = %q, want %q", claims.UserID, "user-1")
	}
}

func TestService_Login_UnknownUser(t *testing.T) {
	svc := NewService(&mockUserRepo{}, testIssuer())

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "pw")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestService_Login_WrongPassword(t *testing.T) {
	hash, err := HashPassword("correct")
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}

	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash}, nil
		},
	}
	svc := NewService(repo, testIssuer())

	_, _, err = svc.Login(context.Background(), "a@example.com", "wrong")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestService_Me_NotFound(t *testing.T) {
	svc := NewService(&mockUserRepo{}, testIssuer())

	_, err := svc.Me(context.Background(), "missing-user")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeUserNotFound)
	}
}
