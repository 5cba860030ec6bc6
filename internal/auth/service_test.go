package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/contenthub/internal/model"
)

// mockUserRepo はUserRepositoryのテスト用モック。
type mockUserRepo struct {
	findByIDFunc    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFunc func(ctx context.Context, email string) (*model.User, error)
	createFunc      func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.findByEmailFunc(ctx, email)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return m.createFunc(ctx, user)
}

func testUser(t *testing.T, password string) *model.User {
	t.Helper()
	hashed, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return &model.User{
		ID:             "user-1",
		Email:          "client@example.com",
		Name:           "テストユーザー",
		Role:           model.UserRoleClient,
		HashedPassword: hashed,
		IsActive:       true,
	}
}

func newTestService(repo *mockUserRepo) *Service {
	return NewService(repo, ServiceConfig{
		SecretKey:   "test-secret",
		TokenMaxAge: time.Hour,
	})
}

func TestLogin_ValidCredentials_ReturnsToken(t *testing.T) {
	user := testUser(t, "correct-password")
	repo := &mockUserRepo{
		findByEmailFunc: func(_ context.Context, email string) (*model.User, error) {
			if email != "client@example.com" {
				t.Errorf("email = %q, want client@example.com", email)
			}
			return user, nil
		},
	}
	svc := newTestService(repo)

	token, err := svc.Login(context.Background(), "client@example.com", "correct-password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	userID, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want user-1", userID)
	}
}

func TestLogin_WrongPassword_ReturnsInvalidCredentials(t *testing.T) {
	user := testUser(t, "correct-password")
	repo := &mockUserRepo{
		findByEmailFunc: func(_ context.Context, _ string) (*model.User, error) {
			return user, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Login(context.Background(), "client@example.com", "wrong-password")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("expected INVALID_CREDENTIALS, got %v", err)
	}
}

func TestLogin_UnknownUser_ReturnsSameError(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFunc: func(_ context.Context, _ string) (*model.User, error) {
			return nil, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Login(context.Background(), "nobody@example.com", "password")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("expected INVALID_CREDENTIALS, got %v", err)
	}
}

func TestLogin_InactiveUser_ReturnsInvalidCredentials(t *testing.T) {
	user := testUser(t, "correct-password")
	user.IsActive = false
	repo := &mockUserRepo{
		findByEmailFunc: func(_ context.Context, _ string) (*model.User, error) {
			return user, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Login(context.Background(), "client@example.com", "correct-password")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("expected INVALID_CREDENTIALS, got %v", err)
	}
}

func TestParseToken_ExpiredToken_ReturnsError(t *testing.T) {
	user := testUser(t, "password")
	repo := &mockUserRepo{
		findByEmailFunc: func(_ context.Context, _ string) (*model.User, error) {
			return user, nil
		},
	}
	svc := newTestService(repo)

	// 発行時刻を過去に固定する
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time { return issuedAt }

	token, err := svc.Login(context.Background(), "client@example.com", "password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// 有効期限を過ぎた時刻で検証する
	svc.nowFunc = func() time.Time { return issuedAt.Add(2 * time.Hour) }

	if _, err := svc.ParseToken(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestParseToken_TamperedToken_ReturnsError(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newTestService(repo)

	other := NewService(repo, ServiceConfig{SecretKey: "other-secret", TokenMaxAge: time.Hour})
	token, err := other.issueToken(&model.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	if _, err := svc.ParseToken(token); err == nil {
		t.Error("expected error for token signed with different key")
	}
}

func TestGetCurrentUser_InactiveUser_ReturnsNotFound(t *testing.T) {
	user := testUser(t, "password")
	user.IsActive = false
	repo := &mockUserRepo{
		findByIDFunc: func(_ context.Context, _ string) (*model.User, error) {
			return user, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.GetCurrentUser(context.Background(), "user-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("expected USER_NOT_FOUND, got %v", err)
	}
}
