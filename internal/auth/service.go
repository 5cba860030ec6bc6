// Package auth はログイン認証とLinkedIn OAuthプロバイダーを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/contenthub/internal/model"
	"github.com/hitoshi/contenthub/internal/repository"
)

// OAuthProvider はLinkedIn OAuthフローのインターフェース。
// テストではこの抽象を介してフェイクに差し替える。
type OAuthProvider interface {
	// AuthorizationURL は認可URLを生成する。
	AuthorizationURL(state string) string
	// ExchangeCode は認可コードをアクセストークンに交換する。
	ExchangeCode(ctx context.Context, code string) (*LinkedInToken, error)
	// FetchMemberID はアクセストークンでメンバーIDを取得する。
	FetchMemberID(ctx context.Context, accessToken string) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SecretKey   string        // JWT署名鍵
	TokenMaxAge time.Duration // トークン有効期間
}

// Service はログイン認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	config   ServiceConfig
	nowFunc  func() time.Time
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, config ServiceConfig) *Service {
	return &Service{
		userRepo: userRepo,
		config:   config,
		nowFunc:  time.Now,
	}
}

// Login はメールアドレスとパスワードを検証し、JWTアクセストークンを発行する。
// ユーザー不在とパスワード不一致は同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsActive {
		return "", model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", model.NewInvalidCredentialsError()
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("ユーザーがログインしました", slog.String("user_id", user.ID))
	return token, nil
}

// issueToken はHS256署名のJWTを発行する。subにユーザーIDを入れる。
func (s *Service) issueToken(user *model.User) (string, error) {
	now := s.nowFunc()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenMaxAge)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.SecretKey))
}

// ParseToken はJWTを検証してユーザーIDを返す。
// 署名不正・期限切れはエラーになる。
func (s *Service) ParseToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(s.config.SecretKey), nil
		},
		jwt.WithTimeFunc(s.nowFunc),
	)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("invalid token claims")
	}

	return claims.Subject, nil
}

// GetCurrentUser はユーザーIDから現在のユーザーを取得する。
// 見つからない・無効化済みの場合はエラーを返す。
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// HashPassword はパスワードをbcryptでハッシュ化する。
// ユーザー登録・シードデータ作成で使用する。
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}
