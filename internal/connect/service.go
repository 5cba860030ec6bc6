// Package connect はLinkedInアカウント連携のビジネスロジックを提供する。
// OAuthフローの開始・コールバック処理・切断・状態照会を扱う。
package connect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/contenthub/internal/auth"
	"github.com/hitoshi/contenthub/internal/model"
	"github.com/hitoshi/contenthub/internal/oauthstate"
	"github.com/hitoshi/contenthub/internal/repository"
)

// TokenCipher はアクセストークンの暗号化・復号のインターフェース。
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

// Status は連携状態の照会結果。
type Status struct {
	Connected        bool
	LinkedInMemberID string
	ExpiresAt        *time.Time
	Scopes           string
}

// Service はLinkedIn連携に関するビジネスロジックを提供する。
type Service struct {
	provider auth.OAuthProvider
	ledger   oauthstate.Ledger
	credRepo repository.CredentialRepository
	cipher   TokenCipher
	nowFunc  func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	provider auth.OAuthProvider,
	ledger oauthstate.Ledger,
	credRepo repository.CredentialRepository,
	cipher TokenCipher,
) *Service {
	return &Service{
		provider: provider,
		ledger:   ledger,
		credRepo: credRepo,
		cipher:   cipher,
		nowFunc:  time.Now,
	}
}

// Start は連携フローを開始し、LinkedInの認可URLを返す。
// 同一ユーザーの未消費stateは無効化してから新しいstateを発行する。
// 古いタブからのコールバックが成立しないようにするため。
func (s *Service) Start(ctx context.Context, userID string) (string, error) {
	s.ledger.InvalidateAll(ctx, userID)

	state, err := s.ledger.Issue(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to issue oauth state: %w", err)
	}

	return s.provider.AuthorizationURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、資格情報を保存する。
// stateの検証・コード交換・メンバーID取得・トークン暗号化・UPSERTを行う。
// 戻り値は連携したユーザーのID。
func (s *Service) HandleCallback(ctx context.Context, state, code string) (string, error) {
	userID, ok := s.ledger.VerifyAndConsume(ctx, state)
	if !ok {
		return "", model.NewForbiddenError("OAuth stateが無効または期限切れです")
	}

	token, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	memberID, err := s.provider.FetchMemberID(ctx, token.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to fetch member id: %w", err)
	}

	encrypted, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt access token: %w", err)
	}

	now := s.nowFunc()
	cred := &model.Credential{
		UserID:           userID,
		LinkedInMemberID: memberID,
		AccessToken:      encrypted,
		ExpiresAt:        now.Add(time.Duration(token.ExpiresIn) * time.Second),
		Scopes:           token.Scope,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.credRepo.Upsert(ctx, cred); err != nil {
		return "", fmt.Errorf("failed to save credential: %w", err)
	}

	slog.Info("LinkedInアカウントを連携しました",
		slog.String("user_id", userID),
		slog.String("linkedin_member_id", memberID),
	)

	return userID, nil
}

// Disconnect は連携を解除する。資格情報が存在しなくてもエラーにしない。
func (s *Service) Disconnect(ctx context.Context, userID string) error {
	if err := s.credRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	slog.Info("LinkedIn連携を解除しました", slog.String("user_id", userID))
	return nil
}

// GetStatus は連携状態を返す。トークン本体は含めない。
func (s *Service) GetStatus(ctx context.Context, userID string) (*Status, error) {
	cred, err := s.credRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return &Status{Connected: false}, nil
	}

	expiresAt := cred.ExpiresAt
	return &Status{
		Connected:        true,
		LinkedInMemberID: cred.LinkedInMemberID,
		ExpiresAt:        &expiresAt,
		Scopes:           cred.Scopes,
	}, nil
}

// RequirePublishable は指定ユーザーが投稿可能なLinkedIn連携を持つか検証する。
// 未連携・期限切れ・スコープ不足の場合はAPIErrorを返す。
// 予約受付時に前もって検証することで、公開時に必ず失敗する投稿を作らせない。
func RequirePublishable(ctx context.Context, credRepo repository.CredentialRepository, userID string, now time.Time) error {
	cred, err := credRepo.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil || cred.IsExpired(now) {
		return model.NewLinkedInNotConnectedError()
	}
	if !cred.HasScope(model.RequiredPublishScope) {
		return model.NewLinkedInScopeMissingError(model.RequiredPublishScope)
	}
	return nil
}
