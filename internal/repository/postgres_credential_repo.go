package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/contenthub/internal/model"
)

// PostgresCredentialRepo はPostgreSQLを使用したLinkedIn資格情報リポジトリ。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// FindByUserID は指定ユーザーの資格情報を取得する。見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) FindByUserID(ctx context.Context, userID string) (*model.Credential, error) {
	cred := &model.Credential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, linkedin_member_id, access_token, expires_at, scopes, created_at, updated_at
		 FROM linkedin_credentials WHERE user_id = $1`,
		userID,
	).Scan(&cred.UserID, &cred.LinkedInMemberID, &cred.AccessToken,
		&cred.ExpiresAt, &cred.Scopes, &cred.CreatedAt, &cred.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("資格情報の取得に失敗しました: %w", err)
	}

	return cred, nil
}

// Upsert は資格情報を作成または上書きする。
// 再連携時は新しいトークンで既存行を置き換える。
func (r *PostgresCredentialRepo) Upsert(ctx context.Context, cred *model.Credential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO linkedin_credentials
		     (user_id, linkedin_member_id, access_token, expires_at, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		     linkedin_member_id = EXCLUDED.linkedin_member_id,
		     access_token = EXCLUDED.access_token,
		     expires_at = EXCLUDED.expires_at,
		     scopes = EXCLUDED.scopes,
		     updated_at = EXCLUDED.updated_at`,
		cred.UserID, cred.LinkedInMemberID, cred.AccessToken,
		cred.ExpiresAt, cred.Scopes, cred.CreatedAt, cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("資格情報の保存に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの資格情報を削除する。
// 存在しない場合もエラーにしない（Disconnectは冪等）。
func (r *PostgresCredentialRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM linkedin_credentials WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("資格情報の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
