package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/contenthub/internal/model"
)

// PostgresContentRepo はPostgreSQLを使用したコンテンツリポジトリ。
type PostgresContentRepo struct {
	db *sql.DB
}

// NewPostgresContentRepo はPostgresContentRepoを生成する。
func NewPostgresContentRepo(db *sql.DB) *PostgresContentRepo {
	return &PostgresContentRepo{db: db}
}

const contentColumns = `id, owner_user_id, title, body, status, review_comment,
	        scheduled_at, published_at, created_at, updated_at`

func scanContent(scan func(dest ...any) error) (*model.Content, error) {
	content := &model.Content{}
	var reviewComment sql.NullString
	var scheduledAt, publishedAt sql.NullTime

	if err := scan(
		&content.ID, &content.OwnerUserID, &content.Title, &content.Body,
		&content.Status, &reviewComment, &scheduledAt, &publishedAt,
		&content.CreatedAt, &content.UpdatedAt,
	); err != nil {
		return nil, err
	}

	content.ReviewComment = nullStringValue(reviewComment)
	content.ScheduledAt = nullTimePtr(scheduledAt)
	content.PublishedAt = nullTimePtr(publishedAt)

	return content, nil
}

// FindByID は指定IDのコンテンツを取得する。見つからない場合はnilを返す。
func (r *PostgresContentRepo) FindByID(ctx context.Context, id string) (*model.Content, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

// FindByIDTx はExecutor経由でコンテンツを取得する。見つからない場合はnilを返す。
func (r *PostgresContentRepo) FindByIDTx(ctx context.Context, ex Executor, id string) (*model.Content, error) {
	row := ex.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM contents WHERE id = $1`,
		id,
	)
	content, err := scanContent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コンテンツの取得に失敗しました: %w", err)
	}
	return content, nil
}

// Create はコンテンツを作成する。
func (r *PostgresContentRepo) Create(ctx context.Context, content *model.Content) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contents (id, owner_user_id, title, body, status, review_comment,
		                       scheduled_at, published_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		content.ID, content.OwnerUserID, content.Title, content.Body,
		content.Status, nullString(content.ReviewComment),
		nullTime(content.ScheduledAt), nullTime(content.PublishedAt),
		content.CreatedAt, content.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("コンテンツの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はコンテンツの全フィールドを上書き更新する。
func (r *PostgresContentRepo) Update(ctx context.Context, content *model.Content) error {
	return r.UpdateTx(ctx, r.db, content)
}

// UpdateTx はExecutor（トランザクション）経由でコンテンツを更新する。
func (r *PostgresContentRepo) UpdateTx(ctx context.Context, ex Executor, content *model.Content) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE contents SET
		    title = $2, body = $3, status = $4, review_comment = $5,
		    scheduled_at = $6, published_at = $7, updated_at = $8
		 WHERE id = $1`,
		content.ID, content.Title, content.Body, content.Status,
		nullString(content.ReviewComment),
		nullTime(content.ScheduledAt), nullTime(content.PublishedAt),
		content.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("コンテンツの更新に失敗しました: %w", err)
	}
	return nil
}

// ListByOwner は所有者のコンテンツ一覧を更新日時降順で返す。
func (r *PostgresContentRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]*model.Content, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contentColumns+` FROM contents WHERE owner_user_id = $1 ORDER BY updated_at DESC`,
		ownerUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("コンテンツ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectContents(rows)
}

// ListAll は全コンテンツを更新日時降順で返す。代理店ユーザーの一覧用。
func (r *PostgresContentRepo) ListAll(ctx context.Context) ([]*model.Content, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contentColumns+` FROM contents ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("コンテンツ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectContents(rows)
}

func collectContents(rows *sql.Rows) ([]*model.Content, error) {
	var contents []*model.Content
	for rows.Next() {
		content, err := scanContent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("コンテンツの読み取りに失敗しました: %w", err)
		}
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コンテンツ一覧の走査に失敗しました: %w", err)
	}
	return contents, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullTime は*time.Timeをsql.NullTimeに変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullTimePtr はsql.NullTimeから*time.Timeを取得する。
func nullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// compile-time interface check
var _ ContentRepository = (*PostgresContentRepo)(nil)
