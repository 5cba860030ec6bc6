package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/contenthub/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した予約投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

const postColumns = `id, user_id, content_id, message, media_assets, scheduled_at,
	        status, external_post_id, last_error, retry_count, created_at, updated_at`

func scanPost(scan func(dest ...any) error) (*model.ScheduledPost, error) {
	post := &model.ScheduledPost{}
	var contentID, externalPostID, lastError sql.NullString

	if err := scan(
		&post.ID, &post.UserID, &contentID, &post.Message,
		pq.Array(&post.MediaAssets), &post.ScheduledAt, &post.Status,
		&externalPostID, &lastError, &post.RetryCount,
		&post.CreatedAt, &post.UpdatedAt,
	); err != nil {
		return nil, err
	}

	post.ContentID = nullStringValue(contentID)
	post.ExternalPostID = nullStringValue(externalPostID)
	post.LastError = nullStringValue(lastError)

	return post, nil
}

// FindByID は指定IDの予約投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.ScheduledPost, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM scheduled_posts WHERE id = $1`,
		id,
	)
	post, err := scanPost(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("予約投稿の取得に失敗しました: %w", err)
	}
	return post, nil
}

func insertPost(ctx context.Context, ex Executor, post *model.ScheduledPost) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO scheduled_posts
		     (id, user_id, content_id, message, media_assets, scheduled_at,
		      status, external_post_id, last_error, retry_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		post.ID, post.UserID, nullString(post.ContentID), post.Message,
		pq.Array(post.MediaAssets), post.ScheduledAt, post.Status,
		nullString(post.ExternalPostID), nullString(post.LastError),
		post.RetryCount, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("予約投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// Create は予約投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.ScheduledPost) error {
	return insertPost(ctx, r.db, post)
}

// CreateInTx は予約投稿の作成とfnによる追加更新を同一トランザクションで実行する。
// fnがエラーを返した場合は投稿の作成ごとロールバックする。
func (r *PostgresPostRepo) CreateInTx(ctx context.Context, post *model.ScheduledPost, fn func(ctx context.Context, ex Executor) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if err := insertPost(ctx, tx, post); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの予約投稿一覧を予定日時昇順で返す。
func (r *PostgresPostRepo) ListByUserID(ctx context.Context, userID string) ([]*model.ScheduledPost, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM scheduled_posts WHERE user_id = $1 ORDER BY scheduled_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("予約投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []*model.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("予約投稿の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("予約投稿一覧の走査に失敗しました: %w", err)
	}
	return posts, nil
}

// DeletePending はpending状態の予約投稿を物理削除する。
// 削除できた場合はtrueを返す。pending以外の行は削除しない。
func (r *PostgresPostRepo) DeletePending(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM scheduled_posts WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("予約投稿の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListDueIDs は公開期限を迎えたpending投稿のIDを予定日時昇順で返す。
// ロックは取得しない。実際のクレームはProcessDueで行う。
func (r *PostgresPostRepo) ListDueIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM scheduled_posts
		 WHERE status = 'pending' AND scheduled_at <= $1
		 ORDER BY scheduled_at ASC
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("公開対象投稿の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("公開対象投稿の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("公開対象投稿の走査に失敗しました: %w", err)
	}
	return ids, nil
}

// ProcessDue は1件の予約投稿をトランザクション内でクレームして処理する。
// FOR UPDATE SKIP LOCKEDで行ロックを取得し、pendingかつ期限到来を再確認した上でfnを呼ぶ。
// 他プロセスがロック保持中、または既に処理済みの場合は何もせずnilを返す。
func (r *PostgresPostRepo) ProcessDue(ctx context.Context, id string, now time.Time, fn func(ctx context.Context, ex Executor, post *model.ScheduledPost) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM scheduled_posts
		 WHERE id = $1 AND status = 'pending' AND scheduled_at <= $2
		 FOR UPDATE SKIP LOCKED`,
		id, now,
	)
	post, err := scanPost(row.Scan)
	if err == sql.ErrNoRows {
		// 他プロセスが処理中か、既に処理済み
		return nil
	}
	if err != nil {
		return fmt.Errorf("予約投稿のクレームに失敗しました: %w", err)
	}

	if err := fn(ctx, tx, post); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE scheduled_posts SET
		    scheduled_at = $2, status = $3, external_post_id = $4,
		    last_error = $5, retry_count = $6, updated_at = $7
		 WHERE id = $1`,
		post.ID, post.ScheduledAt, post.Status,
		nullString(post.ExternalPostID), nullString(post.LastError),
		post.RetryCount, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("予約投稿の状態更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// DeleteTerminalOlderThan はpublished/failedで更新日時がcutoffより古い投稿を削除し、
// 削除件数を返す。
func (r *PostgresPostRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM scheduled_posts
		 WHERE status IN ('published', 'failed') AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("古い投稿の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
