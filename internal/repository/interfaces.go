// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/contenthub/internal/model"
)

// Executor はクエリ実行先の抽象。*sql.DBと*sql.Txの両方を受け付ける。
// トランザクション内で複数リポジトリの更新をまとめる際に使用する。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// CredentialRepository はLinkedIn連携資格情報の永続化インターフェース。
// 1ユーザー1連携のため、user_idが主キーになる。
type CredentialRepository interface {
	// FindByUserID は指定ユーザーの資格情報を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Credential, error)

	// Upsert は資格情報を作成または上書きする。
	// 再連携時は新しいトークンで既存行を置き換える。
	Upsert(ctx context.Context, cred *model.Credential) error

	// DeleteByUserID は指定ユーザーの資格情報を削除する。
	// 存在しない場合もエラーにしない（Disconnectは冪等）。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ContentRepository はコンテンツデータの永続化インターフェース。
type ContentRepository interface {
	// FindByID は指定IDのコンテンツを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Content, error)

	// Create はコンテンツを作成する。
	Create(ctx context.Context, content *model.Content) error

	// Update はコンテンツの全フィールドを上書き更新する。
	Update(ctx context.Context, content *model.Content) error

	// UpdateTx はExecutor（トランザクション）経由でコンテンツを更新する。
	// 予約投稿の公開成功と同一トランザクションで状態を進めるために使う。
	UpdateTx(ctx context.Context, ex Executor, content *model.Content) error

	// FindByIDTx はExecutor経由でコンテンツを取得する。見つからない場合はnilを返す。
	FindByIDTx(ctx context.Context, ex Executor, id string) (*model.Content, error)

	// ListByOwner は所有者のコンテンツ一覧を更新日時降順で返す。
	ListByOwner(ctx context.Context, ownerUserID string) ([]*model.Content, error)

	// ListAll は全コンテンツを更新日時降順で返す。代理店ユーザーの一覧用。
	ListAll(ctx context.Context) ([]*model.Content, error)
}

// PostRepository は予約投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの予約投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ScheduledPost, error)

	// Create は予約投稿を作成する。
	Create(ctx context.Context, post *model.ScheduledPost) error

	// CreateInTx は予約投稿の作成とfnによる追加更新を同一トランザクションで実行する。
	// fnがエラーを返した場合は投稿の作成ごとロールバックする。
	// コンテンツのSCHEDULED遷移と投稿作成を原子的に行うために使う。
	CreateInTx(ctx context.Context, post *model.ScheduledPost, fn func(ctx context.Context, ex Executor) error) error

	// ListByUserID はユーザーの予約投稿一覧を予定日時昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.ScheduledPost, error)

	// DeletePending はpending状態の予約投稿を物理削除する。
	// 削除できた場合はtrueを返す。pending以外の行は削除しない。
	DeletePending(ctx context.Context, id string) (bool, error)

	// ListDueIDs は公開期限を迎えたpending投稿のIDを予定日時昇順で返す。
	// ロックは取得しない。実際のクレームはProcessDueで行う。
	ListDueIDs(ctx context.Context, now time.Time, limit int) ([]string, error)

	// ProcessDue は1件の予約投稿をトランザクション内でクレームして処理する。
	// FOR UPDATE SKIP LOCKEDで行ロックを取得し、pendingかつ期限到来を再確認した上で
	// fnを呼ぶ。fnが返した投稿の状態をロック中の行に書き戻してコミットする。
	// 他プロセスがロック保持中、または既に処理済みの場合は何もせずnilを返す。
	// fn内のコンテンツ更新も同一トランザクションのExecutorで行える。
	ProcessDue(ctx context.Context, id string, now time.Time, fn func(ctx context.Context, ex Executor, post *model.ScheduledPost) error) error

	// DeleteTerminalOlderThan はpublished/failedで更新日時がcutoffより古い投稿を削除し、
	// 削除件数を返す。
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
