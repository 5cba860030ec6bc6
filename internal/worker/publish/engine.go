// Package publish は予約投稿のLinkedInへの公開処理を提供する。
// スケジューラ、公開エンジン、リトライ/バックオフ戦略を含む。
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/contenthub/internal/content"
	"github.com/hitoshi/contenthub/internal/metrics"
	"github.com/hitoshi/contenthub/internal/model"
	"github.com/hitoshi/contenthub/internal/repository"
	"github.com/hitoshi/contenthub/internal/security"
)

// LinkedInPublisher はLinkedInへの投稿作成のインターフェース。
type LinkedInPublisher interface {
	Publish(ctx context.Context, accessToken, memberID, message string, mediaAssets []string) (string, error)
}

// TokenDecrypter は保存済みトークンの復号のインターフェース。
type TokenDecrypter interface {
	Decrypt(encoded string) (string, error)
}

// Engine は1件の予約投稿の公開処理を行う。
// 投稿のクレーム・資格情報の検証・API呼び出し・状態遷移を
// 1つのトランザクションとして実行する。
type Engine struct {
	postRepo    repository.PostRepository
	contentRepo repository.ContentRepository
	credRepo    repository.CredentialRepository
	publisher   LinkedInPublisher
	cipher      TokenDecrypter
	logger      *slog.Logger
	collector   metrics.MetricsCollector
	timeout     time.Duration
}

// NewEngine はEngineの新しいインスタンスを生成する。
func NewEngine(
	postRepo repository.PostRepository,
	contentRepo repository.ContentRepository,
	credRepo repository.CredentialRepository,
	publisher LinkedInPublisher,
	cipher TokenDecrypter,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	timeout time.Duration,
) *Engine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		postRepo:    postRepo,
		contentRepo: contentRepo,
		credRepo:    credRepo,
		publisher:   publisher,
		cipher:      cipher,
		logger:      logger,
		collector:   collector,
		timeout:     timeout,
	}
}

// ProcessPost は1件の予約投稿を処理する。
// 行をクレームできなかった場合（他プロセス処理中・処理済み）は何もしない。
// 1件のパニックがサイクル全体を落とさないようrecoverする。
func (e *Engine) ProcessPost(ctx context.Context, postID string, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("投稿処理外でpanicが発生しました",
				slog.String("post_id", postID),
				slog.Any("panic", r),
			)
			err = fmt.Errorf("panic while processing post %s: %v", postID, r)
		}
	}()

	return e.postRepo.ProcessDue(ctx, postID, now, func(ctx context.Context, ex repository.Executor, post *model.ScheduledPost) error {
		// panicはトランザクションの中で回収してfailedとして確定させる。
		// トランザクションごと巻き戻すと投稿がpendingのまま残り、
		// 毎サイクル同じpanicを繰り返すことになる。
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("投稿処理中にpanicが発生しました",
					slog.String("post_id", post.ID),
					slog.Any("panic", r),
				)
				ApplyPermanentFailure(post, fmt.Sprintf("内部エラー: %v", r), now)
				e.collector.RecordPublishFailure("internal")
			}
		}()
		e.process(ctx, ex, post, now)
		return nil
	})
}

// process はクレーム済み投稿の公開を試み、結果をpostに反映する。
// 状態の永続化はProcessDueが行うため、ここではpostの書き換えのみを行う。
func (e *Engine) process(ctx context.Context, ex repository.Executor, post *model.ScheduledPost, now time.Time) {
	token, memberID, ok := e.loadCredential(ctx, post, now)
	if !ok {
		e.collector.RecordPublishFailure("credential")
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	externalID, err := e.publisher.Publish(callCtx, token, memberID, post.Message, post.MediaAssets)
	e.collector.RecordPublishLatency(time.Since(start))

	if err != nil {
		e.applyFailure(post, err, now)
		return
	}

	ApplySuccess(post, externalID, now)
	e.collector.RecordPublishSuccess()

	// 紐づくコンテンツがあれば同一トランザクションでPUBLISHEDに進める
	if err := content.AdvancePublishedTx(ctx, e.contentRepo, ex, post.ContentID, now); err != nil {
		// コンテンツ側の更新失敗は投稿の成功を妨げない。ログだけ残す
		e.logger.Error("コンテンツの公開状態の更新に失敗しました",
			slog.String("post_id", post.ID),
			slog.String("content_id", post.ContentID),
			slog.String("error", err.Error()),
		)
	}

	e.logger.Info("投稿を公開しました",
		slog.String("post_id", post.ID),
		slog.String("user_id", post.UserID),
		slog.String("external_post_id", externalID),
	)
}

// loadCredential は投稿者の資格情報を検証して復号済みトークンを返す。
// 使用できない場合はpostに資格情報エラーを反映してfalseを返す。
func (e *Engine) loadCredential(ctx context.Context, post *model.ScheduledPost, now time.Time) (token, memberID string, ok bool) {
	cred, err := e.credRepo.FindByUserID(ctx, post.UserID)
	if err != nil {
		// DB障害は一時的エラーとして次のサイクルに回す
		e.applyFailure(post, err, now)
		return "", "", false
	}

	switch {
	case cred == nil:
		ApplyCredentialFailure(post, "LinkedInアカウントが未連携です", now)
	case cred.IsExpired(now):
		ApplyCredentialFailure(post, "アクセストークンの有効期限が切れています", now)
	case !cred.HasScope(model.RequiredPublishScope):
		ApplyCredentialFailure(post, fmt.Sprintf("投稿に必要なスコープ %s が許可されていません", model.RequiredPublishScope), now)
	default:
		plain, err := e.cipher.Decrypt(cred.AccessToken)
		if err != nil {
			if errors.Is(err, security.ErrInvalidCiphertext) {
				ApplyCredentialFailure(post, "保存済みトークンを復号できません。再連携が必要です", now)
			} else {
				ApplyCredentialFailure(post, fmt.Sprintf("トークンの復号に失敗しました: %s", err), now)
			}
			break
		}
		return plain, cred.LinkedInMemberID, true
	}

	e.logger.Warn("資格情報の問題により投稿を失敗にしました",
		slog.String("post_id", post.ID),
		slog.String("user_id", post.UserID),
		slog.String("last_error", post.LastError),
	)
	return "", "", false
}

// applyFailure はエラーを分類して投稿に反映し、メトリクスを記録する。
func (e *Engine) applyFailure(post *model.ScheduledPost, err error, now time.Time) {
	switch ClassifyPublishError(err) {
	case FailureRetryable:
		if ApplyRetryableFailure(post, err.Error(), now) {
			e.collector.RecordPublishRetry()
			e.logger.Warn("一時的エラーのため投稿を再試行します",
				slog.String("post_id", post.ID),
				slog.Int("retry_count", post.RetryCount),
				slog.Time("next_attempt_at", post.ScheduledAt),
				slog.String("error", err.Error()),
			)
		} else {
			e.collector.RecordPublishFailure("retryable")
			e.logger.Error("リトライ上限に達したため投稿を失敗にしました",
				slog.String("post_id", post.ID),
				slog.String("error", err.Error()),
			)
		}
	case FailurePermanent:
		ApplyPermanentFailure(post, err.Error(), now)
		e.collector.RecordPublishFailure("permanent")
		e.logger.Error("恒久的エラーのため投稿を失敗にしました",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()),
		)
	}
}
