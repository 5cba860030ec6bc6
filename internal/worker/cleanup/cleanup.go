// Package cleanup は完了済み予約投稿の自動削除ジョブを提供する。
// 保持期間（デフォルト180日）を超過したpublished/failedの投稿を
// 日次バッチで削除する。pendingの投稿は対象外。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/contenthub/internal/repository"
)

// CleanupJob は保持期間を超過した完了済み投稿の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	postRepo      repository.PostRepository
	logger        *slog.Logger
	RetentionDays int // 完了済み投稿の保持日数（デフォルト: 180）

	nowFunc func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は180日。
func NewCleanupJob(postRepo repository.PostRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		postRepo:      postRepo,
		logger:        logger,
		RetentionDays: 180,
		nowFunc:       time.Now,
	}
}

// Run は保持期間を超過したpublished/failedの投稿を削除する。
// updated_atがRetentionDays日前より古い行が対象になる。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	cutoff := j.nowFunc().AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.postRepo.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("投稿クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("投稿クリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("投稿クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
