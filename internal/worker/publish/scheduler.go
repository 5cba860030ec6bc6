package publish

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/contenthub/internal/metrics"
	"github.com/hitoshi/contenthub/internal/repository"
)

// listDueLimit は1サイクルで取り出す投稿の最大件数。
const listDueLimit = 100

// PostProcessor は1件の予約投稿の公開処理を実行するインターフェース。
type PostProcessor interface {
	// ProcessPost は指定投稿の公開を試み、結果に応じて投稿状態を更新する。
	ProcessPost(ctx context.Context, postID string, now time.Time) error
}

// Scheduler は予約投稿の公開スケジューリングと並列制御を行う。
// 1分間隔のティッカーで公開期限に達した投稿を取得し、
// semaphoreパターンで最大並列数を制御しながら公開を実行する。
type Scheduler struct {
	postRepo       repository.PostRepository
	processor      PostProcessor
	logger         *slog.Logger
	collector      metrics.MetricsCollector
	maxConcurrency int
	nowFunc        func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。
func NewScheduler(
	postRepo repository.PostRepository,
	processor PostProcessor,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Scheduler{
		postRepo:       postRepo,
		processor:      processor,
		logger:         logger,
		collector:      collector,
		maxConcurrency: maxConcurrency,
		nowFunc:        time.Now,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("公開スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("公開サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("公開スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("公開サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は公開期限に達した投稿を1回取得し、並列で公開を実行する。
// サイクル全体で単一の基準時刻を使い、期限判定の揺れを防ぐ。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	now := s.nowFunc()

	ids, err := s.postRepo.ListDueIDs(ctx, now, listDueLimit)
	if err != nil {
		return err
	}

	s.collector.SetDuePosts(len(ids))

	if len(ids) == 0 {
		s.logger.Info("公開対象の投稿はありません")
		return nil
	}

	s.logger.Info("公開サイクルを開始します",
		slog.Int("post_count", len(ids)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(postID string) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.processor.ProcessPost(ctx, postID, now); err != nil {
				s.logger.Error("投稿の公開処理に失敗しました",
					slog.String("post_id", postID),
					slog.String("error", err.Error()),
				)
			}
		}(id)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("公開サイクルが完了しました",
		slog.Int("post_count", len(ids)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
