// Package post は予約投稿のビジネスロジックを提供する。
// コンテンツ承認ワークフローを経ない単発の予約投稿を扱う。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/contenthub/internal/connect"
	"github.com/hitoshi/contenthub/internal/model"
	"github.com/hitoshi/contenthub/internal/repository"
)

// scheduleGrace は「過去時刻への予約」を判定する際の猶予。
const scheduleGrace = 10 * time.Second

// Service は予約投稿のビジネスロジックを提供する。
type Service struct {
	postRepo repository.PostRepository
	credRepo repository.CredentialRepository
	nowFunc  func() time.Time
}

// NewService はServiceを生成する。
func NewService(postRepo repository.PostRepository, credRepo repository.CredentialRepository) *Service {
	return &Service{
		postRepo: postRepo,
		credRepo: credRepo,
		nowFunc:  time.Now,
	}
}

// Schedule は新しい予約投稿を作成する。
// scheduledAtがゼロ値の場合は即時投稿として現在時刻を予定にする。
// 過去時刻（10秒の猶予あり）への予約はエラー。
func (s *Service) Schedule(ctx context.Context, actor *model.User, message string, mediaAssets []string, scheduledAt time.Time) (*model.ScheduledPost, error) {
	now := s.nowFunc()
	if scheduledAt.IsZero() {
		scheduledAt = now
	}
	if scheduledAt.Before(now.Add(-scheduleGrace)) {
		return nil, model.NewScheduleInPastError()
	}
	if err := connect.RequirePublishable(ctx, s.credRepo, actor.ID, now); err != nil {
		return nil, err
	}

	post := &model.ScheduledPost{
		ID:          uuid.New().String(),
		UserID:      actor.ID,
		Message:     message,
		MediaAssets: mediaAssets,
		ScheduledAt: scheduledAt,
		Status:      model.PostStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	slog.Info("予約投稿を作成しました",
		slog.String("post_id", post.ID),
		slog.String("user_id", actor.ID),
		slog.Time("scheduled_at", scheduledAt),
	)
	return post, nil
}

// List は実行者自身の予約投稿一覧を返す。
func (s *Service) List(ctx context.Context, actor *model.User) ([]*model.ScheduledPost, error) {
	return s.postRepo.ListByUserID(ctx, actor.ID)
}

// Get は予約投稿を取得する。所有者本人と代理店のみ参照できる。
func (s *Service) Get(ctx context.Context, actor *model.User, postID string) (*model.ScheduledPost, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	if !actor.IsAdmin() && post.UserID != actor.ID {
		return nil, model.NewForbiddenError("他のユーザーの投稿は参照できません")
	}
	return post, nil
}

// Delete はpending状態の予約投稿を削除する。
// published/failedの投稿は削除できず、POST_NOT_PENDINGエラーを返す。
func (s *Service) Delete(ctx context.Context, actor *model.User, postID string) error {
	post, err := s.Get(ctx, actor, postID)
	if err != nil {
		return err
	}
	if post.UserID != actor.ID {
		return model.NewForbiddenError("投稿の削除は所有者のみ可能です")
	}

	deleted, err := s.postRepo.DeletePending(ctx, postID)
	if err != nil {
		return err
	}
	if !deleted {
		// Getとの間に状態が変わった場合もここに落ちる。最新の状態で報告する
		current, err := s.postRepo.FindByID(ctx, postID)
		if err != nil {
			return fmt.Errorf("failed to re-check post: %w", err)
		}
		if current == nil {
			return model.NewPostNotFoundError(postID)
		}
		return model.NewPostNotPendingError(current.Status)
	}

	slog.Info("予約投稿を削除しました",
		slog.String("post_id", postID),
		slog.String("user_id", actor.ID),
	)
	return nil
}
