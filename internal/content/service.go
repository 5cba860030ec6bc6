// Package content はコンテンツ承認ワークフローのビジネスロジックを提供する。
//
// 代理店（admin）がクライアントの代わりにコンテンツを作成し、
// クライアント（コンテンツの所有者）が承認または修正依頼する。
//
// コンテンツの状態遷移:
//
//	DRAFT → PENDING_APPROVAL → APPROVED → SCHEDULED → PUBLISHED
//	            ↓       ↑
//	      REVISION_REQUESTED
//
// 遷移操作にはすべて実行者（actor）の権限チェックが伴う。
package content

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
// リクエスト処理中の時計進行で直近の予約が弾かれないようにする。
const scheduleGrace = 10 * time.Second

// Service はコンテンツワークフローのビジネスロジックを提供する。
type Service struct {
	contentRepo repository.ContentRepository
	postRepo    repository.PostRepository
	credRepo    repository.CredentialRepository
	nowFunc     func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	contentRepo repository.ContentRepository,
	postRepo repository.PostRepository,
	credRepo repository.CredentialRepository,
) *Service {
	return &Service{
		contentRepo: contentRepo,
		postRepo:    postRepo,
		credRepo:    credRepo,
		nowFunc:     time.Now,
	}
}

// CreateDraft は指定クライアントに向けた下書きコンテンツを作成する。
// 代理店ユーザーのみ実行できる。
func (s *Service) CreateDraft(ctx context.Context, actor *model.User, ownerUserID, title, body string) (*model.Content, error) {
	if !actor.IsAdmin() {
		return nil, model.NewForbiddenError("コンテンツの作成は代理店ユーザーのみ可能です")
	}

	now := s.nowFunc()
	content := &model.Content{
		ID:          uuid.New().String(),
		OwnerUserID: ownerUserID,
		Title:       title,
		Body:        body,
		Status:      model.ContentStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.contentRepo.Create(ctx, content); err != nil {
		return nil, err
	}

	slog.Info("下書きを作成しました",
		slog.String("content_id", content.ID),
		slog.String("owner_user_id", ownerUserID),
		slog.String("created_by", actor.ID),
	)
	return content, nil
}

// Get はコンテンツを取得する。代理店と所有者本人のみ参照できる。
func (s *Service) Get(ctx context.Context, actor *model.User, contentID string) (*model.Content, error) {
	return s.findForActor(ctx, actor, contentID)
}

// List はコンテンツ一覧を返す。代理店は全件、クライアントは自分のコンテンツのみ。
func (s *Service) List(ctx context.Context, actor *model.User) ([]*model.Content, error) {
	if actor.IsAdmin() {
		return s.contentRepo.ListAll(ctx)
	}
	return s.contentRepo.ListByOwner(ctx, actor.ID)
}

// UpdateDraft は下書きの内容を更新する。
// DRAFTまたはREVISION_REQUESTEDの間のみ、代理店ユーザーが編集できる。
func (s *Service) UpdateDraft(ctx context.Context, actor *model.User, contentID, title, body string) (*model.Content, error) {
	if !actor.IsAdmin() {
		return nil, model.NewForbiddenError("コンテンツの編集は代理店ユーザーのみ可能です")
	}

	content, err := s.findForActor(ctx, actor, contentID)
	if err != nil {
		return nil, err
	}
	if content.Status != model.ContentStatusDraft && content.Status != model.ContentStatusRevisionRequested {
		return nil, model.NewInvalidTransitionError(content.Status,
			model.ContentStatusDraft, model.ContentStatusRevisionRequested)
	}

	content.Title = title
	content.Body = body
	content.UpdatedAt = s.nowFunc()
	if err := s.contentRepo.Update(ctx, content); err != nil {
		return nil, err
	}
	return content, nil
}

// Submit はコンテンツをクライアントの承認待ちに出す。代理店ユーザーのみ。
// DRAFTまたはREVISION_REQUESTEDから遷移でき、修正依頼コメントはクリアされる。
func (s *Service) Submit(ctx context.Context, actor *model.User, contentID string) (*model.Content, error) {
	if !actor.IsAdmin() {
		return nil, model.NewForbiddenError("承認依頼は代理店ユーザーのみ可能です")
	}

	content, err := s.findForActor(ctx, actor, contentID)
	if err != nil {
		return nil, err
	}
	if content.Status != model.ContentStatusDraft && content.Status != model.ContentStatusRevisionRequested {
		return nil, model.NewInvalidTransitionError(content.Status,
			model.ContentStatusDraft, model.ContentStatusRevisionRequested)
	}

	content.Status = model.ContentStatusPendingApproval
	content.ReviewComment = ""
	content.UpdatedAt = s.nowFunc()
	if err := s.contentRepo.Update(ctx, content); err != nil {
		return nil, err
	}

	slog.Info("コンテンツを承認依頼に出しました", slog.String("content_id", content.ID))
	return content, nil
}

// Approve はコンテンツを承認する。所有者（クライアント）のみ実行できる。
func (s *Service) Approve(ctx context.Context, actor *model.User, contentID string) (*model.Content, error) {
	content, err := s.findForActor(ctx, actor, contentID)
	if err != nil {
		return nil, err
	}
	if content.OwnerUserID != actor.ID {
		return nil, model.NewForbiddenError("承認はコンテンツの所有者のみ可能です")
	}
	if content.Status != model.ContentStatusPendingApproval {
		return nil, model.NewInvalidTransitionError(content.Status, model.ContentStatusPendingApproval)
	}

	content.Status = model.ContentStatusApproved
	content.ReviewComment = ""
	content.UpdatedAt = s.nowFunc()
	if err := s.contentRepo.Update(ctx, content); err != nil {
		return nil, err
	}

	slog.Info("コンテンツが承認されました",
		slog.String("content_id", content.ID),
		slog.String("approved_by", actor.ID),
	)
	return content, nil
}

// RequestRevision は修正を依頼する。所有者のみ、コメント必須。
func (s *Service) RequestRevision(ctx context.Context, actor *model.User, contentID, comment string) (*model.Content, error) {
	if comment == "" {
		return nil, model.NewCommentRequiredError()
	}

	content, err := s.findForActor(ctx, actor, contentID)
	if err != nil {
		return nil, err
	}
	if content.OwnerUserID != actor.ID {
		return nil, model.NewForbiddenError("修正依頼はコンテンツの所有者のみ可能です")
	}
	if content.Status != model.ContentStatusPendingApproval {
		return nil, model.NewInvalidTransitionError(content.Status, model.ContentStatusPendingApproval)
	}

	content.Status = model.ContentStatusRevisionRequested
	content.ReviewComment = comment
	content.UpdatedAt = s.nowFunc()
	if err := s.contentRepo.Update(ctx, content); err != nil {
		return nil, err
	}

	slog.Info("修正が依頼されました", slog.String("content_id", content.ID))
	return content, nil
}

// Schedule は承認済みコンテンツの予約投稿を作成し、コンテンツをSCHEDULEDに進める。
// 所有者のみ実行でき、投稿は所有者のLinkedInアカウントで公開される。
// 予約時刻は現在時刻（10秒の猶予あり）より未来でなければならない。
func (s *Service) Schedule(ctx context.Context, actor *model.User, contentID string, scheduledAt time.Time) (*model.Content, *model.ScheduledPost, error) {
	content, err := s.findForActor(ctx, actor, contentID)
	if err != nil {
		return nil, nil, err
	}
	if content.OwnerUserID != actor.ID {
		return nil, nil, model.NewForbiddenError("予約はコンテンツの所有者のみ可能です")
	}
	if content.Status != model.ContentStatusApproved {
		return nil, nil, model.NewInvalidTransitionError(content.Status, model.ContentStatusApproved)
	}

	now := s.nowFunc()
	if scheduledAt.Before(now.Add(-scheduleGrace)) {
		return nil, nil, model.NewScheduleInPastError()
	}
	if err := connect.RequirePublishable(ctx, s.credRepo, content.OwnerUserID, now); err != nil {
		return nil, nil, err
	}

	post := &model.ScheduledPost{
		ID:          uuid.New().String(),
		UserID:      content.OwnerUserID,
		ContentID:   content.ID,
		Message:     content.Body,
		ScheduledAt: scheduledAt,
		Status:      model.PostStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	content.Status = model.ContentStatusScheduled
	content.ScheduledAt = &scheduledAt
	content.UpdatedAt = now

	// 投稿の作成とSCHEDULED遷移を同一トランザクションで確定させる。
	// 別々に書き込むと遷移側の失敗時にpending投稿だけが残り、
	// リトライで同じコンテンツの投稿が二重に作られる。
	err = s.postRepo.CreateInTx(ctx, post, func(ctx context.Context, ex repository.Executor) error {
		return s.contentRepo.UpdateTx(ctx, ex, content)
	})
	if err != nil {
		return nil, nil, err
	}

	slog.Info("コンテンツの公開を予約しました",
		slog.String("content_id", content.ID),
		slog.String("post_id", post.ID),
		slog.Time("scheduled_at", scheduledAt),
	)
	return content, post, nil
}

// PostNow は承認済みコンテンツの即時投稿を作成する。
// 予約時刻を現在にしたpending投稿を作るだけで、実際の公開はPublisherが行う。
// コンテンツの状態はAPPROVEDのまま変えない（公開成功時にPublisherが進める）。
func (s *Service) PostNow(ctx context.Context, actor *model.User, contentID string) (*model.ScheduledPost, error) {
	content, err := s.findForActor(ctx, actor, contentID)
	if err != nil {
		return nil, err
	}
	if content.OwnerUserID != actor.ID {
		return nil, model.NewForbiddenError("即時投稿はコンテンツの所有者のみ可能です")
	}
	if content.Status != model.ContentStatusApproved {
		return nil, model.NewInvalidTransitionError(content.Status, model.ContentStatusApproved)
	}

	now := s.nowFunc()
	if err := connect.RequirePublishable(ctx, s.credRepo, content.OwnerUserID, now); err != nil {
		return nil, err
	}

	post := &model.ScheduledPost{
		ID:          uuid.New().String(),
		UserID:      content.OwnerUserID,
		ContentID:   content.ID,
		Message:     content.Body,
		ScheduledAt: now,
		Status:      model.PostStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	slog.Info("即時投稿を作成しました",
		slog.String("content_id", content.ID),
		slog.String("post_id", post.ID),
	)
	return post, nil
}

// MarkPublished はコンテンツを手動で公開済みにする。冪等で、既にPUBLISHEDなら何もしない。
// APPROVEDまたはSCHEDULEDから遷移できる。外部で直接公開した場合の手動反映用。
func (s *Service) MarkPublished(ctx context.Context, actor *model.User, contentID string) (*model.Content, error) {
	content, err := s.findForActor(ctx, actor, contentID)
	if err != nil {
		return nil, err
	}
	if content.Status == model.ContentStatusPublished {
		return content, nil
	}
	if content.Status != model.ContentStatusApproved && content.Status != model.ContentStatusScheduled {
		return nil, model.NewInvalidTransitionError(content.Status,
			model.ContentStatusApproved, model.ContentStatusScheduled)
	}

	now := s.nowFunc()
	content.Status = model.ContentStatusPublished
	content.PublishedAt = &now
	content.UpdatedAt = now
	if err := s.contentRepo.Update(ctx, content); err != nil {
		return nil, err
	}

	slog.Info("コンテンツを公開済みにしました", slog.String("content_id", content.ID))
	return content, nil
}

// AdvancePublishedTx はPublisher用に、コンテンツをトランザクション内でPUBLISHEDに進める。
// 冪等で、既にPUBLISHEDの場合や行が存在しない場合は何もしない。
func AdvancePublishedTx(ctx context.Context, contentRepo repository.ContentRepository, ex repository.Executor, contentID string, now time.Time) error {
	if contentID == "" {
		return nil
	}
	content, err := contentRepo.FindByIDTx(ctx, ex, contentID)
	if err != nil {
		return err
	}
	if content == nil || content.Status == model.ContentStatusPublished {
		return nil
	}

	content.Status = model.ContentStatusPublished
	content.PublishedAt = &now
	content.UpdatedAt = now
	return contentRepo.UpdateTx(ctx, ex, content)
}

// findForActor はコンテンツを取得し、参照権限を確認する。
// 存在しない場合はNOT_FOUND、他人のコンテンツをクライアントが参照した場合はFORBIDDEN。
func (s *Service) findForActor(ctx context.Context, actor *model.User, contentID string) (*model.Content, error) {
	content, err := s.contentRepo.FindByID(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find content: %w", err)
	}
	if content == nil {
		return nil, model.NewContentNotFoundError(contentID)
	}
	if !actor.IsAdmin() && content.OwnerUserID != actor.ID {
		return nil, model.NewForbiddenError("他のユーザーのコンテンツは参照できません")
	}
	return content, nil
}
