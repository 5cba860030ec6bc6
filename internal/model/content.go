package model

import "time"

// ContentStatus はコンテンツの承認ワークフロー上の状態を表す。
type ContentStatus string

const (
	// ContentStatusDraft は代理店が作成した下書き状態。
	ContentStatusDraft ContentStatus = "DRAFT"
	// ContentStatusPendingApproval はクライアントの承認待ち状態。
	ContentStatusPendingApproval ContentStatus = "PENDING_APPROVAL"
	// ContentStatusRevisionRequested はクライアントが修正を依頼した状態。
	ContentStatusRevisionRequested ContentStatus = "REVISION_REQUESTED"
	// ContentStatusApproved はクライアントが承認した状態。
	ContentStatusApproved ContentStatus = "APPROVED"
	// ContentStatusScheduled は公開予約済みの状態。
	ContentStatusScheduled ContentStatus = "SCHEDULED"
	// ContentStatusPublished は公開済みの状態。
	ContentStatusPublished ContentStatus = "PUBLISHED"
)

// Content は代理店とクライアントの間でレビューされるコンテンツを表す。
// ReviewCommentはREVISION_REQUESTED状態の間のみ保持される。
// PublishedAtは一度でもPUBLISHEDに到達した場合にのみ設定される。
type Content struct {
	ID            string
	OwnerUserID   string
	Title         string
	Body          string
	Status        ContentStatus
	ReviewComment string
	ScheduledAt   *time.Time
	PublishedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
