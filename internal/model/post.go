package model

import "time"

// PostStatus は予約投稿の状態を表す。
type PostStatus string

const (
	// PostStatusPending は公開待ちの状態。パブリッシャーの処理対象。
	PostStatusPending PostStatus = "pending"
	// PostStatusPublished は外部サービスへの公開に成功した状態。
	PostStatusPublished PostStatus = "published"
	// PostStatusFailed はリトライ上限または恒久的エラーで公開を断念した状態。
	PostStatusFailed PostStatus = "failed"
)

// PublishMaxRetries は一時的エラーに対するリトライ回数の上限。
const PublishMaxRetries = 3

// ScheduledPost はLinkedInへの予約投稿ジョブを表す。
// コンテンツ承認ワークフローとは疎結合で、ContentIDは任意参照（0または1件）。
// pending状態の間は所有者が削除でき、それ以降の遷移はパブリッシャーのみが行う。
type ScheduledPost struct {
	ID             string
	UserID         string
	ContentID      string // 関連コンテンツID。未関連の場合は空
	Message        string
	MediaAssets    []string // アップロード済みメディアのアセットURN
	ScheduledAt    time.Time
	Status         PostStatus
	ExternalPostID string // 公開成功時にLinkedInが発行する投稿ID
	LastError      string
	RetryCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
