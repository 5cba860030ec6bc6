package publish

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/hitoshi/contenthub/internal/linkedin"
	"github.com/hitoshi/contenthub/internal/model"
)

// FailureKind は公開失敗の分類。
type FailureKind int

const (
	// FailureRetryable は一時的エラー（タイムアウト、接続失敗、429、5xx）。
	FailureRetryable FailureKind = iota
	// FailurePermanent は恒久的エラー（リトライしても成功しない4xx等）。
	FailurePermanent
)

const (
	// retryBaseDelay は再試行の初回遅延（5分）。
	retryBaseDelay = 5 * time.Minute
	// retryBackoffFactor は再試行ごとの遅延の倍率。
	// 5分 → 20分 → 80分 と増加する。
	retryBackoffFactor = 4
)

// ClassifyPublishError は公開エラーを一時的/恒久的に分類する。
// ネットワークエラー・タイムアウトは一時的、
// APIエラーは429と5xxが一時的、それ以外のステータスは恒久的。
func ClassifyPublishError(err error) FailureKind {
	var pubErr *linkedin.PublishError
	if errors.As(err, &pubErr) {
		if pubErr.StatusCode == 429 || pubErr.StatusCode >= 500 {
			return FailureRetryable
		}
		return FailurePermanent
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureRetryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureRetryable
	}

	// APIエラー以外（接続断など）は一時的として扱う
	return FailureRetryable
}

// RetryDelay はretryCount回目の失敗後の再試行遅延を返す。
// retryCount=0（初回失敗）で5分、以降4倍ずつ増加する。
func RetryDelay(retryCount int) time.Duration {
	delay := retryBaseDelay
	for i := 0; i < retryCount; i++ {
		delay *= retryBackoffFactor
	}
	return delay
}

// ApplySuccess は公開成功を投稿に反映する。リトライ回数は0に戻す。
func ApplySuccess(post *model.ScheduledPost, externalPostID string, now time.Time) {
	post.Status = model.PostStatusPublished
	post.ExternalPostID = externalPostID
	post.LastError = ""
	post.RetryCount = 0
	post.UpdatedAt = now
}

// ApplyRetryableFailure は一時的エラーを投稿に反映する。
// リトライ上限に達していなければ再試行をスケジュールしてtrueを返し、
// 達していればfailedにしてfalseを返す。
func ApplyRetryableFailure(post *model.ScheduledPost, reason string, now time.Time) bool {
	if post.RetryCount >= model.PublishMaxRetries {
		post.Status = model.PostStatusFailed
		post.ExternalPostID = ""
		post.LastError = fmt.Sprintf("リトライ上限（%d回）に達したため公開を断念しました: %s",
			model.PublishMaxRetries, reason)
		post.UpdatedAt = now
		return false
	}

	delay := RetryDelay(post.RetryCount)
	post.RetryCount++
	post.ScheduledAt = now.Add(delay)
	post.LastError = fmt.Sprintf("一時的エラー（%d回目）: %s。%s に再試行します",
		post.RetryCount, reason, post.ScheduledAt.Format(time.RFC3339))
	post.UpdatedAt = now
	return true
}

// ApplyPermanentFailure は恒久的エラーを投稿に反映する。再試行はしない。
func ApplyPermanentFailure(post *model.ScheduledPost, reason string, now time.Time) {
	post.Status = model.PostStatusFailed
	post.ExternalPostID = ""
	post.LastError = fmt.Sprintf("恒久的エラーのため公開を断念しました: %s", reason)
	post.UpdatedAt = now
}

// ApplyCredentialFailure は資格情報の問題（未連携・期限切れ・スコープ不足・復号失敗）を
// 投稿に反映する。連携し直すまで成功の見込みがないため再試行はしない。
func ApplyCredentialFailure(post *model.ScheduledPost, reason string, now time.Time) {
	post.Status = model.PostStatusFailed
	post.ExternalPostID = ""
	post.LastError = fmt.Sprintf("LinkedIn資格情報が使用できません: %s", reason)
	post.UpdatedAt = now
}
