package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, workflow, linkedin, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeContentNotFound      = "CONTENT_NOT_FOUND"
	ErrCodePostNotFound         = "POST_NOT_FOUND"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeCommentRequired      = "REVIEW_COMMENT_REQUIRED"
	ErrCodePostNotPending       = "POST_NOT_PENDING"
	ErrCodeScheduleInPast       = "SCHEDULE_IN_PAST"
	ErrCodeLinkedInNotConnected = "LINKEDIN_NOT_CONNECTED"
	ErrCodeLinkedInScopeMissing = "LINKEDIN_SCOPE_MISSING"
)

// NewUnauthorizedError は認証トークンが無効・欠落している場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証されていません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// 存在しないユーザーとパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この操作を実行する権限がありません: %s", reason),
		Category: "auth",
		Action:   "操作対象と自分の役割を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewContentNotFoundError はコンテンツ未検出エラーを生成する。
func NewContentNotFoundError(contentID string) *APIError {
	return &APIError{
		Code:     ErrCodeContentNotFound,
		Message:  fmt.Sprintf("指定されたコンテンツが見つかりません: %s", contentID),
		Category: "workflow",
		Action:   "コンテンツIDを確認してください。",
	}
}

// NewPostNotFoundError は予約投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された予約投稿が見つかりません: %s", postID),
		Category: "workflow",
		Action:   "投稿IDを確認してください。",
	}
}

// NewInvalidTransitionError は不正な状態遷移エラーを生成する。
// 遷移に必要な遷移元状態を列挙してメッセージに含める。
func NewInvalidTransitionError(current ContentStatus, allowed ...ContentStatus) *APIError {
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("現在の状態 %s からはこの操作を実行できません。必要な状態: %s", current, strings.Join(names, ", ")),
		Category: "workflow",
		Action:   "コンテンツの現在の状態を確認してください。",
	}
}

// NewCommentRequiredError は修正依頼コメント未入力エラーを生成する。
func NewCommentRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeCommentRequired,
		Message:  "修正依頼にはコメントの入力が必要です。",
		Category: "validation",
		Action:   "修正してほしい内容をコメントに記入してください。",
	}
}

// NewPostNotPendingError はpending以外の予約投稿を削除しようとした場合のエラーを生成する。
func NewPostNotPendingError(status PostStatus) *APIError {
	return &APIError{
		Code:     ErrCodePostNotPending,
		Message:  fmt.Sprintf("公開待ち（pending）以外の投稿は削除できません。現在の状態: %s", status),
		Category: "workflow",
		Action:   "公開済み・失敗済みの投稿は削除できません。",
	}
}

// NewScheduleInPastError は過去時刻への予約エラーを生成する。
func NewScheduleInPastError() *APIError {
	return &APIError{
		Code:     ErrCodeScheduleInPast,
		Message:  "予約時刻は未来の時刻を指定してください。",
		Category: "validation",
		Action:   "現在時刻より後の時刻を指定してください。",
	}
}

// NewLinkedInNotConnectedError はLinkedIn未連携エラーを生成する。
// トークンの有効期限切れも同じエラーとして扱う。
func NewLinkedInNotConnectedError() *APIError {
	return &APIError{
		Code:     ErrCodeLinkedInNotConnected,
		Message:  "LinkedInアカウントが未連携、またはトークンの有効期限が切れています。",
		Category: "linkedin",
		Action:   "設定画面からLinkedInアカウントを連携（再連携）してください。",
	}
}

// NewLinkedInScopeMissingError は必要スコープ未許可エラーを生成する。
func NewLinkedInScopeMissingError(scope string) *APIError {
	return &APIError{
		Code:     ErrCodeLinkedInScopeMissing,
		Message:  fmt.Sprintf("必要なLinkedInの権限 %q が許可されていません。", scope),
		Category: "linkedin",
		Action:   "LinkedInを再連携し、投稿権限を許可してください。",
	}
}
