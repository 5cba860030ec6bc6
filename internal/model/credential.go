package model

import (
	"strings"
	"time"
)

// RequiredPublishScope は投稿の公開に必要なLinkedInのスコープ。
const RequiredPublishScope = "w_member_social"

// Credential はユーザーごとのLinkedIn連携資格情報を表す。
// access_tokenは保存時に暗号化されており、このモデルには暗号文のまま保持される。
// 書き込みはOAuthコネクタと切断操作のみ。パブリッシャーからは読み取り専用。
type Credential struct {
	UserID           string
	LinkedInMemberID string
	AccessToken      string // 暗号化済みトークン（base64）
	ExpiresAt        time.Time
	Scopes           string // スペース区切りの許可スコープ
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasScope は指定スコープが許可されているかを返す。
// LinkedInはスコープをスペース区切りまたはカンマ区切りで返すことがあるため両方を許容する。
func (c *Credential) HasScope(scope string) bool {
	normalized := strings.ReplaceAll(c.Scopes, ",", " ")
	for _, s := range strings.Fields(normalized) {
		if s == scope {
			return true
		}
	}
	return false
}

// IsExpired は有効期限が基準時刻以前かどうかを返す。
func (c *Credential) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
