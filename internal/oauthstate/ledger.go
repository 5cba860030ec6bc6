// Package oauthstate はOAuth認可フローのCSRF対策用stateトークンを管理する。
//
// stateは認可開始時に発行し、コールバックで1回だけ消費できる。
// 有効期限切れ・再利用・未発行のstateはすべて検証失敗として扱う。
package oauthstate

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// Ledger はstateトークンの発行と消費を提供する。
type Ledger interface {
	// Issue は所有者に紐づく新しいstateトークンを発行する。
	Issue(ctx context.Context, ownerID string) (string, error)

	// VerifyAndConsume はstateを検証して消費する。
	// 有効なstateなら所有者IDとtrueを返す。検証の成否に関わらずstateは2度と使えない。
	VerifyAndConsume(ctx context.Context, state string) (string, bool)

	// InvalidateAll は所有者の未消費stateをすべて無効化する。
	InvalidateAll(ctx context.Context, ownerID string)
}

type entry struct {
	ownerID   string
	expiresAt time.Time
}

// MemoryLedger はプロセス内メモリで管理するLedger実装。
// 単一プロセス構成を前提とし、再起動で未消費stateは失われる。
// 失われたstateは再連携のやり直しで回復できるため永続化しない。
type MemoryLedger struct {
	mu      sync.Mutex
	states  map[string]entry
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewMemoryLedger はTTL付きのMemoryLedgerを生成する。
func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	return &MemoryLedger{
		states:  make(map[string]entry),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Issue は暗号学的乱数から32バイトのstateを生成して登録する。
// 登録のついでに期限切れエントリを掃除する。
func (l *MemoryLedger) Issue(_ context.Context, ownerID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	l.purgeExpiredLocked(now)
	l.states[state] = entry{ownerID: ownerID, expiresAt: now.Add(l.ttl)}

	return state, nil
}

// VerifyAndConsume はstateを検証して消費する。
// 期限切れ・未知のstateはfalseを返す。どちらの場合もエントリは削除される。
func (l *MemoryLedger) VerifyAndConsume(_ context.Context, state string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.states[state]
	if !ok {
		return "", false
	}
	delete(l.states, state)

	if l.nowFunc().After(e.expiresAt) {
		return "", false
	}
	return e.ownerID, true
}

// InvalidateAll は所有者の未消費stateをすべて削除する。
// 連携開始のたびに呼び、古いコールバックが成立しないようにする。
func (l *MemoryLedger) InvalidateAll(_ context.Context, ownerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for state, e := range l.states {
		if e.ownerID == ownerID {
			delete(l.states, state)
		}
	}
}

func (l *MemoryLedger) purgeExpiredLocked(now time.Time) {
	for state, e := range l.states {
		if now.After(e.expiresAt) {
			delete(l.states, state)
		}
	}
}
