// Package model はドメインモデルを定義する。
package model

import "time"

// UserRole はユーザーの役割を表す。
type UserRole string

const (
	// UserRoleAdmin は代理店側（エージェンシー）のユーザー。
	UserRoleAdmin UserRole = "admin"
	// UserRoleClient はクライアント側のユーザー。
	UserRoleClient UserRole = "client"
)

// User はサービス利用ユーザーを表す。
// 代理店（admin）とクライアント（client）を同一テーブルで管理する。
type User struct {
	ID             string
	Email          string
	Name           string
	Role           UserRole
	HashedPassword string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsAdmin は代理店ユーザーかどうかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
