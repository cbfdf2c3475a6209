package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはAPIレスポンスに含めてはならない。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSummary はログイン応答などで返すパスワードを含まないユーザー情報。
type UserSummary struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// Summary はUserからUserSummaryを生成する。
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// Principal は検証済みトークンから得られる認証主体。
// リクエストごとにユーザーストアとの照合は行わない。
type Principal struct {
	UserID string
	Email  string
}
