// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/trainsched/internal/model"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken はemailのユニーク制約違反時に返される。
	ErrEmailTaken = errors.New("email already taken")
)

// UserRepository はユーザー（認証情報）の永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はemailでユーザーを検索する。見つからない場合はnilを返す。
	// 比較は保存値に対して大文字小文字を区別する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// emailが既に存在する場合はErrEmailTakenを返す。
	Create(ctx context.Context, user *model.User) error
}

// ScheduleRepository は時刻表の永続化インターフェース。
type ScheduleRepository interface {
	// List は時刻表一覧を作成日時順で返す。
	// searchが空でない場合、train_number・departure_station・arrival_stationの
	// いずれかにsearchを部分文字列として含むレコードのみを返す。
	List(ctx context.Context, search string) ([]*model.Schedule, error)

	// FindByID は指定IDの時刻表を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Schedule, error)

	// Create は時刻表を作成する。
	Create(ctx context.Context, schedule *model.Schedule) error

	// Update は時刻表の全カラムを上書きする。対象がない場合はErrNotFoundを返す。
	Update(ctx context.Context, schedule *model.Schedule) error

	// DeleteByID は指定IDの時刻表を削除する。対象がない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id string) error
}
