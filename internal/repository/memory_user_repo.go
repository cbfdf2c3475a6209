package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/trainsched/internal/model"
)

// MemoryUserRepo はプロセス内メモリにユーザーを保持するリポジトリ。
// DATABASE_URL=memory:// の開発モードとテストで使用する。
// 存在確認と挿入を同一ロック内で行うため、email重複は常に検出される。
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
	}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

// FindByEmail はemailでユーザーを検索する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	copied := *r.byID[id]
	return &copied, nil
}

// Create はユーザーを作成する。emailが既に存在する場合はErrEmailTakenを返す。
func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return ErrEmailTaken
	}
	copied := *user
	r.byID[user.ID] = &copied
	r.byEmail[user.Email] = user.ID
	return nil
}

// compile-time interface check
var _ UserRepository = (*MemoryUserRepo)(nil)
