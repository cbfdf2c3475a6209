package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/hitoshi/trainsched/internal/model"
)

// MemoryScheduleRepo はプロセス内メモリに時刻表を保持するリポジトリ。
// 一覧は挿入順で返す。
type MemoryScheduleRepo struct {
	mu    sync.RWMutex
	byID  map[string]*model.Schedule
	order []string
}

// NewMemoryScheduleRepo はMemoryScheduleRepoを生成する。
func NewMemoryScheduleRepo() *MemoryScheduleRepo {
	return &MemoryScheduleRepo{
		byID: make(map[string]*model.Schedule),
	}
}

// List は時刻表一覧を挿入順で返す。検索は大文字小文字を区別する部分一致。
func (r *MemoryScheduleRepo) List(ctx context.Context, search string) ([]*model.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schedules := make([]*model.Schedule, 0, len(r.order))
	for _, id := range r.order {
		sc := r.byID[id]
		if search != "" &&
			!strings.Contains(sc.TrainNumber, search) &&
			!strings.Contains(sc.DepartureStation, search) &&
			!strings.Contains(sc.ArrivalStation, search) {
			continue
		}
		copied := *sc
		schedules = append(schedules, &copied)
	}
	return schedules, nil
}

// FindByID は指定IDの時刻表を取得する。見つからない場合はnilを返す。
func (r *MemoryScheduleRepo) FindByID(ctx context.Context, id string) (*model.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sc, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *sc
	return &copied, nil
}

// Create は時刻表を作成する。
func (r *MemoryScheduleRepo) Create(ctx context.Context, sc *model.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *sc
	r.byID[sc.ID] = &copied
	r.order = append(r.order, sc.ID)
	return nil
}

// Update は時刻表を上書きする。対象がない場合はErrNotFoundを返す。
func (r *MemoryScheduleRepo) Update(ctx context.Context, sc *model.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[sc.ID]
	if !ok {
		return ErrNotFound
	}
	copied := *sc
	copied.CreatedAt = existing.CreatedAt
	r.byID[sc.ID] = &copied
	return nil
}

// DeleteByID は指定IDの時刻表を削除する。対象がない場合はErrNotFoundを返す。
func (r *MemoryScheduleRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// compile-time interface check
var _ ScheduleRepository = (*MemoryScheduleRepo)(nil)
