// Package schedule は時刻表のドメインロジックを提供する。
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/trainsched/internal/metrics"
	"github.com/hitoshi/trainsched/internal/model"
	"github.com/hitoshi/trainsched/internal/repository"
)

// 操作種別（メトリクスラベル）
const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// CreateInput は時刻表作成の入力値。全項目指定済みであることを前提とする。
type CreateInput struct {
	TrainNumber      string
	DepartureStation string
	ArrivalStation   string
	DepartureTime    time.Time
	ArrivalTime      time.Time
	Platform         string
	IsActive         bool
}

// UpdateInput は時刻表更新の入力値。nilの項目は既存値を保持する。
type UpdateInput struct {
	TrainNumber      *string
	DepartureStation *string
	ArrivalStation   *string
	DepartureTime    *time.Time
	ArrivalTime      *time.Time
	Platform         *string
	IsActive         *bool
}

// Service は時刻表のサービス層。
type Service struct {
	repo    repository.ScheduleRepository
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ScheduleRepository, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		repo:    repo,
		metrics: mc,
		now:     time.Now,
	}
}

// Create は時刻表を作成する。出発・到着時刻の前後関係は検証しない。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Schedule, error) {
	now := s.now().UTC()
	sc := &model.Schedule{
		ID:               uuid.NewString(),
		TrainNumber:      in.TrainNumber,
		DepartureStation: in.DepartureStation,
		ArrivalStation:   in.ArrivalStation,
		DepartureTime:    in.DepartureTime,
		ArrivalTime:      in.ArrivalTime,
		Platform:         in.Platform,
		IsActive:         in.IsActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, sc); err != nil {
		s.metrics.RecordScheduleOperation(opCreate, metrics.OutcomeError)
		return nil, fmt.Errorf("時刻表の作成に失敗しました: %w", err)
	}

	s.metrics.RecordScheduleOperation(opCreate, metrics.OutcomeSuccess)
	slog.Info("schedule created",
		slog.String("schedule_id", sc.ID),
		slog.String("train_number", sc.TrainNumber),
	)
	return sc, nil
}

// FindAll は時刻表一覧を返す。searchが空の場合は全件を返す。
func (s *Service) FindAll(ctx context.Context, search string) ([]*model.Schedule, error) {
	schedules, err := s.repo.List(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("時刻表一覧の取得に失敗しました: %w", err)
	}
	return schedules, nil
}

// FindOne は指定IDの時刻表を返す。存在しない場合はNotFoundエラーを返す。
func (s *Service) FindOne(ctx context.Context, id string) (*model.Schedule, error) {
	// UUID形式でないIDは存在し得ないためストアに問い合わせない
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewScheduleNotFoundError(id)
	}

	sc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("時刻表の取得に失敗しました: %w", err)
	}
	if sc == nil {
		return nil, model.NewScheduleNotFoundError(id)
	}
	return sc, nil
}

// Update は既存レコードに指定項目のみを上書きして保存する。
// 読み込みと書き込みの間で排他しないため、同一IDへの同時更新は後勝ちになる。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.Schedule, error) {
	sc, err := s.FindOne(ctx, id)
	if err != nil {
		s.recordFailure(opUpdate, err)
		return nil, err
	}

	applyUpdate(sc, in)
	sc.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, sc); err != nil {
		// 読み込み後に別リクエストで削除された場合
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordScheduleOperation(opUpdate, metrics.OutcomeNotFound)
			return nil, model.NewScheduleNotFoundError(id)
		}
		s.metrics.RecordScheduleOperation(opUpdate, metrics.OutcomeError)
		return nil, fmt.Errorf("時刻表の更新に失敗しました: %w", err)
	}

	s.metrics.RecordScheduleOperation(opUpdate, metrics.OutcomeSuccess)
	slog.Info("schedule updated", slog.String("schedule_id", id))
	return sc, nil
}

// Remove は時刻表を削除する。存在しない場合はNotFoundエラーを返す。
func (s *Service) Remove(ctx context.Context, id string) error {
	if _, err := s.FindOne(ctx, id); err != nil {
		s.recordFailure(opDelete, err)
		return err
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordScheduleOperation(opDelete, metrics.OutcomeNotFound)
			return model.NewScheduleNotFoundError(id)
		}
		s.metrics.RecordScheduleOperation(opDelete, metrics.OutcomeError)
		return fmt.Errorf("時刻表の削除に失敗しました: %w", err)
	}

	s.metrics.RecordScheduleOperation(opDelete, metrics.OutcomeSuccess)
	slog.Info("schedule deleted", slog.String("schedule_id", id))
	return nil
}

// recordFailure はFindOneの失敗を結果種別に分けて記録する。
func (s *Service) recordFailure(op string, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeScheduleNotFound {
		s.metrics.RecordScheduleOperation(op, metrics.OutcomeNotFound)
		return
	}
	s.metrics.RecordScheduleOperation(op, metrics.OutcomeError)
}

// applyUpdate は指定された項目のみを上書きする（浅いマージ）。
func applyUpdate(sc *model.Schedule, in UpdateInput) {
	if in.TrainNumber != nil {
		sc.TrainNumber = *in.TrainNumber
	}
	if in.DepartureStation != nil {
		sc.DepartureStation = *in.DepartureStation
	}
	if in.ArrivalStation != nil {
		sc.ArrivalStation = *in.ArrivalStation
	}
	if in.DepartureTime != nil {
		sc.DepartureTime = *in.DepartureTime
	}
	if in.ArrivalTime != nil {
		sc.ArrivalTime = *in.ArrivalTime
	}
	if in.Platform != nil {
		sc.Platform = *in.Platform
	}
	if in.IsActive != nil {
		sc.IsActive = *in.IsActive
	}
}
