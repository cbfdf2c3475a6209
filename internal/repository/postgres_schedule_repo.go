package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/trainsched/internal/model"
)

// PostgresScheduleRepo はPostgreSQLを使用した時刻表リポジトリ。
type PostgresScheduleRepo struct {
	db *sql.DB
}

// NewPostgresScheduleRepo はPostgresScheduleRepoを生成する。
func NewPostgresScheduleRepo(db *sql.DB) *PostgresScheduleRepo {
	return &PostgresScheduleRepo{db: db}
}

const selectScheduleColumns = `SELECT id, train_number, departure_station, arrival_station,
        departure_time, arrival_time, platform, is_active, created_at, updated_at
 FROM schedules`

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(s rowScanner) (*model.Schedule, error) {
	sc := &model.Schedule{}
	err := s.Scan(
		&sc.ID, &sc.TrainNumber, &sc.DepartureStation, &sc.ArrivalStation,
		&sc.DepartureTime, &sc.ArrivalTime, &sc.Platform, &sc.IsActive,
		&sc.CreatedAt, &sc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// List は時刻表一覧を作成日時順で返す。
// 検索語はLIKEのメタ文字をエスケープした上で3カラムのOR条件で部分一致させる。
func (r *PostgresScheduleRepo) List(ctx context.Context, search string) ([]*model.Schedule, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if search == "" {
		rows, err = r.db.QueryContext(ctx, selectScheduleColumns+` ORDER BY created_at, id`)
	} else {
		rows, err = r.db.QueryContext(ctx,
			selectScheduleColumns+`
			 WHERE train_number LIKE $1
			    OR departure_station LIKE $1
			    OR arrival_station LIKE $1
			 ORDER BY created_at, id`,
			containsPattern(search),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("時刻表一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	schedules := make([]*model.Schedule, 0)
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("時刻表の読み取りに失敗しました: %w", err)
		}
		schedules = append(schedules, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("時刻表一覧の走査に失敗しました: %w", err)
	}

	return schedules, nil
}

// FindByID は指定IDの時刻表を取得する。見つからない場合はnilを返す。
func (r *PostgresScheduleRepo) FindByID(ctx context.Context, id string) (*model.Schedule, error) {
	sc, err := scanSchedule(r.db.QueryRowContext(ctx, selectScheduleColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("時刻表の取得に失敗しました: %w", err)
	}
	return sc, nil
}

// Create は時刻表を作成する。
func (r *PostgresScheduleRepo) Create(ctx context.Context, sc *model.Schedule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO schedules (id, train_number, departure_station, arrival_station,
		                        departure_time, arrival_time, platform, is_active,
		                        created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sc.ID, sc.TrainNumber, sc.DepartureStation, sc.ArrivalStation,
		sc.DepartureTime, sc.ArrivalTime, sc.Platform, sc.IsActive,
		sc.CreatedAt, sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("時刻表の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は時刻表の全カラムを上書きする。
// 楽観ロックは行わないため、同一IDへの同時更新は後勝ちになる。
func (r *PostgresScheduleRepo) Update(ctx context.Context, sc *model.Schedule) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE schedules SET
		    train_number = $2, departure_station = $3, arrival_station = $4,
		    departure_time = $5, arrival_time = $6, platform = $7,
		    is_active = $8, updated_at = $9
		 WHERE id = $1`,
		sc.ID, sc.TrainNumber, sc.DepartureStation, sc.ArrivalStation,
		sc.DepartureTime, sc.ArrivalTime, sc.Platform,
		sc.IsActive, sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("時刻表の更新に失敗しました: %w", err)
	}
	return requireAffected(result)
}

// DeleteByID は指定IDの時刻表を削除する。
func (r *PostgresScheduleRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("時刻表の削除に失敗しました: %w", err)
	}
	return requireAffected(result)
}

// requireAffected は影響行数が0の場合にErrNotFoundを返す。
func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ ScheduleRepository = (*PostgresScheduleRepo)(nil)
