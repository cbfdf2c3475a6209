package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trainsched/internal/middleware"
	"github.com/hitoshi/trainsched/internal/model"
	"github.com/hitoshi/trainsched/internal/schedule"
)

// ScheduleServiceInterface は時刻表ハンドラーが必要とするサービスインターフェース。
type ScheduleServiceInterface interface {
	Create(ctx context.Context, in schedule.CreateInput) (*model.Schedule, error)
	FindAll(ctx context.Context, search string) ([]*model.Schedule, error)
	FindOne(ctx context.Context, id string) (*model.Schedule, error)
	Update(ctx context.Context, id string, in schedule.UpdateInput) (*model.Schedule, error)
	Remove(ctx context.Context, id string) error
}

// ScheduleHandler は時刻表CRUDのHTTPハンドラー。
type ScheduleHandler struct {
	service ScheduleServiceInterface
}

// NewScheduleHandler はScheduleHandlerを生成する。
func NewScheduleHandler(service ScheduleServiceInterface) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// scheduleTimeLayouts は受け付ける日時形式。タイムゾーンなしの形式はUTCとして扱う。
var scheduleTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseScheduleTime は日時文字列を解析する。
func parseScheduleTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range scheduleTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// scheduleRequest は作成・更新共通のリクエストボディ。
// 省略された項目を区別するため全てポインタで受ける。
type scheduleRequest struct {
	TrainNumber      *string `json:"trainNumber"`
	DepartureStation *string `json:"departureStation"`
	ArrivalStation   *string `json:"arrivalStation"`
	DepartureTime    *string `json:"departureTime"`
	ArrivalTime      *string `json:"arrivalTime"`
	Platform         *string `json:"platform"`
	IsActive         *bool   `json:"isActive"`
}

type scheduleResponse struct {
	ID               string    `json:"id"`
	TrainNumber      string    `json:"trainNumber"`
	DepartureStation string    `json:"departureStation"`
	ArrivalStation   string    `json:"arrivalStation"`
	DepartureTime    time.Time `json:"departureTime"`
	ArrivalTime      time.Time `json:"arrivalTime"`
	Platform         string    `json:"platform"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toScheduleResponse(sc *model.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:               sc.ID,
		TrainNumber:      sc.TrainNumber,
		DepartureStation: sc.DepartureStation,
		ArrivalStation:   sc.ArrivalStation,
		DepartureTime:    sc.DepartureTime,
		ArrivalTime:      sc.ArrivalTime,
		Platform:         sc.Platform,
		IsActive:         sc.IsActive,
		CreatedAt:        sc.CreatedAt,
		UpdatedAt:        sc.UpdatedAt,
	}
}

// toCreateInput は作成リクエストを検証して入力値に変換する。
func (req *scheduleRequest) toCreateInput() (schedule.CreateInput, *model.APIError) {
	in := schedule.CreateInput{IsActive: true}

	required := []struct {
		name  string
		value *string
		dst   *string
	}{
		{"trainNumber", req.TrainNumber, &in.TrainNumber},
		{"departureStation", req.DepartureStation, &in.DepartureStation},
		{"arrivalStation", req.ArrivalStation, &in.ArrivalStation},
		{"platform", req.Platform, &in.Platform},
	}
	for _, f := range required {
		if f.value == nil || strings.TrimSpace(*f.value) == "" {
			return in, model.NewValidationError(f.name + " は必須です")
		}
		*f.dst = *f.value
	}

	if req.DepartureTime == nil {
		return in, model.NewValidationError("departureTime は必須です")
	}
	dep, ok := parseScheduleTime(*req.DepartureTime)
	if !ok {
		return in, model.NewValidationError("departureTime の日時形式が正しくありません")
	}
	in.DepartureTime = dep

	if req.ArrivalTime == nil {
		return in, model.NewValidationError("arrivalTime は必須です")
	}
	arr, ok := parseScheduleTime(*req.ArrivalTime)
	if !ok {
		return in, model.NewValidationError("arrivalTime の日時形式が正しくありません")
	}
	in.ArrivalTime = arr

	if req.IsActive != nil {
		in.IsActive = *req.IsActive
	}
	return in, nil
}

// toUpdateInput は更新リクエストを検証して入力値に変換する。
// 指定された項目のみを設定する。
func (req *scheduleRequest) toUpdateInput() (schedule.UpdateInput, *model.APIError) {
	in := schedule.UpdateInput{
		TrainNumber:      req.TrainNumber,
		DepartureStation: req.DepartureStation,
		ArrivalStation:   req.ArrivalStation,
		Platform:         req.Platform,
		IsActive:         req.IsActive,
	}

	if req.DepartureTime != nil {
		t, ok := parseScheduleTime(*req.DepartureTime)
		if !ok {
			return in, model.NewValidationError("departureTime の日時形式が正しくありません")
		}
		in.DepartureTime = &t
	}
	if req.ArrivalTime != nil {
		t, ok := parseScheduleTime(*req.ArrivalTime)
		if !ok {
			return in, model.NewValidationError("arrivalTime の日時形式が正しくありません")
		}
		in.ArrivalTime = &t
	}
	return in, nil
}

// Create は時刻表を作成する。
// POST /schedules
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in, apiErr := req.toCreateInput()
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	sc, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toScheduleResponse(sc))
}

// List は時刻表一覧を返す。
// GET /schedules?search=term
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.service.FindAll(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]scheduleResponse, len(schedules))
	for i, sc := range schedules {
		resp[i] = toScheduleResponse(sc)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は時刻表を1件返す。
// GET /schedules/{id}
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	sc, err := h.service.FindOne(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleResponse(sc))
}

// Update は時刻表を部分更新する。
// PUT /schedules/{id}
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in, apiErr := req.toUpdateInput()
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	sc, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleResponse(sc))
}

// Delete は時刻表を削除する。
// DELETE /schedules/{id}
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
