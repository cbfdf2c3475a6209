package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrNotLoggedIn はセッションが保存されていないことを示す。
	ErrNotLoggedIn = errors.New("not logged in; run 'trainctl login' first")
	// ErrSessionExpired はサーバーがトークンを拒否したことを示す。保存済みセッションは削除済み。
	ErrSessionExpired = errors.New("session expired; run 'trainctl login' again")
)

// maxErrorBodyBytes はエラーレスポンスとして読み取る最大サイズ。
const maxErrorBodyBytes = 64 << 10

// APIError はサーバーが返したエラーレスポンス。
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Schedule はAPIが返す時刻表。
type Schedule struct {
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

// ScheduleInput は作成・更新リクエスト。nilの項目は送信しない。
// 日時はサーバーが受け付ける形式の文字列で渡す。
type ScheduleInput struct {
	TrainNumber      *string `json:"trainNumber,omitempty"`
	DepartureStation *string `json:"departureStation,omitempty"`
	ArrivalStation   *string `json:"arrivalStation,omitempty"`
	DepartureTime    *string `json:"departureTime,omitempty"`
	ArrivalTime      *string `json:"arrivalTime,omitempty"`
	Platform         *string `json:"platform,omitempty"`
	IsActive         *bool   `json:"isActive,omitempty"`
}

// RegisterRequest はユーザー登録リクエスト。
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// APIClient は時刻表APIのHTTPクライアント。
// 認証が必要な呼び出しには保存済みセッションのトークンを付与する。
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	sessions   *SessionStore
	logger     *slog.Logger
}

// NewAPIClient はAPIClientを生成する。
func NewAPIClient(httpClient *http.Client, baseURL string, sessions *SessionStore, logger *slog.Logger) *APIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		sessions:   sessions,
		logger:     logger,
	}
}

// Register はユーザーを登録する。
func (c *APIClient) Register(ctx context.Context, in RegisterRequest) (*UserSummary, error) {
	var user UserSummary
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/auth/register",
		body:     in,
		out:      &user,
		fallback: "registration failed, please try again",
		overrides: map[int]string{
			http.StatusConflict: "a user with this email already exists",
		},
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login は認証してセッションを保存する。
func (c *APIClient) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp struct {
		AccessToken string      `json:"access_token"`
		User        UserSummary `json:"user"`
	}
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/auth/login",
		body:     map[string]string{"email": email, "password": password},
		out:      &resp,
		fallback: "login failed, please try again",
		overrides: map[int]string{
			http.StatusUnauthorized: "invalid email or password",
		},
	})
	if err != nil {
		return nil, err
	}

	sess := &Session{Token: resp.AccessToken, User: resp.User}
	if err := c.sessions.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout はローカルのセッションを削除する。
func (c *APIClient) Logout() error {
	return c.sessions.Clear()
}

// ListSchedules は時刻表一覧を取得する。searchが空でなければ部分一致で絞り込む。
func (c *APIClient) ListSchedules(ctx context.Context, search string) ([]Schedule, error) {
	path := "/schedules"
	if search != "" {
		path += "?" + url.Values{"search": {search}}.Encode()
	}

	var schedules []Schedule
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     path,
		auth:     true,
		out:      &schedules,
		fallback: "failed to fetch schedules",
	})
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// GetSchedule は時刻表を1件取得する。
func (c *APIClient) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	var sc Schedule
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/schedules/" + url.PathEscape(id),
		auth:     true,
		out:      &sc,
		fallback: "failed to fetch schedule",
	})
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// CreateSchedule は時刻表を作成する。
func (c *APIClient) CreateSchedule(ctx context.Context, in ScheduleInput) (*Schedule, error) {
	var sc Schedule
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/schedules",
		auth:     true,
		body:     in,
		out:      &sc,
		fallback: "failed to create schedule, please try again",
	})
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// UpdateSchedule は指定した項目のみ時刻表を更新する。
func (c *APIClient) UpdateSchedule(ctx context.Context, id string, in ScheduleInput) (*Schedule, error) {
	var sc Schedule
	err := c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/schedules/" + url.PathEscape(id),
		auth:     true,
		body:     in,
		out:      &sc,
		fallback: "failed to update schedule, please try again",
	})
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// DeleteSchedule は時刻表を削除する。
func (c *APIClient) DeleteSchedule(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method:   http.MethodDelete,
		path:     "/schedules/" + url.PathEscape(id),
		auth:     true,
		fallback: "failed to delete schedule",
	})
}

type request struct {
	method string
	path   string
	auth   bool
	body   any
	out    any

	// fallback はサーバーがmessageを返さなかった場合のエラーメッセージ。
	fallback string
	// overrides はステータスコードごとに固定するエラーメッセージ。
	overrides map[int]string
}

func (c *APIClient) do(ctx context.Context, r request) error {
	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "trainctl/1.0")

	if r.auth {
		sess, err := c.sessions.Load()
		if err != nil {
			return err
		}
		if sess == nil {
			return ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			slog.String("method", r.method),
			slog.String("path", r.path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if r.out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	// 認証付き呼び出しでトークンが拒否された場合はセッションを破棄する
	if r.auth && resp.StatusCode == http.StatusUnauthorized {
		if err := c.sessions.Clear(); err != nil {
			c.logger.Warn("failed to clear session", slog.String("error", err.Error()))
		}
		return ErrSessionExpired
	}

	return decodeAPIError(resp, r.fallback, r.overrides)
}

// decodeAPIError はエラーレスポンスをAPIErrorに変換する。
// overridesに該当するステータスは固定メッセージ、それ以外はサーバーのmessage、
// messageがなければfallbackを使う。
func decodeAPIError(resp *http.Response, fallback string, overrides map[int]string) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: fallback}

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodyBytes)).Decode(&body); err == nil {
		apiErr.Code = body.Code
		if body.Message != "" {
			apiErr.Message = body.Message
		}
	}

	if msg, ok := overrides[resp.StatusCode]; ok {
		apiErr.Message = msg
	}
	return apiErr
}
