package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/trainsched/internal/auth"
	"github.com/hitoshi/trainsched/internal/middleware"
	"github.com/hitoshi/trainsched/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- Register ---

func TestAuthHandler_Register_Returns201WithoutPassword(t *testing.T) {
	var got auth.RegisterInput
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
			got = in
			return &model.User{
				ID:           "user-1",
				Email:        in.Email,
				PasswordHash: "$2a$10$secret-hash",
				FirstName:    in.FirstName,
				LastName:     in.LastName,
				CreatedAt:    time.Now(),
			}, nil
		},
	}
	h := NewAuthHandler(svc)

	body := `{"email":"a@b.com","password":"secret123","firstName":"Taro","lastName":"Yamada"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got.Email != "a@b.com" || got.Password != "secret123" || got.FirstName != "Taro" || got.LastName != "Yamada" {
		t.Errorf("service input = %+v", got)
	}

	raw := w.Body.String()
	if strings.Contains(raw, "secret-hash") || strings.Contains(strings.ToLower(raw), "password") {
		t.Errorf("response must not contain password data: %s", raw)
	}

	var resp map[string]string
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	want := map[string]string{"id": "user-1", "email": "a@b.com", "firstName": "Taro", "lastName": "Yamada"}
	for k, v := range want {
		if resp[k] != v {
			t.Errorf("%s = %q, want %q", k, resp[k], v)
		}
	}
	if len(resp) != len(want) {
		t.Errorf("unexpected fields in response: %v", resp)
	}
}

func TestAuthHandler_Register_Conflict(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
			return nil, model.NewEmailAlreadyExistsError()
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"a@b.com","password":"secret123","firstName":"T","lastName":"Y"}`))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeEmailAlreadyExists {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeEmailAlreadyExists)
	}
}

func TestAuthHandler_Register_MalformedJSON(t *testing.T) {
	called := false
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
			called = true
			return nil, nil
		},
	}
	h := NewAuthHandler(svc)

	for _, body := range []string{`{`, `not json`, `{"email":"a@b.com"} {"x":1}`} {
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
		w := httptest.NewRecorder()

		h.Register(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want %d", body, w.Code, http.StatusBadRequest)
		}
		if got := decodeErrorBody(t, w); got.Code != model.ErrCodeInvalidRequest {
			t.Errorf("body %q: code = %q, want %q", body, got.Code, model.ErrCodeInvalidRequest)
		}
	}
	if called {
		t.Error("service should not be called for malformed JSON")
	}
}

func TestAuthHandler_Register_ValidationError(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
			return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"email":"x"}`))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- Login ---

func TestAuthHandler_Login_ReturnsTokenAndUser(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
			if email != "a@b.com" || password != "secret123" {
				t.Errorf("credentials = %q/%q", email, password)
			}
			return &auth.LoginResult{
				Token: "signed.jwt.token",
				User:  model.UserSummary{ID: "user-1", Email: email, FirstName: "Taro", LastName: "Yamada"},
			}, nil
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"a@b.com","password":"secret123"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp loginResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.AccessToken != "signed.jwt.token" {
		t.Errorf("access_token = %q", resp.AccessToken)
	}
	if resp.User.ID != "user-1" || resp.User.FirstName != "Taro" {
		t.Errorf("user = %+v", resp.User)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"a@b.com","password":"wrong"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestAuthHandler_Login_InternalError(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
			return nil, context.DeadlineExceeded
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"a@b.com","password":"x"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if strings.Contains(body.Message, "deadline") {
		t.Error("internal error details must not leak to the client")
	}
}
