// Package auth はパスワード認証とセッショントークンの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/trainsched/internal/metrics"
	"github.com/hitoshi/trainsched/internal/model"
	"github.com/hitoshi/trainsched/internal/repository"
)

const (
	// minPasswordLength はパスワードの最小文字数。
	minPasswordLength = 6
	// maxPasswordBytes はbcryptが扱える最大バイト数。
	maxPasswordBytes = 72
)

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token string
	User  model.UserSummary
}

// Service は認証に関するビジネスロジックを提供する。
// リクエスト間で状態を保持しない。
type Service struct {
	userRepo  repository.UserRepository
	hasher    *PasswordHasher
	tokens    *TokenManager
	metrics   metrics.MetricsCollector
	dummyHash string
	now       func() time.Time
}

// NewService はServiceを生成する。
// 存在しないemailでのログイン時に照合するダミーハッシュをここで一度だけ生成する。
func NewService(
	userRepo repository.UserRepository,
	hasher *PasswordHasher,
	tokens *TokenManager,
	mc metrics.MetricsCollector,
) (*Service, error) {
	if mc == nil {
		mc = metrics.Nop{}
	}

	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		tokens:    tokens,
		metrics:   mc,
		dummyHash: dummy,
		now:       time.Now,
	}, nil
}

// Register はユーザーを登録する。
// 戻り値はパスワードハッシュを含む保存済みレコードで、除去はAPI層の責務。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if err := validateRegisterInput(in); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		s.metrics.RecordAuthEvent(metrics.AuthEventRegister, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		s.metrics.RecordAuthEvent(metrics.AuthEventRegister, metrics.OutcomeConflict)
		return nil, model.NewEmailAlreadyExistsError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.metrics.RecordAuthEvent(metrics.AuthEventRegister, metrics.OutcomeError)
		return nil, err
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 存在確認と挿入の間に別リクエストが同じemailを登録した場合
		if errors.Is(err, repository.ErrEmailTaken) {
			s.metrics.RecordAuthEvent(metrics.AuthEventRegister, metrics.OutcomeConflict)
			return nil, model.NewEmailAlreadyExistsError()
		}
		s.metrics.RecordAuthEvent(metrics.AuthEventRegister, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordAuthEvent(metrics.AuthEventRegister, metrics.OutcomeSuccess)
	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// ValidateCredentials はemailとパスワードを照合し、保存済みユーザーを返す。
// ユーザー不在とパスワード不一致はどちらも同じエラーになり、
// 不在時もダミーハッシュと照合して処理時間を揃える。
func (s *Service) ValidateCredentials(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	hash := s.dummyHash
	if user != nil {
		hash = user.PasswordHash
	}

	ok, err := s.hasher.Compare(hash, password)
	if err != nil {
		return nil, err
	}
	if user == nil || !ok {
		return nil, model.NewInvalidCredentialsError()
	}

	return user, nil
}

// Login は認証情報を検証し、セッショントークンを発行する。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.ValidateCredentials(ctx, email, password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			s.metrics.RecordAuthEvent(metrics.AuthEventLogin, metrics.OutcomeRejected)
			slog.Warn("login rejected", slog.String("email", email))
		} else {
			s.metrics.RecordAuthEvent(metrics.AuthEventLogin, metrics.OutcomeError)
		}
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.metrics.RecordAuthEvent(metrics.AuthEventLogin, metrics.OutcomeError)
		return nil, err
	}

	s.metrics.RecordAuthEvent(metrics.AuthEventLogin, metrics.OutcomeSuccess)
	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &LoginResult{
		Token: token,
		User:  user.Summary(),
	}, nil
}

// VerifyToken はBearerトークンを検証し、認証主体を返す。
// ユーザーストアとの照合は行わない。
func (s *Service) VerifyToken(token string) (*model.Principal, error) {
	principal, err := s.tokens.Verify(token)
	if err != nil {
		s.metrics.RecordAuthEvent(metrics.AuthEventVerify, metrics.OutcomeRejected)
		slog.Debug("token rejected", slog.String("error", err.Error()))
		return nil, model.NewUnauthorizedError()
	}
	s.metrics.RecordAuthEvent(metrics.AuthEventVerify, metrics.OutcomeSuccess)
	return principal, nil
}

// validateRegisterInput は登録入力の形式を検証する。
func validateRegisterInput(in RegisterInput) error {
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で入力してください", minPasswordLength))
	}
	if len(in.Password) > maxPasswordBytes {
		return model.NewValidationError(fmt.Sprintf("パスワードは%dバイト以下で入力してください", maxPasswordBytes))
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return model.NewValidationError("名を入力してください")
	}
	if strings.TrimSpace(in.LastName) == "" {
		return model.NewValidationError("姓を入力してください")
	}
	return nil
}
