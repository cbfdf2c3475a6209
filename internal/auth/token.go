package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/trainsched/internal/model"
)

var (
	// ErrInvalidToken は署名・形式が不正なトークンを表す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired は有効期限切れのトークンを表す。
	ErrTokenExpired = errors.New("token expired")
)

// Claims はセッショントークンのペイロード。
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager はHS256署名のセッショントークンを発行・検証する。
// サーバー側にセッション状態は持たない。
type TokenManager struct {
	secret    []byte
	expiresIn time.Duration
	leeway    time.Duration
	now       func() time.Time
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(secret string, expiresIn, leeway time.Duration) *TokenManager {
	return &TokenManager{
		secret:    []byte(secret),
		expiresIn: expiresIn,
		leeway:    leeway,
		now:       time.Now,
	}
}

// Issue はユーザーIDとemailを埋め込んだトークンを発行する。
func (m *TokenManager) Issue(userID, email string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiresIn)),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify は署名と有効期限を検証し、認証主体を返す。
func (m *TokenManager) Verify(tokenString string) (*model.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.leeway),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &model.Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
	}, nil
}
