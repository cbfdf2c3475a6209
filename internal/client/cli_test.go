package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/trainsched/internal/app"
	"github.com/hitoshi/trainsched/internal/config"
)

// cliHarness は実サーバー（インメモリストア）に接続したCLIを提供する。
type cliHarness struct {
	t        *testing.T
	api      *APIClient
	sessions *SessionStore
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	t.Setenv("DATABASE_URL", "memory://")
	t.Setenv("JWT_SECRET", "cli-test-secret")
	t.Setenv("BCRYPT_COST", "4")

	cfg, err := config.Load()
	require.NoError(t, err)

	srv, err := app.NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	sessions := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))
	api := NewAPIClient(ts.Client(), ts.URL, sessions, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &cliHarness{t: t, api: api, sessions: sessions}
}

// run はstdinにinputを与えてコマンドを実行し、出力を返す。
func (h *cliHarness) run(input string, args ...string) (string, error) {
	var out bytes.Buffer
	cli := NewCLI(h.api, h.sessions, strings.NewReader(input), &out)
	err := cli.Run(context.Background(), args)
	return out.String(), err
}

var uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func TestCLI_EndToEnd(t *testing.T) {
	h := newCLIHarness(t)

	// 未ログインでは一覧を取得できない
	_, err := h.run("", "list")
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	// 登録（名前はフラグ、メールとパスワードは標準入力）
	out, err := h.run("taro@example.com\nsecret123\n", "register", "-first-name", "Taro", "-last-name", "Yamada")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Registered taro@example.com")

	// 同じメールでの再登録は固定メッセージ
	_, err = h.run("secret123\n", "register", "-email", "taro@example.com", "-first-name", "T", "-last-name", "Y")
	require.Error(t, err)
	assert.Equal(t, "a user with this email already exists", err.Error())

	// 誤ったパスワード
	_, err = h.run("wrong-pass\n", "login", "-email", "taro@example.com")
	require.Error(t, err)
	assert.Equal(t, "invalid email or password", err.Error())

	// ログイン
	out, err = h.run("secret123\n", "login", "-email", "taro@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Taro Yamada")

	out, err = h.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "taro@example.com")

	// 作成
	out, err = h.run("", "create",
		"-train", "TRN-001", "-from", "Moscow", "-to", "Kazan",
		"-departure", "2025-06-01T09:00", "-arrival", "2025-06-01T21:00", "-platform", "1")
	require.NoError(t, err, out)
	id := uuidPattern.FindString(out)
	require.NotEmpty(t, id, out)

	_, err = h.run("", "create",
		"-train", "TRN-002", "-from", "Paris", "-to", "Lyon",
		"-departure", "2025-06-02", "-arrival", "2025-06-02T04:00", "-platform", "7", "-inactive")
	require.NoError(t, err)

	// 一覧と検索
	out, err = h.run("", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "TRN-001")
	assert.Contains(t, out, "TRN-002")
	assert.Contains(t, out, "inactive")

	out, err = h.run("", "list", "-search", "Kaz")
	require.NoError(t, err)
	assert.Contains(t, out, "TRN-001")
	assert.NotContains(t, out, "TRN-002")

	out, err = h.run("", "list", "-search", "Berlin")
	require.NoError(t, err)
	assert.Contains(t, out, "No schedules found")

	// 更新（IDの後ろにフラグ）
	out, err = h.run("", "update", id, "-platform", "2", "-active=false")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Updated schedule "+id)

	out, err = h.run("", "show", id)
	require.NoError(t, err)
	assert.Regexp(t, `Platform\s+2`, out)
	assert.Regexp(t, `Status\s+inactive`, out)
	assert.Regexp(t, `Train\s+TRN-001`, out)

	// 削除
	out, err = h.run("", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted schedule "+id)

	_, err = h.run("", "show", id)
	require.Error(t, err)

	// ログアウト後は未ログイン
	_, err = h.run("", "logout")
	require.NoError(t, err)
	_, err = h.run("", "whoami")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestCLI_InvalidTokenClearsSession(t *testing.T) {
	h := newCLIHarness(t)
	require.NoError(t, h.sessions.Save(&Session{Token: "forged.token.value"}))

	_, err := h.run("", "list")
	assert.ErrorIs(t, err, ErrSessionExpired)

	sess, err := h.sessions.Load()
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestCLI_ArgumentErrors(t *testing.T) {
	h := newCLIHarness(t)

	tests := []struct {
		name string
		args []string
	}{
		{"コマンドなし", nil},
		{"未知のコマンド", []string{"frobnicate"}},
		{"showのID欠落", []string{"show"}},
		{"deleteのID欠落", []string{"delete"}},
		{"updateのID欠落", []string{"update"}},
		{"update項目なし", []string{"update", "some-id"}},
		{"update activeが不正", []string{"update", "some-id", "-active", "maybe"}},
		{"create必須項目欠落", []string{"create", "-train", "TRN-001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run("", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestSplitID(t *testing.T) {
	id, rest, err := splitID("update", []string{"abc", "-platform", "2"})
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, []string{"-platform", "2"}, rest)

	id, rest, err = splitID("update", []string{"-platform", "2", "abc"})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, []string{"-platform", "2", "abc"}, rest)

	_, _, err = splitID("update", nil)
	assert.Error(t, err)
}
