// Package client はtrainctl（端末クライアント）の中核を提供する。
// APIクライアント、ローカルセッション保存、クライアント設定、CLIコマンドを含む。
package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIURL はAPIサーバーのデフォルトURL。
	DefaultAPIURL = "http://localhost:8080"
	// envAPIURL は設定ファイルのapi_urlを上書きする環境変数。
	envAPIURL = "TRAINCTL_API_URL"
)

// Config はtrainctlの設定を保持する。
type Config struct {
	APIURL      string `yaml:"api_url"`
	SessionFile string `yaml:"session_file"`
}

// DefaultConfigPath は設定ファイルの既定パス（~/.config/trainctl/config.yaml）を返す。
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config dir: %w", err)
	}
	return filepath.Join(dir, "trainctl", "config.yaml"), nil
}

// LoadConfig は設定ファイルを読み込む。
// ファイルが存在しない場合はデフォルト値を使う。
// session_file未指定時は設定ファイルと同じディレクトリのsession.jsonを使う。
// 環境変数TRAINCTL_API_URLはapi_urlより優先する。
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if v := os.Getenv(envAPIURL); v != "" {
		cfg.APIURL = v
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if cfg.SessionFile == "" {
		cfg.SessionFile = filepath.Join(filepath.Dir(path), "session.json")
	}

	return cfg, nil
}
