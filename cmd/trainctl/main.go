// Command trainctl は時刻表APIの端末クライアント。
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/hitoshi/trainsched/internal/client"
	"github.com/hitoshi/trainsched/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "trainctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// クライアントのログは標準エラーに出し、既定ではWarn以上のみ
	level := slog.LevelWarn
	if v := os.Getenv("TRAINCTL_LOG_LEVEL"); v != "" {
		level = logger.ParseLevel(v)
	}
	log := logger.Setup(os.Stderr, level)

	path := os.Getenv("TRAINCTL_CONFIG")
	if path == "" {
		p, err := client.DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	cfg, err := client.LoadConfig(path)
	if err != nil {
		return err
	}

	sessions := client.NewSessionStore(cfg.SessionFile)
	api := client.NewAPIClient(&http.Client{Timeout: 15 * time.Second}, cfg.APIURL, sessions, log)

	return client.NewCLI(api, sessions, os.Stdin, os.Stdout).Run(ctx, os.Args[1:])
}
