// Command imagestudio は画像の編集・生成を行う API サーバーを起動します。
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shouni/gemini-image-studio/pkg/config"
	"github.com/shouni/gemini-image-studio/pkg/controller"
	"github.com/shouni/gemini-image-studio/pkg/generator"
	"github.com/shouni/gemini-image-studio/pkg/logging"
	"github.com/shouni/gemini-image-studio/pkg/server"
	"github.com/shouni/gemini-image-studio/pkg/session"
	"github.com/shouni/gemini-image-studio/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("起動に失敗しました", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	backend, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	store, err := session.NewStore(backend, cfg.HistoryLimit)
	if err != nil {
		return err
	}

	provider, err := generator.NewGenAIProvider(ctx, cfg.APIKey)
	if err != nil {
		return err
	}
	gen, err := generator.NewGeminiGenerator(provider, cfg.GeneratorOptions())
	if err != nil {
		return err
	}

	ctrl, err := controller.New(gen, store, cfg.MaxPromptLength)
	if err != nil {
		return err
	}

	srv, err := server.New(ctx, ctrl, session.NewMockIdentityProvider())
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "設定を読み込みました",
		"storage", cfg.Storage.Backend,
		"edit_model", cfg.EditModel,
		"generate_model", cfg.GenerateModel,
	)
	return srv.Run(ctx, cfg.ListenAddr)
}
