// Package main запускает Telegram-бота и служебный HTTP-сервер сервиса airtime-desk.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/airtime-desk/internal/bot"
	"github.com/mmeshcher/airtime-desk/internal/config"
	"github.com/mmeshcher/airtime-desk/internal/handler"
	"github.com/mmeshcher/airtime-desk/internal/middleware"
	"github.com/mmeshcher/airtime-desk/internal/pricing"
	"github.com/mmeshcher/airtime-desk/internal/repository"
	"github.com/mmeshcher/airtime-desk/internal/service"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		sugar.Fatalw("timezone error", "timezone", cfg.Timezone, "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI, loc)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sessions bot.SessionStore
	if cfg.RedisAddr != "" {
		store, err := bot.NewRedisSessionStore(ctx, cfg.RedisAddr)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer store.Close()
		sessions = store
	} else {
		sugar.Info("redis address not set, using in-memory sessions")
		sessions = bot.NewMemorySessionStore()
	}

	rate := pricing.NewRate(cfg.ConversionRate)

	limits := service.Limits{
		DailyTransactions: cfg.DailyLimit,
		ExpireAfter:       cfg.ExpireAfter,
		RemindAfter:       cfg.RemindAfter,
		RemindEvery:       cfg.ReminderSweepEvery,
		ProofMinBytes:     cfg.ProofMinBytes,
		ProofMaxBytes:     cfg.ProofMaxBytes,
		HistoryLimit:      cfg.HistoryLimit,
	}
	policy := pricing.Policy{
		DiscountThreshold: cfg.DiscountThreshold,
		DiscountPercent:   cfg.DiscountPercent,
	}

	// телу сервиса нотификатор нужен раньше, чем создан бот
	svc := service.NewService(repo, nil, rate, policy, limits, logger, nil)

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	tgBot, err := bot.New(bot.Config{
		Token:      cfg.BotToken,
		OperatorID: cfg.OperatorID,
		BankCard:   cfg.BankCard,
	}, svc, sessions, retryClient.StandardClient(), logger)
	if err != nil {
		sugar.Fatalw("telegram bot initialization error", "error", err.Error())
	}
	svc.SetNotifier(tgBot.Notifier())

	adminAuth := middleware.NewAdminAuth(cfg.AdminToken)
	h := handler.NewHandler(svc, repo, logger, adminAuth)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	g, ctx := errgroup.WithContext(ctx)

	// Фоновые обходы: экспирация, напоминания, дайджест оператору
	g.Go(func() error {
		svc.StartSweeps(ctx, service.SweepIntervals{
			Expiry:   cfg.ExpirySweepEvery,
			Reminder: cfg.ReminderSweepEvery,
			Digest:   cfg.DigestEvery,
		})
		return nil
	})

	// Запуск Telegram-бота
	g.Go(func() error {
		tgBot.Start(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting airtime-desk server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
