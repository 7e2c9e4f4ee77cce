package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"bot-marketplaces/config"
	"bot-marketplaces/internal/bot"
	"bot-marketplaces/internal/monitor"
	"bot-marketplaces/internal/notify"
)

const shutdownTimeout = 15 * time.Second

var rootCmd = &cobra.Command{
	Use:   "bot-marketplaces",
	Short: "Bot de preços para Ozon e Wildberries",
	Long:  "Bot do Telegram que busca e compara produtos no Ozon e no Wildberries e avisa quando um produto monitorado atinge o preço alvo.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Carregar variáveis de ambiente
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runBot(ctx)
	},
}

func runBot(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("erro ao carregar configurações: %w", err)
	}
	logger := newLogger(cfg)

	// Inicializar bot do Telegram antes de subir o resto: sem token não há o que fazer
	telegramBot, err := bot.Init(cfg.TelegramBotToken, logger)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	notifier := notify.NewTelegram(telegramBot, cfg.NotifyAttempts, cfg.NotifyRetryBackoff, logger)
	monitorInstance := monitor.New(a.db, a.ozon, notifier, monitor.Options{
		InitialDelay: cfg.InitialDelay,
		Interval:     cfg.CheckInterval,
		ItemDelay:    cfg.ItemDelay,
	}, logger)
	handler := bot.NewHandler(telegramBot, a.search, a.ozon, monitorInstance, a.db, logger)

	// Iniciar monitoramento em background
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = monitorInstance.Run(ctx)
	}()

	updates := bot.Updates(telegramBot)
	go func() {
		<-ctx.Done()
		telegramBot.StopReceivingUpdates()
	}()

	logger.Info("Bot em execução")
	handler.Run(ctx, updates)

	logger.Info("Encerrando bot...")
	wg.Wait()
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
}
