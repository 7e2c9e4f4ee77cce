package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contém as configurações da aplicação
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         slog.Level

	// Monitoramento
	CheckInterval time.Duration
	InitialDelay  time.Duration
	ItemDelay     time.Duration

	// Coleta
	PageTimeout        time.Duration
	BrowserBin         string
	WildberriesURL     string
	ItemsPerSearch     int
	BestPoolSize       int
	BestTopN           int
	NotifyAttempts     uint
	NotifyRetryBackoff time.Duration
}

// Load carrega as configurações das variáveis de ambiente.
// O token do Telegram só é exigido ao iniciar o bot.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("DATABASE_PATH", "./marketplaces.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CHECK_INTERVAL_MINUTES", 60)
	v.SetDefault("INITIAL_DELAY_SECONDS", 20)
	v.SetDefault("ITEM_DELAY_SECONDS", 5)
	v.SetDefault("PAGE_TIMEOUT_SECONDS", 10)
	v.SetDefault("ITEMS_PER_SEARCH", 3)
	v.SetDefault("BEST_POOL_SIZE", 20)
	v.SetDefault("BEST_TOP_N", 5)
	v.SetDefault("NOTIFY_ATTEMPTS", 3)
	v.SetDefault("NOTIFY_RETRY_SECONDS", 2)
	v.AutomaticEnv()

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL inválido: %q", v.GetString("LOG_LEVEL"))
	}

	cfg := &Config{
		TelegramBotToken:   v.GetString("TELEGRAM_BOT_TOKEN"),
		DatabasePath:       v.GetString("DATABASE_PATH"),
		LogLevel:           level,
		CheckInterval:      time.Duration(positive(v, "CHECK_INTERVAL_MINUTES", 60)) * time.Minute,
		InitialDelay:       time.Duration(nonNegative(v, "INITIAL_DELAY_SECONDS", 20)) * time.Second,
		ItemDelay:          time.Duration(nonNegative(v, "ITEM_DELAY_SECONDS", 5)) * time.Second,
		PageTimeout:        time.Duration(positive(v, "PAGE_TIMEOUT_SECONDS", 10)) * time.Second,
		BrowserBin:         v.GetString("BROWSER_BIN"),
		WildberriesURL:     v.GetString("WB_SEARCH_URL"),
		ItemsPerSearch:     positive(v, "ITEMS_PER_SEARCH", 3),
		BestPoolSize:       positive(v, "BEST_POOL_SIZE", 20),
		BestTopN:           positive(v, "BEST_TOP_N", 5),
		NotifyAttempts:     uint(positive(v, "NOTIFY_ATTEMPTS", 3)),
		NotifyRetryBackoff: time.Duration(nonNegative(v, "NOTIFY_RETRY_SECONDS", 2)) * time.Second,
	}

	return cfg, nil
}

// positive lê um inteiro; valores inválidos ou não positivos usam o padrão
func positive(v *viper.Viper, key string, def int) int {
	if n := v.GetInt(key); n > 0 {
		return n
	}
	return def
}

// nonNegative aceita zero, usado para desligar esperas
func nonNegative(v *viper.Viper, key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil || n < 0 {
		return def
	}
	return n
}
