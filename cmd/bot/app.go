package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bot-marketplaces/config"
	"bot-marketplaces/internal/browser"
	"bot-marketplaces/internal/database"
	"bot-marketplaces/internal/scraper"
	"bot-marketplaces/internal/search"
)

// app reúne as dependências compartilhadas pelo bot e pelos subcomandos
type app struct {
	db       *database.DB
	session  *browser.Manager
	ozon     *scraper.OzonScraper
	registry *scraper.Registry
	search   *search.Service
	logger   *slog.Logger
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	// Inicializar banco de dados
	db, err := database.New(cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("erro ao inicializar banco de dados: %w", err)
	}

	// Inicializar scrapers; o navegador só sobe no primeiro uso
	session := browser.NewManager(browser.RodLauncher(cfg.BrowserBin), logger)
	ozon := scraper.NewOzonScraper(session, scraper.OzonPages{}, cfg.PageTimeout, logger)
	wb := scraper.NewWildberriesClient(&http.Client{Timeout: 30 * time.Second}, cfg.WildberriesURL, logger)
	registry := scraper.NewRegistry(ozon, wb)

	return &app{
		db:       db,
		session:  session,
		ozon:     ozon,
		registry: registry,
		search: search.NewService(registry, search.Options{
			ItemsPerSearch: cfg.ItemsPerSearch,
			BestPoolSize:   cfg.BestPoolSize,
			BestTopN:       cfg.BestTopN,
		}, logger),
		logger: logger,
	}, nil
}

// close encerra o navegador (esperando a operação em andamento) e o banco
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.session.Close(ctx); err != nil {
		a.logger.Warn("Erro ao encerrar navegador", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Erro ao fechar banco de dados", "error", err)
	}
}
