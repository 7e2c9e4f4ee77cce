// Package search reúne as buscas por marketplace e a busca combinada.
package search

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"bot-marketplaces/internal/models"
	"bot-marketplaces/internal/ranking"
	"bot-marketplaces/internal/scraper"
)

// Options define quantos resultados cada busca devolve
type Options struct {
	ItemsPerSearch int // resultados por busca em uma única loja
	BestPoolSize   int // candidatos buscados em cada loja para a busca combinada
	BestTopN       int // resultados da busca combinada
}

// Service executa buscas nos marketplaces registrados
type Service struct {
	registry *scraper.Registry
	opts     Options
	logger   *slog.Logger
}

// NewService cria o serviço de busca
func NewService(registry *scraper.Registry, opts Options, logger *slog.Logger) *Service {
	return &Service{
		registry: registry,
		opts:     opts,
		logger:   logger,
	}
}

// Store busca em uma única loja e ordena pela pontuação.
// Falha da loja vira lista vazia.
func (s *Service) Store(ctx context.Context, source models.Source, query string) []models.ProductRecord {
	return ranking.Rank(s.fetch(ctx, source, query, s.opts.ItemsPerSearch))
}

// Best busca nas lojas em paralelo, mescla na ordem de registro e devolve os melhores
func (s *Service) Best(ctx context.Context, query string) []models.ProductRecord {
	searchers := s.registry.All()
	results := make([][]models.ProductRecord, len(searchers))

	g, gctx := errgroup.WithContext(ctx)
	for i, searcher := range searchers {
		i, source := i, searcher.Source()
		g.Go(func() error {
			results[i] = s.fetch(gctx, source, query, s.opts.BestPoolSize)
			return nil
		})
	}
	_ = g.Wait()

	var merged []models.ProductRecord
	for _, r := range results {
		merged = append(merged, r...)
	}
	s.logger.Info("Busca combinada concluída", "query", query, "candidates", len(merged))
	return ranking.Top(merged, s.opts.BestTopN)
}

func (s *Service) fetch(ctx context.Context, source models.Source, query string, limit int) []models.ProductRecord {
	searcher := s.registry.FindSearcher(source)
	if searcher == nil {
		s.logger.Warn("Loja não registrada", "source", source)
		return nil
	}
	products, err := searcher.Search(ctx, query, limit)
	if err != nil {
		s.logger.Warn("Busca falhou", "source", source, "query", query, "error", err)
		return nil
	}
	return products
}
