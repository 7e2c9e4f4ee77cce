package scraper

import (
	"context"
	"errors"

	"bot-marketplaces/internal/models"
)

var (
	// ErrNotFound indica página que não carregou a tempo ou elemento ausente
	ErrNotFound = errors.New("produto não encontrado")
	// ErrUnexpectedStatus indica resposta não-200 da API
	ErrUnexpectedStatus = errors.New("status inesperado da API")
)

// Searcher define a busca textual de um marketplace
type Searcher interface {
	Source() models.Source
	Search(ctx context.Context, query string, limit int) ([]models.ProductRecord, error)
}

// Registry mantém um registro de todos os marketplaces disponíveis
type Registry struct {
	searchers []Searcher
}

// NewRegistry cria um novo registro; a ordem define a ordem de mescla dos resultados
func NewRegistry(searchers ...Searcher) *Registry {
	return &Registry{searchers: searchers}
}

// FindSearcher encontra o marketplace de uma fonte
func (r *Registry) FindSearcher(source models.Source) Searcher {
	for _, s := range r.searchers {
		if s.Source() == source {
			return s
		}
	}
	return nil
}

// All retorna os marketplaces na ordem de registro
func (r *Registry) All() []Searcher {
	return r.searchers
}
