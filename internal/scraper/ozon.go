package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"bot-marketplaces/internal/browser"
	"bot-marketplaces/internal/models"
)

const (
	ozonSearchURL      = "https://www.ozon.ru/search/?text=%s&from_global=true"
	searchResultSelect = `a[href*="/product/"]`
)

var (
	bareArticleRe  = regexp.MustCompile(`^\d+$`)
	// URL canônica sem slug, como a montada por models.OzonProductURL
	canonicalURLRe = regexp.MustCompile(`/product/(\d+)/?$`)
)

// Session é o acesso exclusivo ao navegador (browser.Manager)
type Session interface {
	Do(ctx context.Context, fn func(browser.Tab) error) error
}

// PageStrategy transforma o HTML renderizado em dados estruturados.
// Fica separada da navegação para poder ser testada com páginas estáticas.
type PageStrategy interface {
	ParseDetail(html, article, url string) (*models.ProductRecord, error)
	ParseSearch(html string, limit int) ([]string, error)
}

// OzonScraper implementa o scraper do Ozon, que não tem API pública
type OzonScraper struct {
	session     Session
	pages       PageStrategy
	pageTimeout time.Duration
	logger      *slog.Logger
}

// NewOzonScraper cria uma nova instância do scraper do Ozon
func NewOzonScraper(session Session, pages PageStrategy, pageTimeout time.Duration, logger *slog.Logger) *OzonScraper {
	return &OzonScraper{
		session:     session,
		pages:       pages,
		pageTimeout: pageTimeout,
		logger:      logger,
	}
}

// Source identifica o marketplace
func (o *OzonScraper) Source() models.Source {
	return models.SourceOzon
}

// CanHandle verifica se o texto é uma URL de produto do Ozon
func (o *OzonScraper) CanHandle(link string) bool {
	return strings.Contains(link, "ozon.ru/product/")
}

// ArticleFromInput aceita um artigo puro ou uma URL de produto do Ozon
func (o *OzonScraper) ArticleFromInput(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if bareArticleRe.MatchString(input) {
		return input, true
	}
	if !o.CanHandle(input) {
		return "", false
	}
	link := strings.Split(input, "?")[0]
	if articles := ArticlesFromLinks([]string{link}, 1); len(articles) > 0 {
		return articles[0], true
	}
	if m := canonicalURLRe.FindStringSubmatch(link); m != nil {
		return m[1], true
	}
	return "", false
}

// GetProductDetail abre a página do artigo e extrai o produto.
// Tempo esgotado ou elemento ausente viram ErrNotFound; nada é propagado como pânico.
func (o *OzonScraper) GetProductDetail(ctx context.Context, article string) (*models.ProductRecord, error) {
	productURL := models.OzonProductURL(article)

	var record *models.ProductRecord
	err := o.session.Do(ctx, func(tab browser.Tab) error {
		pageCtx, cancel := context.WithTimeout(ctx, o.pageTimeout)
		defer cancel()

		if err := tab.Navigate(pageCtx, productURL); err != nil {
			return fmt.Errorf("navegar: %w", err)
		}
		if err := tab.WaitURLContains(pageCtx, article); err != nil {
			return fmt.Errorf("%w: endereço não mudou para %s: %v", ErrNotFound, article, err)
		}
		if err := tab.WaitElement(pageCtx, "h1"); err != nil {
			return fmt.Errorf("%w: título não apareceu: %v", ErrNotFound, err)
		}
		html, err := tab.HTML(pageCtx)
		if err != nil {
			return fmt.Errorf("ler html: %w", err)
		}

		record, err = o.pages.ParseDetail(html, article, productURL)
		return err
	})
	if err != nil {
		o.logFailure("Erro ao carregar produto do Ozon", err, "article", article)
		return nil, classify(err)
	}
	return record, nil
}

// SearchArticles busca no catálogo e devolve até limit artigos, na ordem da página
func (o *OzonScraper) SearchArticles(ctx context.Context, query string, limit int) ([]string, error) {
	searchURL := fmt.Sprintf(ozonSearchURL, url.QueryEscape(query))

	var articles []string
	err := o.session.Do(ctx, func(tab browser.Tab) error {
		pageCtx, cancel := context.WithTimeout(ctx, o.pageTimeout)
		defer cancel()

		if err := tab.Navigate(pageCtx, searchURL); err != nil {
			return fmt.Errorf("navegar: %w", err)
		}
		if err := tab.WaitElement(pageCtx, searchResultSelect); err != nil {
			return fmt.Errorf("%w: nenhum resultado: %v", ErrNotFound, err)
		}
		html, err := tab.HTML(pageCtx)
		if err != nil {
			return fmt.Errorf("ler html: %w", err)
		}

		articles, err = o.pages.ParseSearch(html, limit)
		return err
	})
	if err != nil {
		o.logFailure("Erro na busca do Ozon", err, "query", query)
		return nil, classify(err)
	}
	return articles, nil
}

// Search busca artigos e carrega o detalhe de cada um, descartando os que falharem.
// Cada detalhe pega o lock separadamente, então o monitor pode intercalar entre eles.
func (o *OzonScraper) Search(ctx context.Context, query string, limit int) ([]models.ProductRecord, error) {
	articles, err := o.SearchArticles(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	products := make([]models.ProductRecord, 0, len(articles))
	for _, article := range articles {
		record, err := o.GetProductDetail(ctx, article)
		if err != nil {
			if errors.Is(err, browser.ErrSessionUnavailable) || ctx.Err() != nil {
				break
			}
			continue
		}
		products = append(products, *record)
	}
	return products, nil
}

func (o *OzonScraper) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrNotFound) {
		o.logger.Warn(msg, args...)
		return
	}
	o.logger.Error(msg, args...)
}

// classify reduz qualquer falha às categorias que os chamadores tratam
func classify(err error) error {
	switch {
	case errors.Is(err, browser.ErrSessionUnavailable):
		return err
	case errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
}
