package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bot-marketplaces/internal/models"
)

// DefaultWildberriesSearchURL é o endpoint público de busca do Wildberries
const DefaultWildberriesSearchURL = "https://search.wb.ru/exactmatch/ru/common/v4/search"

const wbFallbackHost = "https://basket-10.wbbasket.ru"

// Faixas de volume -> host da CDN de imagens. Volumes fora das faixas usam wbFallbackHost.
var wbBaskets = []struct {
	minVol, maxVol int64
	host           string
}{
	{0, 143, "https://basket-01.wbbasket.ru"},
	{144, 287, "https://basket-02.wbbasket.ru"},
	{288, 431, "https://basket-03.wbbasket.ru"},
	{432, 719, "https://basket-04.wbbasket.ru"},
	{720, 1007, "https://basket-05.wbbasket.ru"},
}

// WildberriesClient consulta a API JSON de busca do Wildberries.
// Não guarda estado entre chamadas e pode ser usado concorrentemente.
type WildberriesClient struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewWildberriesClient cria o cliente; baseURL vazio usa o endpoint padrão
func NewWildberriesClient(client *http.Client, baseURL string, logger *slog.Logger) *WildberriesClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultWildberriesSearchURL
	}
	return &WildberriesClient{
		client:  client,
		baseURL: baseURL,
		logger:  logger,
	}
}

type wbResponse struct {
	Data struct {
		Products []wbProduct `json:"products"`
	} `json:"data"`
}

type wbProduct struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	SalePriceU  int64   `json:"salePriceU"`
	Rating      float64 `json:"rating"`
	Feedbacks   int64   `json:"feedbacks"`
	OrdersCount int64   `json:"ordersCount"`
}

// Source identifica o marketplace
func (w *WildberriesClient) Source() models.Source {
	return models.SourceWildberries
}

// Search faz uma única requisição e normaliza os itens.
// Lista vazia na resposta não é erro; status diferente de 200 devolve ErrUnexpectedStatus.
func (w *WildberriesClient) Search(ctx context.Context, query string, limit int) ([]models.ProductRecord, error) {
	params := url.Values{}
	params.Set("appType", "1")
	params.Set("curr", "rub")
	params.Set("dest", "-1257786")
	params.Set("query", query)
	params.Set("resultset", "catalog")
	params.Set("sort", "popular")
	params.Set("spp", "30")
	params.Set("suppressSpellcheck", "false")
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Error("Erro na requisição à API do WB", "query", query, "error", err)
		return nil, fmt.Errorf("requisição WB: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.logger.Error("API do WB respondeu com erro", "query", query, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body wbResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		w.logger.Error("Resposta do WB ilegível", "query", query, "error", err)
		return nil, fmt.Errorf("decodificar resposta WB: %w", err)
	}

	if len(body.Data.Products) == 0 {
		w.logger.Warn("API do WB respondeu sem produtos", "query", query)
		return nil, nil
	}

	items := body.Data.Products
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	products := make([]models.ProductRecord, 0, len(items))
	for _, item := range items {
		products = append(products, item.record())
	}
	w.logger.Info("Produtos encontrados no Wildberries", "query", query, "count", len(products))
	return products, nil
}

func (p wbProduct) record() models.ProductRecord {
	name := p.Name
	if name == "" {
		name = "Sem nome"
	}
	return models.ProductRecord{
		Source:    models.SourceWildberries,
		ID:        strconv.FormatInt(p.ID, 10),
		Name:      name,
		BasePrice: models.MinorPrice(p.SalePriceU).Normalize(),
		Rating:    p.Rating,
		Reviews:   p.Feedbacks,
		Purchases: p.OrdersCount,
		URL:       fmt.Sprintf("https://www.wildberries.ru/catalog/%d/detail.aspx", p.ID),
		ImageURL:  WildberriesImageURL(p.ID),
	}
}

// WildberriesImageHost escolhe o host da CDN pelo volume do artigo
func WildberriesImageHost(vol int64) string {
	for _, b := range wbBaskets {
		if vol >= b.minVol && vol <= b.maxVol {
			return b.host
		}
	}
	return wbFallbackHost
}

// WildberriesImageURL deriva a URL da imagem principal sem consultar a rede
func WildberriesImageURL(id int64) string {
	vol := id / 100000
	part := id / 1000
	return fmt.Sprintf("%s/vol%d/part%d/%d/images/big/1.jpg", WildberriesImageHost(vol), vol, part, id)
}
