package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"bot-marketplaces/internal/models"

	"github.com/PuerkitoBio/goquery"
)

var (
	ratingRe      = regexp.MustCompile(`(\d\.\d)`)
	reviewsRe     = regexp.MustCompile(`(\d[\d \x{00a0}\x{2009}\x{202f}]*)\s*(отзыв|оцен)`)
	articleHrefRe = regexp.MustCompile(`/product/.*?[-/](\d{9,})/?`)
)

// Tokens que identificam o link de avaliações na página do produto
var reviewTokens = []string{"отзыв", "оцен"}

// OzonPages extrai dados das páginas do Ozon já renderizadas
type OzonPages struct{}

// ParsePrice mantém só os dígitos do texto ("1 234 ₽" -> 1234); vazio vira 0
func ParsePrice(text string) int64 {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	price, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0
	}
	return price
}

// ParseDetail monta o ProductRecord a partir do HTML da página de detalhe
func (OzonPages) ParseDetail(html, article, url string) (*models.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsear html: %w", err)
	}

	name := strings.TrimSpace(doc.Find("h1").First().Text())
	if name == "" {
		return nil, fmt.Errorf("%w: título ausente", ErrNotFound)
	}

	record := &models.ProductRecord{
		Source:   models.SourceOzon,
		ID:       article,
		Name:     name,
		URL:      url,
		ImageURL: parseGalleryImage(doc),
	}

	base, alt, ok := parsePrices(doc)
	record.BasePrice = models.WholePrice(base)
	if ok {
		altPrice := models.WholePrice(alt)
		record.AltPrice = &altPrice
	}

	record.Rating, record.Reviews = parseRatingAndReviews(doc)
	return record, nil
}

// parsePrices lê os spans com ₽ do widget de preço.
// Com dois ou mais, o primeiro é o preço com cartão e o segundo o preço normal;
// com um só, os dois recebem o mesmo valor.
func parsePrices(doc *goquery.Document) (base, alt int64, hasAlt bool) {
	var texts []string
	doc.Find(`div[data-widget="webPrice"] span`).Each(func(i int, s *goquery.Selection) {
		text := s.Text()
		if strings.Contains(text, "₽") {
			texts = append(texts, text)
		}
	})

	switch {
	case len(texts) >= 2:
		base, alt = ParsePrice(texts[1]), ParsePrice(texts[0])
	case len(texts) == 1:
		base = ParsePrice(texts[0])
		alt = base
	}
	// ₽ sem dígitos não é preço com cartão
	return base, alt, alt > 0
}

// parseRatingAndReviews percorre todos os links procurando o bloco de avaliações.
// Cada link com o token sobrescreve nota e contagem; para no primeiro com contagem > 0.
func parseRatingAndReviews(doc *goquery.Document) (rating float64, reviews int64) {
	doc.Find("a").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := strings.ToLower(renderedText(s))
		if !containsAny(text, reviewTokens) {
			return true
		}

		if m := ratingRe.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				rating = v
			}
		}
		if m := reviewsRe.FindStringSubmatch(text); m != nil {
			digits := strings.Map(func(r rune) rune {
				if unicode.IsSpace(r) {
					return -1
				}
				return r
			}, m[1])
			if v, err := strconv.ParseInt(digits, 10, 64); err == nil {
				reviews = v
			}
		}
		return reviews == 0
	})
	return rating, reviews
}

// renderedText junta os nós de texto com quebra de linha, como o navegador
// separa blocos ("<div>4.8</div><div>1 234</div>" vira "4.8\n1 234")
func renderedText(s *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(i int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				parts = append(parts, c.Text())
				return
			}
			walk(c)
		})
	}
	walk(s)
	return strings.Join(parts, "\n")
}

// parseGalleryImage escolhe o maior candidato do srcset; sem srcset usa o src
func parseGalleryImage(doc *goquery.Document) string {
	img := doc.Find(`div[data-widget="webGallery"] img`).First()
	if img.Length() == 0 {
		return ""
	}
	if srcset, ok := img.Attr("srcset"); ok && strings.TrimSpace(srcset) != "" {
		return BestSrcsetCandidate(srcset)
	}
	return img.AttrOr("src", "")
}

// BestSrcsetCandidate devolve a URL de maior largura de uma lista "url 400w, url 800w".
// Descritores que não terminam em "w" valem 0; em empate fica o primeiro.
func BestSrcsetCandidate(srcset string) string {
	best, bestWidth := "", int64(-1)
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		var width int64
		if len(fields) == 2 && strings.HasSuffix(fields[1], "w") {
			width, _ = strconv.ParseInt(strings.TrimSuffix(fields[1], "w"), 10, 64)
		}
		if width > bestWidth {
			best, bestWidth = fields[0], width
		}
	}
	return best
}

// ParseSearch extrai os artigos dos links de resultado, sem repetir e na ordem da página
func (OzonPages) ParseSearch(html string, limit int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsear html: %w", err)
	}

	var hrefs []string
	doc.Find(`a[href*="/product/"]`).Each(func(i int, s *goquery.Selection) {
		hrefs = append(hrefs, s.AttrOr("href", ""))
	})
	return ArticlesFromLinks(hrefs, limit), nil
}

// ArticlesFromLinks aplica o padrão de artigo (9+ dígitos) a cada link
func ArticlesFromLinks(hrefs []string, limit int) []string {
	seen := make(map[string]bool)
	var articles []string
	for _, href := range hrefs {
		m := articleHrefRe.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		articles = append(articles, m[1])
	}
	if limit >= 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
