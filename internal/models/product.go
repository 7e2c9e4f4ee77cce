package models

import "strings"

// Source identifica o marketplace de origem de um produto
type Source string

const (
	SourceOzon        Source = "ozon"
	SourceWildberries Source = "wildberries"
)

// Title retorna o nome de exibição do marketplace
func (s Source) Title() string {
	switch s {
	case SourceOzon:
		return "Ozon"
	case SourceWildberries:
		return "Wildberries"
	default:
		return string(s)
	}
}

// ParseSource converte um texto livre (ozon, wb, wildberries) em Source
func ParseSource(text string) (Source, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "ozon":
		return SourceOzon, true
	case "wb", "wildberries":
		return SourceWildberries, true
	}
	return "", false
}

// Unit indica em que unidade um Price está expresso
type Unit int

const (
	// Whole são unidades inteiras da moeda (rublos)
	Whole Unit = iota
	// Minor são centésimos da moeda (copeques)
	Minor
)

// Price é um valor monetário que carrega a própria unidade.
// A API do Wildberries devolve copeques e o Ozon exibe rublos; manter a unidade junto
// do número evita converter duas vezes (ou nenhuma) na fronteira entre as fontes.
type Price struct {
	Amount int64
	Unit   Unit
}

// WholePrice cria um preço em unidades inteiras
func WholePrice(amount int64) Price {
	return Price{Amount: amount, Unit: Whole}
}

// MinorPrice cria um preço em centésimos
func MinorPrice(amount int64) Price {
	return Price{Amount: amount, Unit: Minor}
}

// Whole retorna o valor em unidades inteiras, truncando centésimos
func (p Price) Whole() int64 {
	if p.Unit == Minor {
		return p.Amount / 100
	}
	return p.Amount
}

// Normalize retorna o mesmo preço expresso em unidades inteiras
func (p Price) Normalize() Price {
	return WholePrice(p.Whole())
}

// ProductKey identifica um produto dentro do seu marketplace.
// O mesmo ID pode existir nas duas fontes sem colisão.
type ProductKey struct {
	Source Source
	ID     string
}

// ProductRecord é a representação normalizada de um produto de qualquer fonte
type ProductRecord struct {
	Source    Source
	ID        string
	Name      string
	BasePrice Price
	AltPrice  *Price // Preço com cartão de fidelidade; nil quando a fonte não informa
	Rating    float64
	Reviews   int64
	Purchases int64
	URL       string
	ImageURL  string
}

// Key retorna a chave do produto com escopo de fonte
func (r ProductRecord) Key() ProductKey {
	return ProductKey{Source: r.Source, ID: r.ID}
}

// InStock indica se o produto tem preço base (0 significa sem estoque)
func (r ProductRecord) InStock() bool {
	return r.BasePrice.Whole() > 0
}

// EffectivePrice retorna o preço com cartão quando existe e é positivo, senão o preço base
func (r ProductRecord) EffectivePrice() int64 {
	if r.AltPrice != nil && r.AltPrice.Whole() > 0 {
		return r.AltPrice.Whole()
	}
	return r.BasePrice.Whole()
}
