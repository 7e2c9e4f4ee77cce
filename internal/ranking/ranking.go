// Package ranking ordena produtos de fontes diferentes por uma pontuação única.
package ranking

import (
	"math"
	"sort"

	"bot-marketplaces/internal/models"
)

// Pesos da pontuação
const (
	priceWeight     = 0.4
	reviewsWeight   = 0.2
	purchasesWeight = 0.1
	ratingWeight    = 0.3
)

// Score calcula a pontuação de um produto. Produtos sem preço valem 0.
func Score(rec models.ProductRecord) float64 {
	price := float64(rec.BasePrice.Whole())
	if price <= 0 {
		return 0
	}
	return priceWeight*(1000/price) +
		reviewsWeight*math.Log(float64(rec.Reviews)+1) +
		purchasesWeight*math.Log(float64(rec.Purchases)+1) +
		ratingWeight*(rec.Rating*10)
}

// Rank devolve uma cópia ordenada por pontuação decrescente; empates mantêm a ordem de entrada
func Rank(records []models.ProductRecord) []models.ProductRecord {
	ranked := make([]models.ProductRecord, len(records))
	copy(ranked, records)

	sort.SliceStable(ranked, func(i, j int) bool {
		return Score(ranked[i]) > Score(ranked[j])
	})
	return ranked
}

// Top devolve os n melhores produtos
func Top(records []models.ProductRecord, n int) []models.ProductRecord {
	ranked := Rank(records)
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
