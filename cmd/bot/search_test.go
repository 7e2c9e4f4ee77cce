package main

import (
	"bytes"
	"strings"
	"testing"

	"bot-marketplaces/internal/models"
)

func TestPrintProducts(t *testing.T) {
	alt := models.WholePrice(900)
	var buf bytes.Buffer
	printProducts(&buf, []models.ProductRecord{
		{Source: models.SourceOzon, Name: "Фен", BasePrice: models.WholePrice(1000), AltPrice: &alt, URL: "https://www.ozon.ru/product/1/"},
		{Source: models.SourceWildberries, Name: "Чехол", BasePrice: models.MinorPrice(50000), Rating: 4.5, Reviews: 10},
	})

	out := buf.String()
	for _, want := range []string{"1. [Ozon] Фен", "com cartão: 900 ₽", "2. [Wildberries] Чехол", "preço: 500 ₽", "nota: 4.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintProductsEmpty(t *testing.T) {
	var buf bytes.Buffer
	printProducts(&buf, nil)
	if !strings.Contains(buf.String(), "Nada encontrado") {
		t.Errorf("output = %q", buf.String())
	}
}
