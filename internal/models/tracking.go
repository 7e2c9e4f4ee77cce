package models

import (
	"fmt"
	"time"
)

// WatchKey identifica um item monitorado: um usuário só monitora um artigo uma vez
type WatchKey struct {
	UserID  int64
	Article string
}

// WatchItem representa um pedido de aviso quando o preço cair até DesiredPrice
type WatchItem struct {
	UserID       int64
	Article      string
	Source       Source
	Name         string
	DesiredPrice int64 // Definido na criação e nunca alterado
	CurrentPrice int64
	LastCheck    time.Time
}

// Key retorna a chave do item
func (w WatchItem) Key() WatchKey {
	return WatchKey{UserID: w.UserID, Article: w.Article}
}

// Reached indica se o preço observado já atingiu a meta
func (w WatchItem) Reached() bool {
	return w.CurrentPrice > 0 && w.CurrentPrice <= w.DesiredPrice
}

// FavoriteKey identifica um favorito
type FavoriteKey struct {
	UserID  int64
	Article string
}

// FavoriteItem é um produto salvo pelo usuário com o preço do momento em que foi salvo
type FavoriteItem struct {
	UserID  int64
	Article string
	Name    string
	Price   int64
}

// Key retorna a chave do favorito
func (f FavoriteItem) Key() FavoriteKey {
	return FavoriteKey{UserID: f.UserID, Article: f.Article}
}

// OzonProductURL monta a URL canônica de um artigo do Ozon
func OzonProductURL(article string) string {
	return fmt.Sprintf("https://www.ozon.ru/product/%s/", article)
}
