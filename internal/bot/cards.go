package bot

import (
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bot-marketplaces/internal/models"
)

// productCard monta o texto HTML de um produto
func productCard(p models.ProductRecord) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏪 %s\n", p.Source.Title()))
	b.WriteString(fmt.Sprintf("<b>%s</b>\n\n", html.EscapeString(p.Name)))

	base := p.BasePrice.Whole()
	switch {
	case !p.InStock():
		b.WriteString("💰 Sem estoque\n")
	case p.AltPrice != nil && p.AltPrice.Whole() != base:
		b.WriteString(fmt.Sprintf("💳 Com cartão: <b>%d ₽</b>\n", p.AltPrice.Whole()))
		b.WriteString(fmt.Sprintf("💰 Preço: %d ₽\n", base))
	default:
		b.WriteString(fmt.Sprintf("💰 Preço: <b>%d ₽</b>\n", base))
	}

	if p.Rating > 0 {
		b.WriteString(fmt.Sprintf("⭐ %.1f (%d avaliações)\n", p.Rating, p.Reviews))
	}
	if p.Purchases > 0 {
		b.WriteString(fmt.Sprintf("🛒 %d compras\n", p.Purchases))
	}
	b.WriteString(fmt.Sprintf("🆔 %s\n", p.ID))
	b.WriteString(fmt.Sprintf("🔗 %s", p.URL))
	return b.String()
}

func (h *Handler) sendProducts(chatID int64, products []models.ProductRecord) {
	if len(products) == 0 {
		h.reply(chatID, "😔 Nada encontrado. Tente outra consulta ou tente novamente mais tarde.")
		return
	}
	for _, p := range products {
		h.sendCard(chatID, p)
	}
}

// sendCard envia o produto com foto quando há imagem; se a foto falhar, envia só o texto
func (h *Handler) sendCard(chatID int64, p models.ProductRecord) {
	caption := productCard(p)
	if p.ImageURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(p.ImageURL))
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		_, err := h.api.Send(photo)
		if err == nil {
			return
		}
		h.logger.Warn("Erro ao enviar foto, enviando só o texto", "source", p.Source, "id", p.ID, "error", err)
	}
	h.replyHTML(chatID, caption)
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		h.logger.Error("Erro ao enviar mensagem", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) replyHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.api.Send(msg); err != nil {
		h.logger.Warn("Erro ao enviar mensagem com HTML", "chat_id", chatID, "error", err)
		// Tentar enviar sem formatação se houver erro
		msg.ParseMode = ""
		if _, err2 := h.api.Send(msg); err2 != nil {
			h.logger.Error("Erro ao enviar mensagem sem formatação", "chat_id", chatID, "error", err2)
		}
	}
}
