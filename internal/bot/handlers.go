package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bot-marketplaces/internal/models"
)

const sorryText = "😔 Desculpe, algo deu errado. Tente novamente mais tarde."

// sender é a parte do BotAPI usada pelos handlers
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Searcher executa buscas por loja e combinadas
type Searcher interface {
	Store(ctx context.Context, source models.Source, query string) []models.ProductRecord
	Best(ctx context.Context, query string) []models.ProductRecord
}

// ProductFetcher carrega produtos do Ozon por artigo ou URL
type ProductFetcher interface {
	ArticleFromInput(input string) (string, bool)
	GetProductDetail(ctx context.Context, article string) (*models.ProductRecord, error)
}

// Checker atualiza um item monitorado sob demanda
type Checker interface {
	CheckNow(ctx context.Context, item models.WatchItem) (*models.ProductRecord, error)
}

// Store guarda favoritos e itens monitorados
type Store interface {
	UpsertFavorite(ctx context.Context, f models.FavoriteItem) error
	DeleteFavorite(ctx context.Context, key models.FavoriteKey) error
	ListFavorites(ctx context.Context, userID int64) ([]models.FavoriteItem, error)
	FavoriteExists(ctx context.Context, key models.FavoriteKey) (bool, error)
	UpsertWatch(ctx context.Context, w models.WatchItem) error
	DeleteWatch(ctx context.Context, key models.WatchKey) error
	ListWatch(ctx context.Context, userID int64) ([]models.WatchItem, error)
	WatchExists(ctx context.Context, key models.WatchKey) (bool, error)
}

// Handler responde aos comandos recebidos pelo Telegram
type Handler struct {
	api     sender
	search  Searcher
	ozon    ProductFetcher
	checker Checker
	store   Store
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewHandler cria o handler de comandos
func NewHandler(api sender, search Searcher, ozon ProductFetcher, checker Checker, store Store, logger *slog.Logger) *Handler {
	return &Handler{
		api:     api,
		search:  search,
		ozon:    ozon,
		checker: checker,
		store:   store,
		logger:  logger,
	}
}

// Run consome as atualizações até ctx ser cancelado ou o canal fechar.
// Cada mensagem é tratada em sua própria goroutine; Run só retorna depois que todas terminarem.
func (h *Handler) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	defer h.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			h.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer h.wg.Done()
				h.Handle(ctx, msg)
			}(update.Message)
		}
	}
}

// Handle executa um comando
func (h *Handler) Handle(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Pânico ao tratar mensagem", "chat_id", chatID, "panic", r)
			h.reply(chatID, sorryText)
		}
	}()

	// Extrair comando (remover @botname se presente e pegar apenas o comando)
	parts := strings.Fields(message.Text)
	if len(parts) == 0 {
		return
	}
	command := strings.ToLower(parts[0])
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}
	args := parts[1:]
	userID := chatID
	if message.From != nil {
		userID = message.From.ID
	}

	switch command {
	case "/start", "/help":
		h.handleHelp(chatID)
	case "/ozon":
		h.handleStoreSearch(ctx, chatID, models.SourceOzon, args)
	case "/wb":
		h.handleStoreSearch(ctx, chatID, models.SourceWildberries, args)
	case "/best":
		h.handleBest(ctx, chatID, args)
	case "/track":
		h.handleTrack(ctx, chatID, userID, args)
	case "/tracking":
		h.handleListTracking(ctx, chatID, userID)
	case "/untrack":
		h.handleUntrack(ctx, chatID, userID, args)
	case "/check":
		h.handleCheck(ctx, chatID, userID, args)
	case "/fav":
		h.handleAddFavorite(ctx, chatID, userID, args)
	case "/favorites":
		h.handleListFavorites(ctx, chatID, userID)
	case "/unfav":
		h.handleRemoveFavorite(ctx, chatID, userID, args)
	default:
		h.reply(chatID, "Comando não reconhecido. Use /help para ver os comandos disponíveis.")
	}
}

func (h *Handler) handleHelp(chatID int64) {
	helpText := `🤖 <b>Bot de Preços Ozon e Wildberries</b>

<b>Busca:</b>
<b>/ozon</b> &lt;consulta&gt; - Melhores resultados no Ozon
<b>/wb</b> &lt;consulta&gt; - Melhores resultados no Wildberries
<b>/best</b> &lt;consulta&gt; - Melhores ofertas das duas lojas

<b>Monitoramento (Ozon):</b>
<b>/track</b> &lt;artigo ou URL&gt; &lt;preço_alvo&gt; - Avisar quando o preço cair
Exemplo: /track 123456789 1500
<b>/tracking</b> - Listar produtos monitorados
<b>/untrack</b> &lt;artigo&gt; - Parar de monitorar
<b>/check</b> &lt;artigo&gt; - Verificar o preço agora

<b>Favoritos:</b>
<b>/fav</b> &lt;artigo&gt; - Salvar produto
<b>/favorites</b> - Listar favoritos
<b>/unfav</b> &lt;artigo&gt; - Remover dos favoritos

<b>/help</b> - Mostrar esta mensagem de ajuda
`
	h.replyHTML(chatID, helpText)
}

func (h *Handler) handleStoreSearch(ctx context.Context, chatID int64, source models.Source, args []string) {
	if len(args) == 0 {
		h.reply(chatID, fmt.Sprintf("❌ Informe o que buscar.\n\nExemplo: /%s fone bluetooth", commandFor(source)))
		return
	}
	query := strings.Join(args, " ")
	h.reply(chatID, fmt.Sprintf("⏳ Buscando \"%s\" no %s...", query, source.Title()))

	products := h.search.Store(ctx, source, query)
	h.sendProducts(chatID, products)
}

func (h *Handler) handleBest(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		h.reply(chatID, "❌ Informe o que buscar.\n\nExemplo: /best fone bluetooth")
		return
	}
	query := strings.Join(args, " ")
	h.reply(chatID, fmt.Sprintf("⏳ Comparando \"%s\" no Ozon e no Wildberries...", query))

	products := h.search.Best(ctx, query)
	h.sendProducts(chatID, products)
}

func (h *Handler) handleTrack(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) < 2 {
		h.reply(chatID, "❌ Formato incorreto.\n\nUso: /track <artigo ou URL> <preço_alvo>\n\nExemplo: /track 123456789 1500")
		return
	}

	article, ok := h.ozon.ArticleFromInput(args[0])
	if !ok {
		h.reply(chatID, "❌ Artigo inválido. Envie o número do artigo ou a URL do produto no Ozon.")
		return
	}
	desired, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || desired <= 0 {
		h.reply(chatID, "❌ Preço inválido. Use um valor inteiro positivo em rublos.")
		return
	}

	key := models.WatchKey{UserID: userID, Article: article}
	exists, err := h.store.WatchExists(ctx, key)
	if err != nil {
		h.logger.Error("Erro ao consultar monitoramento", "user_id", userID, "article", article, "error", err)
		h.reply(chatID, sorryText)
		return
	}
	if exists {
		h.reply(chatID, "❌ Este produto já está sendo monitorado. Use /untrack antes para mudar o preço alvo.")
		return
	}

	record, err := h.ozon.GetProductDetail(ctx, article)
	if err != nil {
		h.reply(chatID, "😔 Não foi possível carregar o produto agora. Tente novamente mais tarde.")
		return
	}

	item := models.WatchItem{
		UserID:       userID,
		Article:      article,
		Source:       models.SourceOzon,
		Name:         record.Name,
		DesiredPrice: desired,
		CurrentPrice: record.EffectivePrice(),
		LastCheck:    time.Now(),
	}
	if err := h.store.UpsertWatch(ctx, item); err != nil {
		h.logger.Error("Erro ao salvar monitoramento", "user_id", userID, "article", article, "error", err)
		h.reply(chatID, sorryText)
		return
	}
	h.logger.Info("Produto monitorado", "user_id", userID, "article", article, "desired", desired)

	response := fmt.Sprintf(
		"✅ Produto adicionado ao monitoramento!\n\n"+
			"📦 %s\n"+
			"💰 Preço atual: %d ₽\n"+
			"🎯 Preço alvo: %d ₽",
		html.EscapeString(item.Name), item.CurrentPrice, item.DesiredPrice,
	)
	if item.Reached() {
		response += "\n\n🎉 O preço já está abaixo da meta! Você será avisado na próxima verificação."
	} else if item.CurrentPrice > 0 {
		response += fmt.Sprintf("\n💡 Faltam %d ₽ para atingir o preço alvo", item.CurrentPrice-item.DesiredPrice)
	}
	h.replyHTML(chatID, response)
}

func (h *Handler) handleListTracking(ctx context.Context, chatID, userID int64) {
	items, err := h.store.ListWatch(ctx, userID)
	if err != nil {
		h.logger.Error("Erro ao listar monitoramento", "user_id", userID, "error", err)
		h.reply(chatID, sorryText)
		return
	}
	if len(items) == 0 {
		h.reply(chatID, "📋 Nenhum produto sendo monitorado no momento.")
		return
	}

	var response strings.Builder
	response.WriteString("📋 <b>Produtos em Monitoramento:</b>\n\n")
	for _, it := range items {
		response.WriteString(fmt.Sprintf("🆔 <b>%s</b>\n", it.Article))
		response.WriteString(fmt.Sprintf("📦 %s\n", html.EscapeString(it.Name)))
		if it.CurrentPrice > 0 {
			response.WriteString(fmt.Sprintf("💰 <b>Preço atual: %d ₽</b>\n", it.CurrentPrice))
		} else {
			response.WriteString("💰 <b>Preço atual: Não verificado ainda</b>\n")
		}
		if it.Reached() {
			response.WriteString(fmt.Sprintf("🎯 Preço alvo: %d ₽ ✅ <b>META ATINGIDA!</b>\n", it.DesiredPrice))
		} else {
			response.WriteString(fmt.Sprintf("🎯 Preço alvo: %d ₽\n", it.DesiredPrice))
		}
		if !it.LastCheck.IsZero() {
			response.WriteString(fmt.Sprintf("🕐 Última verificação: %s\n", it.LastCheck.Local().Format("02/01/2006 15:04")))
		}
		response.WriteString(fmt.Sprintf("🔗 %s\n\n", models.OzonProductURL(it.Article)))
	}
	h.replyHTML(chatID, response.String())
}

func (h *Handler) handleUntrack(ctx context.Context, chatID, userID int64, args []string) {
	article, ok := h.articleArg(chatID, args, "/untrack")
	if !ok {
		return
	}
	key := models.WatchKey{UserID: userID, Article: article}
	exists, err := h.store.WatchExists(ctx, key)
	if err == nil && !exists {
		h.reply(chatID, "❌ Produto não encontrado no seu monitoramento.")
		return
	}
	if err == nil {
		err = h.store.DeleteWatch(ctx, key)
	}
	if err != nil {
		h.logger.Error("Erro ao remover monitoramento", "user_id", userID, "article", article, "error", err)
		h.reply(chatID, sorryText)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ Produto %s removido do monitoramento.", article))
}

func (h *Handler) handleCheck(ctx context.Context, chatID, userID int64, args []string) {
	article, ok := h.articleArg(chatID, args, "/check")
	if !ok {
		return
	}
	h.reply(chatID, "⏳ Verificando preço...")

	item, tracked, err := h.findWatch(ctx, userID, article)
	if err != nil {
		h.logger.Error("Erro ao consultar monitoramento", "user_id", userID, "article", article, "error", err)
		h.reply(chatID, sorryText)
		return
	}

	var record *models.ProductRecord
	if tracked {
		record, err = h.checker.CheckNow(ctx, item)
	} else {
		record, err = h.ozon.GetProductDetail(ctx, article)
	}
	if record == nil {
		h.logger.Warn("Verificação sem resultado", "article", article, "error", err)
		h.reply(chatID, "😔 Não foi possível carregar o produto agora. Tente novamente mais tarde.")
		return
	}

	h.sendCard(chatID, *record)
	if tracked && record.InStock() {
		h.replyHTML(chatID, fmt.Sprintf(
			"📊 Preço anterior: %d ₽\nPreço atual: <b>%d ₽</b>\n🎯 Preço alvo: %d ₽",
			item.CurrentPrice, record.EffectivePrice(), item.DesiredPrice,
		))
	}
}

func (h *Handler) handleAddFavorite(ctx context.Context, chatID, userID int64, args []string) {
	article, ok := h.articleArg(chatID, args, "/fav")
	if !ok {
		return
	}
	record, err := h.ozon.GetProductDetail(ctx, article)
	if err != nil {
		h.reply(chatID, "😔 Não foi possível carregar o produto agora. Tente novamente mais tarde.")
		return
	}

	fav := models.FavoriteItem{UserID: userID, Article: article, Name: record.Name, Price: record.EffectivePrice()}
	if err := h.store.UpsertFavorite(ctx, fav); err != nil {
		h.logger.Error("Erro ao salvar favorito", "user_id", userID, "article", article, "error", err)
		h.reply(chatID, sorryText)
		return
	}
	h.replyHTML(chatID, fmt.Sprintf("⭐ Salvo nos favoritos: %s (%d ₽)", html.EscapeString(fav.Name), fav.Price))
}

func (h *Handler) handleListFavorites(ctx context.Context, chatID, userID int64) {
	favorites, err := h.store.ListFavorites(ctx, userID)
	if err != nil {
		h.logger.Error("Erro ao listar favoritos", "user_id", userID, "error", err)
		h.reply(chatID, sorryText)
		return
	}
	if len(favorites) == 0 {
		h.reply(chatID, "⭐ Você ainda não tem favoritos.")
		return
	}

	var response strings.Builder
	response.WriteString("⭐ <b>Favoritos:</b>\n\n")
	for _, f := range favorites {
		response.WriteString(fmt.Sprintf("📦 %s\n💰 %d ₽\n🔗 %s\n\n", html.EscapeString(f.Name), f.Price, models.OzonProductURL(f.Article)))
	}
	h.replyHTML(chatID, response.String())
}

func (h *Handler) handleRemoveFavorite(ctx context.Context, chatID, userID int64, args []string) {
	article, ok := h.articleArg(chatID, args, "/unfav")
	if !ok {
		return
	}
	key := models.FavoriteKey{UserID: userID, Article: article}
	exists, err := h.store.FavoriteExists(ctx, key)
	if err == nil && !exists {
		h.reply(chatID, "❌ Produto não está nos seus favoritos.")
		return
	}
	if err == nil {
		err = h.store.DeleteFavorite(ctx, key)
	}
	if err != nil {
		h.logger.Error("Erro ao remover favorito", "user_id", userID, "article", article, "error", err)
		h.reply(chatID, sorryText)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ Produto %s removido dos favoritos.", article))
}

// articleArg lê o artigo do primeiro argumento e responde com o uso correto se faltar
func (h *Handler) articleArg(chatID int64, args []string, command string) (string, bool) {
	if len(args) == 0 {
		h.reply(chatID, fmt.Sprintf("❌ Formato incorreto.\n\nUso: %s <artigo>\n\nExemplo: %s 123456789", command, command))
		return "", false
	}
	article, ok := h.ozon.ArticleFromInput(args[0])
	if !ok {
		h.reply(chatID, "❌ Artigo inválido. Envie o número do artigo ou a URL do produto no Ozon.")
		return "", false
	}
	return article, true
}

func (h *Handler) findWatch(ctx context.Context, userID int64, article string) (models.WatchItem, bool, error) {
	items, err := h.store.ListWatch(ctx, userID)
	if err != nil {
		return models.WatchItem{}, false, err
	}
	for _, it := range items {
		if it.Article == article {
			return it, true, nil
		}
	}
	return models.WatchItem{}, false, nil
}

func commandFor(source models.Source) string {
	if source == models.SourceWildberries {
		return "wb"
	}
	return string(source)
}
