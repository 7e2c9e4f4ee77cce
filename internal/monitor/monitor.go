package monitor

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"bot-marketplaces/internal/models"
	"bot-marketplaces/internal/notify"
)

// ErrOutOfStock indica produto sem preço base (indisponível)
var ErrOutOfStock = errors.New("produto sem estoque")

// Store é o armazenamento de itens monitorados
type Store interface {
	ListAllWatch(ctx context.Context) ([]models.WatchItem, error)
	UpdateWatchPrice(ctx context.Context, key models.WatchKey, price int64, checkedAt time.Time) error
	DeleteWatch(ctx context.Context, key models.WatchKey) error
}

// DetailFetcher carrega o detalhe atual de um artigo
type DetailFetcher interface {
	GetProductDetail(ctx context.Context, article string) (*models.ProductRecord, error)
}

// Notifier entrega o aviso ao usuário
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) notify.Outcome
}

// Options controla o ritmo do monitor
type Options struct {
	InitialDelay time.Duration // espera antes da primeira passada
	Interval     time.Duration // espera entre passadas
	ItemDelay    time.Duration // intervalo mínimo entre itens de uma passada
}

// Monitor gerencia o monitoramento periódico de produtos
type Monitor struct {
	store    Store
	fetcher  DetailFetcher
	notifier Notifier
	opts     Options
	limiter  *rate.Limiter
	logger   *slog.Logger
	now      func() time.Time
}

// New cria uma nova instância do monitor
func New(store Store, fetcher DetailFetcher, notifier Notifier, opts Options, logger *slog.Logger) *Monitor {
	limit := rate.Inf
	if opts.ItemDelay > 0 {
		limit = rate.Every(opts.ItemDelay)
	}
	return &Monitor{
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		now:      time.Now,
	}
}

// Run espera o atraso inicial e executa uma passada a cada intervalo até ctx ser cancelado
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("Monitor iniciado", "initial_delay", m.opts.InitialDelay, "interval", m.opts.Interval)

	if err := sleep(ctx, m.opts.InitialDelay); err != nil {
		return err
	}

	for {
		m.RunPass(ctx)

		m.logger.Info("Próxima verificação agendada", "in", m.opts.Interval)
		if err := sleep(ctx, m.opts.Interval); err != nil {
			m.logger.Info("Monitor encerrado")
			return err
		}
	}
}

// RunPass verifica todos os itens monitorados, um de cada vez.
// Falhas de um item não interrompem a passada; pânicos são registrados e a passada termina.
func (m *Monitor) RunPass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Pânico durante a verificação de preços", "panic", r)
		}
	}()

	items, err := m.store.ListAllWatch(ctx)
	if err != nil {
		m.logger.Error("Erro ao buscar itens monitorados", "error", err)
		return
	}
	if len(items) == 0 {
		m.logger.Info("Nenhum item para monitorar")
		return
	}
	m.logger.Info("Iniciando verificação de preços", "items", len(items))

	for _, item := range items {
		if err := m.limiter.Wait(ctx); err != nil {
			return
		}
		if _, err := m.CheckNow(ctx, item); err != nil {
			m.logger.Warn("Item não verificado", "user_id", item.UserID, "article", item.Article, "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// CheckNow atualiza um item imediatamente, avisa o usuário se a meta foi atingida
// e devolve o produto carregado
func (m *Monitor) CheckNow(ctx context.Context, item models.WatchItem) (*models.ProductRecord, error) {
	record, err := m.fetcher.GetProductDetail(ctx, item.Article)
	if err != nil {
		return nil, err
	}
	if !record.InStock() {
		return record, ErrOutOfStock
	}

	price := record.EffectivePrice()
	if err := m.store.UpdateWatchPrice(ctx, item.Key(), price, m.now()); err != nil {
		return record, fmt.Errorf("atualizar preço: %w", err)
	}

	if price > item.DesiredPrice {
		m.logger.Debug("Meta ainda não atingida", "article", item.Article, "price", price, "desired", item.DesiredPrice)
		return record, nil
	}

	m.logger.Info("Preço atingiu a meta", "user_id", item.UserID, "article", item.Article, "price", price, "desired", item.DesiredPrice)
	outcome := m.notifier.Send(ctx, item.UserID, Message(item, price))
	switch outcome {
	case notify.Delivered, notify.PermanentlyUnreachable:
		if err := m.store.DeleteWatch(ctx, item.Key()); err != nil {
			return record, fmt.Errorf("remover item: %w", err)
		}
		m.logger.Info("Item removido do monitoramento", "user_id", item.UserID, "article", item.Article, "outcome", outcome)
	default:
		m.logger.Warn("Aviso não entregue, nova tentativa na próxima passada", "user_id", item.UserID, "article", item.Article)
	}
	return record, nil
}

// Message monta o aviso de queda de preço
func Message(item models.WatchItem, newPrice int64) string {
	return fmt.Sprintf(
		"🎉 <b>Preço reduzido!</b>\n\n"+
			"<b>%s</b>\n"+
			"Preço anterior: %d ₽\n"+
			"Preço novo: <b>%d ₽</b> (sua meta: %d ₽)\n\n"+
			"%s",
		html.EscapeString(item.Name),
		item.CurrentPrice,
		newPrice,
		item.DesiredPrice,
		models.OzonProductURL(item.Article),
	)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
