package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"bot-marketplaces/internal/models"
	"bot-marketplaces/internal/notify"
	"bot-marketplaces/internal/scraper"
)

type memStore struct {
	mu    sync.Mutex
	items map[models.WatchKey]models.WatchItem
	order []models.WatchKey
}

func newMemStore(items ...models.WatchItem) *memStore {
	s := &memStore{items: map[models.WatchKey]models.WatchItem{}}
	for _, it := range items {
		s.items[it.Key()] = it
		s.order = append(s.order, it.Key())
	}
	return s
}

func (s *memStore) ListAllWatch(ctx context.Context) ([]models.WatchItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WatchItem
	for _, k := range s.order {
		if it, ok := s.items[k]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *memStore) UpdateWatchPrice(ctx context.Context, key models.WatchKey, price int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok {
		return nil
	}
	it.CurrentPrice = price
	it.LastCheck = at
	s.items[key] = it
	return nil
}

func (s *memStore) DeleteWatch(ctx context.Context, key models.WatchKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *memStore) get(key models.WatchKey) (models.WatchItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	return it, ok
}

// fakeFetcher devolve os preços em sequência, um por chamada
type fakeFetcher struct {
	mu     sync.Mutex
	prices map[string][]models.ProductRecord
	err    map[string]error
	calls  int
}

func (f *fakeFetcher) GetProductDetail(ctx context.Context, article string) (*models.ProductRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.err[article]; err != nil {
		return nil, err
	}
	seq := f.prices[article]
	if len(seq) == 0 {
		return nil, scraper.ErrNotFound
	}
	rec := seq[0]
	f.prices[article] = seq[1:]
	return &rec, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	outcomes []notify.Outcome
	sent     []string
}

func (n *fakeNotifier) Send(ctx context.Context, userID int64, text string) notify.Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	if len(n.outcomes) == 0 {
		return notify.Delivered
	}
	o := n.outcomes[0]
	n.outcomes = n.outcomes[1:]
	return o
}

func ozon(price int64) models.ProductRecord {
	return models.ProductRecord{Source: models.SourceOzon, BasePrice: models.WholePrice(price)}
}

func newTestMonitor(store Store, f DetailFetcher, n Notifier) *Monitor {
	return New(store, f, n, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPriceDropLifecycle(t *testing.T) {
	item := models.WatchItem{UserID: 1, Article: "100", Source: models.SourceOzon, Name: "Фен <Pro>", DesiredPrice: 1000}
	store := newMemStore(item)
	fetcher := &fakeFetcher{prices: map[string][]models.ProductRecord{
		"100": {ozon(1500), ozon(1200), ozon(900)},
	}}
	notifier := &fakeNotifier{}
	m := newTestMonitor(store, fetcher, notifier)

	m.RunPass(context.Background())
	got, ok := store.get(item.Key())
	if !ok || got.CurrentPrice != 1500 || got.LastCheck.IsZero() {
		t.Fatalf("after pass 1: %+v, %v", got, ok)
	}

	m.RunPass(context.Background())
	got, _ = store.get(item.Key())
	if got.CurrentPrice != 1200 || len(notifier.sent) != 0 {
		t.Fatalf("after pass 2: %+v, sent %d", got, len(notifier.sent))
	}

	m.RunPass(context.Background())
	if _, ok := store.get(item.Key()); ok {
		t.Error("item should be removed after delivery")
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(notifier.sent))
	}
	msg := notifier.sent[0]
	for _, want := range []string{"1200 ₽", "<b>900 ₽</b>", "1000 ₽", "Фен &lt;Pro&gt;", "https://www.ozon.ru/product/100/"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestNotificationOutcomes(t *testing.T) {
	tests := []struct {
		outcome  notify.Outcome
		keepItem bool
	}{
		{notify.Delivered, false},
		{notify.PermanentlyUnreachable, false},
		{notify.TransientFailure, true},
	}
	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			item := models.WatchItem{UserID: 1, Article: "1", DesiredPrice: 1000}
			store := newMemStore(item)
			fetcher := &fakeFetcher{prices: map[string][]models.ProductRecord{"1": {ozon(800)}}}
			m := newTestMonitor(store, fetcher, &fakeNotifier{outcomes: []notify.Outcome{tt.outcome}})

			m.RunPass(context.Background())

			got, ok := store.get(item.Key())
			if ok != tt.keepItem {
				t.Fatalf("item kept = %v, want %v", ok, tt.keepItem)
			}
			if ok && (got.CurrentPrice != 800 || got.DesiredPrice != 1000) {
				t.Errorf("kept item = %+v", got)
			}
		})
	}
}

func TestEffectivePriceUsesCardPrice(t *testing.T) {
	item := models.WatchItem{UserID: 1, Article: "1", DesiredPrice: 1000}
	store := newMemStore(item)
	alt := models.WholePrice(950)
	rec := models.ProductRecord{BasePrice: models.WholePrice(1100), AltPrice: &alt}
	notifier := &fakeNotifier{}
	m := newTestMonitor(store, &fakeFetcher{prices: map[string][]models.ProductRecord{"1": {rec}}}, notifier)

	m.RunPass(context.Background())

	if len(notifier.sent) != 1 {
		t.Errorf("card price below target should notify, sent = %d", len(notifier.sent))
	}
}

func TestZeroCardPriceFallsBackToBase(t *testing.T) {
	item := models.WatchItem{UserID: 1, Article: "7", Source: models.SourceOzon, DesiredPrice: 1000}
	store := newMemStore(item)
	alt := models.WholePrice(0)
	rec := models.ProductRecord{Source: models.SourceOzon, BasePrice: models.WholePrice(1500), AltPrice: &alt}
	notifier := &fakeNotifier{}
	m := newTestMonitor(store, &fakeFetcher{prices: map[string][]models.ProductRecord{"7": {rec}}}, notifier)

	m.RunPass(context.Background())

	if len(notifier.sent) != 0 {
		t.Errorf("zero card price must not notify, sent = %v", notifier.sent)
	}
	got, ok := store.get(item.Key())
	if !ok {
		t.Fatal("item must stay tracked")
	}
	if got.CurrentPrice != 1500 {
		t.Errorf("CurrentPrice = %d, want base 1500", got.CurrentPrice)
	}
}

func TestOutOfStockAndFailuresAreSkipped(t *testing.T) {
	a := models.WatchItem{UserID: 1, Article: "a", DesiredPrice: 1000, CurrentPrice: 1500}
	b := models.WatchItem{UserID: 1, Article: "b", DesiredPrice: 1000, CurrentPrice: 1500}
	c := models.WatchItem{UserID: 2, Article: "c", DesiredPrice: 1000}
	store := newMemStore(a, b, c)
	fetcher := &fakeFetcher{
		prices: map[string][]models.ProductRecord{"a": {ozon(0)}, "c": {ozon(1100)}},
		err:    map[string]error{"b": errors.New("boom")},
	}
	notifier := &fakeNotifier{}
	m := newTestMonitor(store, fetcher, notifier)

	m.RunPass(context.Background())

	if fetcher.calls != 3 {
		t.Errorf("calls = %d, want every item visited", fetcher.calls)
	}
	if got, _ := store.get(a.Key()); got.CurrentPrice != 1500 {
		t.Errorf("out of stock item updated: %+v", got)
	}
	if got, _ := store.get(b.Key()); got.CurrentPrice != 1500 {
		t.Errorf("failed item updated: %+v", got)
	}
	if got, _ := store.get(c.Key()); got.CurrentPrice != 1100 {
		t.Errorf("item c = %+v, want price 1100", got)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("sent = %d, want 0", len(notifier.sent))
	}
}

func TestCheckNowOutOfStock(t *testing.T) {
	item := models.WatchItem{UserID: 1, Article: "a", DesiredPrice: 1000}
	m := newTestMonitor(newMemStore(item), &fakeFetcher{prices: map[string][]models.ProductRecord{"a": {ozon(0)}}}, &fakeNotifier{})

	_, err := m.CheckNow(context.Background(), item)
	if !errors.Is(err, ErrOutOfStock) {
		t.Errorf("CheckNow() error = %v, want ErrOutOfStock", err)
	}
}

type panicFetcher struct{}

func (panicFetcher) GetProductDetail(ctx context.Context, article string) (*models.ProductRecord, error) {
	panic("driver exploded")
}

func TestRunPassRecoversPanic(t *testing.T) {
	store := newMemStore(models.WatchItem{UserID: 1, Article: "a", DesiredPrice: 1})
	m := newTestMonitor(store, panicFetcher{}, &fakeNotifier{})
	m.RunPass(context.Background())
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newMemStore(models.WatchItem{UserID: 1, Article: "a", DesiredPrice: 1})
	fetcher := &fakeFetcher{prices: map[string][]models.ProductRecord{"a": {ozon(10), ozon(10), ozon(10)}}}
	m := New(store, fetcher, &fakeNotifier{}, Options{
		InitialDelay: time.Millisecond,
		Interval:     time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		fetcher.mu.Lock()
		calls := fetcher.calls
		fetcher.mu.Unlock()
		if calls >= 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
	if fetcher.calls != 1 {
		t.Errorf("calls = %d, want exactly one pass before the long interval", fetcher.calls)
	}
}

func TestItemDelayPacesPass(t *testing.T) {
	store := newMemStore(
		models.WatchItem{UserID: 1, Article: "a", DesiredPrice: 1},
		models.WatchItem{UserID: 1, Article: "b", DesiredPrice: 1},
		models.WatchItem{UserID: 1, Article: "c", DesiredPrice: 1},
	)
	fetcher := &fakeFetcher{prices: map[string][]models.ProductRecord{
		"a": {ozon(10)}, "b": {ozon(10)}, "c": {ozon(10)},
	}}
	m := New(store, fetcher, &fakeNotifier{}, Options{ItemDelay: 30 * time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	start := time.Now()
	m.RunPass(context.Background())
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("pass took %v, want items paced by the delay", elapsed)
	}
}
