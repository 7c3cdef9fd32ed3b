package engine

import (
	"context"
	"sync"
	"time"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
)

// seriesCall は保留中の系列取得1件です。テスト側が reply に結果を書き込みます
type seriesCall struct {
	key   market.SeriesKey
	reply chan seriesReply
}

type seriesReply struct {
	series market.Series
	err    error
}

// fakeBackend は market.Backend のテスト用実装です
type fakeBackend struct {
	mu         sync.Mutex
	tracked    []market.TrackedSymbol
	nextID     int64
	closes     map[string]float64
	requested  []market.SeriesKey
	listCalls  int
	trackCalls []string
	deleted    []int64

	listErr    error
	refreshErr error
	trackErr   error
	deleteErr  error
	historyErr error
	listGate   chan struct{}

	// nil でなければ取得を保留し、このチャネルに通知する
	historyCalls chan seriesCall
	rsiCalls     chan seriesCall

	push chan market.QuoteUpdate
}

func newFakeBackend(symbols ...string) *fakeBackend {
	f := &fakeBackend{
		nextID: 1,
		closes: make(map[string]float64),
		push:   make(chan market.QuoteUpdate, 16),
	}
	for _, s := range symbols {
		f.add(s)
	}
	return f
}

func (f *fakeBackend) add(symbol string) {
	f.tracked = append(f.tracked, market.TrackedSymbol{ID: f.nextID, Symbol: symbol, Price: 100 + float64(f.nextID)})
	f.closes[symbol] = float64(f.nextID)
	f.nextID++
}

func (f *fakeBackend) ListTracked(ctx context.Context) ([]market.TrackedSymbol, error) {
	f.mu.Lock()
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]market.TrackedSymbol, len(f.tracked))
	copy(out, f.tracked)
	return out, nil
}

func (f *fakeBackend) Track(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackCalls = append(f.trackCalls, symbol)
	if f.trackErr != nil {
		return f.trackErr
	}
	for _, row := range f.tracked {
		if row.Symbol == symbol {
			return nil
		}
	}
	f.add(symbol)
	return nil
}

func (f *fakeBackend) DeleteTracked(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	for i, row := range f.tracked {
		if row.ID == id {
			f.tracked = append(f.tracked[:i:i], f.tracked[i+1:]...)
			return nil
		}
	}
	return market.ErrRejected
}

func (f *fakeBackend) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshErr
}

func (f *fakeBackend) History(ctx context.Context, key market.SeriesKey) (market.Series, error) {
	f.mu.Lock()
	f.requested = append(f.requested, key)
	err := f.historyErr
	f.mu.Unlock()
	if err != nil {
		return market.Series{}, err
	}
	return f.serve(ctx, f.historyCalls, key, market.SERIES_PRICE)
}

func (f *fakeBackend) RSI(ctx context.Context, key market.SeriesKey) (market.Series, error) {
	return f.serve(ctx, f.rsiCalls, key, market.SERIES_RSI)
}

func (f *fakeBackend) serve(ctx context.Context, calls chan seriesCall, key market.SeriesKey, kind market.SeriesKind) (market.Series, error) {
	if calls == nil {
		return f.seriesFor(key, kind), nil
	}

	call := seriesCall{key: key, reply: make(chan seriesReply, 1)}
	select {
	case calls <- call:
	case <-ctx.Done():
		return market.Series{}, ctx.Err()
	}
	select {
	case r := <-call.reply:
		return r.series, r.err
	case <-ctx.Done():
		return market.Series{}, ctx.Err()
	}
}

// seriesFor は銘柄ごとに見分けのつく系列（終値 = 銘柄の目印）を返します
func (f *fakeBackend) seriesFor(key market.SeriesKey, kind market.SeriesKind) market.Series {
	f.mu.Lock()
	mark := f.closes[key.Symbol]
	f.mu.Unlock()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := market.Series{Kind: kind}
	for i := 0; i < 3; i++ {
		s.Points = append(s.Points, market.SeriesPoint{Timestamp: base.AddDate(0, 0, i), Close: mark, Value: mark})
	}
	return s
}

func (f *fakeBackend) Start(ctx context.Context) (<-chan market.QuoteUpdate, error) {
	return f.push, nil
}

func (f *fakeBackend) setListGate(gate chan struct{}) {
	f.mu.Lock()
	f.listGate = gate
	f.mu.Unlock()
}

func (f *fakeBackend) counts() (list, track, deleted int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, len(f.trackCalls), len(f.deleted)
}

func (f *fakeBackend) requestedKeys() []market.SeriesKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]market.SeriesKey, len(f.requested))
	copy(out, f.requested)
	return out
}
