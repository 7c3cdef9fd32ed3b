package engine

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/r-umemoto/market-dashboard/internal/mockserver"
	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
	"github.com/r-umemoto/market-dashboard/pkg/domain/market/window"
	"github.com/r-umemoto/market-dashboard/pkg/infra/backend"
	"github.com/r-umemoto/market-dashboard/pkg/logger"
)

// ─── helpers ───

func startEngine(t *testing.T, fb market.Backend, confirmer Confirmer) *Engine {
	t.Helper()
	e := New(fb, confirmer, market.DefaultWindow, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-e.Done()
	})
	return e
}

// waitFor は cond が満たされるまで更新通知を待ちます
func waitFor(t *testing.T, e *Engine, desc string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		snap := e.Snapshot()
		if cond(snap) {
			return snap
		}
		select {
		case <-e.Updates():
		case <-deadline:
			t.Fatalf("timed out waiting for %s: %+v", desc, e.Snapshot())
		}
	}
}

func receiveCall(t *testing.T, calls <-chan seriesCall, symbol string) seriesCall {
	t.Helper()
	select {
	case call := <-calls:
		if call.key.Symbol != symbol {
			t.Fatalf("expected a request for %s, got %s", symbol, call.key)
		}
		return call
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a request for %s", symbol)
	}
	return seriesCall{}
}

func selectedSymbol(s Snapshot) string {
	if s.Selection == nil {
		return ""
	}
	return s.Selection.Symbol
}

func closeOf(s market.Series) float64 {
	if s.IsEmpty() {
		return -1
	}
	return s.Points[len(s.Points)-1].Close
}

var confirmYes = ConfirmFunc(func(context.Context, string) bool { return true })

// ─── tests ───

func TestInitialLoadSelectsFirstAndFetchesSeries(t *testing.T) {
	fb := newFakeBackend("AAPL", "MSFT")
	e := startEngine(t, fb, nil)

	snap := waitFor(t, e, "both series applied", func(s Snapshot) bool {
		return s.PriceState == LINEAGE_APPLIED && s.RSIState == LINEAGE_APPLIED
	})

	if got := selectedSymbol(snap); got != "AAPL" {
		t.Errorf("selection = %q, want AAPL", got)
	}
	if len(snap.Watchlist) != 2 {
		t.Errorf("watchlist len = %d, want 2", len(snap.Watchlist))
	}
	if closeOf(snap.Price) != 1 {
		t.Errorf("price series belongs to another symbol: close=%v", closeOf(snap.Price))
	}
	if snap.RSI.IsEmpty() {
		t.Error("rsi series should be applied")
	}
	if snap.Loading {
		t.Error("loading should be cleared after the initial list")
	}
}

func TestStaleHistoryIsDiscardedAfterSelectionChange(t *testing.T) {
	fb := newFakeBackend("AAPL", "MSFT")
	fb.historyCalls = make(chan seriesCall)
	e := startEngine(t, fb, nil)

	callA := receiveCall(t, fb.historyCalls, "AAPL")

	if err := e.Select("MSFT"); err != nil {
		t.Fatal(err)
	}
	callB := receiveCall(t, fb.historyCalls, "MSFT")

	// 先に出した AAPL の結果が後から届く
	callA.reply <- seriesReply{series: fb.seriesFor(callA.key, market.SERIES_PRICE)}
	snap := waitFor(t, e, "stale AAPL discard", func(s Snapshot) bool { return s.PriceDiscarded == 1 })
	if !snap.Price.IsEmpty() {
		t.Fatalf("stale AAPL series was applied: %+v", snap.Price)
	}
	if snap.PriceState != LINEAGE_PENDING {
		t.Errorf("price state = %v, want pending", snap.PriceState)
	}

	callB.reply <- seriesReply{series: fb.seriesFor(callB.key, market.SERIES_PRICE)}
	snap = waitFor(t, e, "MSFT history", func(s Snapshot) bool { return s.PriceState == LINEAGE_APPLIED })
	if closeOf(snap.Price) != 2 {
		t.Errorf("price close = %v, want MSFT marker 2", closeOf(snap.Price))
	}
	if got := selectedSymbol(snap); got != "MSFT" {
		t.Errorf("selection = %q, want MSFT", got)
	}
}

func TestDeleteSelectedClearsImmediately(t *testing.T) {
	fb := newFakeBackend("AAPL", "MSFT")
	fb.historyCalls = make(chan seriesCall)
	e := startEngine(t, fb, confirmYes)

	callA := receiveCall(t, fb.historyCalls, "AAPL")
	waitFor(t, e, "rsi applied", func(s Snapshot) bool { return s.RSIState == LINEAGE_APPLIED })

	ok, err := e.Delete(context.Background(), 1)
	if err != nil || !ok {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", ok, err)
	}

	snap := e.Snapshot()
	if snap.Selection != nil {
		t.Errorf("selection should be cleared, got %+v", snap.Selection)
	}
	if !snap.Price.IsEmpty() || !snap.RSI.IsEmpty() {
		t.Error("series should be cleared together with the selection")
	}
	if len(snap.Watchlist) != 1 || snap.Watchlist[0].Symbol != "MSFT" {
		t.Errorf("watchlist = %+v, want only MSFT", snap.Watchlist)
	}
	if list, _, deleted := fb.counts(); list != 1 || deleted != 1 {
		t.Errorf("list calls = %d, deletes = %d; want 1 and 1", list, deleted)
	}

	callA.reply <- seriesReply{series: fb.seriesFor(callA.key, market.SERIES_PRICE)}
	snap = waitFor(t, e, "late AAPL discard", func(s Snapshot) bool { return s.PriceDiscarded == 1 })
	if !snap.Price.IsEmpty() {
		t.Error("late series must not be applied after the selection was removed")
	}
}

func TestPushUpdateAppliesWhileSeriesPending(t *testing.T) {
	fb := newFakeBackend("AAPL")
	fb.historyCalls = make(chan seriesCall)
	e := startEngine(t, fb, nil)

	call := receiveCall(t, fb.historyCalls, "AAPL")
	defer func() { call.reply <- seriesReply{} }()

	price := 187.5
	fb.push <- market.QuoteUpdate{Symbol: "AAPL", Price: &price}

	snap := waitFor(t, e, "push applied", func(s Snapshot) bool {
		return len(s.Watchlist) == 1 && s.Watchlist[0].Price == 187.5
	})
	if snap.PriceState != LINEAGE_PENDING {
		t.Errorf("price state = %v, want pending", snap.PriceState)
	}
	if snap.Selection == nil || snap.Selection.Price != 187.5 {
		t.Errorf("selection should read the pushed price: %+v", snap.Selection)
	}
}

func TestWindowChangesStayValid(t *testing.T) {
	fb := newFakeBackend("AAPL")
	e := startEngine(t, fb, nil)
	waitFor(t, e, "initial series", func(s Snapshot) bool { return s.PriceState == LINEAGE_APPLIED })

	if err := e.ChangeInterval(market.INTERVAL_1M); err != nil {
		t.Fatal(err)
	}
	snap := waitFor(t, e, "1m window", func(s Snapshot) bool { return s.Window.Interval == market.INTERVAL_1M })
	if snap.Window.Range != market.RANGE_1D {
		t.Errorf("range = %s, want 1d", snap.Window.Range)
	}
	if snap.Notice == "" {
		t.Error("an adjustment notice is expected")
	}

	if err := e.ChangeRange(market.RANGE_MAX); err != nil {
		t.Fatal(err)
	}
	snap = waitFor(t, e, "max window applied", func(s Snapshot) bool {
		return s.Window.Range == market.RANGE_MAX && s.PriceState == LINEAGE_APPLIED
	})
	if snap.Window.Interval != market.INTERVAL_1D {
		t.Errorf("interval = %s, want 1d", snap.Window.Interval)
	}

	for _, key := range fb.requestedKeys() {
		if !window.Accepts(key.Window.Range, key.Window.Interval) {
			t.Errorf("requested an invalid pair: %s", key)
		}
	}
}

func TestRefreshFailureKeepsWatchlist(t *testing.T) {
	fb := newFakeBackend("AAPL", "MSFT")
	e := startEngine(t, fb, nil)
	waitFor(t, e, "initial list", func(s Snapshot) bool { return len(s.Watchlist) == 2 })

	fb.mu.Lock()
	fb.refreshErr = market.ErrTransport
	fb.mu.Unlock()

	err := e.Refresh(context.Background())
	if !errors.Is(err, market.ErrTransport) {
		t.Fatalf("Refresh error = %v, want ErrTransport", err)
	}

	snap := e.Snapshot()
	if len(snap.Watchlist) != 2 {
		t.Errorf("watchlist len = %d, want 2", len(snap.Watchlist))
	}
	if snap.Loading {
		t.Error("loading must be cleared after a failure")
	}
}

func TestLoadingWhileListInFlight(t *testing.T) {
	fb := newFakeBackend("AAPL")
	gate := make(chan struct{})
	fb.setListGate(gate)
	e := startEngine(t, fb, nil)

	waitFor(t, e, "loading", func(s Snapshot) bool { return s.Loading })
	close(gate)
	snap := waitFor(t, e, "loaded", func(s Snapshot) bool { return !s.Loading && len(s.Watchlist) == 1 })
	if got := selectedSymbol(snap); got != "AAPL" {
		t.Errorf("selection = %q, want AAPL", got)
	}
}

func TestTrack(t *testing.T) {
	t.Run("blank input never reaches the backend", func(t *testing.T) {
		fb := newFakeBackend("AAPL")
		e := startEngine(t, fb, nil)

		ok, err := e.Track(context.Background(), "   ")
		if ok || !errors.Is(err, ErrEmptySymbol) {
			t.Fatalf("Track = (%v, %v), want (false, ErrEmptySymbol)", ok, err)
		}
		if _, track, _ := fb.counts(); track != 0 {
			t.Errorf("track calls = %d, want 0", track)
		}
	})

	t.Run("normalized and listed once", func(t *testing.T) {
		fb := newFakeBackend("AAPL")
		e := startEngine(t, fb, nil)
		waitFor(t, e, "initial list", func(s Snapshot) bool { return len(s.Watchlist) == 1 })

		ok, err := e.Track(context.Background(), " ibm ")
		if err != nil || !ok {
			t.Fatalf("Track = (%v, %v), want (true, nil)", ok, err)
		}
		if ok, err := e.Track(context.Background(), "IBM"); err != nil || !ok {
			t.Fatalf("second Track = (%v, %v), want (true, nil)", ok, err)
		}

		snap := e.Snapshot()
		count := 0
		for _, row := range snap.Watchlist {
			if row.Symbol == "IBM" {
				count++
			}
		}
		if count != 1 {
			t.Errorf("IBM appears %d times, want 1", count)
		}
		if got := selectedSymbol(snap); got != "AAPL" {
			t.Errorf("selection moved to %q", got)
		}
	})

	t.Run("rejection leaves the list untouched", func(t *testing.T) {
		fb := newFakeBackend("AAPL")
		fb.trackErr = &market.BackendError{Op: "track", Status: 400, Message: "unknown symbol", Err: market.ErrRejected}
		e := startEngine(t, fb, nil)
		waitFor(t, e, "initial list", func(s Snapshot) bool { return len(s.Watchlist) == 1 })

		ok, err := e.Track(context.Background(), "zzzz")
		if ok || !market.IsRejected(err) {
			t.Fatalf("Track = (%v, %v), want a rejection", ok, err)
		}
		if snap := e.Snapshot(); len(snap.Watchlist) != 1 || snap.Loading {
			t.Errorf("unexpected state after rejection: %+v", snap)
		}
	})
}

func TestDeleteGuards(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		fb := newFakeBackend("AAPL", "MSFT")
		var prompt string
		no := ConfirmFunc(func(_ context.Context, p string) bool {
			prompt = p
			return false
		})
		e := startEngine(t, fb, no)
		waitFor(t, e, "initial list", func(s Snapshot) bool { return len(s.Watchlist) == 2 })

		ok, err := e.Delete(context.Background(), 2)
		if ok || err != nil {
			t.Fatalf("Delete = (%v, %v), want (false, nil)", ok, err)
		}
		if prompt != "Remove MSFT from the watchlist?" {
			t.Errorf("prompt = %q", prompt)
		}
		if _, _, deleted := fb.counts(); deleted != 0 {
			t.Errorf("delete calls = %d, want 0", deleted)
		}
		if len(e.Snapshot().Watchlist) != 2 {
			t.Error("watchlist should be unchanged")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		fb := newFakeBackend("AAPL")
		e := startEngine(t, fb, confirmYes)
		waitFor(t, e, "initial list", func(s Snapshot) bool { return len(s.Watchlist) == 1 })

		ok, err := e.Delete(context.Background(), 99)
		if ok || !errors.Is(err, market.ErrNotTracked) {
			t.Fatalf("Delete = (%v, %v), want ErrNotTracked", ok, err)
		}
	})
}

func TestHistoryFailureIsIndependentOfRSI(t *testing.T) {
	fb := newFakeBackend("AAPL")
	fb.historyErr = market.ErrTransport
	e := startEngine(t, fb, nil)

	snap := waitFor(t, e, "both lineages settled", func(s Snapshot) bool {
		return s.PriceState == LINEAGE_FAILED && s.RSIState == LINEAGE_APPLIED
	})
	if !snap.Price.IsEmpty() {
		t.Error("price series should stay empty")
	}
	if snap.RSI.IsEmpty() {
		t.Error("rsi series should be applied")
	}
}

func TestIntentsAfterStop(t *testing.T) {
	fb := newFakeBackend("AAPL")
	e := New(fb, nil, market.DefaultWindow, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	cancel()
	<-e.Done()

	// intents にはバッファがあるので、溢れるまで送ると必ず ErrStopped になる
	var err error
	for i := 0; i < 32 && err == nil; i++ {
		err = e.Select("AAPL")
	}
	if !errors.Is(err, ErrStopped) {
		t.Errorf("Select after stop = %v, want ErrStopped", err)
	}
	if _, err := e.Track(context.Background(), "IBM"); !errors.Is(err, ErrStopped) {
		t.Errorf("Track after stop = %v, want ErrStopped", err)
	}
}

func TestEngineAgainstMockServer(t *testing.T) {
	session := mockserver.NewSession()
	srv := mockserver.New(mockserver.NewBook(mockserver.DefaultSeed, session, 1), session, logger.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.Start(ctx)

	cfg := backend.Config{APIURL: ts.URL, WSPath: "/ws", Timeout: 2 * time.Second}
	url, err := cfg.WebSocketURL()
	if err != nil {
		t.Fatal(err)
	}
	gw := backend.NewGateway(backend.NewClient(cfg), backend.NewWSClient(url, logger.Discard()), logger.Discard())
	e := startEngine(t, gw, confirmYes)

	waitFor(t, e, "seeded list with series", func(s Snapshot) bool {
		return len(s.Watchlist) == 2 && s.PriceState == LINEAGE_APPLIED && s.RSIState == LINEAGE_APPLIED
	})

	for _, text := range []string{"AAPL", " aapl "} {
		if ok, err := e.Track(ctx, text); err != nil || !ok {
			t.Fatalf("Track(%q) = (%v, %v)", text, ok, err)
		}
	}
	if ok, err := e.Track(ctx, "NVDA"); err != nil || !ok {
		t.Fatalf("Track(NVDA) = (%v, %v)", ok, err)
	}

	snap := e.Snapshot()
	counts := make(map[string]int)
	for _, row := range snap.Watchlist {
		counts[row.Symbol]++
	}
	if counts["AAPL"] != 1 || counts["NVDA"] != 1 {
		t.Errorf("watchlist counts = %v", counts)
	}

	nvda, _ := findRow(snap, "NVDA")
	if ok, err := e.Delete(ctx, nvda.ID); err != nil || !ok {
		t.Fatalf("Delete(NVDA) = (%v, %v)", ok, err)
	}
	if _, found := findRow(e.Snapshot(), "NVDA"); found {
		t.Error("NVDA should be removed")
	}
}

func findRow(s Snapshot, symbol string) (market.TrackedSymbol, bool) {
	for _, row := range s.Watchlist {
		if row.Symbol == symbol {
			return row, true
		}
	}
	return market.TrackedSymbol{}, false
}

func TestWindowChangeDiscardsInFlightSeries(t *testing.T) {
	fb := newFakeBackend("AAPL")
	fb.historyCalls = make(chan seriesCall)
	e := startEngine(t, fb, nil)

	old := receiveCall(t, fb.historyCalls, "AAPL")
	if old.key.Window != market.DefaultWindow {
		t.Fatalf("first request window = %s", old.key.Window)
	}

	if err := e.ChangeRange(market.RANGE_5D); err != nil {
		t.Fatal(err)
	}
	current := receiveCall(t, fb.historyCalls, "AAPL")
	if current.key.Window.Range != market.RANGE_5D {
		t.Fatalf("second request window = %s, want 5d", current.key.Window)
	}

	current.reply <- seriesReply{series: fb.seriesFor(current.key, market.SERIES_PRICE)}
	waitFor(t, e, "5d history", func(s Snapshot) bool { return s.PriceState == LINEAGE_APPLIED })

	// 1y の結果が後から届いても 5d の系列はそのまま
	old.reply <- seriesReply{series: market.Series{Points: []market.SeriesPoint{{Timestamp: time.Now(), Close: 999}}}}
	snap := waitFor(t, e, "stale 1y discard", func(s Snapshot) bool { return s.PriceDiscarded == 1 })
	if closeOf(snap.Price) != 1 {
		t.Errorf("price close = %v, want the 5d series", closeOf(snap.Price))
	}
	if snap.PriceState != LINEAGE_APPLIED {
		t.Errorf("price state = %v, want applied", snap.PriceState)
	}
	if snap.Window.Range != market.RANGE_5D {
		t.Errorf("window = %s", snap.Window)
	}
}

func TestAdjustmentNoticeClearsOnNextIntent(t *testing.T) {
	fb := newFakeBackend("AAPL", "MSFT")
	e := startEngine(t, fb, nil)
	waitFor(t, e, "initial list", func(s Snapshot) bool { return len(s.Watchlist) == 2 })

	if err := e.ChangeInterval(market.INTERVAL_1M); err != nil {
		t.Fatal(err)
	}
	waitFor(t, e, "adjustment notice", func(s Snapshot) bool { return s.Notice != "" })

	if err := e.Select("MSFT"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, e, "notice cleared after select", func(s Snapshot) bool {
		return selectedSymbol(s) == "MSFT" && s.Notice == ""
	})

	// 補正のない変更では通知は出ない
	if err := e.ChangeRange(market.RANGE_5D); err != nil {
		t.Fatal(err)
	}
	snap := waitFor(t, e, "5d window", func(s Snapshot) bool { return s.Window.Range == market.RANGE_5D })
	if snap.Notice != "" {
		t.Errorf("notice = %q, want empty", snap.Notice)
	}
}
