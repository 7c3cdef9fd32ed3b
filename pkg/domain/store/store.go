// pkg/domain/store/store.go
package store

import (
	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
	"github.com/r-umemoto/market-dashboard/pkg/domain/market/window"
)

// SeriesStore はウォッチリスト・選択状態・チャート系列を保持する唯一の場所です。
// エンジンのループからしか触らないため、ロックは持ちません
type SeriesStore struct {
	watchlist []market.TrackedSymbol
	selected  string // 選択中の銘柄コード（空文字は未選択）
	window    market.Window
	price     market.Series
	rsi       market.Series
}

// Snapshot は描画側に渡す読み取り専用のコピーです
type Snapshot struct {
	Watchlist []market.TrackedSymbol
	Selection *market.TrackedSymbol
	Window    market.Window
	Price     market.Series
	RSI       market.Series
}

// New は空のストアを生成します
func New(w market.Window) *SeriesStore {
	return &SeriesStore{
		window: window.Normalize(w),
		price:  market.Series{Kind: market.SERIES_PRICE},
		rsi:    market.Series{Kind: market.SERIES_RSI},
	}
}

// UpsertSnapshot はウォッチリストを丸ごと置き換え、選択状態を解決し直します
func (s *SeriesStore) UpsertSnapshot(symbols []market.TrackedSymbol) {
	seen := make(map[string]bool, len(symbols))
	list := make([]market.TrackedSymbol, 0, len(symbols))
	for _, sym := range symbols {
		if sym.Symbol == "" || seen[sym.Symbol] {
			continue
		}
		seen[sym.Symbol] = true
		list = append(list, sym)
	}
	s.watchlist = list

	switch {
	case s.selected != "" && seen[s.selected]:
		// 同じ銘柄を指したまま。フィールドは新しい行から読まれる
	case s.selected != "":
		// 選択中の銘柄が消えた
		s.selected = ""
		s.clearSeries()
	case len(list) > 0:
		s.selected = list[0].Symbol
		s.clearSeries()
	}
}

// ApplyPushUpdate は該当銘柄のライブ相場だけを部分更新します。
// 銘柄がなければ何もせず false を返します
func (s *SeriesStore) ApplyPushUpdate(u market.QuoteUpdate) bool {
	idx := s.indexOf(u.Symbol)
	if idx < 0 {
		return false
	}
	// 選択中の表示は同じ行を参照しているので、ここを書き換えれば反映される
	u.ApplyTo(&s.watchlist[idx])
	return true
}

// SetSelection は銘柄を選択し、系列を空にします。存在しない銘柄なら未選択になります
func (s *SeriesStore) SetSelection(symbol string) bool {
	s.clearSeries()
	if s.indexOf(symbol) < 0 {
		s.selected = ""
		return false
	}
	s.selected = symbol
	return true
}

// SetWindow は表示条件を変更し、系列を空にします。
// 不正な組み合わせは ParameterMatrix で補正してから保存します
func (s *SeriesStore) SetWindow(w market.Window) market.Window {
	w = window.Normalize(w)
	if w != s.window {
		s.window = w
		s.clearSeries()
	}
	return w
}

// RemoveTracked は ID で行を削除します。選択中だった場合は選択と系列もクリアします
func (s *SeriesStore) RemoveTracked(id int64) bool {
	for i, sym := range s.watchlist {
		if sym.ID != id {
			continue
		}
		s.watchlist = append(s.watchlist[:i:i], s.watchlist[i+1:]...)
		if sym.Symbol == s.selected {
			s.selected = ""
			s.clearSeries()
		}
		return true
	}
	return false
}

// SetPriceSeries は価格系列を丸ごと置き換えます。古い結果の破棄は呼び出し側の責務です
func (s *SeriesStore) SetPriceSeries(series market.Series) {
	series.Kind = market.SERIES_PRICE
	s.price = series.Normalize()
}

// SetRsiSeries はRSI系列を丸ごと置き換えます
func (s *SeriesStore) SetRsiSeries(series market.Series) {
	series.Kind = market.SERIES_RSI
	s.rsi = series.Normalize()
}

// ClearSeries は両方の系列を空にします
func (s *SeriesStore) ClearSeries() {
	s.clearSeries()
}

func (s *SeriesStore) clearSeries() {
	s.price = market.Series{Kind: market.SERIES_PRICE}
	s.rsi = market.Series{Kind: market.SERIES_RSI}
}

// Key は現在の (銘柄, 期間, 粒度) を返します。未選択なら Symbol が空です
func (s *SeriesStore) Key() market.SeriesKey {
	return market.SeriesKey{Symbol: s.selected, Window: s.window}
}

// Window は現在の表示条件を返します
func (s *SeriesStore) Window() market.Window {
	return s.window
}

// Selected は選択中の行を返します
func (s *SeriesStore) Selected() (market.TrackedSymbol, bool) {
	if idx := s.indexOf(s.selected); idx >= 0 {
		return s.watchlist[idx], true
	}
	return market.TrackedSymbol{}, false
}

// Find は銘柄コードで行を探します
func (s *SeriesStore) Find(symbol string) (market.TrackedSymbol, bool) {
	if idx := s.indexOf(symbol); idx >= 0 {
		return s.watchlist[idx], true
	}
	return market.TrackedSymbol{}, false
}

// FindByID は ID で行を探します
func (s *SeriesStore) FindByID(id int64) (market.TrackedSymbol, bool) {
	for _, sym := range s.watchlist {
		if sym.ID == id {
			return sym, true
		}
	}
	return market.TrackedSymbol{}, false
}

// Len はウォッチリストの件数です
func (s *SeriesStore) Len() int {
	return len(s.watchlist)
}

// Snapshot は現在の状態をまるごとコピーして返します
func (s *SeriesStore) Snapshot() Snapshot {
	list := make([]market.TrackedSymbol, len(s.watchlist))
	copy(list, s.watchlist)

	snap := Snapshot{
		Watchlist: list,
		Window:    s.window,
		Price:     s.price.Clone(),
		RSI:       s.rsi.Clone(),
	}
	if sel, ok := s.Selected(); ok {
		snap.Selection = &sel
	}
	return snap
}

func (s *SeriesStore) indexOf(symbol string) int {
	if symbol == "" {
		return -1
	}
	for i, sym := range s.watchlist {
		if sym.Symbol == symbol {
			return i
		}
	}
	return -1
}
