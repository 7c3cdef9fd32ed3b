// pkg/view/present.go
package view

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
	"github.com/r-umemoto/market-dashboard/pkg/domain/market/window"
	"github.com/r-umemoto/market-dashboard/pkg/engine"
)

// 値が未取得のときの表示
const Placeholder = "---"

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// Direction は前日比の向きです
type Direction int

const (
	FLAT Direction = iota
	UP
	DOWN
)

func directionOf(change float64) Direction {
	switch {
	case change > 0:
		return UP
	case change < 0:
		return DOWN
	}
	return FLAT
}

// Row はウォッチリストの1行分の表示です
type Row struct {
	ID        int64
	Symbol    string
	Name      string
	Price     string
	Change    string
	Direction Direction
	Selected  bool
}

// Header は選択中の銘柄の見出しです。Empty なら何も選ばれていません
type Header struct {
	Empty     bool
	Symbol    string
	Name      string
	Price     string
	Change    string
	Direction Direction
	// "Pre-market: 187.20" / "After-hours: 187.20"。該当しなければ空
	Badge     string
	Open      string
	High      string
	Low       string
	MarketCap string
}

// Choice は期間・粒度セレクタの選択肢1つです
type Choice struct {
	Value  string
	Label  string
	Active bool

	// 選ぶともう一方の軸が自動で補正される
	WouldAdjust bool
}

type Candle struct {
	Time                   time.Time
	Label                  string
	Open, High, Low, Close float64
}

// Band は時間外取引を示す網掛けの範囲です
type Band struct {
	From time.Time
	To   time.Time
}

type RSIPoint struct {
	Time  time.Time
	Label string
	Value float64
}

// Guide は RSI チャートの水平線です
type Guide struct {
	Level float64
	Label string
}

var rsiGuides = []Guide{
	{Level: 70, Label: "Overbought"},
	{Level: 30, Label: "Oversold"},
}

// Frame は1回分の描画内容です
type Frame struct {
	Rows      []Row
	Header    Header
	Ranges    []Choice
	Intervals []Choice
	Candles   []Candle
	Shading   []Band
	RSI       []RSIPoint
	Guides    []Guide
	Loading   bool
	Notice    string

	PriceState engine.LineageState
	RSIState   engine.LineageState
}

// Present はスナップショットを描画用の Frame に変換します
func Present(s engine.Snapshot) Frame {
	f := Frame{
		Rows:       presentRows(s),
		Header:     presentHeader(s.Selection),
		Ranges:     rangeChoices(s.Window),
		Intervals:  intervalChoices(s.Window),
		Candles:    presentCandles(s.Price, s.Window.Interval),
		RSI:        presentRSI(s.RSI, s.Window.Interval),
		Guides:     rsiGuides,
		Loading:    s.Loading,
		Notice:     s.Notice,
		PriceState: s.PriceState,
		RSIState:   s.RSIState,
	}
	if s.Window.Interval.IsIntraday() {
		f.Shading = ExtendedHoursBands(f.Candles)
	}
	return f
}

func presentRows(s engine.Snapshot) []Row {
	selected := ""
	if s.Selection != nil {
		selected = s.Selection.Symbol
	}

	rows := make([]Row, 0, len(s.Watchlist))
	for _, sym := range s.Watchlist {
		rows = append(rows, Row{
			ID:        sym.ID,
			Symbol:    sym.Symbol,
			Name:      sym.LongName,
			Price:     FormatPrice(sym.Price),
			Change:    FormatChange(sym.Change, sym.Percent),
			Direction: directionOf(sym.Change),
			Selected:  sym.Symbol == selected,
		})
	}
	return rows
}

func presentHeader(sel *market.TrackedSymbol) Header {
	if sel == nil {
		return Header{Empty: true, Symbol: Placeholder}
	}

	return Header{
		Symbol:    sel.Symbol,
		Name:      sel.LongName,
		Price:     FormatPrice(sel.Price),
		Change:    FormatChange(sel.Change, sel.Percent),
		Direction: directionOf(sel.Change),
		Badge:     ExtendedHoursBadge(*sel),
		Open:      optional(sel.Open),
		High:      optional(sel.DayHigh),
		Low:       optional(sel.DayLow),
		MarketCap: orPlaceholder(sel.MarketCap),
	}
}

// ExtendedHoursBadge は取引時間外の価格表示を返します。価格が届いていなければ空です
func ExtendedHoursBadge(s market.TrackedSymbol) string {
	switch {
	case s.MarketState.IsPreMarket() && s.PreMarketPrice != 0:
		return "Pre-market: " + FormatPrice(s.PreMarketPrice)
	case s.MarketState.IsAfterHours() && s.PostMarketPrice != 0:
		return "After-hours: " + FormatPrice(s.PostMarketPrice)
	}
	return ""
}

func rangeChoices(w market.Window) []Choice {
	choices := make([]Choice, 0, len(market.TimeRanges))
	for _, r := range market.TimeRanges {
		choices = append(choices, Choice{
			Value:       string(r),
			Label:       r.Label(),
			Active:      r == w.Range,
			WouldAdjust: window.WouldAdjust(w, window.Change{Range: &r}),
		})
	}
	return choices
}

func intervalChoices(w market.Window) []Choice {
	choices := make([]Choice, 0, len(market.Intervals))
	for _, i := range market.Intervals {
		choices = append(choices, Choice{
			Value:       string(i),
			Label:       string(i),
			Active:      i == w.Interval,
			WouldAdjust: window.WouldAdjust(w, window.Change{Interval: &i}),
		})
	}
	return choices
}

func presentCandles(s market.Series, interval market.Interval) []Candle {
	candles := make([]Candle, 0, s.Len())
	for _, p := range s.Points {
		candles = append(candles, Candle{
			Time:  p.Timestamp,
			Label: timeLabel(p.Timestamp, interval),
			Open:  p.Open,
			High:  p.High,
			Low:   p.Low,
			Close: p.Close,
		})
	}
	return candles
}

func presentRSI(s market.Series, interval market.Interval) []RSIPoint {
	points := make([]RSIPoint, 0, s.Len())
	for _, p := range s.Points {
		points = append(points, RSIPoint{
			Time:  p.Timestamp,
			Label: timeLabel(p.Timestamp, interval),
			Value: p.Value,
		})
	}
	return points
}

// ExtendedHoursBands は足が存在する日ごとに 00:00-09:30 と 16:00-23:59 の帯を返します
func ExtendedHoursBands(candles []Candle) []Band {
	var bands []Band
	seen := make(map[string]bool)
	for _, c := range candles {
		day := c.Time.Format(dateLayout)
		if seen[day] {
			continue
		}
		seen[day] = true

		y, m, d := c.Time.Date()
		at := func(hour, minute int) time.Time {
			return time.Date(y, m, d, hour, minute, 0, 0, c.Time.Location())
		}
		bands = append(bands,
			Band{From: at(0, 0), To: at(9, 30)},
			Band{From: at(16, 0), To: at(23, 59)},
		)
	}
	return bands
}

func timeLabel(t time.Time, interval market.Interval) string {
	if interval.IsIntraday() {
		return t.Format(dateTimeLayout)
	}
	return t.Format(dateLayout)
}

// ---------------------------------------------------------
// ▼ 数値の整形（バックエンドと同じく小数点以下2桁に丸める）
// ---------------------------------------------------------

// FormatPrice は価格を "187.20" の形にします
func FormatPrice(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatChange は前日比を "+1.23 (+0.45%)" の形にします
func FormatChange(change, percent float64) string {
	return signed(change) + " (" + signed(percent) + "%)"
}

func signed(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

func optional(v float64) string {
	if v == 0 {
		return Placeholder
	}
	return FormatPrice(v)
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}
