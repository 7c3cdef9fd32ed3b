// pkg/infra/backend/types.go
package backend

import (
	"fmt"
	"time"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
)

// EventPriceUpdate はプッシュ配信で相場更新を表すイベント名です
const EventPriceUpdate = "price_update"

// PushEnvelope はWebSocketで届く1フレーム分のデータです
type PushEnvelope struct {
	Event string             `json:"event"`
	Data  PriceUpdateMessage `json:"data"`
}

// PriceUpdateMessage は price_update のペイロードです。
// 省略されたフィールドは nil のまま残ります。
// 日中高値・安値とパーセントは、バックエンドによって表記が異なるため両方受け付けます
type PriceUpdateMessage struct {
	Symbol          string   `json:"symbol"`
	Price           *float64 `json:"price,omitempty"`
	Change          *float64 `json:"change,omitempty"`
	Percent         *float64 `json:"percent,omitempty"`
	PriceChange     *float64 `json:"price_change,omitempty"`
	MarketState     *string  `json:"marketState,omitempty"`
	PreMarketPrice  *float64 `json:"preMarketPrice,omitempty"`
	PostMarketPrice *float64 `json:"postMarketPrice,omitempty"`
	Open            *float64 `json:"open,omitempty"`
	DayHigh         *float64 `json:"dayHigh,omitempty"`
	DayHighSnake    *float64 `json:"day_high,omitempty"`
	DayLow          *float64 `json:"dayLow,omitempty"`
	DayLowSnake     *float64 `json:"day_low,omitempty"`
	LongName        *string  `json:"longName,omitempty"`
}

// ToQuoteUpdate はワイヤ形式をドメインの部分更新に変換します
func (m PriceUpdateMessage) ToQuoteUpdate() market.QuoteUpdate {
	u := market.QuoteUpdate{
		Symbol:          m.Symbol,
		Price:           m.Price,
		Change:          m.Change,
		Percent:         firstNonNil(m.Percent, m.PriceChange),
		PreMarketPrice:  m.PreMarketPrice,
		PostMarketPrice: m.PostMarketPrice,
		Open:            m.Open,
		DayHigh:         firstNonNil(m.DayHigh, m.DayHighSnake),
		DayLow:          firstNonNil(m.DayLow, m.DayLowSnake),
		LongName:        m.LongName,
	}
	if m.MarketState != nil {
		state := market.MarketState(*m.MarketState)
		u.MarketState = &state
	}
	return u
}

// NewPriceUpdateMessage はドメインの部分更新をワイヤ形式に変換します（配信側で使用）
func NewPriceUpdateMessage(u market.QuoteUpdate) PriceUpdateMessage {
	m := PriceUpdateMessage{
		Symbol:          u.Symbol,
		Price:           u.Price,
		Change:          u.Change,
		Percent:         u.Percent,
		PreMarketPrice:  u.PreMarketPrice,
		PostMarketPrice: u.PostMarketPrice,
		Open:            u.Open,
		DayHigh:         u.DayHigh,
		DayLow:          u.DayLow,
		LongName:        u.LongName,
	}
	if u.MarketState != nil {
		state := string(*u.MarketState)
		m.MarketState = &state
	}
	return m
}

func firstNonNil[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// TrackRequest は POST /track の本文です
type TrackRequest struct {
	Symbol string `json:"symbol"`
}

// ErrorResponse はバックエンドが 4xx/5xx と一緒に返す本文です
type ErrorResponse struct {
	Error string `json:"error"`
}

// HistoryPoint は GET /history の1要素です。Y は [始値, 高値, 安値, 終値]
type HistoryPoint struct {
	X string     `json:"x"`
	Y []*float64 `json:"y"`
}

// RSIPoint は GET /rsi の1要素です
type RSIPoint struct {
	X string   `json:"x"`
	Y *float64 `json:"y"`
}

// 日足以上は日付のみ、日中足は分単位で返ってくる
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"
)

// FormatTimestamp はバックエンドと同じ表記で時刻を書き出します
func FormatTimestamp(t time.Time, interval market.Interval) string {
	if interval.IsIntraday() {
		return t.Format(DateTimeLayout)
	}
	return t.Format(DateLayout)
}

// ParseTimestamp はバックエンドの時刻表記を読み取ります
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{DateTimeLayout, DateLayout, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("時刻の形式が不正です: %q", s)
}

func toPriceSeries(points []HistoryPoint) (market.Series, error) {
	series := market.Series{Kind: market.SERIES_PRICE, Points: make([]market.SeriesPoint, 0, len(points))}
	for _, p := range points {
		// 欠損値（null）を含む足は描画できないので飛ばす
		if len(p.Y) != 4 || p.Y[0] == nil || p.Y[1] == nil || p.Y[2] == nil || p.Y[3] == nil {
			continue
		}
		ts, err := ParseTimestamp(p.X)
		if err != nil {
			return market.Series{}, err
		}
		series.Points = append(series.Points, market.SeriesPoint{
			Timestamp: ts,
			Open:      *p.Y[0],
			High:      *p.Y[1],
			Low:       *p.Y[2],
			Close:     *p.Y[3],
		})
	}
	return series.Normalize(), nil
}

func toRSISeries(points []RSIPoint) (market.Series, error) {
	series := market.Series{Kind: market.SERIES_RSI, Points: make([]market.SeriesPoint, 0, len(points))}
	for _, p := range points {
		if p.Y == nil {
			continue
		}
		ts, err := ParseTimestamp(p.X)
		if err != nil {
			return market.Series{}, err
		}
		series.Points = append(series.Points, market.SeriesPoint{Timestamp: ts, Value: *p.Y})
	}
	return series.Normalize(), nil
}
