// pkg/domain/market/market.go
package market

import "context"

// MarketState はバックエンドが返す取引セッションの区分です
type MarketState string

const (
	STATE_PRE      MarketState = "PRE"
	STATE_PREPRE   MarketState = "PREPRE"
	STATE_REGULAR  MarketState = "REGULAR"
	STATE_POST     MarketState = "POST"
	STATE_POSTPOST MarketState = "POSTPOST"
	STATE_CLOSED   MarketState = "CLOSED"
)

// IsPreMarket はプレマーケット価格を表示すべきセッションかを返します
func (s MarketState) IsPreMarket() bool {
	return s == STATE_PRE || s == STATE_PREPRE
}

// IsAfterHours は時間外価格を表示すべきセッションかを返します（CLOSEDも含む）
func (s MarketState) IsAfterHours() bool {
	return s == STATE_POST || s == STATE_POSTPOST || s == STATE_CLOSED
}

// TrackedSymbol はウォッチリストの1行です。
// 数値フィールドのゼロ値は「未取得」として扱います
type TrackedSymbol struct {
	ID              int64       `json:"id"`
	Symbol          string      `json:"symbol"`
	Price           float64     `json:"price"`
	Change          float64     `json:"change"`
	Percent         float64     `json:"percent"`
	MarketState     MarketState `json:"marketState"`
	PreMarketPrice  float64     `json:"preMarketPrice"`
	PostMarketPrice float64     `json:"postMarketPrice"`
	Open            float64     `json:"open"`
	DayHigh         float64     `json:"dayHigh"`
	DayLow          float64     `json:"dayLow"`
	MarketCap       string      `json:"market_cap"`
	LongName        string      `json:"longName"`
	Currency        string      `json:"currency"`
}

// QuoteUpdate は price_update イベントで届く部分更新です。
// nil のフィールドは「今回のメッセージに含まれていない」ことを表します
type QuoteUpdate struct {
	Symbol          string
	Price           *float64
	Change          *float64
	Percent         *float64
	MarketState     *MarketState
	PreMarketPrice  *float64
	PostMarketPrice *float64
	Open            *float64
	DayHigh         *float64
	DayLow          *float64
	LongName        *string
}

// ApplyTo はライブ相場のフィールドだけを上書きします。
// ID / Symbol / MarketCap / Currency には触りません
func (u QuoteUpdate) ApplyTo(s *TrackedSymbol) {
	if u.Price != nil {
		s.Price = *u.Price
	}
	if u.Change != nil {
		s.Change = *u.Change
	}
	if u.Percent != nil {
		s.Percent = *u.Percent
	}
	if u.MarketState != nil {
		s.MarketState = *u.MarketState
	}
	if u.PreMarketPrice != nil {
		s.PreMarketPrice = *u.PreMarketPrice
	}
	if u.PostMarketPrice != nil {
		s.PostMarketPrice = *u.PostMarketPrice
	}
	if u.Open != nil {
		s.Open = *u.Open
	}
	if u.DayHigh != nil {
		s.DayHigh = *u.DayHigh
	}
	if u.DayLow != nil {
		s.DayLow = *u.DayLow
	}
	if u.LongName != nil {
		s.LongName = *u.LongName
	}
}

// Backend はダッシュボードが利用するバックエンドの規格です。
// エンジンはこのインターフェースだけを知っており、テストでは偽物に差し替えます
type Backend interface {
	ListTracked(ctx context.Context) ([]TrackedSymbol, error)
	Track(ctx context.Context, symbol string) error
	DeleteTracked(ctx context.Context, id int64) error
	Refresh(ctx context.Context) error
	History(ctx context.Context, key SeriesKey) (Series, error)
	RSI(ctx context.Context, key SeriesKey) (Series, error)

	// Start はプッシュ配信の受信を開始し、セッション中ずっと流れ続けるチャネルを返します
	Start(ctx context.Context) (<-chan QuoteUpdate, error)
}
