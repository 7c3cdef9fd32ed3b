// internal/mockserver/book.go
package mockserver

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
)

var (
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrNotFound      = errors.New("tracked symbol not found")
)

var symbolPattern = regexp.MustCompile(`^[A-Z^][A-Z0-9.\-^]{0,9}$`)

// quote は1銘柄分の相場状態です
type quote struct {
	row       market.TrackedSymbol
	prevClose float64
	marketCap float64
}

// Book はモックバックエンドが保持するウォッチリストと相場です
type Book struct {
	mu      sync.Mutex
	nextID  int64
	tracked map[string]*quote
	known   map[string]SeedSymbol
	rng     *rand.Rand
	session *Session
	now     func() time.Time
}

// NewBook はシードからブックを生成します
func NewBook(seed Seed, session *Session, randSeed int64) *Book {
	b := &Book{
		nextID:  1,
		tracked: make(map[string]*quote),
		known:   make(map[string]SeedSymbol),
		rng:     rand.New(rand.NewSource(randSeed)),
		session: session,
		now:     time.Now,
	}
	for _, s := range seed.Symbols {
		s.Symbol = strings.ToUpper(s.Symbol)
		b.known[s.Symbol] = s
		if s.Tracked {
			b.add(s.Symbol)
		}
	}
	return b
}

// NormalizeSymbol は入力を大文字にして形式を確認します
func NormalizeSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	return symbol, nil
}

// Track は銘柄を追加します。既に監視中なら相場を取り直すだけです
func (b *Book) Track(raw string) (market.TrackedSymbol, error) {
	symbol, err := NormalizeSymbol(raw)
	if err != nil {
		return market.TrackedSymbol{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if q, ok := b.tracked[symbol]; ok {
		b.stamp(q)
		return q.row, nil
	}
	return b.add(symbol).row, nil
}

// Delete は ID で監視を解除します
func (b *Book) Delete(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for symbol, q := range b.tracked {
		if q.row.ID == id {
			delete(b.tracked, symbol)
			return nil
		}
	}
	return ErrNotFound
}

// List は ID 順のウォッチリストを返します
func (b *Book) List() []market.TrackedSymbol {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := make([]market.TrackedSymbol, 0, len(b.tracked))
	for _, q := range b.tracked {
		list = append(list, q.row)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Refresh は全銘柄のセッション区分を取り直します
func (b *Book) Refresh() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, q := range b.tracked {
		b.stamp(q)
	}
}

// Tick は全銘柄の価格を1ステップ動かし、配信用の更新を返します
func (b *Book) Tick() []market.QuoteUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()

	updates := make([]market.QuoteUpdate, 0, len(b.tracked))
	for _, q := range b.tracked {
		b.stamp(q)
		step := 1 + b.rng.NormFloat64()*0.002
		row := &q.row

		switch {
		case row.MarketState.IsPreMarket():
			row.PreMarketPrice = round2(nonZero(row.PreMarketPrice, row.Price) * step)
		case row.MarketState == market.STATE_REGULAR:
			row.Price = round2(row.Price * step)
			row.DayHigh = max(row.DayHigh, row.Price)
			row.DayLow = min(row.DayLow, row.Price)
		default:
			row.PostMarketPrice = round2(nonZero(row.PostMarketPrice, row.Price) * step)
		}
		row.Change = round2(row.Price - q.prevClose)
		row.Percent = round2(row.Change / q.prevClose * 100)

		updates = append(updates, snapshotUpdate(*row))
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].Symbol < updates[j].Symbol })
	return updates
}

// BasePrice は系列を作るための現在値を返します。未知の銘柄は名前から決まる値になります
func (b *Book) BasePrice(symbol string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if q, ok := b.tracked[symbol]; ok {
		return q.row.Price
	}
	if s, ok := b.known[symbol]; ok && s.Price > 0 {
		return s.Price
	}
	return defaultPrice(symbol)
}

// add は呼び出し側でロックを取っている前提です
func (b *Book) add(symbol string) *quote {
	seed, ok := b.known[symbol]
	if !ok {
		seed = SeedSymbol{Symbol: symbol, LongName: symbol, Currency: "USD"}
	}
	price := seed.Price
	if price <= 0 {
		price = defaultPrice(symbol)
	}
	marketCap := seed.MarketCap
	if marketCap <= 0 {
		marketCap = price * 1e9
	}

	q := &quote{
		row: market.TrackedSymbol{
			ID:        b.nextID,
			Symbol:    symbol,
			Price:     price,
			Open:      price,
			DayHigh:   price,
			DayLow:    price,
			LongName:  seed.LongName,
			Currency:  seed.Currency,
			MarketCap: FormatMarketCap(marketCap),
		},
		prevClose: price,
		marketCap: marketCap,
	}
	b.nextID++
	b.stamp(q)
	b.tracked[symbol] = q
	return q
}

func (b *Book) stamp(q *quote) {
	q.row.MarketState = b.session.State(b.now())
}

func snapshotUpdate(row market.TrackedSymbol) market.QuoteUpdate {
	state := row.MarketState
	name := row.LongName
	u := market.QuoteUpdate{
		Symbol:      row.Symbol,
		Price:       &row.Price,
		Change:      &row.Change,
		Percent:     &row.Percent,
		MarketState: &state,
		Open:        &row.Open,
		DayHigh:     &row.DayHigh,
		DayLow:      &row.DayLow,
		LongName:    &name,
	}
	if row.PreMarketPrice > 0 {
		u.PreMarketPrice = &row.PreMarketPrice
	}
	if row.PostMarketPrice > 0 {
		u.PostMarketPrice = &row.PostMarketPrice
	}
	return u
}

// FormatMarketCap は時価総額を 2.95T / 545.00B / 12.30M の形式にします
func FormatMarketCap(v float64) string {
	d := decimal.NewFromFloat(v)
	switch {
	case v >= 1e12:
		return d.Div(decimal.New(1, 12)).StringFixed(2) + "T"
	case v >= 1e9:
		return d.Div(decimal.New(1, 9)).StringFixed(2) + "B"
	case v >= 1e6:
		return d.Div(decimal.New(1, 6)).StringFixed(2) + "M"
	}
	return d.StringFixed(0)
}

func defaultPrice(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return float64(20 + h.Sum32()%480)
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func nonZero(v, fallback float64) float64 {
	if v != 0 {
		return v
	}
	return fallback
}
