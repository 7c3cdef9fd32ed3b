package market

import "fmt"

// TimeRange はチャートの表示期間です（バックエンドの period パラメータ）
type TimeRange string

const (
	RANGE_1D  TimeRange = "1d"
	RANGE_5D  TimeRange = "5d"
	RANGE_1MO TimeRange = "1mo"
	RANGE_6MO TimeRange = "6mo"
	RANGE_1Y  TimeRange = "1y"
	RANGE_5Y  TimeRange = "5y"
	RANGE_MAX TimeRange = "max"
)

// Interval はローソク足1本あたりの粒度です
type Interval string

const (
	INTERVAL_1M  Interval = "1m"
	INTERVAL_5M  Interval = "5m"
	INTERVAL_15M Interval = "15m"
	INTERVAL_1H  Interval = "1h"
	INTERVAL_1D  Interval = "1d"
)

// TimeRanges は画面に並べる順番どおりの期間一覧です
var TimeRanges = []TimeRange{RANGE_1D, RANGE_5D, RANGE_1MO, RANGE_6MO, RANGE_1Y, RANGE_5Y, RANGE_MAX}

// Intervals は画面に並べる順番どおりの粒度一覧です
var Intervals = []Interval{INTERVAL_1M, INTERVAL_5M, INTERVAL_15M, INTERVAL_1H, INTERVAL_1D}

var rangeLabels = map[TimeRange]string{
	RANGE_1D:  "1D",
	RANGE_5D:  "5D",
	RANGE_1MO: "1M",
	RANGE_6MO: "6M",
	RANGE_1Y:  "1Y",
	RANGE_5Y:  "5Y",
	RANGE_MAX: "Max",
}

// ParseTimeRange は文字列を TimeRange に変換します
func ParseTimeRange(s string) (TimeRange, error) {
	r := TimeRange(s)
	if _, ok := rangeLabels[r]; !ok {
		return "", fmt.Errorf("未対応の期間です: %q", s)
	}
	return r, nil
}

// Label はボタン表示用の短い名前です
func (r TimeRange) Label() string {
	return rangeLabels[r]
}

// ParseInterval は文字列を Interval に変換します
func ParseInterval(s string) (Interval, error) {
	i := Interval(s)
	switch i {
	case INTERVAL_1M, INTERVAL_5M, INTERVAL_15M, INTERVAL_1H, INTERVAL_1D:
		return i, nil
	}
	return "", fmt.Errorf("未対応の粒度です: %q", s)
}

// IsIntraday は日中足（日足以外）かどうかを返します
func (i Interval) IsIntraday() bool {
	return i != INTERVAL_1D
}

// Window は (期間, 粒度) の組です
type Window struct {
	Range    TimeRange
	Interval Interval
}

// DefaultWindow は起動直後の表示条件です
var DefaultWindow = Window{Range: RANGE_1Y, Interval: INTERVAL_1D}

func (w Window) String() string {
	return fmt.Sprintf("%s/%s", w.Range, w.Interval)
}

// SeriesKey はヒストリー/RSI 取得の系譜（lineage）を識別するキーです
type SeriesKey struct {
	Symbol string
	Window Window
}

// IsZero は選択銘柄がない状態かを返します
func (k SeriesKey) IsZero() bool {
	return k.Symbol == ""
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s@%s", k.Symbol, k.Window)
}
