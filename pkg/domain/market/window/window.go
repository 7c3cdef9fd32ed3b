// Package window は (期間, 粒度) の組み合わせ表と、その補正ルールを持ちます。
// 時刻や I/O を参照しない純粋関数だけで構成されています
package window

import "github.com/r-umemoto/market-dashboard/pkg/domain/market"

// Accepts は (r, i) がバックエンドに要求してよい組み合わせかを返します
func Accepts(r market.TimeRange, i market.Interval) bool {
	switch i {
	case market.INTERVAL_1M:
		return r == market.RANGE_1D || r == market.RANGE_5D
	case market.INTERVAL_5M, market.INTERVAL_15M:
		return !isLongRange(r)
	case market.INTERVAL_1H:
		return r != market.RANGE_5Y && r != market.RANGE_MAX
	}
	// 日足はどの期間でも有効
	return true
}

func isLongRange(r market.TimeRange) bool {
	switch r {
	case market.RANGE_6MO, market.RANGE_1Y, market.RANGE_5Y, market.RANGE_MAX:
		return true
	}
	return false
}

// OnRangeChange は期間を変えたときに、粒度をどう落とすかを返します（1段階のみ）。
// 組み合わせが有効なら current をそのまま返します
func OnRangeChange(newRange market.TimeRange, current market.Interval) market.Interval {
	if Accepts(newRange, current) {
		return current
	}
	if current == market.INTERVAL_1M {
		return market.INTERVAL_5M
	}
	return market.INTERVAL_1D
}

// OnIntervalChange は粒度を変えたときに、期間をどう縮めるかを返します
func OnIntervalChange(newInterval market.Interval, current market.TimeRange) market.TimeRange {
	if Accepts(current, newInterval) {
		return current
	}
	switch newInterval {
	case market.INTERVAL_1M:
		return market.RANGE_1D
	case market.INTERVAL_5M, market.INTERVAL_15M:
		return market.RANGE_1MO
	case market.INTERVAL_1H:
		return market.RANGE_1Y
	}
	return current
}

// Validate は期間を固定したまま、有効になるまで粒度を落とした値を返します。
// 1m -> 5m -> 1d のように複数段階で落ちることがあります
func Validate(r market.TimeRange, i market.Interval) market.Interval {
	for !Accepts(r, i) {
		i = OnRangeChange(r, i)
	}
	return i
}

// Normalize は Window 全体を有効な組に直します
func Normalize(w market.Window) market.Window {
	return market.Window{Range: w.Range, Interval: Validate(w.Range, w.Interval)}
}

// Change はユーザーの操作1回分です。どちらか片方だけを指定します
type Change struct {
	Range    *market.TimeRange
	Interval *market.Interval
}

// Apply は操作を現在の Window に適用し、もう一方の軸を補正した結果を返します。
// adjusted はユーザーが触っていない軸が書き換わったときに true になります
func Apply(w market.Window, c Change) (next market.Window, adjusted bool) {
	next = w
	switch {
	case c.Range != nil:
		next.Range = *c.Range
		next.Interval = Validate(next.Range, OnRangeChange(next.Range, w.Interval))
		adjusted = next.Interval != w.Interval
	case c.Interval != nil:
		next.Interval = *c.Interval
		next.Range = OnIntervalChange(next.Interval, w.Range)
		adjusted = next.Range != w.Range
	}
	return next, adjusted
}

// WouldAdjust は、その操作をすると反対側の軸が補正されるかを返します
func WouldAdjust(w market.Window, c Change) bool {
	_, adjusted := Apply(w, c)
	return adjusted
}
