// internal/mockserver/bars.go
package mockserver

import (
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
)

const (
	maxBars   = 5000
	rsiPeriod = 14
)

// Bar は合成したローソク足1本です
type Bar struct {
	Time                   time.Time
	Open, High, Low, Close float64
}

var intervalStep = map[market.Interval]time.Duration{
	market.INTERVAL_1M:  time.Minute,
	market.INTERVAL_5M:  5 * time.Minute,
	market.INTERVAL_15M: 15 * time.Minute,
	market.INTERVAL_1H:  time.Hour,
}

// rangeStart は期間の開始時刻を返します
func rangeStart(now time.Time, r market.TimeRange) time.Time {
	switch r {
	case market.RANGE_1D:
		return now.AddDate(0, 0, -1)
	case market.RANGE_5D:
		return now.AddDate(0, 0, -7)
	case market.RANGE_1MO:
		return now.AddDate(0, -1, 0)
	case market.RANGE_6MO:
		return now.AddDate(0, -6, 0)
	case market.RANGE_1Y:
		return now.AddDate(-1, 0, 0)
	case market.RANGE_5Y:
		return now.AddDate(-5, 0, 0)
	}
	return now.AddDate(-20, 0, 0)
}

// timestamps は営業日・立会時間内の足の時刻を古い順に並べます
func timestamps(session *Session, now time.Time, w market.Window) []time.Time {
	loc := session.Location()
	now = now.In(loc)
	start := rangeStart(now, w.Range)

	var out []time.Time
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	for !day.After(now) {
		if session.IsBusinessDay(day) {
			if !w.Interval.IsIntraday() {
				out = append(out, day)
			} else {
				y, m, d := day.Date()
				open := time.Date(y, m, d, 9, 30, 0, 0, loc)
				closing := time.Date(y, m, d, 16, 0, 0, 0, loc)
				for t := open; t.Before(closing) && !t.After(now); t = t.Add(intervalStep[w.Interval]) {
					if !t.Before(start) {
						out = append(out, t)
					}
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	if len(out) > maxBars {
		out = out[len(out)-maxBars:]
	}
	return out
}

// SyntheticBars は最新値が last になるようなランダムウォークの足を生成します。
// 同じ (銘柄, 期間, 粒度) なら同じ形になります
func SyntheticBars(session *Session, now time.Time, key market.SeriesKey, last float64) []Bar {
	times := timestamps(session, now, key.Window)
	if len(times) == 0 {
		return nil
	}

	h := fnv.New64a()
	h.Write([]byte(key.String()))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vol := 0.015
	if key.Window.Interval.IsIntraday() {
		vol = 0.003
	}

	// 最新の終値から過去へ遡って終値を決める
	closes := make([]float64, len(times))
	closes[len(closes)-1] = last
	for i := len(closes) - 2; i >= 0; i-- {
		closes[i] = closes[i+1] / (1 + rng.NormFloat64()*vol)
	}

	bars := make([]Bar, len(times))
	for i, t := range times {
		open := closes[i]
		if i > 0 {
			open = closes[i-1]
		}
		wick := closes[i] * vol * rng.Float64()
		bars[i] = Bar{
			Time:  t,
			Open:  round2(open),
			High:  round2(max(open, closes[i]) + wick),
			Low:   round2(min(open, closes[i]) - wick),
			Close: round2(closes[i]),
		}
	}
	return bars
}

// RSISeries は Wilder 平滑化の RSI を足ごとに計算します。
// 最初の period 本は値が決まらないため返しません
func RSISeries(bars []Bar, period int) []float64 {
	if period <= 0 || len(bars) < period+1 {
		return nil
	}

	// 最初の period 本分の平均上昇幅・下落幅
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := bars[i].Close - bars[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, len(bars)-period)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return round2(100 - 100/(1+rs))
}
