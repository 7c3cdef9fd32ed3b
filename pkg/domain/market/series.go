package market

import (
	"sort"
	"time"
)

// SeriesKind は系列の種類です
type SeriesKind string

const (
	SERIES_PRICE SeriesKind = "price"
	SERIES_RSI   SeriesKind = "rsi"
)

// SeriesPoint はチャート1点分のデータです。
// 価格系列では Open/High/Low/Close、RSI 系列では Value を使います
type SeriesPoint struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Value     float64
}

// Series は時刻の昇順に並んだ SeriesPoint の列です
type Series struct {
	Kind   SeriesKind
	Points []SeriesPoint
}

// Len は点数を返します
func (s Series) Len() int {
	return len(s.Points)
}

// IsEmpty は空の系列かを返します
func (s Series) IsEmpty() bool {
	return len(s.Points) == 0
}

// Clone は Points を複製した系列を返します
func (s Series) Clone() Series {
	if s.Points == nil {
		return Series{Kind: s.Kind}
	}
	points := make([]SeriesPoint, len(s.Points))
	copy(points, s.Points)
	return Series{Kind: s.Kind, Points: points}
}

// Normalize は時刻順に並べ替え、同じ時刻の点は後から来た方を残します
func (s Series) Normalize() Series {
	points := make([]SeriesPoint, len(s.Points))
	copy(points, s.Points)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	out := points[:0]
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(p.Timestamp) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return Series{Kind: s.Kind, Points: out}
}
