package engine

import "github.com/r-umemoto/market-dashboard/pkg/domain/market"

// LineageState は系列取得1系統（ヒストリー / RSI）の状態です
type LineageState int

const (
	LINEAGE_IDLE LineageState = iota
	LINEAGE_PENDING
	LINEAGE_APPLIED
	LINEAGE_DISCARDED
	LINEAGE_FAILED
)

func (s LineageState) String() string {
	switch s {
	case LINEAGE_PENDING:
		return "pending"
	case LINEAGE_APPLIED:
		return "applied"
	case LINEAGE_DISCARDED:
		return "discarded"
	case LINEAGE_FAILED:
		return "failed"
	}
	return "idle"
}

// lineage は同じキーで発行した取得の連番と状態を持ちます
type lineage struct {
	name      string
	seq       uint64
	key       market.SeriesKey
	state     LineageState
	discarded int
}

// restart は新しい系譜を始めます。以前に発行した取得の結果はすべて破棄対象になります
func (l *lineage) restart(key market.SeriesKey) {
	l.seq++
	l.key = key
	if key.IsZero() {
		l.state = LINEAGE_IDLE
		return
	}
	l.state = LINEAGE_PENDING
}

// accepts は結果が現在の系譜のものかを返します
func (l *lineage) accepts(seq uint64, key market.SeriesKey) bool {
	return seq == l.seq && key == l.key
}

// discard は破棄を記録します。現在の系譜の結果だった場合だけ状態を変えます
func (l *lineage) discard(seq uint64) {
	l.discarded++
	if seq == l.seq {
		l.state = LINEAGE_DISCARDED
	}
}
