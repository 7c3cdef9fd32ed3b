// internal/mockserver/session.go
package mockserver

import (
	"time"

	"github.com/scmhub/calendar"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
)

// Session はニューヨーク市場の営業日とセッション区分を判定します
type Session struct {
	cal *calendar.Calendar
	loc *time.Location
}

// NewSession は NYSE のカレンダーを読み込みます。
// 読み込めない場合は月〜金を営業日とみなす簡易判定になります
func NewSession() *Session {
	if cal := calendar.GetCalendar("xnys"); cal != nil {
		return &Session{cal: cal, loc: cal.Loc}
	}

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &Session{loc: loc}
}

// Location は取引所のタイムゾーンです
func (s *Session) Location() *time.Location {
	return s.loc
}

// IsBusinessDay は取引所の営業日かを返します
func (s *Session) IsBusinessDay(t time.Time) bool {
	t = t.In(s.loc)
	if s.cal == nil {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return s.cal.IsBusinessDay(t)
}

// State は時刻 t における取引セッションを返します
func (s *Session) State(t time.Time) market.MarketState {
	t = t.In(s.loc)
	if !s.IsBusinessDay(t) {
		return market.STATE_CLOSED
	}

	minutes := t.Hour()*60 + t.Minute()
	switch {
	case minutes < 4*60:
		return market.STATE_CLOSED
	case minutes < 9*60+30:
		return market.STATE_PRE
	case minutes < 16*60:
		return market.STATE_REGULAR
	case minutes < 20*60:
		return market.STATE_POST
	}
	return market.STATE_CLOSED
}
