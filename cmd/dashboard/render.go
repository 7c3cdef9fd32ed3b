// cmd/dashboard/render.go
package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/r-umemoto/market-dashboard/pkg/view"
)

// 表示するローソク足の本数（直近のみ）
const recentBars = 5

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	symbolStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	gainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	preStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	postStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("135"))
	activeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// render は Frame をコンソール向けの文字列にします
func render(f view.Frame) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Market Dashboard"))
	if f.Loading {
		b.WriteString(dimStyle.Render("  Loading..."))
	}
	b.WriteString("\n\n")

	renderHeader(&b, f.Header)
	renderWatchlist(&b, f.Rows)
	renderSelectors(&b, "Range   ", f.Ranges)
	renderSelectors(&b, "Interval", f.Intervals)
	renderCharts(&b, f)

	if f.Notice != "" {
		b.WriteString(noticeStyle.Render("ℹ " + f.Notice))
		b.WriteString("\n")
	}
	return b.String()
}

func renderHeader(b *strings.Builder, h view.Header) {
	if h.Empty {
		b.WriteString(dimStyle.Render("銘柄が選択されていません"))
		b.WriteString("\n\n")
		return
	}

	fmt.Fprintf(b, "%s %s\n", symbolStyle.Render(h.Symbol), dimStyle.Render(h.Name))
	switch {
	case strings.HasPrefix(h.Badge, "Pre-market"):
		b.WriteString(preStyle.Render(h.Badge) + "\n")
	case h.Badge != "":
		b.WriteString(postStyle.Render(h.Badge) + "\n")
	}
	fmt.Fprintf(b, "%s  %s\n", h.Price, directionStyle(h.Direction).Render(h.Change))
	fmt.Fprintf(b, "%s %s  %s %s  %s %s  %s %s\n\n",
		dimStyle.Render("OPEN"), h.Open,
		dimStyle.Render("HIGH"), h.High,
		dimStyle.Render("LOW"), h.Low,
		dimStyle.Render("MKT CAP"), h.MarketCap,
	)
}

func renderWatchlist(b *strings.Builder, rows []view.Row) {
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("ウォッチリストは空です"))
		b.WriteString("\n\n")
		return
	}

	for _, row := range rows {
		marker, style := "  ", symbolStyle
		if row.Selected {
			marker, style = "▶ ", selectedStyle
		}
		fmt.Fprintf(b, "%s%-8s %10s  %s\n",
			marker,
			style.Render(row.Symbol),
			row.Price,
			directionStyle(row.Direction).Render(row.Change),
		)
	}
	b.WriteString("\n")
}

func renderSelectors(b *strings.Builder, label string, choices []view.Choice) {
	b.WriteString(dimStyle.Render(label) + " ")
	for _, c := range choices {
		text := c.Label
		switch {
		case c.Active:
			text = activeStyle.Render(text)
		case c.WouldAdjust:
			// 選ぶともう一方が補正される選択肢
			text = dimStyle.Render(text + "*")
		}
		b.WriteString(text + " ")
	}
	b.WriteString("\n")
}

func renderCharts(b *strings.Builder, f view.Frame) {
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Price [%s]  RSI [%s]", f.PriceState, f.RSIState)))
	b.WriteString("\n")

	if len(f.Candles) == 0 {
		b.WriteString(dimStyle.Render("  (no data)") + "\n")
		return
	}

	start := len(f.Candles) - recentBars
	if start < 0 {
		start = 0
	}
	for _, c := range f.Candles[start:] {
		fmt.Fprintf(b, "  %-16s O %s H %s L %s C %s\n",
			c.Label,
			view.FormatPrice(c.Open), view.FormatPrice(c.High),
			view.FormatPrice(c.Low), view.FormatPrice(c.Close),
		)
	}
	if len(f.Shading) > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  時間外帯: %d 区間", len(f.Shading))) + "\n")
	}

	if n := len(f.RSI); n > 0 {
		last := f.RSI[n-1].Value
		text := fmt.Sprintf("  RSI %s", view.FormatPrice(last))
		switch {
		case last >= f.Guides[0].Level:
			text = lossStyle.Render(text + " " + f.Guides[0].Label)
		case last <= f.Guides[1].Level:
			text = gainStyle.Render(text + " " + f.Guides[1].Label)
		}
		b.WriteString(text + "\n")
	}
}

func directionStyle(d view.Direction) lipgloss.Style {
	switch d {
	case view.UP:
		return gainStyle
	case view.DOWN:
		return lossStyle
	}
	return dimStyle
}
