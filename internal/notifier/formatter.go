package notifier

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"HiLoBacktester/internal/model"
	"HiLoBacktester/internal/recorder"
	"HiLoBacktester/internal/report"
)

var printer = message.NewPrinter(language.English)

// FormatRunSummary formats the outcome of a backtest into a Telegram message.
func FormatRunSummary(final *model.StrategyResult, sweep *model.Sweep, capital float64, reportPath string) string {
	stats := report.ComputeStats(final, sweep)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>HiLo backtest</b> | %s\n", html.EscapeString(final.Symbol)))
	b.WriteString(fmt.Sprintf("%s → %s\n\n", stats.FirstDate.Format(time.DateOnly), stats.LastDate.Format(time.DateOnly)))

	b.WriteString(fmt.Sprintf("Best HiLo period: <b>%d</b>\n", stats.Period))
	b.WriteString(fmt.Sprintf("Cumulative return: %s (gross %s)\n", pct(stats.FinalNet), pct(stats.FinalGross)))
	b.WriteString(fmt.Sprintf("Buy &amp; hold: %s\n", pct(stats.BuyAndHold)))
	b.WriteString(fmt.Sprintf("Max drawdown: %s\n", ratio(-stats.MaxDrawdown)))
	b.WriteString(fmt.Sprintf("Trades: %d | Fees: %s\n", stats.Trades, money(stats.TotalCost)))
	if capital > 0 && finite(stats.FinalNet) {
		grown := decimal.NewFromFloat(capital).Mul(decimal.NewFromFloat(stats.FinalNet))
		b.WriteString(fmt.Sprintf("Growth of %s: %s\n", money(decimal.NewFromFloat(capital)), money(grown)))
	}

	if sweep != nil {
		b.WriteString(fmt.Sprintf("\nPeriods tested: %d (%d positive, %d negative)\n",
			len(sweep.Rows), stats.PositiveNets, stats.NegativeNets))
		if len(sweep.Skipped) > 0 {
			b.WriteString(fmt.Sprintf("Skipped: %d\n", len(sweep.Skipped)))
		}
	}
	if reportPath != "" {
		b.WriteString(fmt.Sprintf("\nReport: <code>%s</code>\n", html.EscapeString(reportPath)))
	}
	return b.String()
}

// FormatHistory lists recent runs, newest first.
func FormatHistory(runs []recorder.RunRecord) string {
	if len(runs) == 0 {
		return "No backtests recorded yet."
	}
	var b strings.Builder
	b.WriteString("🗂 <b>Recent backtests</b>\n\n")
	for _, r := range runs {
		b.WriteString(fmt.Sprintf("%s %s HiLo=%d %s (%d trades)\n",
			r.CreatedAt.Format("2006-01-02 15:04"), html.EscapeString(r.Symbol), r.BestPeriod, pct(r.BestReturn), r.Trades))
	}
	return b.String()
}

// FormatError reports a failed run.
func FormatError(symbol string, err error) string {
	return fmt.Sprintf("⚠️ Backtest for %s failed: %s", html.EscapeString(symbol), html.EscapeString(err.Error()))
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return strings.Join([]string{
		"<b>Commands</b>",
		"/backtest SYMBOL [START] [END] [COST] [MAXPERIOD]",
		"    dates as YYYY-MM-DD, cost as a fraction (0.003)",
		"/history  recent runs",
		"/help     this message",
	}, "\n")
}

// pct renders a growth factor as a signed percentage change.
func pct(factor float64) string {
	if !finite(factor) {
		return "n/a"
	}
	return printer.Sprintf("%+.2f%%", (factor-1)*100)
}

func ratio(v float64) string {
	if !finite(v) {
		return "n/a"
	}
	return printer.Sprintf("%.2f%%", v*100)
}

// money renders d to the cent, with thousands separators on the whole part.
func money(d decimal.Decimal) string {
	whole, cents, _ := strings.Cut(d.Abs().StringFixed(2), ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return "$" + d.StringFixed(2)
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + printer.Sprintf("$%d.%s", n, cents)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
