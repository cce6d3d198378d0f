// Package reporting renders day summaries and performance aggregates to
// markdown and CSV files.
package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/perf"
)

// RenderMarkdown builds the human-readable report: per-day results followed
// by the aggregate statistics.
func RenderMarkdown(summaries []*domain.DaySummary, stats perf.Stats) string {
	var b strings.Builder

	b.WriteString("# Trading Report\n\n")

	b.WriteString("## Daily Results\n\n")
	b.WriteString("| Date | Net P&L | Gross P&L | Fees | Trades | Wins | Opened | Halt |\n")
	b.WriteString("|------|---------|-----------|------|--------|------|--------|------|\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "| %s | %.0f | %.0f | %.0f | %d | %d | %d | %s |\n",
			s.TradeDate, s.RealizedNetPnL, s.RealizedGrossPnL, s.FeesPaid,
			s.TradesClosed, s.WinCount, s.PositionsOpened, s.HaltCondition)
	}

	b.WriteString("\n## Performance\n\n")
	fmt.Fprintf(&b, "- Trades: %d\n", stats.Trades)
	fmt.Fprintf(&b, "- Win rate: %.1f%%\n", stats.WinRate*100)
	fmt.Fprintf(&b, "- Total net P&L: %.0f KRW\n", stats.TotalNet)
	fmt.Fprintf(&b, "- Net P&L mean / median: %.0f / %.0f\n", stats.NetMean, stats.NetMedian)
	fmt.Fprintf(&b, "- Net P&L P10 / P25 / P75 / P90: %.0f / %.0f / %.0f / %.0f\n",
		stats.NetP10, stats.NetP25, stats.NetP75, stats.NetP90)
	fmt.Fprintf(&b, "- Net P&L min / max / stddev: %.0f / %.0f / %.0f\n",
		stats.NetMin, stats.NetMax, stats.NetStddev)
	fmt.Fprintf(&b, "- Max drawdown: %.0f KRW\n", stats.MaxDrawdown)
	fmt.Fprintf(&b, "- Max consecutive losses: %d\n", stats.MaxConsecutiveLosses)

	return b.String()
}

// SummaryRows converts summaries to CSV rows with a header.
func SummaryRows(summaries []*domain.DaySummary) [][]string {
	rows := [][]string{{
		"trade_date", "starting_equity", "realized_gross_pnl", "realized_net_pnl",
		"fees_paid", "halt_condition", "trades_closed", "win_count",
		"positions_opened", "cycle_count",
	}}
	for _, s := range summaries {
		rows = append(rows, []string{
			s.TradeDate,
			formatFloat(s.StartingEquity),
			formatFloat(s.RealizedGrossPnL),
			formatFloat(s.RealizedNetPnL),
			formatFloat(s.FeesPaid),
			s.HaltCondition,
			strconv.Itoa(s.TradesClosed),
			strconv.Itoa(s.WinCount),
			strconv.Itoa(s.PositionsOpened),
			strconv.Itoa(s.CycleCount),
		})
	}
	return rows
}

// TradeRows converts trades to CSV rows with a header.
func TradeRows(trades []*domain.TradeRecord) [][]string {
	rows := [][]string{{
		"trade_id", "trade_date", "code", "hedge", "entry_time_ms", "entry_price",
		"exit_time_ms", "exit_price", "quantity", "gross_pnl", "fees", "net_pnl",
		"exit_reason",
	}}
	for _, t := range trades {
		rows = append(rows, []string{
			t.TradeID,
			t.TradeDate,
			t.Code,
			strconv.FormatBool(t.Hedge),
			strconv.FormatInt(t.EntryTimeMs, 10),
			formatFloat(t.EntryPrice),
			strconv.FormatInt(t.ExitTimeMs, 10),
			formatFloat(t.ExitPrice),
			strconv.FormatInt(t.Quantity, 10),
			formatFloat(t.GrossPnL),
			formatFloat(t.Fees),
			formatFloat(t.NetPnL),
			t.ExitReason,
		})
	}
	return rows
}

// Write renders the report files under dir: report.md, summaries.csv,
// trades.csv. The directory is created when missing.
func Write(dir string, summaries []*domain.DaySummary, trades []*domain.TradeRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	stats := perf.Compute(trades)
	md := RenderMarkdown(summaries, stats)
	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("failed to write report.md: %w", err)
	}

	if err := writeCSV(filepath.Join(dir, "summaries.csv"), SummaryRows(summaries)); err != nil {
		return err
	}
	return writeCSV(filepath.Join(dir, "trades.csv"), TradeRows(trades))
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
