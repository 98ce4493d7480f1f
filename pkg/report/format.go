// Package report renders bulk backtest reports as text, CSV and JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/courtedge/nba-divergence/pkg/sim/service"
)

// printer formats counts with locale separators so 12000 games reads as
// "12,000" in terminal output.
var printer = message.NewPrinter(language.English)

// WriteText renders a human-readable summary to w.
func WriteText(w io.Writer, r *service.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "================= DIVERGENCE BACKTEST =================")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Request:          %s\n", r.RequestID)
	fmt.Fprintf(w, "  Status:           %s\n", r.Status)
	fmt.Fprintf(w, "  Duration:         %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Entry / Exit:     %.3f / %.3f\n", r.Params.EntryThreshold, r.Params.ExitThreshold)
	fmt.Fprintf(w, "  Bet Size:         $%.2f\n", r.Params.BetSize)
	fmt.Fprintf(w, "  Fees:             %s\n", onOff(r.Params.EnableFees))
	fmt.Fprintln(w)
	printer.Fprintf(w, "  Games:            %d simulated / %d requested\n", r.GamesSimulated, r.GamesRequested)
	printer.Fprintf(w, "  Trades:           %d\n", r.NumTrades)
	fmt.Fprintf(w, "  Total Profit:     $%.2f\n", r.TotalProfit.InexactFloat64())
	fmt.Fprintf(w, "  ROI:              %.2f%%\n", r.ROI*100)
	fmt.Fprintf(w, "  Win Rate:         %.1f%%\n", r.WinRate*100)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Max Win:          $%.2f\n", r.MaxWin.InexactFloat64())
	fmt.Fprintf(w, "  Max Loss:         $%.2f\n", r.MaxLoss.InexactFloat64())
	fmt.Fprintf(w, "  Median Profit:    $%.2f\n", r.MedianProfit)
	fmt.Fprintf(w, "  Std Dev:          $%.2f\n", r.StdDevProfit)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Long:             %d trades, $%.2f\n", r.Long.Count, r.Long.Profit.InexactFloat64())
	fmt.Fprintf(w, "  Short:            %d trades, $%.2f\n", r.Short.Count, r.Short.Profit.InexactFloat64())
	fmt.Fprintln(w)
	printer.Fprintf(w, "  Entries:          %d filled, %d missed (no ask), %d missed (no bid)\n",
		r.Diagnostics.SuccessfulEntries,
		r.Diagnostics.MissedLongNoAsk,
		r.Diagnostics.MissedShortNoBid)

	if len(r.FailedGames) > 0 {
		fmt.Fprintln(w)
		printer.Fprintf(w, "  Failed Games:     %d\n", len(r.FailedGames))
		for _, f := range r.FailedGames {
			fmt.Fprintf(w, "    %s: %s\n", f.GameID, f.Reason)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=======================================================")
}

// WriteGames renders the per-game breakdown to w.
func WriteGames(w io.Writer, r *service.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Per-Game Results:")
	fmt.Fprintln(w, "-----------------")
	for _, g := range r.Games {
		fmt.Fprintf(w, "  %s  %s  trades: %3d  profit: $%9.2f  win rate: %5.1f%%\n",
			g.GameID,
			g.GameDate.Format("2006-01-02"),
			g.NumTrades,
			g.TotalProfit.InexactFloat64(),
			g.WinRate*100)
	}
}

// Export writes the report to filename, choosing the format from the
// extension. Unknown extensions get JSON.
func Export(r *service.Report, filename string) error {
	switch {
	case strings.HasSuffix(filename, ".csv"):
		return exportCSV(r, filename)
	case strings.HasSuffix(filename, ".json"):
		return exportJSON(r, filename)
	}
	return exportJSON(r, filename+".json")
}

func exportJSON(r *service.Report, filename string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(filename, data, 0644)
}

func exportCSV(r *service.Report, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	w.Write([]string{"metric", "value"})
	w.Write([]string{"request_id", r.RequestID})
	w.Write([]string{"status", r.Status})
	w.Write([]string{"games_requested", strconv.Itoa(r.GamesRequested)})
	w.Write([]string{"games_simulated", strconv.Itoa(r.GamesSimulated)})
	w.Write([]string{"num_trades", strconv.Itoa(r.NumTrades)})
	w.Write([]string{"total_profit", r.TotalProfit.String()})
	w.Write([]string{"roi", strconv.FormatFloat(r.ROI, 'f', -1, 64)})
	w.Write([]string{"win_rate", strconv.FormatFloat(r.WinRate, 'f', -1, 64)})
	w.Write([]string{"max_win", r.MaxWin.String()})
	w.Write([]string{"max_loss", r.MaxLoss.String()})
	w.Write([]string{"median_profit", strconv.FormatFloat(r.MedianProfit, 'f', -1, 64)})
	w.Write([]string{"std_dev_profit", strconv.FormatFloat(r.StdDevProfit, 'f', -1, 64)})

	w.Write([]string{})

	if len(r.Games) > 0 {
		w.Write([]string{"game_id", "game_date", "num_trades", "total_profit", "win_rate"})
		for _, g := range r.Games {
			w.Write([]string{
				g.GameID,
				g.GameDate.Format("2006-01-02"),
				strconv.Itoa(g.NumTrades),
				g.TotalProfit.String(),
				strconv.FormatFloat(g.WinRate, 'f', -1, 64),
			})
		}
	}

	return w.Error()
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
