package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// Console implementa ports.Notifier y los reportes de la CLI.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
// Con table=true cada decisión se imprime con su tabla de señales.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyDecision imprime una línea por decisión y, en modo tabla, el detalle por símbolo.
func (c *Console) NotifyDecision(_ context.Context, d domain.Decision) error {
	fmt.Fprintf(c.out, "[%s] %s %s | arm %s | %s | %s | %d orders\n",
		d.Timestamp.Local().Format("15:04:05"), d.Mode, shortID(d.RunID),
		d.Arm.Key(), d.Regime, d.Outcome, len(d.Orders))
	if d.Outcome == domain.OutcomeAborted || d.Outcome == domain.OutcomeHold {
		fmt.Fprintf(c.out, "  %s\n", d.Reasoning)
	}
	if c.table && len(d.Signals) > 0 {
		c.printSignals(d)
	}
	return nil
}

func (c *Console) printSignals(d domain.Decision) {
	orders := make(map[string]domain.OrderDelta, len(d.Orders))
	for _, o := range d.Orders {
		orders[o.Symbol] = o
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Signal", "Target$", "Order")
	for _, sym := range sortedKeys(d.Signals) {
		order := "-"
		if o, ok := orders[sym]; ok {
			order = fmt.Sprintf("%s %d", o.Side, o.Quantity)
		}
		table.Append(sym, d.Signals[sym].String(), fmt.Sprintf("$%.2f", d.Targets[sym]), order)
	}
	table.Render()
}

// ArmRow es una fila del leaderboard del optimizador.
type ArmRow struct {
	Arm   domain.ParameterSet
	Stats domain.ArmStatistics
}

// PrintLeaderboard imprime las estadísticas por arm, mejor avg_reward primero.
func (c *Console) PrintLeaderboard(rows []ArmRow, epsilon float64) {
	if len(rows) == 0 {
		fmt.Fprintln(c.out, "\n  No arms configured.")
		return
	}
	sorted := append([]ArmRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Stats.AvgReward() > sorted[j].Stats.AvgReward()
	})

	fmt.Fprintf(c.out, "\n=== ARM LEADERBOARD (epsilon %.2f, %d arms) ===\n", epsilon, len(sorted))
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Key", "Fast", "Slow", "Vol", "SL", "TP", "Trials", "Total", "Avg", "Updated")
	for i, r := range sorted {
		updated := "-"
		if !r.Stats.UpdatedAt.IsZero() {
			updated = r.Stats.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			r.Arm.Key(),
			fmt.Sprintf("%d", r.Arm.FastWindow),
			fmt.Sprintf("%d", r.Arm.SlowWindow),
			r.Arm.VolTargetLabel(),
			fmt.Sprintf("%.3f", r.Arm.StopLossPct),
			fmt.Sprintf("%.3f", r.Arm.TakeProfitPct),
			fmt.Sprintf("%d", r.Stats.Trials),
			fmt.Sprintf("%.5f", r.Stats.TotalReward),
			fmt.Sprintf("%.5f", r.Stats.AvgReward()),
			updated,
		)
	}
	table.Render()
}

// PrintDecisions imprime el histórico reciente de decisiones.
func (c *Console) PrintDecisions(ds []domain.Decision) {
	if len(ds) == 0 {
		fmt.Fprintln(c.out, "\n  No decisions recorded yet.")
		return
	}
	fmt.Fprintf(c.out, "\n=== RECENT DECISIONS (%d) ===\n", len(ds))
	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Mode", "Run", "Arm", "Regime", "Outcome", "Orders", "Reward")
	for _, d := range ds {
		reward := "pending"
		if d.Reward != nil {
			reward = fmt.Sprintf("%+.4f", *d.Reward)
		}
		table.Append(
			d.Timestamp.Local().Format("2006-01-02 15:04"),
			string(d.Mode),
			shortID(d.RunID),
			d.Arm.Key(),
			string(d.Regime),
			d.Outcome,
			fmt.Sprintf("%d", len(d.Orders)),
			reward,
		)
	}
	table.Render()
}

// SimSummary agrupa lo que PrintSimSummary necesita de una fase de simulación.
type SimSummary struct {
	Label       string
	From, To    time.Time
	Steps       int
	Trades      int
	Holds       int
	Aborted     int
	StopHits    int
	TakeProfits int
	StartEquity float64
	FinalEquity float64
	TotalReturn float64
	MaxDrawdown float64
	ArmsUsed    map[string]int
}

// PrintSimSummary imprime el resumen de una fase de simulación.
func (c *Console) PrintSimSummary(s SimSummary) {
	fmt.Fprintf(c.out, "\n========================================================\n")
	fmt.Fprintf(c.out, "  %s\n", strings.ToUpper(s.Label))
	if !s.From.IsZero() {
		fmt.Fprintf(c.out, "  %s to %s (%d steps)\n", s.From.Format("2006-01-02 15:04"), s.To.Format("2006-01-02 15:04"), s.Steps)
	}
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  Equity:        $%.2f -> $%.2f\n", s.StartEquity, s.FinalEquity)
	fmt.Fprintf(c.out, "  Total return:  %+.2f%%\n", s.TotalReturn*100)
	fmt.Fprintf(c.out, "  Max drawdown:  %.2f%%\n", s.MaxDrawdown*100)
	fmt.Fprintf(c.out, "  Steps:         %d traded, %d hold, %d aborted\n", s.Trades, s.Holds, s.Aborted)
	fmt.Fprintf(c.out, "  Exits:         %d stop loss, %d take profit\n", s.StopHits, s.TakeProfits)

	if len(s.ArmsUsed) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Arm", "Steps")
		keys := sortedKeys(s.ArmsUsed)
		sort.SliceStable(keys, func(i, j int) bool { return s.ArmsUsed[keys[i]] > s.ArmsUsed[keys[j]] })
		for _, k := range keys {
			table.Append(k, fmt.Sprintf("%d", s.ArmsUsed[k]))
		}
		table.Render()
	}
	fmt.Fprintln(c.out)
}

// --- helpers ---

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:8] + "…"
}
