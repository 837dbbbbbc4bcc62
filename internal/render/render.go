// Package render prints trade setups to a terminal.
package render

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"whalesignal/internal/models"
	"whalesignal/logger"
)

const clearScreen = "\033[H\033[2J"

// WaitingLine is printed when a cycle produced no actionable setup.
const WaitingLine = "No valid trade signal yet."

// Console writes one table per cycle. It implements scheduler.Sink.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	clear bool
	loc   *time.Location
}

// NewConsole renders to out, clearing the screen first when clear is set.
func NewConsole(out io.Writer, clear bool) *Console {
	return &Console{out: out, clear: clear, loc: time.Local}
}

func (c *Console) Publish(_ context.Context, setup models.TradeSetup) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clear {
		io.WriteString(c.out, clearScreen)
	}
	if err := Table(c.out, setup, c.loc); err != nil {
		logger.GetLogger().WithComponent("render").WithError(err).Warn("failed to render setup")
		return
	}
	if !setup.Actionable() {
		fmt.Fprintln(c.out, WaitingLine)
	}
}

// Table writes setup as a two-column key/value table.
func Table(w io.Writer, setup models.TradeSetup, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	rows := [][2]string{
		{"Instrument", setup.Instrument},
		{"Signal", string(setup.Signal)},
		{"Whale trend", string(setup.WhaleTrend)},
		{"OI trend", string(setup.OITrend)},
		{"CVD", string(setup.CVDSignal)},
		{"Liquidations", string(setup.LiquidationBias)},
		{"Last price", formatPrice(setup.LastPrice)},
		{"ATR", formatPrice(setup.ATR)},
	}
	if p := setup.Plan; p != nil {
		rows = append(rows,
			[2]string{"Entry", formatPrice(p.Entry)},
			[2]string{"Take profit", formatPrice(p.TakeProfit)},
			[2]string{"Stop loss", formatPrice(p.StopLoss)},
			[2]string{"R:R", fmt.Sprintf("%.2f", p.RiskReward)},
		)
	}
	rows = append(rows,
		[2]string{"Comment", setup.Comment},
		[2]string{"Time", formatTime(setup.Timestamp, loc)},
	)

	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}

func formatPrice(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}
