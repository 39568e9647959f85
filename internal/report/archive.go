package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/storage/artifact"
)

// Artifact names written under runs/<run-id>/.
const (
	RawFile     = "raw.csv"
	TradesFile  = "trades.csv"
	EquityFile  = "equity.csv"
	MetricsFile = "metrics.json"
	RunFile     = "run.json"
)

type runInfo struct {
	RunID       string   `json:"run_id"`
	Strategy    string   `json:"strategy"`
	Description string   `json:"description,omitempty"`
	Symbols     []string `json:"symbols"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Capital     float64  `json:"capital"`
	Margin      float64  `json:"margin"`
	Seed        uint64   `json:"seed"`
	MergeTrades bool     `json:"merge_trades"`
	Fills       int      `json:"fills"`
	Clamped     int      `json:"clamped_fills"`
	DurationMS  int64    `json:"duration_ms"`
}

// Prefix returns the artifact key prefix for a run.
func Prefix(r *backtest.Result) string {
	return path.Join("runs", r.RunID.String())
}

// Archive writes every rendering of r to store and returns the keys written.
func Archive(ctx context.Context, store artifact.Store, r *backtest.Result) ([]string, error) {
	info := runInfo{
		RunID:       r.RunID.String(),
		Strategy:    r.Strategy,
		Description: r.Description,
		Symbols:     r.Symbols,
		Start:       r.StartDate.Format(core.DateLayout),
		End:         r.EndDate.Format(core.DateLayout),
		Capital:     r.Config.Capital,
		Margin:      r.Config.Margin,
		Seed:        r.Config.Seed,
		MergeTrades: r.Config.MergeTrades,
		Fills:       r.Fills(false),
		Clamped:     r.Fills(true),
		DurationMS:  r.Duration.Milliseconds(),
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{RunFile, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}},
		{RawFile, func(w io.Writer) error { return WriteRaw(w, r.Raw) }},
		{TradesFile, func(w io.Writer) error { return WriteTrades(w, r.Trades) }},
		{EquityFile, func(w io.Writer) error { return WriteEquity(w, r.Equity) }},
		{MetricsFile, func(w io.Writer) error { return WriteMetrics(w, r.Stats) }},
	}

	prefix := Prefix(r)
	keys := make([]string, 0, len(files))
	for _, file := range files {
		var buf bytes.Buffer
		if err := file.write(&buf); err != nil {
			return keys, core.WrapError(core.ErrStorageFailed, err)
		}
		key := path.Join(prefix, file.name)
		if err := store.Put(ctx, key, buf.Bytes()); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
