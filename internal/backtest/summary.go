package backtest

// Summary is a metric × strategy table over several runs.
type Summary struct {
	Strategies []string
	Metrics    []string
	Values     [][]any // Values[metric][strategy]; nil where undefined
}

// Summarize tabulates metrics across results, in the order given. With
// no metrics it uses MetricNames.
func Summarize(results []*Result, metrics ...string) *Summary {
	if len(metrics) == 0 {
		metrics = MetricNames
	}
	s := &Summary{Metrics: metrics}
	maps := make([]map[string]any, len(results))
	for i, r := range results {
		s.Strategies = append(s.Strategies, r.Strategy)
		maps[i] = r.Stats.Map()
	}
	for _, m := range metrics {
		row := make([]any, len(results))
		for i := range results {
			row[i] = maps[i][m]
		}
		s.Values = append(s.Values, row)
	}
	return s
}
