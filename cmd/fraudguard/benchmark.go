package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/fraudguard/internal/decision"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/model"
)

// benchMetrics tracks rule scorecard results against dataset labels.
type benchMetrics struct {
	TruePositives  int64 // fraud flagged
	FalsePositives int64 // legit flagged
	TrueNegatives  int64 // legit passed
	FalseNegatives int64 // fraud passed

	TotalProcessed int64
	TotalFraud     int64
	TotalNonFraud  int64

	ProcessingTimeNs int64
}

func (m *benchMetrics) confusion() domain.Confusion {
	return domain.Confusion{
		TP: int(m.TruePositives),
		FP: int(m.FalsePositives),
		TN: int(m.TrueNegatives),
		FN: int(m.FalseNegatives),
	}
}

// alertActions maps the --alert-on flag to the actions counted as a flag.
var alertActions = map[string]map[domain.Action]bool{
	"review": {domain.ActionManualReview: true, domain.ActionBlock: true},
	"block":  {domain.ActionBlock: true},
}

type benchRow struct {
	in    domain.TransactionInput
	fraud bool
}

func benchmarkCmd() *cobra.Command {
	var (
		flags   datasetFlags
		limit   int
		workers int
		alertOn string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Replay a labelled dataset through the rule scorecard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flagged, ok := alertActions[alertOn]
			if !ok {
				return fmt.Errorf("--alert-on must be review or block, got %q", alertOn)
			}
			sc, t, source, err := flags.load()
			if err != nil {
				return err
			}
			if !t.Has(sc.Target) {
				return fmt.Errorf("%w: target %q not found", domain.ErrSchemaMismatch, sc.Target)
			}
			if limit > 0 && t.Len() > limit {
				t = t.Head(limit)
			}

			labels := model.Binarize(t.Column(sc.Target), cfg.Training.PositiveLabels)
			records := t.Records()
			rows := make([]benchRow, len(records))
			for i, r := range records {
				rows[i] = benchRow{in: domain.TransactionInput(r), fraud: labels[i] == 1}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nDataset:   %s\n", source)
			fmt.Fprintf(out, "Domain:    %s\n", sc.ID.Label())
			fmt.Fprintf(out, "Rows:      %d\n", len(rows))
			fmt.Fprintf(out, "Workers:   %d\n", workers)
			fmt.Fprintf(out, "Alert on:  %s\n", alertOn)

			start := time.Now()
			m := runBenchmark(out, sc.ID, rows, workers, flagged, verbose)
			printBenchmark(out, m, time.Since(start))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 10000, "maximum rows to replay (0 = all)")
	cmd.Flags().IntVar(&workers, "workers", 10, "number of concurrent workers")
	cmd.Flags().StringVar(&alertOn, "alert-on", "review", "lowest action counted as a flag (review, block)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "print each row's verdict")
	return cmd
}

func runBenchmark(out io.Writer, id domain.DomainID, rows []benchRow, numWorkers int, flagged map[domain.Action]bool, verbose bool) *benchMetrics {
	metrics := &benchMetrics{}
	if numWorkers < 1 {
		numWorkers = 1
	}

	work := make(chan benchRow, 100)
	var (
		wg    sync.WaitGroup
		outMu sync.Mutex
	)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range work {
				start := time.Now()
				res := decision.Analyze(id, row.in)
				atomic.AddInt64(&metrics.ProcessingTimeNs, int64(time.Since(start)))
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if row.fraud {
					atomic.AddInt64(&metrics.TotalFraud, 1)
				} else {
					atomic.AddInt64(&metrics.TotalNonFraud, 1)
				}

				predicted := flagged[res.Action]
				switch {
				case predicted && row.fraud:
					atomic.AddInt64(&metrics.TruePositives, 1)
				case predicted:
					atomic.AddInt64(&metrics.FalsePositives, 1)
				case row.fraud:
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				default:
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				}

				if verbose {
					status := "ok"
					if predicted != row.fraud {
						status = "XX"
					}
					outMu.Lock()
					fmt.Fprintf(out, "%s | fraud: %-5v | score: %3d | %-13s | factors: %d\n",
						status, row.fraud, res.Score, res.Action, len(res.Factors))
					outMu.Unlock()
				}
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)
	wg.Wait()

	return metrics
}

func printBenchmark(w io.Writer, m *benchMetrics, duration time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "RULE BENCHMARK RESULTS")
	fmt.Fprintln(w, "======================")

	fmt.Fprintf(w, "\nDATASET STATISTICS\n")
	fmt.Fprintf(w, "   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Fprintf(w, "   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Fprintf(w, "   Total Non-Fraud:  %d\n", m.TotalNonFraud)

	c := m.confusion()
	printConfusion(w, c, "FLAG", "PASS")

	precision, recall, f1 := 0.0, 0.0, 0.0
	if d := c.TP + c.FP; d > 0 {
		precision = float64(c.TP) / float64(d)
	}
	if d := c.TP + c.FN; d > 0 {
		recall = float64(c.TP) / float64(d)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	accuracy := 0.0
	if total := c.TP + c.TN + c.FP + c.FN; total > 0 {
		accuracy = float64(c.TP+c.TN) / float64(total)
	}

	fmt.Fprintf(w, "\nDETECTION METRICS\n")
	fmt.Fprintf(w, "   Precision:  %.4f  (of flags, how many were actual fraud)\n", precision)
	fmt.Fprintf(w, "   Recall:     %.4f  (of fraud, how many were flagged)\n", recall)
	fmt.Fprintf(w, "   F1-Score:   %.4f\n", f1)
	fmt.Fprintf(w, "   Accuracy:   %.4f\n", accuracy)

	fmt.Fprintf(w, "\nPERFORMANCE\n")
	fmt.Fprintf(w, "   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avg := time.Duration(m.ProcessingTimeNs / m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Fprintf(w, "   Avg Latency:      %v\n", avg)
		fmt.Fprintf(w, "   Throughput:       %.0f rows/sec\n", tps)
	}
	fmt.Fprintln(w)
}
