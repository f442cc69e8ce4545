package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/fraudguard/internal/dataset"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/model"
	"github.com/opensource-finance/fraudguard/internal/repository"
	"github.com/opensource-finance/fraudguard/internal/schema"
)

// datasetFlags selects a domain and its data for the offline commands.
type datasetFlags struct {
	domain    string
	file      string
	modelType string
}

func (f *datasetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.domain, "domain", "d", "", "domain (CreditCard, LoanApplication, MobileTransaction)")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "CSV or XLSX dataset; the domain sample is used when empty")
	cmd.Flags().StringVarP(&f.modelType, "model", "m", "Random Forest", "model type (Random Forest, Gradient Boosting)")
	_ = cmd.MarkFlagRequired("domain")
}

// load resolves the domain and reads the dataset. Explicit files are read
// in full; samples are capped by training.sampleRowLimit.
func (f *datasetFlags) load() (*domain.DomainConfig, *dataset.Table, string, error) {
	id, err := domain.ParseDomainID(f.domain)
	if err != nil {
		return nil, nil, "", err
	}
	sc, err := schema.Get(id)
	if err != nil {
		return nil, nil, "", err
	}

	if f.file != "" {
		t, err := dataset.LoadFile(f.file, 0)
		return sc, t, f.file, err
	}
	name, err := dataset.SampleFile(id)
	if err != nil {
		return nil, nil, "", err
	}
	t, err := dataset.LoadSample(cfg.Training.SampleDir, id, cfg.Training.SampleRowLimit)
	return sc, t, "sample:" + name, err
}

// fit trains a fresh pipeline on the selected dataset.
func (f *datasetFlags) fit(ctx context.Context) (*model.TrainedModel, *domain.Metrics, *domain.TrainingRun, error) {
	sc, t, source, err := f.load()
	if err != nil {
		return nil, nil, nil, err
	}
	kind, err := model.ParseKind(f.modelType)
	if err != nil {
		return nil, nil, nil, err
	}

	slog.Info("training",
		"domain", sc.ID,
		"model_kind", kind,
		"source", source,
		"rows", t.Len(),
	)

	run := &domain.TrainingRun{
		ID:        uuid.New().String(),
		SessionID: "cli",
		Domain:    sc.ID,
		ModelKind: string(kind),
		Rows:      t.Len(),
		CreatedAt: time.Now().UTC(),
	}
	start := time.Now()

	p, err := model.NewPipeline(sc, kind, model.OptionsFromConfig(cfg.Training))
	if err != nil {
		return nil, nil, nil, err
	}
	m, metrics, err := p.Train(ctx, t)
	run.DurationMs = time.Since(start).Milliseconds()
	run.Metrics = metrics
	if err != nil {
		run.Error = err.Error()
	}
	return m, metrics, run, err
}

func trainCmd() *cobra.Command {
	var (
		flags  datasetFlags
		top    int
		record bool
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model and print its held-out metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, metrics, run, err := flags.fit(cmd.Context())
			if record && run != nil {
				if recErr := recordRun(cmd.Context(), run); recErr != nil {
					slog.Error("failed to record training run", "error", recErr)
				}
			}
			if err != nil {
				if domain.IsDataError(err) {
					return fmt.Errorf("data error: %w", err)
				}
				return err
			}
			printResults(cmd.OutOrStdout(), metrics, top, time.Duration(run.DurationMs)*time.Millisecond)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&top, "top", 10, "number of features to rank")
	cmd.Flags().BoolVar(&record, "record", false, "save the run to the configured repository")
	return cmd
}

func recordRun(ctx context.Context, run *domain.TrainingRun) error {
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.SaveTrainingRun(ctx, run); err != nil {
		return err
	}
	slog.Info("training run recorded", "run_id", run.ID, "driver", cfg.Repository.Driver)
	return nil
}

func printResults(w io.Writer, m *domain.Metrics, top int, duration time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "TRAINING RESULTS")
	fmt.Fprintln(w, "================")

	fmt.Fprintf(w, "\nMODEL\n")
	fmt.Fprintf(w, "   Architecture:  %s\n", m.ModelKind)
	fmt.Fprintf(w, "   Threshold:     %.2f\n", m.Threshold)
	fmt.Fprintf(w, "   Train rows:    %d\n", m.TrainRows)
	fmt.Fprintf(w, "   Test rows:     %d\n", m.TestRows)
	fmt.Fprintf(w, "   Duration:      %v\n", duration)

	printConfusion(w, m.Confusion, "FRAUD", "LEGIT")

	fmt.Fprintf(w, "\nSCORES\n")
	fmt.Fprintf(w, "   Precision:  %.4f\n", m.Precision)
	fmt.Fprintf(w, "   Recall:     %.4f\n", m.Recall)
	fmt.Fprintf(w, "   F1:         %.4f\n", m.F1)

	fmt.Fprintf(w, "\nTOP FEATURES\n")
	for i, fi := range m.TopFeatures(top) {
		fmt.Fprintf(w, "   %2d. %-28s %.4f\n", i+1, fi.Feature, fi.Importance)
	}

	fmt.Fprintf(w, "\nLABELS\n")
	fmt.Fprintf(w, "   Fraud rows:  %d\n", m.Debug.ClassDistribution[1])
	fmt.Fprintf(w, "   Legit rows:  %d\n", m.Debug.ClassDistribution[0])
	fmt.Fprintln(w)
}

func printConfusion(w io.Writer, c domain.Confusion, pos, neg string) {
	fmt.Fprintf(w, "\nCONFUSION MATRIX\n")
	fmt.Fprintln(w, "                        Predicted")
	fmt.Fprintf(w, "                    %-8s    %-8s\n", pos, neg)
	fmt.Fprintln(w, "              +----------+----------+")
	fmt.Fprintf(w, "   Actual  F  | %8d | %8d |  (TP, FN)\n", c.TP, c.FN)
	fmt.Fprintln(w, "              +----------+----------+")
	fmt.Fprintf(w, "          NF  | %8d | %8d |  (FP, TN)\n", c.FP, c.TN)
	fmt.Fprintln(w, "              +----------+----------+")
}
