package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/fraudguard/internal/decision"
	"github.com/opensource-finance/fraudguard/internal/domain"
)

// readInput parses a transaction from a JSON literal, "@path" or "-" for
// stdin.
func readInput(arg string, stdin io.Reader) (domain.TransactionInput, error) {
	var data []byte
	switch {
	case arg == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		data = b
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		data = b
	default:
		data = []byte(arg)
	}

	in := domain.TransactionInput{}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return in, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// scoreResult is the output of the score command.
type scoreResult struct {
	Domain      domain.DomainID    `json:"domain"`
	ModelKind   string             `json:"modelKind"`
	Probability float64            `json:"probability"`
	Action      domain.Action      `json:"action"`
	Advice      []string           `json:"advice"`
	Rules       domain.ScoreResult `json:"rules"`
}

func scoreCmd() *cobra.Command {
	var (
		flags datasetFlags
		input string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Train on a dataset, then score one transaction with the model and the rules",
		Long: `Models are never persisted, so score trains a fresh model on the selected
dataset before scoring. The input is a JSON object given inline, as @file
or on stdin with "-".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := readInput(input, cmd.InOrStdin())
			if err != nil {
				return err
			}

			m, _, _, err := flags.fit(cmd.Context())
			if err != nil {
				return err
			}

			prob, err := m.PredictSingle(in)
			if err != nil {
				return err
			}
			advice, err := m.GenerateAdvice(in, prob)
			if err != nil {
				return err
			}

			id := m.Domain().ID
			return printJSON(cmd.OutOrStdout(), scoreResult{
				Domain:      id,
				ModelKind:   string(m.Kind()),
				Probability: prob,
				Action:      decision.ActionForProbability(prob),
				Advice:      advice,
				Rules:       decision.Analyze(id, in),
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&input, "input", "i", "-", "transaction JSON, @file or - for stdin")
	return cmd
}
