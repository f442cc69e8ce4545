package main

import (
	"github.com/spf13/cobra"

	"github.com/opensource-finance/fraudguard/internal/dataset"
	"github.com/opensource-finance/fraudguard/internal/decision"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/normalize"
)

func analyzeCmd() *cobra.Command {
	var (
		domainName string
		input      string
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the rule scorecard on one transaction",
		Long: `Runs the rule pathway of the named domain. Unknown domain names score 0
under the "Fraud Risk" default pathway.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := readInput(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), decision.AnalyzeTransaction(in, domainName))
		},
	}
	cmd.Flags().StringVarP(&domainName, "domain", "d", "", "domain name or label")
	cmd.Flags().StringVarP(&input, "input", "i", "-", "transaction JSON, @file or - for stdin")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func normalizeCmd() *cobra.Command {
	var (
		domainName string
		file       string
		rows       int
	)
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Map a dataset's headers onto a domain and report its capabilities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := domain.ParseDomainID(domainName)
			if err != nil {
				return err
			}
			catalog, err := normalize.CatalogFor(id)
			if err != nil {
				return err
			}
			t, err := dataset.LoadFile(file, 0)
			if err != nil {
				return err
			}
			report, normalized, err := normalize.Report(t, catalog)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"report":  report,
				"preview": dataset.NewPreview(normalized, rows),
			})
		},
	}
	cmd.Flags().StringVarP(&domainName, "domain", "d", "", "domain (CreditCard, LoanApplication, MobileTransaction)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV or XLSX dataset")
	cmd.Flags().IntVar(&rows, "rows", 5, "preview rows")
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
