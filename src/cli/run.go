package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/patrickmn/go-cache"
	"github.com/spf13/cobra"

	"github.com/username/commissioncalc/backend/src/config"
	"github.com/username/commissioncalc/backend/src/models"
	"github.com/username/commissioncalc/backend/src/parsers"
	"github.com/username/commissioncalc/backend/src/services"
)

var (
	runRulesFile    string
	runPaymentsFile string
	runOutFile      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the commission flow over a payment file",
	Long: `Detects the amount, attorney and originator columns of every row in the
payment file, asks the model for each payment and writes the result CSV.
Without --rules the saved rules sheet is used.`,
	Args: cobra.NoArgs,
	RunE: runFlow,
}

func init() {
	runCmd.Flags().StringVar(&runRulesFile, "rules", "", "rules sheet file")
	runCmd.Flags().StringVar(&runPaymentsFile, "payments", "", "payment file (CSV, JSON or key: value text)")
	runCmd.Flags().StringVarP(&runOutFile, "out", "o", "", "write the result CSV here instead of stdout")
	_ = runCmd.MarkFlagRequired("payments")
	rootCmd.AddCommand(runCmd)
}

func runFlow(cmd *cobra.Command, _ []string) error {
	in := services.BatchInput{Mode: models.ModeFlow, UseSavedRules: true}
	if runRulesFile != "" {
		text, err := os.ReadFile(runRulesFile)
		if err != nil {
			return fmt.Errorf("failed to read rules file: %w", err)
		}
		in.RulesText = string(text)
		if in.RulesText == "" {
			return errors.New("rules file is empty")
		}
	}

	table, format, err := readPaymentFile(runPaymentsFile)
	if err != nil {
		return err
	}
	in.Rows = table.Records

	commission := services.NewCommissionService(chatModel, config.Cfg.Model.MaxTokens)
	batch := services.NewBatchService(commission, chatModel, rulesStore,
		cache.New(cache.NoExpiration, services.CacheCleanupInterval), nil)

	out, err := batch.Run(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("flow run failed: %w", err)
	}

	if runOutFile == "" {
		fmt.Fprint(cmd.OutOrStdout(), out.CSV)
	} else if err := os.WriteFile(runOutFile, []byte(out.CSV), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", runOutFile, err)
	}

	cmd.PrintErrf("%d rows (%s), %d failed, rules %s, batch %s\n",
		out.Report.ResultsCount(), format, out.Report.FailedCount(), shortVersion(out.Report.RulesVersion), out.Report.ID)
	return nil
}

func readPaymentFile(path string) (*parsers.Table, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read payment file: %w", err)
	}
	table, format, err := parsers.ParsePaymentFile(path, "", content)
	if err != nil {
		return nil, "", fmt.Errorf("error parsing payment file: %w", err)
	}
	return table, format, nil
}

func shortVersion(v string) string {
	if len(v) > 12 {
		return v[:12]
	}
	if v == "" {
		return "(none)"
	}
	return v
}
