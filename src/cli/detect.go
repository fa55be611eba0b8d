package cli

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/username/commissioncalc/backend/src/models"
	"github.com/username/commissioncalc/backend/src/processors"
)

var (
	detectPaymentsFile string
	detectExact        bool
	detectJSON         bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Show the fields detected in each payment row",
	Long: `Parses the payment file and prints the amount, attorney, originator and
origination percent found in every row, with the columns they came from.
The model is never called.`,
	Args: cobra.NoArgs,
	// Detection needs neither the model nor the rules store.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runDetect,
}

func init() {
	detectCmd.Flags().StringVar(&detectPaymentsFile, "payments", "", "payment file (CSV, JSON or key: value text)")
	detectCmd.Flags().BoolVar(&detectExact, "exact", false, "use the fixed batch column names instead of the heuristics")
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "output detections as JSON")
	_ = detectCmd.MarkFlagRequired("payments")
	rootCmd.AddCommand(detectCmd)
}

type rowDetection struct {
	Row                   int      `json:"row"`
	Calculable            bool     `json:"calculable"`
	OwnOriginationPercent *float64 `json:"own_origination_percent,omitempty"`
	models.DetectedFields

	hasAmount bool
}

func runDetect(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	table, format, err := readPaymentFile(detectPaymentsFile)
	if err != nil {
		return err
	}

	detector := processors.NewHeuristicDetector()
	if detectExact {
		detector = processors.NewExactDetector()
	}

	detections := make([]rowDetection, 0, len(table.Records))
	for i, row := range table.Records {
		fields := detector.Detect(row)
		d := rowDetection{Row: i + 2, Calculable: processors.IsCalculable(fields), DetectedFields: fields}
		if fields.HasOwnOriginationPercent() {
			pct := fields.OwnOriginationPercent
			d.OwnOriginationPercent = &pct
		}
		d.hasAmount = !math.IsNaN(fields.Amount) && !math.IsInf(fields.Amount, 0)
		if !d.hasAmount {
			d.Amount = 0
		}
		detections = append(detections, d)
	}

	if detectJSON {
		data, err := json.MarshalIndent(detections, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal detections: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(detections) == 0 {
		fmt.Fprintln(out, "No rows found.")
		return nil
	}
	fmt.Fprintf(out, "Format: %s, %d rows\n\n", format, len(detections))
	for _, d := range detections {
		status := "ok"
		if !d.Calculable {
			status = "not calculable"
		}
		fmt.Fprintf(out, "  row %d (%s)\n", d.Row, status)
		fmt.Fprintf(out, "      amount:     %s%s\n", amountText(d), column(d.AmountColumn))
		fmt.Fprintf(out, "      user:       %s%s\n", d.User, column(d.UserColumn))
		fmt.Fprintf(out, "      originator: %s%s\n", d.Originator, column(d.OriginatorColumn))
		if d.OwnOriginationPercent != nil {
			fmt.Fprintf(out, "      own %%:      %s%s\n", processors.FormatNumber(*d.OwnOriginationPercent), column(d.OwnOriginationPercentColumn))
		}
		if d.Context != "" {
			fmt.Fprintf(out, "      context:    %s%s\n", d.Context, column(d.ContextColumn))
		}
	}
	return nil
}

func amountText(d rowDetection) string {
	if !d.hasAmount {
		return "-"
	}
	return processors.FormatNumber(d.Amount)
}

func column(name string) string {
	if name == "" {
		return ""
	}
	return fmt.Sprintf("  [%s]", name)
}
