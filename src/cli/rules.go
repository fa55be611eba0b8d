package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/username/commissioncalc/backend/src/services"
)

var (
	rulesHistoryLimit int
	rulesGetVersion   bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the saved rules sheet",
}

var rulesGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the saved rules sheet",
	Args:  cobra.NoArgs,
	RunE:  runRulesGet,
}

var rulesSetCmd = &cobra.Command{
	Use:   "set FILE",
	Short: "Replace the saved rules sheet with FILE (\"-\" reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesSet,
}

var rulesHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List earlier rules versions (sqlite store only)",
	Args:  cobra.NoArgs,
	RunE:  runRulesHistory,
}

func init() {
	rulesGetCmd.Flags().BoolVar(&rulesGetVersion, "version", false, "print only the version hash")
	rulesHistoryCmd.Flags().IntVarP(&rulesHistoryLimit, "limit", "n", 20, "maximum number of versions")
	rulesCmd.AddCommand(rulesGetCmd, rulesSetCmd, rulesHistoryCmd)
	rootCmd.AddCommand(rulesCmd)
}

func rulesService() services.RulesService {
	return services.NewRulesService(rulesStore)
}

func runRulesGet(cmd *cobra.Command, _ []string) error {
	snap, err := rulesService().Current(cmd.Context())
	if err != nil {
		return err
	}
	if rulesGetVersion {
		fmt.Fprintln(cmd.OutOrStdout(), snap.Version)
		return nil
	}
	if snap.Empty() {
		cmd.PrintErrln("No rules saved.")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), snap.Text)
	if snap.Text[len(snap.Text)-1] != '\n' {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func runRulesSet(cmd *cobra.Command, args []string) error {
	var (
		text []byte
		err  error
	)
	if args[0] == "-" {
		text, err = io.ReadAll(cmd.InOrStdin())
	} else {
		text, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read rules: %w", err)
	}
	if len(text) == 0 {
		return errors.New("rules file is empty")
	}

	snap, err := rulesService().Save(cmd.Context(), string(text))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved rules version %s\n", snap.Version)
	return nil
}

func runRulesHistory(cmd *cobra.Command, _ []string) error {
	history, err := rulesService().History(cmd.Context(), rulesHistoryLimit)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No rules versions found.")
		return nil
	}
	for _, snap := range history {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s  %d bytes\n", snap.UpdatedAt.Format("2006-01-02 15:04:05"), shortVersion(snap.Version), len(snap.Text))
	}
	return nil
}
