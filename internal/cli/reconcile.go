package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/finsync-io/finsync/internal/app/reconcile"
	"github.com/finsync-io/finsync/internal/domain"
	"github.com/finsync-io/finsync/internal/infra/sqlite"
)

var cliUser string

func init() {
	rootCmd.PersistentFlags().StringVar(&cliUser, "user", "local", "user the command acts as")

	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.AddCommand(reconcileHistoryCmd)
	reconcileCmd.AddCommand(reconcileAdjustCmd)

	reconcileHistoryCmd.Flags().Int("days", 30, "lookback window in days")
	reconcileAdjustCmd.Flags().Int64("amount", 0, "adjustment in minor units (cents); positive credits the account")
	reconcileAdjustCmd.Flags().String("description", "", "what the adjustment corrects")
}

// openDB opens the configured local database.
func openDB() (*sqlite.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	return sqlite.Open(cfg.Database.Path)
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [ACCOUNT_ID]",
	Short: "Check recorded balances against transaction history",
	Long: `Compare each account's recorded balance with the balance its
transaction history implies. With an account ID, one account is checked;
without, every active account is.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	cfg, _ := loadConfig()
	engine := reconcile.NewEngine(db, db,
		reconcile.WithTolerance(cfg.Reconciliation.ToleranceMinor))

	if len(args) == 1 {
		report, err := engine.Reconcile(args[0], cliUser)
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	}

	batch, err := engine.ReconcileAll(cliUser)
	if err != nil {
		return err
	}
	fmt.Printf("Checked %d accounts: %d reconciled, %d with discrepancies, %d failed\n\n",
		batch.TotalAccounts, batch.Reconciled, batch.WithDiscrepancy, batch.Failed)
	for _, slot := range batch.Results {
		if slot.Err != "" {
			fmt.Printf("  %s: ERROR: %s\n", slot.AccountName, slot.Err)
			continue
		}
		printReport(slot.Report)
	}
	return nil
}

func printReport(r *domain.ReconciliationReport) {
	state := "OK"
	if !r.IsReconciled {
		state = "DISCREPANCY"
	}
	fmt.Printf("  %s [%s]\n", r.AccountName, state)
	fmt.Printf("    recorded   %s\n", domain.FormatAmount(r.RecordedMinor, r.Currency))
	fmt.Printf("    calculated %s (%d transactions)\n",
		domain.FormatAmount(r.CalculatedMinor, r.Currency), r.TransactionCount)
	if !r.IsReconciled {
		fmt.Printf("    gap        %s\n", domain.FormatAmount(r.DiscrepancyMinor, r.Currency))
		for _, s := range r.Suggestions {
			fmt.Printf("    - %s\n", s)
		}
	}
	fmt.Println()
}

var reconcileAdjustCmd = &cobra.Command{
	Use:   "adjust ACCOUNT_ID",
	Short: "Record a manual reconciliation adjustment",
	Args:  cobra.ExactArgs(1),
	RunE:  runReconcileAdjust,
}

func runReconcileAdjust(cmd *cobra.Command, args []string) error {
	amount, _ := cmd.Flags().GetInt64("amount")
	description, _ := cmd.Flags().GetString("description")

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	writer := reconcile.NewWriter(db, db)
	entry, err := writer.CreateEntry(args[0], amount, description, cliUser)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded adjustment %s: %s\n",
		entry.ID, domain.FormatAmount(entry.AmountMinor, entry.Currency))
	return nil
}

var reconcileHistoryCmd = &cobra.Command{
	Use:   "history ACCOUNT_ID",
	Short: "List past reconciliation adjustments",
	Args:  cobra.ExactArgs(1),
	RunE:  runReconcileHistory,
}

func runReconcileHistory(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	writer := reconcile.NewWriter(db, db)
	entries, err := writer.History(args[0], cliUser, days)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No reconciliation entries in the last %d days\n", days)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tAMOUNT\tDESCRIPTION\tBY")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Date.Format("2006-01-02"),
			domain.FormatAmount(e.AmountMinor, e.Currency),
			e.Description, e.CreatedBy)
	}
	return w.Flush()
}
