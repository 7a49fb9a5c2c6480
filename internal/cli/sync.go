package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/finsync-io/finsync/internal/app/syncmon"
	"github.com/finsync-io/finsync/internal/app/syncsched"
	"github.com/finsync-io/finsync/internal/domain"
	"github.com/finsync-io/finsync/internal/infra/bankfeed"
)

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncFrequencyCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync accounts with their bank-data provider",
}

// newScheduler builds a scheduler for one-shot CLI use. The sweep loop is
// never started here.
func newScheduler() (*syncsched.Scheduler, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	provider := bankfeed.NewClient(cfg.Provider.BaseURL,
		bankfeed.WithTimeout(cfg.Provider.TimeoutDuration()))
	s := syncsched.New(db, db, provider, syncsched.Config{
		ImportLookback: cfg.Sync.ImportLookback(),
	})
	return s, func() { db.Close() }, nil
}

var syncNowCmd = &cobra.Command{
	Use:   "now ACCOUNT_ID",
	Short: "Sync one account immediately",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncNow,
}

func runSyncNow(cmd *cobra.Command, args []string) error {
	scheduler, closeDB, err := newScheduler()
	if err != nil {
		return err
	}
	defer closeDB()

	outcome, err := scheduler.ImmediateSync(context.Background(), args[0], cliUser)
	if err != nil {
		return err
	}
	if !outcome.Success {
		fmt.Printf("Sync failed: %s\n", outcome.Message)
		return nil
	}
	r := outcome.Result
	fmt.Printf("Synced: balance %s -> %s (%+d minor units), %d transactions imported\n",
		domain.FormatAmount(r.OldBalanceMinor, r.Currency),
		domain.FormatAmount(r.NewBalanceMinor, r.Currency),
		r.ChangeMinor, r.TransactionsImported)
	return nil
}

var syncStatusCmd = &cobra.Command{
	Use:   "status [ACCOUNT_ID]",
	Short: "Show sync health",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSyncStatus,
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	monitor := syncmon.NewMonitor(db)

	if len(args) == 1 {
		status, err := monitor.AccountStatus(args[0], cliUser)
		if err != nil {
			return err
		}
		printSyncStatus(*status)
		return nil
	}

	overview, err := monitor.UserOverview(cliUser)
	if err != nil {
		return err
	}
	fmt.Printf("%d accounts: %d healthy, %d degraded, %d failed, %d not connected\n\n",
		overview.Total, overview.Healthy, overview.Degraded, overview.Failed, overview.NotConnected)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tHEALTH\tFREQUENCY\tLAST SUCCESS")
	for _, s := range overview.Accounts {
		last := "never"
		if s.LastSuccessfulSyncAt != nil {
			last = s.LastSuccessfulSyncAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.AccountID, s.AccountName, s.Health, s.Frequency, last)
	}
	return w.Flush()
}

func printSyncStatus(s domain.SyncStatus) {
	fmt.Printf("%s (%s)\n", s.AccountName, s.AccountID)
	fmt.Printf("  health     %s\n", s.Health)
	fmt.Printf("  frequency  %s\n", s.Frequency)
	if s.LastSuccessfulSyncAt != nil {
		fmt.Printf("  last sync  %s\n", s.LastSuccessfulSyncAt.Format("2006-01-02 15:04"))
	} else {
		fmt.Printf("  last sync  never\n")
	}
	if s.NextScheduledSync != nil {
		fmt.Printf("  next sync  %s\n", s.NextScheduledSync.Format("2006-01-02 15:04"))
	}
	if s.LastSyncError != "" {
		fmt.Printf("  last error %s\n", s.LastSyncError)
	}
	for _, rec := range s.Recommendations {
		fmt.Printf("  - %s\n", rec)
	}
}

var syncFrequencyCmd = &cobra.Command{
	Use:   "frequency ACCOUNT_ID FREQUENCY",
	Short: "Set an account's sync frequency (manual, daily or weekly)",
	Args:  cobra.ExactArgs(2),
	RunE:  runSyncFrequency,
}

func runSyncFrequency(cmd *cobra.Command, args []string) error {
	scheduler, closeDB, err := newScheduler()
	if err != nil {
		return err
	}
	defer closeDB()

	freq, err := scheduler.UpdateFrequency(args[0], cliUser, args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Sync frequency set to %s\n", freq)
	return nil
}
