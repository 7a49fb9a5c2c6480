package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/finsync-io/finsync/internal/domain"
)

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)

	accountsAddCmd.Flags().String("name", "", "account name")
	accountsAddCmd.Flags().String("type", "checking", "checking, savings, credit, investment or other")
	accountsAddCmd.Flags().String("currency", "USD", "ISO currency code")
	accountsAddCmd.Flags().Int64("balance", 0, "opening balance in minor units (cents)")
	accountsAddCmd.Flags().String("frequency", "manual", "sync frequency: manual, daily or weekly")
	accountsAddCmd.Flags().String("provider-ref", "", "account reference at the bank-data provider")
	accountsAddCmd.Flags().String("credential", "", "bank-data provider credential")
	accountsListCmd.Flags().Bool("all", false, "include deactivated accounts")
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE:  runAccountsList,
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	var accounts []domain.Account
	if all {
		accounts, err = db.ListAccounts(cliUser)
	} else {
		accounts, err = db.ListActiveAccounts(cliUser)
	}
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts. Use 'finsync accounts add' to create one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tBALANCE\tFREQUENCY\tHEALTH")
	for _, a := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Name, a.Type,
			domain.FormatAmount(a.BalanceMinor, a.Currency),
			a.SyncFrequency, a.ConnectionHealth)
	}
	return w.Flush()
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account",
	RunE:  runAccountsAdd,
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	accType, _ := cmd.Flags().GetString("type")
	currency, _ := cmd.Flags().GetString("currency")
	balance, _ := cmd.Flags().GetInt64("balance")
	frequency, _ := cmd.Flags().GetString("frequency")
	providerRef, _ := cmd.Flags().GetString("provider-ref")
	credential, _ := cmd.Flags().GetString("credential")

	freq, err := domain.ParseSyncFrequency(frequency)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now().UTC()
	account := domain.Account{
		ID:               uuid.NewString(),
		UserID:           cliUser,
		Name:             name,
		Type:             domain.AccountType(accType),
		Currency:         currency,
		BalanceMinor:     balance,
		ConnectionHealth: domain.HealthNotConnected,
		SyncFrequency:    freq,
		ProviderRef:      providerRef,
		Credential:       credential,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if account.Connected() {
		account.ConnectionHealth = domain.HealthHealthy
	}
	if err := account.Validate(); err != nil {
		return err
	}
	if err := db.InsertAccount(account); err != nil {
		return err
	}
	fmt.Printf("Created account %s (%s, %s)\n",
		account.ID, account.Name, domain.FormatAmount(account.BalanceMinor, account.Currency))
	return nil
}

var accountsRemoveCmd = &cobra.Command{
	Use:   "rm ACCOUNT_ID",
	Short: "Deactivate an account",
	Long:  `Deactivate an account. The account and its ledger are kept for audit; it just stops appearing in listings and sweeps.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsRemove,
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	account, err := db.GetAccount(args[0])
	if err != nil {
		return err
	}
	if account.UserID != cliUser {
		return domain.ErrNotOwned
	}
	if err := db.DeactivateAccount(account.ID); err != nil {
		return err
	}
	fmt.Printf("Deactivated account %s (%s)\n", account.ID, account.Name)
	return nil
}
