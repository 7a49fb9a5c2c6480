// Package bankfeed talks to the external bank-data service over HTTP and
// adapts its wire format to domain types. Amounts arrive as decimal strings
// in major units and are converted exactly to minor units; no floats touch
// money anywhere in the conversion.
package bankfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsync-io/finsync/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client implements domain.BankDataProvider against the provider's REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a provider client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ─── Wire Types ─────────────────────────────────────────────────────────────

type wireBalance struct {
	AccountRef string `json:"account_ref"`
	Balance    string `json:"balance"`
	Currency   string `json:"currency"`
}

type wireTransaction struct {
	Ref         string    `json:"ref"`
	AccountRef  string    `json:"account_ref"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	Merchant    string    `json:"merchant"`
	Date        time.Time `json:"date"`
	Pending     bool      `json:"pending"`
}

type balancesResponse struct {
	Balances []wireBalance `json:"balances"`
}

type transactionsResponse struct {
	Transactions []wireTransaction `json:"transactions"`
}

// ─── API ────────────────────────────────────────────────────────────────────

// FetchBalances returns current balances for all accounts reachable with
// the credential.
func (c *Client) FetchBalances(ctx context.Context, credential string) ([]domain.ProviderBalance, error) {
	var resp balancesResponse
	if err := c.get(ctx, credential, "/v1/balances", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.ProviderBalance, 0, len(resp.Balances))
	for _, wb := range resp.Balances {
		minor, err := toMinor(wb.Balance, wb.Currency)
		if err != nil {
			return nil, fmt.Errorf("%w: balance for %s: %v", domain.ErrProvider, wb.AccountRef, err)
		}
		out = append(out, domain.ProviderBalance{
			AccountRef:   wb.AccountRef,
			BalanceMinor: minor,
			Currency:     wb.Currency,
		})
	}
	return out, nil
}

// FetchTransactions returns transactions dated within [from, to].
func (c *Client) FetchTransactions(ctx context.Context, credential string, from, to time.Time) ([]domain.ProviderTransaction, error) {
	query := url.Values{
		"from": {from.UTC().Format(time.RFC3339)},
		"to":   {to.UTC().Format(time.RFC3339)},
	}
	var resp transactionsResponse
	if err := c.get(ctx, credential, "/v1/transactions", query, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.ProviderTransaction, 0, len(resp.Transactions))
	for _, wt := range resp.Transactions {
		minor, err := toMinor(wt.Amount, wt.Currency)
		if err != nil {
			return nil, fmt.Errorf("%w: amount for %s: %v", domain.ErrProvider, wt.Ref, err)
		}
		out = append(out, domain.ProviderTransaction{
			Ref:         wt.Ref,
			AccountRef:  wt.AccountRef,
			AmountMinor: minor,
			Currency:    wt.Currency,
			Description: wt.Description,
			Merchant:    wt.Merchant,
			Date:        wt.Date,
			Pending:     wt.Pending,
		})
	}
	return out, nil
}

// get issues an authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, credential, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", domain.ErrProvider, err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", domain.ErrProvider, path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", domain.ErrProvider, err)
	}
	return nil
}

// toMinor converts a decimal major-unit amount string into minor units
// using the currency's fraction. "118.00" USD becomes 11800; "500" JPY
// stays 500. Amounts with more precision than the currency carries are
// rejected rather than rounded.
func toMinor(amount, currency string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %v", amount, err)
	}
	shifted := d.Shift(int32(domain.CurrencyFraction(currency)))
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-minor precision for %s", amount, currency)
	}
	return shifted.IntPart(), nil
}
