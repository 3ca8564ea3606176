package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"walletchat/pkg/models"
	"walletchat/pkg/utils"

	"github.com/tidwall/gjson"
)

// PageSize caps how many transactions are requested and kept.
const PageSize = 100

const (
	portfolioQuery    = "currency=usd"
	transactionsQuery = "currency=usd&page[size]=100&filter[trash]=only_non_trash"
	noChangesSummary  = "No recent changes."
	maxErrorBody      = 512
)

var (
	ErrInvalidResponse = errors.New("invalid response structure")
	ErrMissingData     = errors.New("response has no data")
)

// APIError is returned when the portfolio API call fails or its payload is
// not shaped as expected.
type APIError struct {
	Op         string
	StatusCode int // 0 when no HTTP response was received or the status was 2xx
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("portfolio %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("portfolio %s failed: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Config is the subset of settings the client needs.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the Zerion wallet endpoints.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("portfolio base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("portfolio API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}, nil
}

func (c *Client) get(ctx context.Context, op, path, rawQuery string) ([]byte, error) {
	u := c.baseURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("authorization", "Basic "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(snippet)))}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	return body, nil
}

func walletPath(address, resource string) string {
	return fmt.Sprintf("/wallets/%s/%s", url.PathEscape(address), resource)
}

// GetBalance fetches and summarizes the wallet's portfolio.
func (c *Client) GetBalance(ctx context.Context, address string) (models.PortfolioSummary, error) {
	body, err := c.get(ctx, "balance", walletPath(address, "portfolio"), portfolioQuery)
	if err != nil {
		c.logger.Error("error fetching wallet data", "address", address, "error", err)
		return models.PortfolioSummary{}, err
	}
	summary, err := ParsePortfolio(body)
	if err != nil {
		c.logger.Error("error fetching wallet data", "address", address, "error", err)
		return models.PortfolioSummary{}, err
	}
	return summary, nil
}

// ParsePortfolio turns a portfolio payload into a summary. Chains keep the
// payload's key order.
func ParsePortfolio(body []byte) (models.PortfolioSummary, error) {
	if !gjson.ValidBytes(body) {
		return models.PortfolioSummary{}, &APIError{Op: "balance", Err: fmt.Errorf("%w: malformed JSON", ErrInvalidResponse)}
	}
	attrs := gjson.GetBytes(body, "data.attributes")
	if !attrs.IsObject() {
		return models.PortfolioSummary{}, &APIError{Op: "balance", Err: ErrInvalidResponse}
	}

	total := attrs.Get("total.positions").Float()
	summary := models.PortfolioSummary{
		TotalValue:    total,
		TotalValueUSD: utils.FormatUSD(total),
		ChangeSummary: noChangesSummary,
	}

	attrs.Get("positions_distribution_by_chain").ForEach(func(key, value gjson.Result) bool {
		summary.ChainDistribution = append(summary.ChainDistribution, models.ChainValue{
			Chain:    key.String(),
			ValueUSD: value.Float(),
		})
		return true
	})

	// Zerion sends null for both fields when there is no 24h history.
	if abs := attrs.Get("changes.absolute_1d"); abs.Type == gjson.Number {
		summary.ChangeSummary = fmt.Sprintf("📈 24h Change: $%.2f (%.2f%%)",
			abs.Float(),
			attrs.Get("changes.percent_1d").Float())
	}
	return summary, nil
}

// GetTransactions returns up to PageSize non-trash transactions in API order.
// It never fails: any error is logged and reported as a nil list.
func (c *Client) GetTransactions(ctx context.Context, address string) *models.TransactionList {
	list, err := c.FetchTransactions(ctx, address)
	if err != nil {
		c.logger.Error("error getting wallet transactions", "address", address, "error", err)
		return nil
	}
	return list
}

// FetchTransactions is GetTransactions with the error kept.
func (c *Client) FetchTransactions(ctx context.Context, address string) (*models.TransactionList, error) {
	body, err := c.get(ctx, "transactions", walletPath(address, "transactions/"), transactionsQuery)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []struct {
			Attributes struct {
				OperationType string `json:"operation_type"`
				Hash          string `json:"hash"`
				MinedAt       string `json:"mined_at"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &APIError{Op: "transactions", Err: fmt.Errorf("%w: %v", ErrInvalidResponse, err)}
	}
	if payload.Data == nil {
		return nil, &APIError{Op: "transactions", Err: ErrMissingData}
	}

	list := &models.TransactionList{Address: address, Items: make([]models.Transaction, 0, len(payload.Data))}
	for _, d := range payload.Data {
		if len(list.Items) == PageSize {
			break
		}
		list.Items = append(list.Items, models.Transaction{
			OperationType: d.Attributes.OperationType,
			Hash:          d.Attributes.Hash,
			MinedAt:       d.Attributes.MinedAt,
		})
	}
	return list, nil
}

// Ping checks reachability and credentials against the chains listing.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "ping", "/chains/", "")
	return err
}
