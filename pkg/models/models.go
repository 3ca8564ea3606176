package models

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is a single immutable message in the conversation.
type ChatTurn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ToolCallDirective is the structured object embedded in a completion.
type ToolCallDirective struct {
	ID        int            `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ChainValue is one entry of a portfolio's per-chain distribution.
type ChainValue struct {
	Chain    string  `json:"chain"`
	ValueUSD float64 `json:"value_usd"`
}

func (c ChainValue) String() string {
	return fmt.Sprintf("%s: $%.2f", strings.ToUpper(c.Chain), c.ValueUSD)
}

// PortfolioSummary holds the display-ready portfolio figures for a wallet.
type PortfolioSummary struct {
	TotalValueUSD     string       `json:"total_value_usd"`
	TotalValue        float64      `json:"total_value"`
	ChainDistribution []ChainValue `json:"chain_distribution"`
	ChangeSummary     string       `json:"change_summary"`
}

// ChainDistributionLines renders the distribution in API order, one chain per line.
func (p PortfolioSummary) ChainDistributionLines() string {
	lines := make([]string, 0, len(p.ChainDistribution))
	for _, c := range p.ChainDistribution {
		lines = append(lines, c.String())
	}
	return strings.Join(lines, "\n")
}

// Transaction holds basic transaction details.
type Transaction struct {
	OperationType string `json:"operation_type"`
	Hash          string `json:"hash"`
	MinedAt       string `json:"mined_at,omitempty"`
}

// TransactionList is the recent non-trash history of a wallet.
type TransactionList struct {
	Address string        `json:"address"`
	Items   []Transaction `json:"items"`
}

// NotificationVariant mirrors the two toast styles of the UI.
type NotificationVariant int

const (
	VariantDefault NotificationVariant = iota
	VariantDestructive
)

// Notification is a transient message surfaced outside the conversation.
type Notification struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Variant     NotificationVariant `json:"variant"`
}

func (n Notification) IsError() bool {
	return n.Variant == VariantDestructive
}

func (n Notification) String() string {
	if n.Description == "" {
		return n.Title
	}
	return n.Title + ": " + n.Description
}

// EndpointResult holds test results for a configured endpoint.
type EndpointResult struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Status    string `json:"status"` // "ok", "error" or "skipped"
	ChainID   int64  `json:"chain_id,omitempty"`
	Accounts  int    `json:"accounts,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration test.
type TestReport struct {
	ConfigPath      string           `json:"config_path"`
	ValidStructure  bool             `json:"valid_structure"`
	StructureErrors []string         `json:"structure_errors,omitempty"`
	Endpoints       []EndpointResult `json:"endpoints,omitempty"`
	Failed          int              `json:"failed"`
}

// BalanceSample is one total portfolio value observed during the session.
type BalanceSample struct {
	Address    string    `json:"address"`
	TotalValue float64   `json:"total_value"`
	At         time.Time `json:"at"`
}
