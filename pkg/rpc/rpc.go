package rpc

import (
	"context"
	"fmt"
	"time"

	"walletchat/pkg/config"
	"walletchat/pkg/models"

	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

var CheckTimeout = 10 * time.Second

// Pinger is any service client able to verify reachability and credentials.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckWallet dials the wallet JSON-RPC endpoint and reads its chain ID and
// the accounts it already exposes. It never prompts for account access.
func CheckWallet(ctx context.Context, url string) models.EndpointResult {
	res := models.EndpointResult{Name: "wallet", URL: url}
	if url == "" {
		res.Status = StatusSkipped
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	start := time.Now()
	c, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return failed(res, err)
	}
	defer c.Close()

	id, err := ethclient.NewClient(c).ChainID(ctx)
	if err != nil {
		return failed(res, fmt.Errorf("failed to get ChainID: %w", err))
	}
	res.ChainID = id.Int64()
	res.LatencyMS = time.Since(start).Milliseconds()

	var accounts []string
	if err := c.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return failed(res, fmt.Errorf("failed to list accounts: %w", err))
	}
	res.Accounts = len(accounts)
	res.Status = StatusOK
	return res
}

// CheckService pings a service client and times the round trip.
func CheckService(ctx context.Context, name, url string, p Pinger) models.EndpointResult {
	res := models.EndpointResult{Name: name, URL: url}
	if p == nil {
		res.Status = StatusSkipped
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return failed(res, err)
	}
	res.LatencyMS = time.Since(start).Milliseconds()
	res.Status = StatusOK
	return res
}

func failed(res models.EndpointResult, err error) models.EndpointResult {
	res.Status = StatusError
	res.Error = err.Error()
	return res
}

// RunChecks validates cfg and then checks every configured endpoint. A nil
// pinger is reported as skipped, which is how invalid structure shows up.
func RunChecks(ctx context.Context, path string, cfg config.Config, completion, portfolio Pinger) models.TestReport {
	report := models.TestReport{ConfigPath: path, ValidStructure: true}
	if err := cfg.Validate(); err != nil {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, err.Error())
		report.Failed++
	}

	report.Endpoints = []models.EndpointResult{
		CheckWallet(ctx, cfg.WalletRPCURL),
		CheckService(ctx, "completion", cfg.CompletionBaseURL, completion),
		CheckService(ctx, "portfolio", cfg.PortfolioBaseURL, portfolio),
	}
	for _, e := range report.Endpoints {
		if e.Status == StatusError {
			report.Failed++
		}
	}
	return report
}
