package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"walletchat/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newWalletServer(t *testing.T, accounts []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var result interface{}
		switch req.Method {
		case "eth_chainId":
			result = "0x1"
		case "eth_accounts":
			result = accounts
		case "eth_requestAccounts":
			t.Errorf("checks must not prompt the wallet")
			result = accounts
		default:
			result = "0x0"
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func TestCheckWallet_Integration(t *testing.T) {
	server := newWalletServer(t, []string{"0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"})
	defer server.Close()

	res := CheckWallet(context.Background(), server.URL)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, int64(1), res.ChainID)
	assert.Equal(t, 1, res.Accounts)
	assert.Empty(t, res.Error)
}

func TestCheckWallet_Skipped(t *testing.T) {
	res := CheckWallet(context.Background(), "")
	assert.Equal(t, StatusSkipped, res.Status)
}

func TestCheckWallet_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	res := CheckWallet(context.Background(), server.URL)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "ChainID")
}

func TestCheckService(t *testing.T) {
	ok := CheckService(context.Background(), "completion", "http://x", pingerFunc(func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}))
	assert.Equal(t, StatusOK, ok.Status)
	assert.Equal(t, "completion", ok.Name)

	bad := CheckService(context.Background(), "portfolio", "http://x", pingerFunc(func(ctx context.Context) error {
		return errors.New("401 unauthorized")
	}))
	assert.Equal(t, StatusError, bad.Status)
	assert.Equal(t, "401 unauthorized", bad.Error)

	skipped := CheckService(context.Background(), "portfolio", "", nil)
	assert.Equal(t, StatusSkipped, skipped.Status)
}

func TestRunChecks(t *testing.T) {
	server := newWalletServer(t, []string{})
	defer server.Close()

	okPinger := pingerFunc(func(ctx context.Context) error { return nil })

	t.Run("All Good", func(t *testing.T) {
		cfg := config.Default()
		cfg.CompletionBaseURL = "http://llm"
		cfg.CompletionAPIKey = "k"
		cfg.PortfolioAPIKey = "k"
		cfg.WalletRPCURL = server.URL

		report := RunChecks(context.Background(), "/tmp/cfg.json", cfg, okPinger, okPinger)
		assert.True(t, report.ValidStructure)
		assert.Equal(t, 0, report.Failed)
		require.Len(t, report.Endpoints, 3)
		assert.Equal(t, "wallet", report.Endpoints[0].Name)
		assert.Equal(t, 0, report.Endpoints[0].Accounts)
	})

	t.Run("Missing Values", func(t *testing.T) {
		report := RunChecks(context.Background(), "/tmp/cfg.json", config.Default(), nil, nil)
		assert.False(t, report.ValidStructure)
		require.Len(t, report.StructureErrors, 1)
		assert.Contains(t, report.StructureErrors[0], "completion_api_key")
		assert.Equal(t, 1, report.Failed)
		for _, e := range report.Endpoints {
			assert.Equal(t, StatusSkipped, e.Status)
		}
	})

	t.Run("Endpoint Failure", func(t *testing.T) {
		cfg := config.Default()
		cfg.CompletionBaseURL = "http://llm"
		cfg.CompletionAPIKey = "k"
		cfg.PortfolioAPIKey = "k"
		failing := pingerFunc(func(ctx context.Context) error { return errors.New("down") })

		report := RunChecks(context.Background(), "", cfg, okPinger, failing)
		assert.True(t, report.ValidStructure)
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, StatusError, report.Endpoints[2].Status)
	})
}
