package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"walletchat/pkg/assistant"
	"walletchat/pkg/config"
	"walletchat/pkg/conversation"
	"walletchat/pkg/llm"
	"walletchat/pkg/models"
	"walletchat/pkg/portfolio"
	"walletchat/pkg/rpc"
	"walletchat/pkg/server"
	"walletchat/pkg/tui"
	"walletchat/pkg/wallet"
	"walletchat/pkg/watcher"
)

// Version should be set during build
var Version = "dev"

func main() {
	testFlag := flag.Bool("t", false, "Test configuration and exit")
	testLongFlag := flag.Bool("test", false, "Test configuration and exit")
	jsonFlag := flag.Bool("json", false, "Output test results as JSON")
	configFlag := flag.String("config", "", "Path to configuration file")
	envFlag := flag.String("env", ".env", "Path to .env file")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	serverFlag := flag.Bool("server", false, "Run in headless server mode")
	portFlag := flag.Int("port", 8080, "Port for API server (0 disables it in TUI mode)")
	addressFlag := flag.String("address", "", "Watch-only wallet address used instead of a wallet RPC")
	initFlag := flag.Bool("init", false, "Write the effective configuration to the config file and exit")
	restoreFlag := flag.Bool("restore", false, "Restore the last configuration backup and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("walletchat version %s\n", Version)
		os.Exit(0)
	}

	cfgInput := *configFlag
	if cfgInput == "" && len(flag.Args()) > 0 {
		cfgInput = flag.Args()[0]
	}
	path, err := config.GetConfigPath(cfgInput)
	if err != nil {
		fmt.Printf("Error determining config path: %v\n", err)
		os.Exit(1)
	}

	if *restoreFlag {
		if err := config.RestoreLastBackup(path); err != nil {
			fmt.Printf("Failed to restore backup: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Restored last backup to %s\n", path)
		os.Exit(0)
	}

	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		fmt.Printf("Error loading config from %s: %v\n", path, err)
		os.Exit(1)
	}
	if err := config.LoadEnv(&cfg, *envFlag); err != nil {
		fmt.Printf("Error loading environment: %v\n", err)
		os.Exit(1)
	}

	if *initFlag {
		if err := config.SaveConfig(cfg, path); err != nil {
			fmt.Printf("Failed to save config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", path)
		os.Exit(0)
	}

	logger, closeLog, err := newLogger(cfg.LogFile)
	if err != nil {
		fmt.Printf("Warning: logging disabled: %v\n", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	completions, completionErr := llm.NewClient(llm.Config{
		BaseURL: cfg.CompletionBaseURL,
		APIKey:  cfg.CompletionAPIKey,
		Model:   cfg.CompletionModel,
		Timeout: cfg.RequestTimeout(),
	}, logger)
	zerion, portfolioErr := portfolio.NewClient(portfolio.Config{
		BaseURL: cfg.PortfolioBaseURL,
		APIKey:  cfg.PortfolioAPIKey,
		Timeout: cfg.RequestTimeout(),
	}, logger)

	if *testFlag || *testLongFlag {
		var completionPinger, portfolioPinger rpc.Pinger
		if completionErr == nil {
			completionPinger = completions
		}
		if portfolioErr == nil {
			portfolioPinger = zerion
		}

		if !*jsonFlag {
			fmt.Printf("Testing configuration at: %s\n", path)
		}
		report := rpc.RunChecks(ctx, path, cfg, completionPinger, portfolioPinger)
		if *jsonFlag {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(report)
		} else {
			printReport(os.Stdout, report)
		}
		if report.Failed > 0 {
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Printf("Set the values in %s or the environment, or run with -init to write a template.\n", path)
		os.Exit(1)
	}
	if completionErr != nil {
		fmt.Printf("Error: %v\n", completionErr)
		os.Exit(1)
	}
	if portfolioErr != nil {
		fmt.Printf("Error: %v\n", portfolioErr)
		os.Exit(1)
	}

	provider, closeProvider, err := newProvider(cfg, *addressFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer closeProvider()

	session := wallet.NewSession(provider, logger)
	store := conversation.NewStore()
	defer store.Reset()
	history := watcher.NewWatcher(watcher.DefaultCapacity)

	a := assistant.New(session, store, completions, zerion, assistant.Options{
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         logger,
		History:        history,
	})
	srv := server.NewServer(a, history, logger)

	if *serverFlag {
		fmt.Printf("Running in server mode on port %d...\n", *portFlag)
		if err := srv.Start(ctx, *portFlag); err != nil {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *portFlag > 0 {
		go func() {
			if err := srv.Start(ctx, *portFlag); err != nil {
				logger.Error("server error", "error", err)
			}
		}()
	}

	if err := tui.Start(ctx, a, history, cfg.StatusTimeout(), Version); err != nil && ctx.Err() == nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}

// newLogger writes JSON logs to path, or to the default log file. The TUI owns
// the terminal, so logs never go to stdout. On failure a discarding logger is
// returned along with the error.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		path = config.DefaultLogPath()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), func() {}, err
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return logger.With("version", Version), func() { _ = f.Close() }, nil
}

// newProvider picks the wallet: a watch-only address wins over the wallet RPC.
// A nil provider means no wallet is available.
func newProvider(cfg config.Config, address string) (wallet.Provider, func(), error) {
	if address != "" {
		p, err := wallet.NewStaticProvider(address)
		if err != nil {
			return nil, func() {}, err
		}
		return p, func() {}, nil
	}
	if cfg.WalletRPCURL != "" {
		p := wallet.NewRPCProvider(cfg.WalletRPCURL)
		return p, p.Close, nil
	}
	return nil, func() {}, nil
}

func printReport(w io.Writer, report models.TestReport) {
	if !report.ValidStructure {
		for _, e := range report.StructureErrors {
			fmt.Fprintf(w, "Error: %s\n", e)
		}
	}
	for _, e := range report.Endpoints {
		url := e.URL
		if url == "" {
			url = "(not configured)"
		}
		fmt.Fprintf(w, "  %-10s %s ... ", e.Name, url)
		switch e.Status {
		case rpc.StatusOK:
			fmt.Fprintf(w, "OK (%dms)", e.LatencyMS)
			if e.Name == "wallet" {
				fmt.Fprintf(w, " ChainID: %d, accounts: %d", e.ChainID, e.Accounts)
			}
			fmt.Fprintln(w)
		case rpc.StatusSkipped:
			fmt.Fprintln(w, "Skipped")
		default:
			fmt.Fprintf(w, "Failed: %s\n", e.Error)
		}
	}
	if report.Failed > 0 {
		fmt.Fprintf(w, "\n%d check(s) failed.\n", report.Failed)
	} else {
		fmt.Fprintln(w, "\nAll checks passed.")
	}
}
