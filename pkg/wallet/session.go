package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"walletchat/pkg/models"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrWalletUnavailable = errors.New("no wallet provider configured")
	ErrNoAccounts        = errors.New("wallet returned no accounts")
	ErrInvalidAddress    = errors.New("invalid wallet address")
)

// ConnectionError wraps any failure reported while the wallet was asked for
// account access: user rejection, RPC failure or an unusable address.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("wallet connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Session owns the single connected wallet address.
type Session struct {
	provider Provider
	logger   *slog.Logger

	mu      sync.RWMutex
	address string
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewSession creates a disconnected session. A nil provider means no wallet
// is available and every Connect reports ErrWalletUnavailable.
func NewSession(provider Provider, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &Session{
		provider: provider,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect asks the provider for account access. The session is only changed
// on success. There is no retry.
func (s *Session) Connect(ctx context.Context) (models.Notification, error) {
	if s.provider == nil {
		s.logger.Warn("wallet connect without provider")
		return models.Notification{
			Title:       "No Wallet Detected",
			Description: "Please configure wallet_rpc_url (e.g. Frame at http://127.0.0.1:1248) or start with -address.",
			Variant:     models.VariantDestructive,
		}, ErrWalletUnavailable
	}

	addr, err := s.requestAddress(ctx)
	if err != nil {
		cerr := &ConnectionError{Err: err}
		s.logger.Error("wallet connect failed", "error", err)
		return models.Notification{
			Title:       "Wallet Connection Error",
			Description: err.Error(),
			Variant:     models.VariantDestructive,
		}, cerr
	}

	s.mu.Lock()
	if s.address != addr {
		s.cancel()
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.address = addr
	}
	s.mu.Unlock()

	s.logger.Info("wallet connected", "address", addr)
	return models.Notification{
		Title:       "Wallet Connected",
		Description: fmt.Sprintf("Connected to %s", addr),
	}, nil
}

func (s *Session) requestAddress(ctx context.Context) (string, error) {
	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", ErrNoAccounts
	}
	addr, err := s.provider.SignerAddress(ctx)
	if err != nil {
		return "", err
	}
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}

// Disconnect forgets the address locally and cancels work bound to the
// connection. Permission revocation stays a wallet-side user action.
func (s *Session) Disconnect() models.Notification {
	s.mu.Lock()
	prev := s.address
	s.address = ""
	s.cancel()
	s.mu.Unlock()

	if prev != "" {
		s.logger.Info("wallet disconnected", "address", prev)
	}
	return models.Notification{
		Title:       "Wallet Disconnected",
		Description: "Your wallet has been disconnected.",
	}
}

func (s *Session) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

func (s *Session) Connected() bool {
	return s.Address() != ""
}

// Context is done once the current connection ends. While disconnected it is
// already done.
func (s *Session) Context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// Current returns the address together with the context of the same
// connection, read atomically.
func (s *Session) Current() (string, context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address, s.ctx
}

// HasProvider reports whether a wallet was injected at all.
func (s *Session) HasProvider() bool {
	return s.provider != nil
}
