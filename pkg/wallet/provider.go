package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Provider is the injected wallet the session asks for account access.
type Provider interface {
	// RequestAccounts prompts the wallet to authorize this client.
	RequestAccounts(ctx context.Context) ([]string, error)
	// SignerAddress returns the account the wallet will sign with.
	SignerAddress(ctx context.Context) (string, error)
}

// RPCProvider talks to a wallet exposing the standard Ethereum JSON-RPC
// account methods over HTTP or WebSocket (Frame, a local node, ...).
type RPCProvider struct {
	url string

	mu     sync.Mutex
	client *rpc.Client
}

func NewRPCProvider(url string) *RPCProvider {
	return &RPCProvider{url: url}
}

func (p *RPCProvider) URL() string { return p.url }

func (p *RPCProvider) dial(ctx context.Context) (*rpc.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	c, err := rpc.DialContext(ctx, p.url)
	if err != nil {
		return nil, err
	}
	p.client = c
	return c, nil
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	c, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := c.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (p *RPCProvider) SignerAddress(ctx context.Context) (string, error) {
	c, err := p.dial(ctx)
	if err != nil {
		return "", err
	}
	var accounts []string
	if err := c.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", ErrNoAccounts
	}
	return accounts[0], nil
}

// ChainID reports the chain the wallet is currently pointed at.
func (p *RPCProvider) ChainID(ctx context.Context) (*big.Int, error) {
	c, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(c).ChainID(ctx)
}

func (p *RPCProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

// StaticProvider is a watch-only wallet backed by a fixed address.
type StaticProvider struct {
	address string
}

func NewStaticProvider(address string) (*StaticProvider, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return &StaticProvider{address: address}, nil
}

func (p *StaticProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	return []string{p.address}, nil
}

func (p *StaticProvider) SignerAddress(ctx context.Context) (string, error) {
	return p.address, nil
}
