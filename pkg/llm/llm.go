package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// SystemPrompt tells the model which operations exist and how to name one.
const SystemPrompt = `You are a crypto portfolio assistant with access to the Zerion API through function calls.
The user has already connected their wallet, so you know their wallet address.  When users ask about wallet balances or holdings, you will make a tool call.
Generate your response in the following format:
<tool_call>
{"id": 0, "name": "get_balance"}
</tool_call>
or
<tool_call>
{"id": 1, "name": "get_wallet_transactions"}
</tool_call>`

var (
	ErrNoChoices    = errors.New("completion response has no choices")
	ErrEmptyContent = errors.New("completion response has no message content")
)

// CompletionError is returned for any failed completion round trip.
type CompletionError struct {
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion request failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion request failed: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Requester produces the raw completion text for one user message.
type Requester interface {
	RequestCompletion(ctx context.Context, userMessage, walletAddress string) (string, error)
}

// Config is the subset of settings the client needs.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client is an OpenAI-compatible chat completion client (e.g. a Gaia node).
type Client struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("completion base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("completion API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// RequestCompletion sends the fixed system instruction and the user's message
// in a single non-streaming request and returns the first choice verbatim.
// The wallet address is only used for logging; the model is told the wallet
// is already connected.
func (c *Client) RequestCompletion(ctx context.Context, userMessage, walletAddress string) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
	})
	if err != nil {
		cerr := &CompletionError{StatusCode: statusCode(err), Err: err}
		c.logger.Error("completion request failed", "error", err, "status", cerr.StatusCode, "address", walletAddress)
		return "", cerr
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("completion response has no choices", "address", walletAddress)
		return "", &CompletionError{Err: ErrNoChoices}
	}
	// go-openai decodes a missing message as an empty one.
	if resp.Choices[0].Message.Content == "" {
		c.logger.Error("completion response has no message content", "address", walletAddress)
		return "", &CompletionError{Err: ErrEmptyContent}
	}
	c.logger.Debug("completion received", "model", resp.Model, "elapsed", time.Since(start))
	return resp.Choices[0].Message.Content, nil
}

// Ping lists the endpoint's models, which exercises auth and reachability.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return &CompletionError{StatusCode: statusCode(err), Err: err}
	}
	return nil
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
