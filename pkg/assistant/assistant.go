package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"walletchat/pkg/conversation"
	"walletchat/pkg/llm"
	"walletchat/pkg/models"
	"walletchat/pkg/toolcall"
	"walletchat/pkg/wallet"
)

var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrBusy               = errors.New("a request is already in flight")
	ErrCycleCancelled     = errors.New("send cycle cancelled")
)

const defaultRequestTimeout = 60 * time.Second

// State is the position of the current send cycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingCompletion
	StateResolvingToolCall
	StateExecutingOperation
	StateSkippingOperation
	StateAppendingResult
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCompletion:
		return "awaiting_completion"
	case StateResolvingToolCall:
		return "resolving_tool_call"
	case StateExecutingOperation:
		return "executing_operation"
	case StateSkippingOperation:
		return "skipping_operation"
	case StateAppendingResult:
		return "appending_result"
	default:
		return "unknown"
	}
}

// Portfolio is what the assistant needs from the portfolio API.
type Portfolio interface {
	GetBalance(ctx context.Context, address string) (models.PortfolioSummary, error)
	GetTransactions(ctx context.Context, address string) *models.TransactionList
}

// Recorder receives every balance fetched successfully. The sample must be
// dropped if ctx, the wallet connection it belongs to, has ended.
type Recorder interface {
	RecordWhile(ctx context.Context, sample models.BalanceSample) bool
}

type Options struct {
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
	History        Recorder
}

// Result describes a completed send cycle.
type Result struct {
	Turn         models.ChatTurn
	Resolution   toolcall.Resolution
	Summary      *models.PortfolioSummary
	Transactions *models.TransactionList
}

// Assistant runs send cycles: at most one is in flight at a time.
type Assistant struct {
	session     *wallet.Session
	store       *conversation.Store
	completions llm.Requester
	resolver    *toolcall.Resolver
	portfolio   Portfolio
	history     Recorder
	logger      *slog.Logger
	timeout     time.Duration
	now         func() time.Time

	mu    sync.Mutex
	state State
}

func New(session *wallet.Session, store *conversation.Store, completions llm.Requester, portfolio Portfolio, opts Options) *Assistant {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assistant{
		session:     session,
		store:       store,
		completions: completions,
		resolver:    toolcall.NewResolver(opts.Logger),
		portfolio:   portfolio,
		history:     opts.History,
		logger:      opts.Logger,
		timeout:     opts.RequestTimeout,
		now:         opts.Now,
	}
}

func (a *Assistant) Session() *wallet.Session         { return a.session }
func (a *Assistant) Conversation() *conversation.Store { return a.store }

func (a *Assistant) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Assistant) Busy() bool {
	return a.State() != StateIdle
}

func (a *Assistant) begin() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateIdle {
		return false
	}
	a.state = StateAwaitingCompletion
	return true
}

func (a *Assistant) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// NotConnectedNotification is surfaced when a send is attempted without a wallet.
func NotConnectedNotification() models.Notification {
	return models.Notification{
		Title:       "Wallet Not Connected",
		Description: "Please connect your wallet to use this feature.",
		Variant:     models.VariantDestructive,
	}
}

// Send runs one full cycle for text. Empty text, a missing wallet and a busy
// assistant are rejected before anything is recorded or sent. If the wallet
// disconnects or ctx ends mid-cycle, the reply is dropped and
// ErrCycleCancelled is returned.
func (a *Assistant) Send(ctx context.Context, text string) (*Result, error) {
	msg := strings.TrimSpace(text)
	if msg == "" {
		return nil, ErrEmptyMessage
	}
	address, connCtx := a.session.Current()
	if address == "" {
		return nil, ErrWalletNotConnected
	}
	if !a.begin() {
		return nil, ErrBusy
	}
	defer a.setState(StateIdle)

	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(connCtx, cancel)
	defer stop()

	a.store.Append(models.RoleUser, msg)

	raw, err := a.complete(cycleCtx, msg, address)
	if err != nil {
		a.logger.Error("error processing request", "error", err)
		return a.finish(cycleCtx, connCtx, &Result{}, MsgProcessingError)
	}

	a.setState(StateResolvingToolCall)
	res := a.resolver.Resolve(raw)
	a.logger.Info("tool call resolved", "outcome", res.Outcome.String(), "operation", res.Operation.String())

	result := &Result{Resolution: res}
	if res.Known() {
		a.setState(StateExecutingOperation)
	} else {
		a.setState(StateSkippingOperation)
	}
	content := a.execute(cycleCtx, connCtx, res.Operation, address, result)
	return a.finish(cycleCtx, connCtx, result, content)
}

func (a *Assistant) complete(ctx context.Context, msg, address string) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.completions.RequestCompletion(rctx, msg, address)
}

// execute covers every Operation; OpNone stands for no tag, a parse failure
// and an unknown name alike.
func (a *Assistant) execute(ctx, connCtx context.Context, op toolcall.Operation, address string, result *Result) string {
	rctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	switch op {
	case toolcall.OpGetBalance:
		summary, err := a.portfolio.GetBalance(rctx, address)
		if err != nil {
			a.logger.Error("error executing function call", "operation", op.String(), "error", err)
			return MsgFetchError
		}
		result.Summary = &summary
		at := a.now()
		if a.history != nil && ctx.Err() == nil {
			a.history.RecordWhile(connCtx, models.BalanceSample{Address: address, TotalValue: summary.TotalValue, At: at})
		}
		return FormatBalance(address, summary, at)
	case toolcall.OpGetTransactions:
		list := a.portfolio.GetTransactions(rctx, address)
		if list == nil {
			return MsgTransactionsError
		}
		result.Transactions = list
		return FormatTransactions(address, *list)
	case toolcall.OpNone:
		return MsgUnknownFunction
	}
	return MsgUnknownFunction
}

// finish checks connCtx too: cycleCtx only learns of a disconnect through
// AfterFunc, which runs in its own goroutine.
func (a *Assistant) finish(ctx, connCtx context.Context, result *Result, content string) (*Result, error) {
	if err := errors.Join(ctx.Err(), connCtx.Err()); err != nil {
		a.logger.Info("send cycle cancelled, reply dropped", "reason", err)
		return nil, ErrCycleCancelled
	}
	a.setState(StateAppendingResult)
	result.Turn = a.store.Append(models.RoleAssistant, content)
	return result, nil
}
