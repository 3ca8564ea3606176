// Package toolcall extracts the operation a completion asks for.
//
// The model is trusted neither to emit a tag nor to emit valid JSON inside
// one, so Resolve is total: every input maps to exactly one Outcome.
package toolcall

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"walletchat/pkg/models"
)

const (
	OpenTag  = "<tool_call>"
	CloseTag = "</tool_call>"
)

// Operation names the model may use.
const (
	NameGetBalance      = "get_balance"
	NameGetTransactions = "get_wallet_transactions"
)

// Operation is the closed set of things the assistant can execute.
type Operation int

const (
	OpNone Operation = iota
	OpGetBalance
	OpGetTransactions
)

func (o Operation) String() string {
	switch o {
	case OpGetBalance:
		return NameGetBalance
	case OpGetTransactions:
		return NameGetTransactions
	default:
		return "none"
	}
}

// Outcome classifies a completion.
type Outcome int

const (
	OutcomeNoTag Outcome = iota
	OutcomeParseFailure
	OutcomeUnknown
	OutcomeKnown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoTag:
		return "no_tag"
	case OutcomeParseFailure:
		return "parse_failure"
	case OutcomeUnknown:
		return "unknown_operation"
	case OutcomeKnown:
		return "known_operation"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Resolution is the result of resolving one completion. Operation is OpNone
// unless Outcome is OutcomeKnown.
type Resolution struct {
	Outcome   Outcome
	Operation Operation
	Directive models.ToolCallDirective
	Err       error // parse error for OutcomeParseFailure
}

// Known reports whether an operation should be executed.
func (r Resolution) Known() bool {
	return r.Outcome == OutcomeKnown
}

var (
	objectPattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(OpenTag) + `\s*(\{.*?\})\s*` + regexp.QuoteMeta(CloseTag))
	tagPattern    = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(OpenTag) + `(.*?)` + regexp.QuoteMeta(CloseTag))

	ErrMissingName = errors.New("tool call has no name")
)

var operations = map[string]Operation{
	NameGetBalance:      OpGetBalance,
	NameGetTransactions: OpGetTransactions,
}

// Resolver turns raw completion text into a Resolution.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve inspects only the first tag; later tags are ignored.
func (r *Resolver) Resolve(raw string) Resolution {
	body, ok := Extract(raw)
	if !ok {
		return Resolution{Outcome: OutcomeNoTag}
	}

	directive, err := Parse(body)
	if err != nil {
		r.logger.Warn("error parsing tool call", "error", err, "body", body)
		return Resolution{Outcome: OutcomeParseFailure, Err: err}
	}

	op, known := operations[directive.Name]
	if !known {
		r.logger.Info("unknown tool call", "name", directive.Name)
		return Resolution{Outcome: OutcomeUnknown, Directive: directive}
	}
	return Resolution{Outcome: OutcomeKnown, Operation: op, Directive: directive}
}

// Extract returns the trimmed text of the first tag that wraps a JSON object.
// A marker mentioned in prose is skipped. When no tag wraps an object, the
// first tag's text is returned so the caller sees the parse failure.
func Extract(raw string) (string, bool) {
	if !strings.Contains(raw, OpenTag) {
		return "", false
	}
	if m := objectPattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	m := tagPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Parse decodes a single JSON object with a required string name. Arguments
// default to empty unless they are an object or a string holding one.
// Trailing data after the object is an error.
func Parse(body string) (models.ToolCallDirective, error) {
	var raw struct {
		ID        json.RawMessage `json:"id"`
		Name      *string         `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return models.ToolCallDirective{}, fmt.Errorf("invalid tool call JSON: %w", err)
	}
	if dec.More() {
		return models.ToolCallDirective{}, errors.New("invalid tool call JSON: trailing data after object")
	}
	if raw.Name == nil || strings.TrimSpace(*raw.Name) == "" {
		return models.ToolCallDirective{}, ErrMissingName
	}

	d := models.ToolCallDirective{
		Name:      strings.TrimSpace(*raw.Name),
		Arguments: parseArguments(raw.Arguments),
	}
	// The id is informational; a malformed one does not void the call.
	if len(raw.ID) > 0 {
		var id int
		if err := json.Unmarshal(raw.ID, &id); err == nil {
			d.ID = id
		}
	}
	return d, nil
}

// parseArguments never fails; neither operation reads its arguments.
func parseArguments(raw json.RawMessage) map[string]any {
	args := map[string]any{}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return args
		}
		raw = []byte(strings.TrimSpace(encoded))
	}
	if len(raw) == 0 || raw[0] != '{' {
		return args
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return args
	}
	return decoded
}
