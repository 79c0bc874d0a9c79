package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jwlim/gonggo/internal/common"
)

// DefaultMaxAttempts is the shared retry budget for every LLM call.
const DefaultMaxAttempts = 3

// LoopState makes the retry loop's termination condition explicit:
// Attempting(n) moves to Succeeded, Retrying(n+1) or Exhausted.
type LoopState int

const (
	StateAttempting LoopState = iota
	StateRetrying
	StateSucceeded
	StateExhausted
)

// RetryLoop parses an LLM's text reply as JSON, validates it against a
// declared schema, and re-prompts the same conversation with a corrective
// instruction on failure. JSON syntax errors, schema violations, Verify
// failures and provider errors during correction all share one attempt
// budget.
type RetryLoop struct {
	Schema map[string]any

	// Verify optionally runs extra, input-dependent checks (e.g. index
	// bounds) after schema validation. Failures are retryable.
	Verify func(raw json.RawMessage) error

	MaxAttempts int
	Logger      *slog.Logger
}

// attempt is the loop-carried state, held explicitly instead of mutating
// variables across nested handlers.
type attempt struct {
	n       int
	reply   *Reply
	lastErr error
	state   LoopState
}

// Run drives the loop: on attempt 1 the caller-supplied reply is used
// directly; attempts >= 2 ask the conversation for a corrected JSON object.
// On success the cleaned JSON bytes are returned.
func (l *RetryLoop) Run(ctx context.Context, conv Conversation, first *Reply) (json.RawMessage, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxAttempts := l.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	schema, err := CompileSchema(l.Schema)
	if err != nil {
		return nil, err
	}

	a := attempt{n: 1, reply: first, state: StateAttempting}
	for {
		switch a.state {
		case StateAttempting:
			if a.reply == nil && a.lastErr != nil {
				// The correction call itself failed; nothing new to
				// parse, so the attempt is spent on the provider error.
				if a.n == maxAttempts {
					a.state = StateExhausted
					continue
				}
				a.state = StateRetrying
				continue
			}
			raw, err := l.decode(a.reply, schema)
			if err == nil {
				logger.Info("llm.retry.ok", "attempt", a.n)
				a.state = StateSucceeded
				return raw, nil
			}
			a.lastErr = err
			logger.Warn("llm.retry.attempt_failed",
				"attempt", a.n, "max_attempts", maxAttempts, "error", err)
			if a.n == maxAttempts {
				a.state = StateExhausted
				continue
			}
			a.state = StateRetrying

		case StateRetrying:
			fix := fmt.Sprintf(
				"The previous response resulted in an error: %v. "+
					"Please review and output only a corrected JSON object.", a.lastErr)
			reply, err := conv.Send(ctx, fix)
			if err != nil {
				// API failures while requesting a correction burn an
				// attempt from the same budget.
				a.lastErr = fmt.Errorf("%w: %w", common.ErrProviderCall, err)
				logger.Error("llm.retry.correction_call_failed",
					"attempt", a.n, "error", err)
				reply = nil
			}
			a.n++
			a.reply = reply
			a.state = StateAttempting

		case StateExhausted:
			logger.Error("llm.retry.exhausted",
				"attempts", maxAttempts, "last_error", a.lastErr)
			return nil, fmt.Errorf("failed to parse and validate after %d attempts: %w",
				maxAttempts, a.lastErr)
		}
	}
}

// decode runs one attempt's parse-and-validate step.
func (l *RetryLoop) decode(reply *Reply, schema *jsonschema.Schema) (json.RawMessage, error) {
	if reply == nil || reply.Text == "" {
		return nil, fmt.Errorf("%w: empty reply", common.ErrSchemaValidation)
	}
	cleaned := []byte(StripFences(reply.Text))

	var v any
	if err := json.Unmarshal(cleaned, &v); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %w", common.ErrSchemaValidation, err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSchemaValidation, err)
	}
	if l.Verify != nil {
		if err := l.Verify(cleaned); err != nil {
			return nil, err
		}
	}
	return cleaned, nil
}
