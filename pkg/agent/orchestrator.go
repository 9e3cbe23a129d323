package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harun/mcphub/internal/metrics"
	"github.com/harun/mcphub/internal/tracing"
	"github.com/harun/mcphub/pkg/memory"
	"github.com/harun/mcphub/pkg/session"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxIterations caps model requests per turn.
	DefaultMaxIterations = 10
	// DefaultContextTurns is the number of recent turns injected as context.
	DefaultContextTurns = 3
	// DefaultToolTimeout bounds one tool dispatch.
	DefaultToolTimeout = 60 * time.Second

	// NoOutputText is returned when a turn produced no text at all.
	NoOutputText = "No output was produced. Check the logs for details."
	// NoToolsText is returned when no server offers any tool.
	NoToolsText = "No tools are available. Check the server connection status."
)

// ToolRouter builds the tool catalog and dispatches calls
type ToolRouter interface {
	ListAggregatedTools(ctx context.Context) *session.Catalog
	Dispatch(ctx context.Context, name string, input map[string]any) (string, error)
}

// InferenceGateway answers model requests; failures are folded into parts
type InferenceGateway interface {
	Complete(ctx context.Context, req Request) *Response
}

// ContextStore records turns and tool calls and supplies history
type ContextStore interface {
	SessionID() string
	RelevantContext(query string, maxTurns int) string
	AppendTurn(turn memory.ConversationTurn) error
	AppendToolCall(rec memory.ToolCallRecord) error
}

// Config holds orchestrator configuration
type Config struct {
	Router  ToolRouter
	Gateway InferenceGateway
	Store   ContextStore
	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	Model         string
	MaxTokens     int
	Temperature   *float64
	MaxIterations int
	ContextTurns  int
	ToolTimeout   time.Duration
}

// Orchestrator drives one query through the model and the tool servers
// until the model stops asking for tools.
type Orchestrator struct {
	router  ToolRouter
	gateway InferenceGateway
	store   ContextStore
	logger  zerolog.Logger
	metrics *metrics.Metrics

	model         string
	maxTokens     int
	temperature   *float64
	maxIterations int
	contextTurns  int
	toolTimeout   time.Duration
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Router == nil {
		return nil, fmt.Errorf("tool router is required")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("inference gateway is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("context store is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.ContextTurns <= 0 {
		cfg.ContextTurns = DefaultContextTurns
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}

	return &Orchestrator{
		router:        cfg.Router,
		gateway:       cfg.Gateway,
		store:         cfg.Store,
		logger:        cfg.Logger.With().Str("component", "orchestrator").Logger(),
		metrics:       cfg.Metrics,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		maxIterations: cfg.MaxIterations,
		contextTurns:  cfg.ContextTurns,
		toolTimeout:   cfg.ToolTimeout,
	}, nil
}

// turn is the mutable state of one Process call
type turn struct {
	query    string
	tools    *session.Catalog
	schemas  []ToolSchema
	messages []Message
	output   []string
	calls    []memory.ToolCallSummary
	requests int
	outcome  string
}

// Process answers one user query. It always returns text and always
// records exactly one conversation turn.
func (o *Orchestrator) Process(ctx context.Context, query string) (answer string) {
	ctx = tracing.NewTurnContext(ctx, o.store.SessionID())
	logger := tracing.LoggerFromContext(ctx, o.logger)
	t := &turn{query: query, outcome: "completed"}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Turn aborted by panic")
			t.outcome = "panic"
			t.output = append(t.output, fmt.Sprintf("Error while processing the query: %v", r))
		}
		answer = t.answer()
		o.finish(ctx, t, answer)
	}()

	logger.Info().Str("query", query).Msg("Processing query")
	o.run(ctx, t)
	return ""
}

func (t *turn) answer() string {
	if len(t.output) == 0 {
		return NoOutputText
	}
	return strings.Join(t.output, "\n")
}

// run is the bounded request/dispatch loop.
func (o *Orchestrator) run(ctx context.Context, t *turn) {
	t.tools = o.router.ListAggregatedTools(ctx)
	if t.tools.Len() == 0 {
		t.outcome = "no_tools"
		t.output = append(t.output, NoToolsText)
		return
	}
	t.schemas = toolSchemas(t.tools)

	if history := o.store.RelevantContext(t.query, o.contextTurns); history != "" {
		t.messages = append(t.messages, Message{
			Role:    RoleSystem,
			Content: "The following conversation history may help you understand the question:\n\n" + history,
		})
	}
	t.messages = append(t.messages, Message{Role: RoleUser, Content: t.query})

	// Parts are handled depth first: the reply to a tool result is fully
	// processed before the next part of the reply that requested the tool.
	// Once the request cap is hit, text already received is still collected
	// but queued tool-use parts are skipped.
	stack := [][]Part{o.request(ctx, t)}
	limited := false
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			t.outcome = "cancelled"
			t.output = append(t.output, fmt.Sprintf("[turn interrupted: %v]", err))
			return
		}

		top := stack[len(stack)-1]
		if len(top) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		part := top[0]
		stack[len(stack)-1] = top[1:]

		switch part.Type {
		case PartText:
			if part.Text != "" {
				t.output = append(t.output, part.Text)
			}
		case PartToolUse:
			if limited {
				o.logger.Debug().Str("tool", part.Name).Msg("Skipping tool call after request limit")
				continue
			}
			result, ok := o.execute(ctx, t, part)
			if !ok {
				continue
			}
			t.messages = append(t.messages,
				Message{Role: RoleAssistant, Content: fmt.Sprintf("I will use the %s tool", part.Name)},
				Message{Role: RoleUser, Content: fmt.Sprintf("Result of tool %s: %s", part.Name, result)},
			)
			if t.requests >= o.maxIterations {
				limited = true
				continue
			}
			stack = append(stack, o.request(ctx, t))
		}
	}

	if limited {
		t.outcome = "limit"
		t.output = append(t.output, fmt.Sprintf("[tool-call limit reached after %d model requests]", t.requests))
	}
}

// request sends the running conversation to the gateway.
func (o *Orchestrator) request(ctx context.Context, t *turn) []Part {
	t.requests++
	resp := o.gateway.Complete(ctx, Request{
		Messages:    t.messages,
		Tools:       t.schemas,
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if resp == nil {
		return nil
	}
	if len(resp.Messages) > 0 {
		t.messages = copyMessages(resp.Messages)
	}
	return resp.Parts
}

// execute runs one tool-use part and records it. It reports whether the
// call succeeded; failures add an error line to the output.
func (o *Orchestrator) execute(ctx context.Context, t *turn, part Part) (string, bool) {
	logger := tracing.LoggerFromContext(ctx, o.logger).With().Str("tool", part.Name).Logger()

	if _, known := t.tools.Lookup(part.Name); !known {
		msg := fmt.Sprintf("tool %q not found", part.Name)
		logger.Warn().Msg("Model requested an unknown tool")
		o.record(ctx, t, part, msg, false, "tool not found")
		t.output = append(t.output, msg)
		return "", false
	}

	callCtx, cancel := context.WithTimeout(ctx, o.toolTimeout)
	result, err := o.router.Dispatch(callCtx, part.Name, part.Input)
	cancel()

	if err != nil {
		msg := fmt.Sprintf("tool %q failed: %v", part.Name, err)
		reason := err.Error()
		if errors.Is(err, session.ErrToolNotFound) {
			msg = fmt.Sprintf("tool %q not found", part.Name)
			reason = "tool not found"
		}
		logger.Warn().Err(err).Msg("Tool call failed")
		o.record(ctx, t, part, msg, false, reason)
		t.output = append(t.output, msg)
		return "", false
	}

	logger.Debug().Msg("Tool call succeeded")
	o.record(ctx, t, part, result, true, "")
	return result, true
}

// record writes the tool-call record and keeps the per-turn summary.
func (o *Orchestrator) record(ctx context.Context, t *turn, part Part, output string, success bool, reason string) {
	t.calls = append(t.calls, memory.ToolCallSummary{
		Name:    part.Name,
		Input:   part.Input,
		Output:  output,
		Success: success,
		Error:   reason,
	})
	err := o.store.AppendToolCall(memory.ToolCallRecord{
		ToolName:  part.Name,
		Input:     part.Input,
		Output:    output,
		Success:   success,
		Error:     reason,
		SessionID: tracing.GetSessionID(ctx),
	})
	if err != nil {
		logger := tracing.LoggerFromContext(ctx, o.logger)
		logger.Error().Err(err).Str("tool", part.Name).Msg("Failed to record tool call")
	}
}

// finish records the turn. It runs on every exit path of Process.
func (o *Orchestrator) finish(ctx context.Context, t *turn, answer string) {
	logger := tracing.LoggerFromContext(ctx, o.logger)
	err := o.store.AppendTurn(memory.ConversationTurn{
		TurnID:     tracing.GetTurnID(ctx),
		UserInput:  t.query,
		AIResponse: answer,
		ToolCalls:  t.calls,
		SessionID:  tracing.GetSessionID(ctx),
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to record conversation turn")
	}
	o.metrics.Turn(t.outcome, t.requests)
	logger.Info().
		Str("outcome", t.outcome).
		Int("modelRequests", t.requests).
		Int("toolCalls", len(t.calls)).
		Msg("Query processed")
}

func toolSchemas(c *session.Catalog) []ToolSchema {
	tools := c.Tools()
	out := make([]ToolSchema, 0, len(tools))
	for _, d := range tools {
		out = append(out, ToolSchema{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return out
}
