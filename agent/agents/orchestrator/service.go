package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
	memox "github.com/tanpawarit/portfolio-copilot/agent/memo"
	nodex "github.com/tanpawarit/portfolio-copilot/agent/nodes"
	promptx "github.com/tanpawarit/portfolio-copilot/agent/prompt"
	toolx "github.com/tanpawarit/portfolio-copilot/agent/tool"
)

const (
	MaxDecisions    = nodex.MaxDecisions
	FallbackMessage = nodex.FallbackMessage
)

type Deps struct {
	Decider    contractx.Decider
	Store      contractx.TurnStore
	Dispatcher nodex.Dispatcher
	Portfolio  toolx.PortfolioService
	// Publisher is optional.
	Publisher contractx.Publisher
}

type Option func(*Orchestrator)

// WithCapabilities replaces the portfolio catalog with a custom capability builder.
func WithCapabilities(build nodex.CapabilityBuilder) Option {
	return func(o *Orchestrator) {
		if build != nil {
			o.capabilities = build
		}
	}
}

func WithPrompts(p promptx.PromptSet) Option {
	return func(o *Orchestrator) {
		o.prompts = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

type Orchestrator struct {
	decider      contractx.Decider
	store        contractx.TurnStore
	dispatcher   nodex.Dispatcher
	publisher    contractx.Publisher
	capabilities nodex.CapabilityBuilder
	prompts      promptx.PromptSet

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Decider == nil {
		return nil, errors.New("decider is required")
	}
	if deps.Store == nil {
		return nil, errors.New("turn store is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	o := &Orchestrator{
		decider:    deps.Decider,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		publisher:  deps.Publisher,
		prompts:    promptx.LoadPromptSet(),
		now:        time.Now,
	}
	if deps.Portfolio != nil {
		svc := deps.Portfolio
		o.capabilities = func(p contractx.Principal) (*toolx.Registry, error) {
			return toolx.Build(p, toolx.Deps{Portfolio: svc})
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.capabilities == nil {
		return nil, errors.New("portfolio service or capability builder is required")
	}

	graphRunner, err := o.compileChatGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Chat answers one query. Each call gets its own memo cache and request logger; the
// cache is torn down when Chat returns.
func (o *Orchestrator) Chat(ctx context.Context, req contractx.ChatRequest) (contractx.ChatResponse, error) {
	logger := log.With().
		Str("request_id", uuid.NewString()).
		Str("user_id", req.Principal.UserID).
		Str("session_id", req.SessionID).
		Logger()
	ctx = logger.WithContext(ctx)

	cache := memox.New(ctx)
	defer cache.Close()
	ctx = memox.WithCache(ctx, cache)

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{Request: req})
	if err != nil {
		logger.Error().Err(err).Msg("chat request failed")
		return contractx.ChatResponse{}, err
	}

	stats := cache.Stats()
	logger.Info().
		Int("decisions", out.Response.Timing.Decisions).
		Int("issued_calls", len(out.Response.IssuedCalls)).
		Bool("exhausted", out.Response.Exhausted).
		Int64("memo_computes", stats.Computes).
		Int64("memo_hits", stats.Hits).
		Dur("elapsed", out.Response.Timing.Elapsed).
		Msg("chat request answered")
	return out.Response, nil
}
