// Package dispatch runs every capability call of one decision concurrently and
// collects exactly one result per call.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
	toolx "github.com/tanpawarit/portfolio-copilot/agent/tool"
)

const defaultCallTimeout = 20 * time.Second

type Config struct {
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" split_words:"true" default:"20s"`
}

// Lookup resolves a capability by name. *tool.Registry satisfies it.
type Lookup interface {
	Lookup(name string) (toolx.Capability, bool)
}

type Dispatcher struct {
	callTimeout time.Duration
}

func New(cfg Config) *Dispatcher {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Dispatcher{callTimeout: timeout}
}

// Dispatch returns after every call has settled. results[i] answers calls[i].
func (d *Dispatcher) Dispatch(ctx context.Context, calls []contractx.CapabilityCall, reg Lookup) []contractx.CapabilityResult {
	results := make([]contractx.CapabilityResult, len(calls))
	if len(calls) == 0 {
		return results
	}

	var wg conc.WaitGroup
	for i, call := range calls {
		i, call := i, call // per-iteration copies for the goroutine below (pre-Go 1.22 loop semantics)
		results[i] = contractx.CapabilityResult{CallID: call.ID, Name: call.Name}

		var (
			c  toolx.Capability
			ok bool
		)
		if reg != nil {
			c, ok = reg.Lookup(call.Name)
		}
		if !ok {
			results[i].Error = fmt.Sprintf("capability %q not found", call.Name)
			zerolog.Ctx(ctx).Warn().
				Str("call_id", call.ID).
				Str("capability", call.Name).
				Msg("capability not found")
			continue
		}

		wg.Go(func() {
			results[i] = d.invoke(ctx, c, call)
		})
	}
	wg.Wait()
	return results
}

type outcome struct {
	payload any
	err     error
}

func (d *Dispatcher) invoke(ctx context.Context, c toolx.Capability, call contractx.CapabilityCall) contractx.CapabilityResult {
	res := contractx.CapabilityResult{CallID: call.ID, Name: call.Name}
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		var (
			pc  panics.Catcher
			out outcome
		)
		pc.Try(func() {
			out.payload, out.err = c.Invoke(callCtx, call.Arguments)
		})
		if r := pc.Recovered(); r != nil {
			out.err = fmt.Errorf("capability %q panicked: %w", call.Name, r.AsError())
		}
		done <- out
	}()

	select {
	case out := <-done:
		if out.err != nil {
			res.Error = out.err.Error()
		} else {
			res.Payload = out.payload
		}
	case <-callCtx.Done():
		res.Error = fmt.Sprintf("capability %q: %v", call.Name, callCtx.Err())
	}

	zerolog.Ctx(ctx).Debug().
		Str("call_id", call.ID).
		Str("capability", call.Name).
		Dur("elapsed", time.Since(start)).
		Bool("failed", res.Failed()).
		Msg("capability call settled")
	return res
}
