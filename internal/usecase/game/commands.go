package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"wordstory/internal/adapter/wire"
	"wordstory/internal/domain"
	"wordstory/internal/infra/metrics"
	"wordstory/internal/infra/tracer"
	"wordstory/internal/usecase/dispatch"
)

// pending is an in-flight command result, settled exactly once by the
// matching frame, the watchdog, cancellation or disconnect.
type pending[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newPending[T any]() *pending[T] {
	return &pending[T]{done: make(chan struct{})}
}

// settle records the outcome. It reports false if another path won.
func (p *pending[T]) settle(v T, err error) bool {
	won := false
	p.once.Do(func() {
		p.val, p.err = v, err
		close(p.done)
		won = true
	})
	return won
}

func (p *pending[T]) settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// matchResponse claims the first frame carrying tag. An already settled
// operation declines the frame so it can reach the next waiter.
func matchResponse[T any](tag wire.Tag, p *pending[T], decode func(wire.Frame) (T, error)) dispatch.Handler {
	return func(_ context.Context, f wire.Frame) bool {
		if !f.Is(tag) || p.settled() {
			return false
		}
		v, err := decode(f)
		return p.settle(v, err)
	}
}

// JoinLobby asks to join the public lobby under displayName. A refusal by
// the server is returned as a result with a non-SUCCESS code, not an error.
// If no answer arrives within the join watchdog window it fails with
// domain.ErrTimeout.
func (c *Client) JoinLobby(ctx context.Context, displayName string) (res domain.JoinResult, err error) {
	ctx, span := tracer.StartSpan(ctx, "game.join_lobby",
		trace.WithAttributes(tracer.StringAttr("display_name", displayName)))
	start := time.Now()
	defer func() { c.complete(span, "join", start, res.Result, err) }()

	p := newPending[domain.JoinResult]()
	_, unregister := c.registry.Register(dispatch.OneShot, matchResponse(wire.TagJoinResponse, p, decodeJoin))

	if err := c.transport.Send(ctx, wire.NewFrame(wire.TagJoin, displayName)); err != nil {
		unregister()
		return domain.JoinResult{}, err
	}
	return await(ctx, c, p, unregister, true)
}

// SubmitWord submits word for the current turn. There is no watchdog: the
// call waits until the server answers, ctx ends or the connection drops.
func (c *Client) SubmitWord(ctx context.Context, word string) (res domain.SubmitResult, err error) {
	ctx, span := tracer.StartSpan(ctx, "game.submit_word",
		trace.WithAttributes(tracer.IntAttr("word_length", len(word))))
	start := time.Now()
	defer func() { c.complete(span, "submit", start, res, err) }()

	p := newPending[domain.SubmitResult]()
	_, unregister := c.registry.Register(dispatch.OneShot, matchResponse(wire.TagSubmitResponse, p, decodeSubmit))

	if err := c.transport.Send(ctx, wire.NewFrame(wire.TagSubmitWord, word)); err != nil {
		unregister()
		return domain.SubmitResult{}, err
	}
	return await(ctx, c, p, unregister, false)
}

// Leave tells the server the player is leaving. No answer is expected.
func (c *Client) Leave(ctx context.Context) (err error) {
	ctx, span := tracer.StartSpan(ctx, "game.leave")
	start := time.Now()
	defer func() { c.complete(span, "leave", start, domain.Response{Code: domain.ResSuccess}, err) }()

	return c.transport.Send(ctx, wire.NewFrame(wire.TagLeave))
}

func await[T any](ctx context.Context, c *Client, p *pending[T], unregister func(), watchdog bool) (T, error) {
	var zero T
	var tick <-chan time.Time
	if watchdog {
		ticker := time.NewTicker(c.joinPollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	misses := 0
	for {
		select {
		case <-p.done:
			return p.val, p.err
		case <-tick:
			misses++
			if misses < c.joinMaxMisses {
				c.logger.Debug("game: still waiting for response", "misses", misses)
				continue
			}
			p.settle(zero, fmt.Errorf("%w: no response after %s",
				domain.ErrTimeout, time.Duration(misses)*c.joinPollInterval))
		case <-ctx.Done():
			p.settle(zero, ctx.Err())
		case <-c.transport.Done():
			p.settle(zero, domain.ErrDisconnected)
		}
		unregister()
		return p.val, p.err
	}
}

func decodeJoin(f wire.Frame) (domain.JoinResult, error) {
	var res domain.Response
	if err := decodePayload(f, &res); err != nil {
		return domain.JoinResult{}, err
	}
	return domain.JoinResult{PlayerID: f.Field(2), Result: res}, nil
}

func decodeSubmit(f wire.Frame) (domain.SubmitResult, error) {
	var res domain.SubmitResult
	err := decodePayload(f, &res)
	return res, err
}

// decodePayload parses the JSON in field 1.
func decodePayload(f wire.Frame, v any) error {
	if err := json.Unmarshal([]byte(f.Field(1)), v); err != nil {
		return domain.NewDomainError("decode "+string(f.Tag()), domain.ErrPayloadDecode, err.Error())
	}
	return nil
}

func (c *Client) complete(span trace.Span, command string, start time.Time, res domain.Response, err error) {
	out := outcome(res, err)
	span.SetAttributes(tracer.StringAttr("outcome", out))
	if err == nil {
		span.SetAttributes(tracer.StringAttr("result_code", string(res.Code)))
	}
	tracer.End(span, err)

	c.metrics.CommandCompleted(command, out, time.Since(start))
	if err != nil {
		c.logger.Warn("game: command failed", "command", command, "outcome", out, "error", err)
		return
	}
	c.logger.Debug("game: command completed", "command", command, "code", string(res.Code))
}

func outcome(res domain.Response, err error) string {
	switch {
	case err == nil && res.OK():
		return metrics.OutcomeOK
	case err == nil:
		return metrics.OutcomeRejected
	case errors.Is(err, domain.ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, domain.ErrNotReady):
		return metrics.OutcomeNotReady
	case errors.Is(err, domain.ErrPayloadDecode):
		return metrics.OutcomeDecodeError
	case errors.Is(err, domain.ErrDisconnected):
		return metrics.OutcomeDisconnected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeError
	}
}
