package game

import (
	"context"
	"fmt"

	"wordstory/internal/adapter/wire"
	"wordstory/internal/domain"
	"wordstory/internal/usecase/dispatch"
)

// OnJoinedGame calls fn with the first state of a game the player was added
// to. The server marks only that push as initial; a repeated marker fires fn
// again. A null initial state carries no game and is skipped. The returned
// func unsubscribes.
func (c *Client) OnJoinedGame(fn func(domain.GameDisplayData)) func() {
	return subscribe(c, "joined_game", func(f wire.Frame) bool {
		return f.Is(wire.TagState) && f.Field(2) == wire.LiteralTrue && f.Field(1) != wire.LiteralNull
	}, fn)
}

// OnStateUpdate calls fn for every non-null state push, in arrival order.
// Subscribe from inside an OnJoinedGame callback to skip the initial state.
func (c *Client) OnStateUpdate(fn func(domain.GameDisplayData)) func() {
	return subscribe(c, "state_update", func(f wire.Frame) bool {
		return f.Is(wire.TagState) && f.Field(1) != wire.LiteralNull
	}, fn)
}

// OnGameEnded calls fn with the player's statistics when a game concludes.
func (c *Client) OnGameEnded(fn func(domain.GameEndStats)) func() {
	return subscribe(c, "game_ended", func(f wire.Frame) bool {
		return f.Is(wire.TagGameEnded) && f.Field(1) != wire.LiteralNull
	}, fn)
}

// subscribe registers a persistent entry. Undecodable payloads go to the
// error handler and the subscription stays.
func subscribe[T any](c *Client, name string, match func(wire.Frame) bool, fn func(T)) func() {
	id, unsubscribe := c.registry.Register(dispatch.Persistent, func(_ context.Context, f wire.Frame) bool {
		if !match(f) {
			return false
		}
		var v T
		if err := decodePayload(f, &v); err != nil {
			c.onError(fmt.Errorf("%s: %w", name, err))
			return true
		}
		fn(v)
		return true
	})
	c.logger.Debug("game: subscribed", "event", name, "id", id)
	return unsubscribe
}
