package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordstory/internal/domain"
)

func TestJoinedThenStateScenario(t *testing.T) {
	h := newHarness(t)

	var joined, updates []domain.GameDisplayData
	h.client.OnJoinedGame(func(s domain.GameDisplayData) {
		joined = append(joined, s)
		h.client.OnStateUpdate(func(s domain.GameDisplayData) {
			updates = append(updates, s)
		})
	})

	h.push("current_state", `{"players":[]}`, "true")
	h.push("current_state", `{"players":[{"id":"p1"}]}`, "false")

	require.Len(t, joined, 1)
	assert.Empty(t, joined[0].Players)

	require.Len(t, updates, 1, "state subscription registered during the initial frame must not see it")
	require.Len(t, updates[0].Players, 1)
	assert.Equal(t, "p1", updates[0].Players[0].ID)
}

func TestStateUpdatesInArrivalOrder(t *testing.T) {
	h := newHarness(t)

	var stories []string
	h.client.OnStateUpdate(func(s domain.GameDisplayData) {
		stories = append(stories, s.StoryString)
	})

	h.push("current_state", `{"storyString":"Once"}`, "true")
	h.push("current_state", "null", "false")
	h.push("current_state", `{"storyString":"Once upon"}`, "false")
	h.push("current_state", `{"storyString":"Once upon a"}`, "false")

	assert.Equal(t, []string{"Once", "Once upon", "Once upon a"}, stories)
	assert.Equal(t, 1, h.client.Pending(), "persistent subscription stays registered")
}

func TestOnJoinedGameIgnoresNonInitial(t *testing.T) {
	h := newHarness(t)

	calls := 0
	h.client.OnJoinedGame(func(domain.GameDisplayData) { calls++ })

	h.push("current_state", `{"players":[]}`, "false")
	h.push("JPL:out:in_pool", `{"code":"SUCCESS"}`, "true")
	h.push("current_state", "null", "true")
	assert.Equal(t, 0, calls)

	h.push("current_state", `{"players":[]}`, "true")
	h.push("current_state", `{"players":[]}`, "true")
	assert.Equal(t, 2, calls, "the registry does not enforce single firing")
}

func TestOnGameEnded(t *testing.T) {
	h := newHarness(t)

	var ended []domain.GameEndStats
	h.client.OnGameEnded(func(s domain.GameEndStats) { ended = append(ended, s) })

	h.push("PGE:out", "null")
	require.Empty(t, ended)

	h.push("PGE:out", `{"id":"p1","displayName":"Alice","stats":[{"Words":{"Submitted":{"value":7,"suffix":"words"}}}]}`)
	require.Len(t, ended, 1)
	assert.Equal(t, "Alice", ended[0].DisplayName)

	rows := ended[0].Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Words / Submitted", rows[0].Label())
	assert.Equal(t, "7 words", rows[0].Value.String())
}

func TestSubscriptionDecodeErrorReported(t *testing.T) {
	var errs []error
	h := newHarness(t, WithErrorHandler(func(err error) { errs = append(errs, err) }))

	calls := 0
	h.client.OnStateUpdate(func(domain.GameDisplayData) { calls++ })

	h.push("current_state", "{broken", "false")
	h.push("current_state", `{"storyString":"ok"}`, "false")

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrPayloadDecode)
	assert.Contains(t, errs[0].Error(), "state_update")
	assert.Equal(t, 1, calls, "subscription survives a bad payload")
}

func TestUnsubscribe(t *testing.T) {
	h := newHarness(t)

	calls := 0
	unsubscribe := h.client.OnGameEnded(func(domain.GameEndStats) { calls++ })
	require.Equal(t, 1, h.client.Pending())

	unsubscribe()
	h.push("PGE:out", `{"id":"p1","stats":[]}`)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, h.client.Pending())
}

func TestSubscriptionsAndCommandShareFrames(t *testing.T) {
	h := newHarness(t)

	states := 0
	h.client.OnStateUpdate(func(domain.GameDisplayData) { states++ })

	ch := goSubmit(h, t.Context(), "dog")
	h.transport.next(t)

	h.push("current_state", `{"storyString":"The dog"}`, "false")
	h.push("SW:out", `{"code":"SUCCESS"}`)

	r := recv(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, 1, states)
	assert.Equal(t, 1, h.client.Pending())
}
