package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordstory/internal/domain"
)

type memorySaver struct {
	mu    sync.Mutex
	saved []domain.GameEndStats
	err   error
}

func (m *memorySaver) Save(_ context.Context, s domain.GameEndStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, s)
	return m.err
}

type phaseLog struct {
	mu     sync.Mutex
	phases []Phase
}

func (p *phaseLog) observe(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.phases); n == 0 || p.phases[n-1] != s.Phase {
		p.phases = append(p.phases, s.Phase)
	}
}

func (p *phaseLog) get() []Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Phase(nil), p.phases...)
}

func goRunnerJoin(r *Runner, name string) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- r.Join(context.Background(), name) }()
	return ch
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("timed out")
		return nil
	}
}

func TestRunnerPlaysToGameEnd(t *testing.T) {
	h := newHarness(t)
	saver := &memorySaver{}
	log := &phaseLog{}
	r := NewRunner(h.client, WithStatsSaver(saver), WithObserver(log.observe))

	joinErr := goRunnerJoin(r, "Alice")
	assert.Equal(t, "Alice", h.transport.next(t).Field(1))
	require.Equal(t, 2, h.client.Pending(), "joined-game subscription precedes the join command")

	h.push("JPL:out:in_pool", `{"code":"SUCCESS"}`, "p1")
	require.NoError(t, waitErr(t, joinErr))
	assert.Equal(t, PhaseWaiting, r.Session().Snapshot().Phase)

	h.push("current_state", `{"players":[{"id":"p1","displayName":"Alice"}],"currentPlayerTurn":{"id":"p1"}}`, "true")
	snap := r.Session().Snapshot()
	assert.Equal(t, PhasePlaying, snap.Phase)
	assert.True(t, snap.MyTurn())

	h.push("current_state", `{"storyString":"Once","currentPlayerTurn":{"id":"p2"}}`, "false")
	snap = r.Session().Snapshot()
	assert.Equal(t, "Once", snap.State.StoryString)
	assert.False(t, snap.MyTurn())

	h.push("PGE:out", `{"id":"p1","displayName":"Alice","stats":[]}`)

	select {
	case <-r.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("runner did not finish")
	}
	require.NoError(t, r.Wait(context.Background()))

	snap = r.Session().Snapshot()
	assert.Equal(t, PhaseEnded, snap.Phase)
	require.NotNil(t, snap.Stats)
	assert.Equal(t, "p1", snap.Stats.ID)

	require.Len(t, saver.saved, 1)
	assert.Equal(t, 0, h.client.Pending(), "all subscriptions dropped after the game")
	assert.Equal(t, []Phase{PhaseJoining, PhaseWaiting, PhasePlaying, PhaseEnded}, log.get())
}

func TestRunnerJoinRefused(t *testing.T) {
	h := newHarness(t)
	r := NewRunner(h.client)

	joinErr := goRunnerJoin(r, "")
	h.transport.next(t)
	h.push("JPL:out:in_pool", `{"code":"INVALID_DISPLAY_NAME","message":"too short"}`, "")

	err := waitErr(t, joinErr)
	require.ErrorIs(t, err, domain.ErrJoinRefused)
	assert.Contains(t, err.Error(), "INVALID_DISPLAY_NAME")

	snap := r.Session().Snapshot()
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.ErrorIs(t, snap.Err, domain.ErrJoinRefused)
	assert.Equal(t, 0, h.client.Pending())

	select {
	case <-r.Done():
	default:
		t.Fatal("Done should be closed after a refused join")
	}
}

func TestRunnerJoinTimeout(t *testing.T) {
	h := newHarness(t, WithJoinWatchdog(5*time.Millisecond, 2))
	r := NewRunner(h.client)

	err := r.Join(context.Background(), "Alice")
	require.ErrorIs(t, err, domain.ErrTimeout)
	assert.True(t, strings.HasPrefix(err.Error(), "join lobby: "), err.Error())
	assert.Equal(t, PhaseFailed, r.Session().Snapshot().Phase)
	assert.Equal(t, 0, h.client.Pending())
}

func TestRunnerSubmit(t *testing.T) {
	h := newHarness(t)
	r := NewRunner(h.client)

	_, err := r.Submit(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	h.transport.assertNothingSent(t)

	ch := make(chan error, 1)
	go func() {
		_, err := r.Submit(context.Background(), " fox ")
		ch <- err
	}()
	assert.Equal(t, "fox", h.transport.next(t).Field(1))
	h.push("SW:out", `{"code":"SUCCESS"}`)

	require.NoError(t, waitErr(t, ch))
	require.NotNil(t, r.Session().Snapshot().LastSubmit)
	assert.True(t, r.Session().Snapshot().LastSubmit.OK())
}

func TestRunnerIgnoresRepeatedInitialState(t *testing.T) {
	h := newHarness(t)
	r := NewRunner(h.client)

	joinErr := goRunnerJoin(r, "Alice")
	h.transport.next(t)
	h.push("JPL:out:in_pool", `{"code":"SUCCESS"}`, "p1")
	require.NoError(t, waitErr(t, joinErr))

	h.push("current_state", `{"storyString":"a"}`, "true")
	before := h.client.Pending()
	h.push("current_state", `{"storyString":"b"}`, "true")

	assert.Equal(t, before, h.client.Pending(), "no duplicate subscriptions")
	assert.Equal(t, "b", r.Session().Snapshot().State.StoryString)
}

func TestRunnerNullInitialStateKeepsWaiting(t *testing.T) {
	h := newHarness(t)
	r := NewRunner(h.client)

	joinErr := goRunnerJoin(r, "Alice")
	h.transport.next(t)
	h.push("JPL:out:in_pool", `{"code":"SUCCESS"}`, "p1")
	require.NoError(t, waitErr(t, joinErr))

	h.push("current_state", "null", "true")

	snap := r.Session().Snapshot()
	assert.Equal(t, PhaseWaiting, snap.Phase)
	assert.Nil(t, snap.State)
}

func TestRunnerLeave(t *testing.T) {
	h := newHarness(t)
	r := NewRunner(h.client)

	require.NoError(t, r.Leave(context.Background()))
	assert.Equal(t, "leave", h.transport.next(t).Field(0))
	assert.Equal(t, PhaseLeft, r.Session().Snapshot().Phase)
	<-r.Done()
}

func TestRunnerWaitDisconnect(t *testing.T) {
	h := newHarness(t)
	r := NewRunner(h.client)

	h.transport.disconnect()
	err := r.Wait(context.Background())
	require.True(t, errors.Is(err, domain.ErrDisconnected))
	assert.Equal(t, PhaseFailed, r.Session().Snapshot().Phase)
}

func TestRunnerSaveFailureStillEnds(t *testing.T) {
	h := newHarness(t)
	saver := &memorySaver{err: domain.ErrStatsStore}
	r := NewRunner(h.client, WithStatsSaver(saver))

	joinErr := goRunnerJoin(r, "Alice")
	h.transport.next(t)
	h.push("JPL:out:in_pool", `{"code":"SUCCESS"}`, "p1")
	require.NoError(t, waitErr(t, joinErr))
	h.push("current_state", `{}`, "true")
	h.push("PGE:out", `{"id":"p1","stats":[]}`)

	<-r.Done()
	assert.Equal(t, PhaseEnded, r.Session().Snapshot().Phase)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "waiting", PhaseWaiting.String())
	assert.Equal(t, "unknown", Phase(42).String())
	assert.True(t, PhaseLeft.Terminal())
	assert.False(t, PhasePlaying.Terminal())
}
