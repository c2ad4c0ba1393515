package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"wordstory/internal/domain"
)

const statsSaveTimeout = 5 * time.Second

// StatsSaver persists the statistics of a finished game.
type StatsSaver interface {
	Save(ctx context.Context, stats domain.GameEndStats) error
}

// Runner drives one player through join, play and game end, keeping the
// outcome in a Session and reporting every transition to an observer.
type Runner struct {
	client  *Client
	session *Session
	saver   StatsSaver
	logger  *slog.Logger
	observe func(Snapshot)

	mu     sync.Mutex
	unsubs []func()
	done   chan struct{}
	once   sync.Once
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStatsSaver persists game-end statistics.
func WithStatsSaver(s StatsSaver) RunnerOption {
	return func(r *Runner) { r.saver = s }
}

// WithObserver is called after every session transition. It runs on the
// goroutine that caused the transition and must not block.
func WithObserver(fn func(Snapshot)) RunnerOption {
	return func(r *Runner) { r.observe = fn }
}

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a runner over client.
func NewRunner(client *Client, opts ...RunnerOption) *Runner {
	r := &Runner{
		client:  client,
		session: NewSession(),
		logger:  slog.Default(),
		observe: func(Snapshot) {},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Session returns the runner's session.
func (r *Runner) Session() *Session { return r.session }

// Done is closed once the session reaches a terminal phase.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Join subscribes to the game start and then joins the lobby. The game
// subscription goes first so an initial state pushed right after the join
// answer is not missed. A refusal is returned as domain.ErrJoinRefused.
func (r *Runner) Join(ctx context.Context, displayName string) error {
	r.session.begin(displayName)
	r.publish()

	r.track(r.client.OnJoinedGame(r.handleJoined))

	res, err := r.client.JoinLobby(ctx, displayName)
	if err != nil {
		err = domain.WrapOp("join lobby", err)
		r.finish(func() { r.session.fail(err) })
		return err
	}
	if !res.Result.OK() {
		err := domain.NewDomainError("join lobby", domain.ErrJoinRefused,
			fmt.Sprintf("%s %s", res.Result.Code, res.Result.Message))
		r.finish(func() { r.session.fail(err) })
		return err
	}

	r.session.joined(res.PlayerID)
	r.logger.Info("game: joined lobby", "player_id", res.PlayerID, "display_name", displayName)
	r.publish()
	return nil
}

// Submit sends a word for the current turn. Blank words are rejected locally
// with domain.ErrInvalidInput and never sent.
func (r *Runner) Submit(ctx context.Context, word string) (domain.SubmitResult, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return domain.SubmitResult{}, fmt.Errorf("submit word: %w: empty word", domain.ErrInvalidInput)
	}
	res, err := r.client.SubmitWord(ctx, word)
	if err != nil {
		return res, domain.WrapOp("submit word", err)
	}
	r.session.submitted(res)
	r.publish()
	return res, nil
}

// Leave notifies the server and ends the session locally.
func (r *Runner) Leave(ctx context.Context) error {
	err := r.client.Leave(ctx)
	r.finish(r.session.leave)
	return err
}

// Wait blocks until the session is terminal, the connection drops or ctx ends.
func (r *Runner) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.session.Snapshot().Err
	case <-r.client.Done():
		r.finish(func() { r.session.fail(domain.ErrDisconnected) })
		return r.session.Snapshot().Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) handleJoined(state domain.GameDisplayData) {
	if !r.session.start(state) {
		r.logger.Debug("game: ignoring repeated initial state")
		return
	}
	r.logger.Info("game: started", "players", len(state.Players))
	r.track(r.client.OnStateUpdate(r.handleState))
	r.track(r.client.OnGameEnded(r.handleEnded))
	r.publish()
}

func (r *Runner) handleState(state domain.GameDisplayData) {
	r.session.update(state)
	r.publish()
}

func (r *Runner) handleEnded(stats domain.GameEndStats) {
	if !r.session.end(stats) {
		return
	}
	r.logger.Info("game: ended", "player_id", stats.ID, "rows", len(stats.Rows()))
	if r.saver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), statsSaveTimeout)
		if err := r.saver.Save(ctx, stats); err != nil {
			r.logger.Error("game: failed to save stats", "error", err)
		}
		cancel()
	}
	r.finish(nil)
}

func (r *Runner) track(unsubscribe func()) {
	r.mu.Lock()
	r.unsubs = append(r.unsubs, unsubscribe)
	r.mu.Unlock()
}

// finish applies transition, drops every subscription and closes Done.
func (r *Runner) finish(transition func()) {
	if transition != nil {
		transition()
	}
	r.once.Do(func() {
		r.mu.Lock()
		unsubs := r.unsubs
		r.unsubs = nil
		r.mu.Unlock()
		for _, unsubscribe := range unsubs {
			unsubscribe()
		}
		close(r.done)
	})
	r.publish()
}

func (r *Runner) publish() {
	r.observe(r.session.Snapshot())
}
