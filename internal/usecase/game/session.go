package game

import (
	"sync"

	"wordstory/internal/domain"
)

// Phase is where a player is in the play flow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseJoining
	PhaseWaiting // in the lobby pool, no game yet
	PhasePlaying
	PhaseEnded
	PhaseLeft
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseJoining:
		return "joining"
	case PhaseWaiting:
		return "waiting"
	case PhasePlaying:
		return "playing"
	case PhaseEnded:
		return "ended"
	case PhaseLeft:
		return "left"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are expected.
func (p Phase) Terminal() bool {
	return p == PhaseEnded || p == PhaseLeft || p == PhaseFailed
}

// Snapshot is a copy of the session at one point in time.
type Snapshot struct {
	Phase       Phase
	DisplayName string
	PlayerID    string
	State       *domain.GameDisplayData
	Stats       *domain.GameEndStats
	LastSubmit  *domain.SubmitResult
	Err         error
}

// MyTurn reports whether the current turn belongs to this player.
func (s Snapshot) MyTurn() bool {
	return s.State != nil && s.State.CurrentPlayerTurn != nil &&
		s.PlayerID != "" && s.State.CurrentPlayerTurn.ID == s.PlayerID
}

// Session holds one player's state for one game. Transitions are safe for
// concurrent use: they arrive from the delivery goroutine and from callers.
type Session struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Session) begin(displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{Phase: PhaseJoining, DisplayName: displayName}
}

// joined records the lobby answer. A game that already started stays started.
func (s *Session) joined(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.PlayerID = playerID
	if s.snap.Phase == PhaseJoining {
		s.snap.Phase = PhaseWaiting
	}
}

// start records the initial game state. It reports false if the game had
// already started, so a repeated initial marker is ignored.
func (s *Session) start(state domain.GameDisplayData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Phase == PhasePlaying || s.snap.Phase.Terminal() {
		return false
	}
	s.snap.Phase = PhasePlaying
	s.snap.State = &state
	return true
}

func (s *Session) update(state domain.GameDisplayData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Phase.Terminal() {
		return
	}
	s.snap.State = &state
}

func (s *Session) submitted(res domain.SubmitResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastSubmit = &res
}

// end records the game statistics. It reports false if the session was
// already finished.
func (s *Session) end(stats domain.GameEndStats) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Phase.Terminal() {
		return false
	}
	s.snap.Phase = PhaseEnded
	s.snap.Stats = &stats
	return true
}

func (s *Session) leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snap.Phase.Terminal() {
		s.snap.Phase = PhaseLeft
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Phase.Terminal() {
		return
	}
	s.snap.Phase = PhaseFailed
	s.snap.Err = err
}
