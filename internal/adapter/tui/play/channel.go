package play

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"wordstory/internal/usecase/game"
)

// Screen hosts the play model in a Bubble Tea program and forwards session
// transitions to it.
type Screen struct {
	logger  *slog.Logger
	program atomic.Pointer[tea.Program]
	opts    []tea.ProgramOption
}

// NewScreen creates a screen. Extra program options are appended to the
// defaults, which is how tests swap the terminal for buffers.
func NewScreen(logger *slog.Logger, opts ...tea.ProgramOption) *Screen {
	return &Screen{logger: logger, opts: opts}
}

// Observe forwards a snapshot to the running program. Snapshots published
// while no program is running are dropped.
func (s *Screen) Observe(snap game.Snapshot) {
	if p := s.program.Load(); p != nil {
		p.Send(SnapshotMsg{Snapshot: snap})
	}
}

// Run starts the program and blocks until the player quits. It returns the
// error that ended the session, if any.
func (s *Screen) Run(ctx context.Context, deps Deps) error {
	if deps.Logger == nil {
		deps.Logger = s.logger
	}
	opts := append([]tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	}, s.opts...)
	p := tea.NewProgram(NewModel(ctx, deps), opts...)
	s.program.Store(p)
	defer s.program.Store(nil)

	final, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		s.logger.Error("play: program exited", "error", err)
		return err
	}
	if m, ok := final.(Model); ok {
		return m.Err()
	}
	return nil
}
