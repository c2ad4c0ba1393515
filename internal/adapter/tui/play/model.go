package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wordstory/internal/adapter/tui/components"
	"wordstory/internal/adapter/tui/theme"
	"wordstory/internal/adapter/tui/uxerror"
	"wordstory/internal/domain"
	"wordstory/internal/usecase/game"
)

// Player is the play flow the screen drives.
type Player interface {
	Join(ctx context.Context, displayName string) error
	Submit(ctx context.Context, word string) (domain.SubmitResult, error)
	Leave(ctx context.Context) error
	Wait(ctx context.Context) error
}

// Deps are dependencies injected into the play model.
type Deps struct {
	Player      Player
	WaitReady   func(ctx context.Context) error // nil skips the readiness wait
	DisplayName string
	Logger      *slog.Logger
}

// Model is the root Bubble Tea model of the play screen.
type Model struct {
	ctx  context.Context
	deps Deps

	input     textinput.Model
	spinner   spinner.Model
	statusBar components.StatusBarModel

	snap       game.Snapshot
	connecting bool
	submitting bool
	leaving    bool
	errText    string
	err        error
	width      int
	height     int
}

// NewModel creates the play model.
func NewModel(ctx context.Context, deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	in := textinput.New()
	in.Placeholder = "your word"
	in.Prompt = theme.InputPrompt.Render(theme.SymbolTurn + " ")
	in.PlaceholderStyle = theme.InputPlaceholder
	in.CharLimit = 64
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	sb := components.NewStatusBar()
	sb.PlayerName = deps.DisplayName

	m := Model{
		ctx:        ctx,
		deps:       deps,
		input:      in,
		spinner:    s,
		statusBar:  sb,
		connecting: true,
		snap:       game.Snapshot{Phase: game.PhaseIdle, DisplayName: deps.DisplayName},
	}
	m.refreshStatus()
	return m
}

// Err returns the error that ended the session, if any.
func (m Model) Err() error { return m.err }

// Snapshot returns the last session state the model has seen.
func (m Model) Snapshot() game.Snapshot { return m.snap }

// Init starts the connect and join sequence.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		joinCmd(m.ctx, m.deps),
		waitCmd(m.ctx, m.deps.Player),
	)
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.SetWidth(msg.Width)
		m.input.Width = theme.Clamp(msg.Width-6, 10, theme.MaxContentWidth)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SnapshotMsg:
		m.snap = msg.Snapshot
		if m.snap.Phase != game.PhaseIdle {
			m.connecting = false
		}
		if m.snap.Err != nil {
			m.err = m.snap.Err
		}
		m.refreshStatus()
		return m, nil

	case joinDoneMsg:
		m.connecting = false
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.deps.Logger.Warn("play: join failed", "error", msg.Err)
			m.err = msg.Err
			m.errText = uxerror.Humanize(msg.Err).Render()
		}
		m.refreshStatus()
		return m, nil

	case submitDoneMsg:
		m.submitting = false
		if msg.Err != nil {
			m.errText = uxerror.Humanize(msg.Err).Render()
			return m, nil
		}
		m.errText = ""
		m.statusBar.Extra = uxerror.ResponseText(msg.Result)
		if msg.Result.OK() {
			m.input.Reset()
		}
		return m, nil

	case leaveDoneMsg:
		if msg.Err != nil {
			m.deps.Logger.Debug("play: leave notice failed", "error", msg.Err)
		}
		return m, tea.Quit

	case sessionDoneMsg:
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.err = msg.Err
			if m.errText == "" {
				m.errText = uxerror.Humanize(msg.Err).Render()
			}
		}
		m.refreshStatus()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m.quit()
	case tea.KeyEnter:
		return m.submit()
	}
	if msg.String() == "q" && m.finished() {
		return m.quit()
	}
	if !m.canType() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if !m.canType() || m.submitting {
		return m, nil
	}
	word := strings.TrimSpace(m.input.Value())
	if word == "" {
		m.errText = uxerror.Humanize(domain.ErrInvalidInput).Render()
		return m, nil
	}
	m.errText = ""
	m.submitting = true
	m.statusBar.Extra = "Submitting" + theme.SymbolEllipsis
	return m, submitCmd(m.ctx, m.deps.Player, word)
}

// quit leaves an unfinished game before exiting.
func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.finished() || m.connecting {
		return m, tea.Quit
	}
	if m.leaving {
		return m, nil
	}
	m.leaving = true
	m.statusBar.Extra = "Leaving" + theme.SymbolEllipsis
	return m, leaveCmd(context.WithoutCancel(m.ctx), m.deps.Player)
}

func (m Model) finished() bool {
	return m.snap.Phase.Terminal() || m.err != nil
}

func (m Model) canType() bool {
	return m.snap.Phase == game.PhasePlaying && m.snap.MyTurn() && !m.finished()
}

func (m *Model) refreshStatus() {
	m.statusBar.Phase = m.snap.Phase.String()
	// The server may normalize the name it was given.
	if m.snap.State != nil {
		if me, ok := m.snap.State.Player(m.snap.PlayerID); ok && me.DisplayName != "" {
			m.statusBar.PlayerName = me.DisplayName
		}
	}
	switch {
	case m.finished():
		m.statusBar.Hints = []components.KeyHint{{Key: "q", Desc: "Quit"}}
	case m.canType():
		m.statusBar.Hints = []components.KeyHint{{Key: "Enter", Desc: "Submit"}, {Key: "Esc", Desc: "Leave"}}
	default:
		m.statusBar.Hints = []components.KeyHint{{Key: "Esc", Desc: "Leave"}}
	}
}

// View renders the screen.
func (m Model) View() string {
	width := theme.Clamp(m.width, 40, theme.MaxContentWidth)
	if m.width == 0 {
		width = 80
	}

	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Word Story"))
	sb.WriteString("\n")
	sb.WriteString(m.body(width))
	sb.WriteString("\n")
	if m.errText != "" {
		sb.WriteString("\n")
		sb.WriteString(theme.TextError.Render(m.errText))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.statusBar.View())
	return sb.String()
}

func (m Model) body(width int) string {
	switch m.snap.Phase {
	case game.PhaseEnded:
		if m.snap.Stats != nil {
			return components.RenderMarkdown(components.StatsMarkdown(*m.snap.Stats), width)
		}
		return theme.TextMuted.Render("The game has ended.")
	case game.PhaseLeft:
		return theme.TextMuted.Render("You left the game.")
	case game.PhaseFailed:
		return theme.TextError.Render(theme.SymbolError + " The session ended unexpectedly.")
	case game.PhasePlaying:
		return m.playing(width)
	case game.PhaseWaiting:
		return m.spinner.View() + " Waiting for other players" + theme.SymbolEllipsis
	case game.PhaseJoining:
		return m.spinner.View() + " Joining the lobby" + theme.SymbolEllipsis
	}
	if m.err != nil {
		return theme.TextError.Render(theme.SymbolError + " Could not join.")
	}
	return m.spinner.View() + " Connecting to the server" + theme.SymbolEllipsis
}

func (m Model) playing(width int) string {
	state := m.snap.State
	if state == nil {
		return ""
	}

	var players []string
	for _, p := range state.Players {
		name := p.DisplayName
		if p.ID == m.snap.PlayerID {
			name += " (you)"
		}
		if p.IsCurrentTurnPlayer {
			players = append(players, theme.CurrentPlayer.Render(theme.SymbolTurn+" "+name))
		} else {
			players = append(players, theme.OtherPlayer.Render("  "+name))
		}
	}

	story := state.StoryString
	if story == "" {
		story = theme.TextMuted.Render("The story is empty. Someone has to start" + theme.SymbolEllipsis)
	}
	box := theme.Story
	if m.snap.MyTurn() {
		box = theme.StoryActive
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(players, "\n"))
	sb.WriteString("\n\n")
	sb.WriteString(box.Width(width - 4).Render(story))
	sb.WriteString("\n")
	sb.WriteString(theme.Countdown.Render(fmt.Sprintf("%ds left in turn", state.SecondsLeftInTurn)))
	sb.WriteString("\n\n")

	switch {
	case m.canType():
		sb.WriteString(m.input.View())
	case state.CurrentPlayerTurn != nil:
		sb.WriteString(theme.TextMuted.Render("Waiting for " + state.CurrentPlayerTurn.DisplayName + theme.SymbolEllipsis))
	default:
		sb.WriteString(theme.TextMuted.Render("Waiting for the next turn" + theme.SymbolEllipsis))
	}
	if m.snap.LastSubmit != nil && !m.snap.LastSubmit.OK() {
		sb.WriteString("\n")
		sb.WriteString(theme.TextWarning.Render(theme.SymbolWarning + " " + uxerror.ResponseText(*m.snap.LastSubmit)))
	}
	return sb.String()
}
