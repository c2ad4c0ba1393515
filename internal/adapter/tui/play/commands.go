package play

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const leaveTimeout = 2 * time.Second

func joinCmd(ctx context.Context, deps Deps) tea.Cmd {
	return func() tea.Msg {
		if deps.WaitReady != nil {
			if err := deps.WaitReady(ctx); err != nil {
				return joinDoneMsg{Err: err}
			}
		}
		return joinDoneMsg{Err: deps.Player.Join(ctx, deps.DisplayName)}
	}
}

func submitCmd(ctx context.Context, p Player, word string) tea.Cmd {
	return func() tea.Msg {
		res, err := p.Submit(ctx, word)
		return submitDoneMsg{Word: word, Result: res, Err: err}
	}
}

func leaveCmd(ctx context.Context, p Player) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, leaveTimeout)
		defer cancel()
		return leaveDoneMsg{Err: p.Leave(ctx)}
	}
}

func waitCmd(ctx context.Context, p Player) tea.Cmd {
	return func() tea.Msg {
		return sessionDoneMsg{Err: p.Wait(ctx)}
	}
}
