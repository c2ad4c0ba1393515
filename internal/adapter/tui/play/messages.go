// Package play implements the Bubble Tea screen a player uses to join a
// lobby, add words to the story and read the end-of-game statistics.
package play

import (
	"wordstory/internal/domain"
	"wordstory/internal/usecase/game"
)

// SnapshotMsg carries a session transition into the program.
type SnapshotMsg struct {
	Snapshot game.Snapshot
}

// joinDoneMsg reports the end of the connect and join sequence.
type joinDoneMsg struct {
	Err error
}

// submitDoneMsg reports the server's answer to a submitted word.
type submitDoneMsg struct {
	Word   string
	Result domain.SubmitResult
	Err    error
}

// leaveDoneMsg reports that the leave notice was sent.
type leaveDoneMsg struct {
	Err error
}

// sessionDoneMsg reports that the session reached a terminal phase.
type sessionDoneMsg struct {
	Err error
}
