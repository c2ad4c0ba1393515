// Package uxerror translates raw errors into player-facing messages with
// recovery hints for the TUI and CLI.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"wordstory/internal/adapter/tui/theme"
	"wordstory/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Server Not Responding"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for debug)
}

// Render formats the FriendlyError for display.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Domain sentinels first so errors.Is works through wrapping.
	{
		match:   isErr(domain.ErrTimeout),
		produce: constantError("Server Not Responding", "The server did not answer the join request in time.", []string{"Try joining again", "Check server.url in config"}),
	},
	{
		match:   isErr(domain.ErrNotReady),
		produce: constantError("Not Connected", "The connection to the game server is not open yet.", []string{"Wait a moment and try again"}),
	},
	{
		match:   isErr(domain.ErrDisconnected),
		produce: constantError("Connection Lost", "The game server closed the connection.", []string{"Start a new game", "Check that the server is running"}),
	},
	{
		match:   isErr(domain.ErrPayloadDecode),
		produce: constantError("Unexpected Server Data", "The server sent a message this client could not read.", []string{"Make sure client and server versions match"}),
	},
	{
		match:   isErr(domain.ErrInvalidInput),
		produce: constantError("Nothing To Submit", "Type a word before pressing enter.", nil),
	},
	{
		match:   isErr(domain.ErrJoinRefused),
		produce: joinRefused,
	},
	{
		match:   isErr(domain.ErrDecryption),
		produce: constantError("Cannot Decrypt Config", "An enc: value in the config could not be decrypted.", []string{"Set WORDSTORY_CONFIG_KEY to the passphrase used to encrypt it"}),
	},
	{
		match:   isErr(domain.ErrConfigLoad),
		produce: constantError("Invalid Config", "The configuration file could not be loaded.", []string{"Check the YAML syntax", "Make sure the file is not group or world writable"}),
	},
	{
		match:   isErr(domain.ErrStatsStore),
		produce: constantError("Stats Unavailable", "The local statistics database could not be used.", []string{"Check store.path in config"}),
	},

	// Network patterns from the dialer.
	{
		match:   containsAny("connection refused", "dial tcp", "no such host"),
		produce: constantError("Connection Failed", "Could not reach the game server.", []string{"Check that the server is running", "Verify server.url in config"}),
	},
	{
		match:   containsAny("401", "403", "unauthorized", "forbidden"),
		produce: constantError("Access Denied", "The server rejected the connection.", []string{"Check server.token in config"}),
	},
	{
		match:   containsAny("deadline exceeded", "timeout"),
		produce: constantError("Timed Out", "The server took too long to respond.", []string{"Check your network connection", "Increase server.dial_timeout in config"}),
	},
}

// refusal explains each server result code.
var refusal = map[domain.ResCode]FriendlyError{
	domain.ResIDInUse:            {Title: "Already Playing", Message: "This player is already in a game.", Hints: []string{"Leave the other game first"}},
	domain.ResInvalidDisplayName: {Title: "Invalid Name", Message: "The server did not accept that display name.", Hints: []string{"Pick a different name"}},
	domain.ResGameRunning:        {Title: "Game In Progress", Message: "That game has already started."},
	domain.ResGameDoesntExist:    {Title: "No Such Game", Message: "The game no longer exists."},
}

func joinRefused(err error) FriendlyError {
	for code, fe := range refusal {
		if strings.Contains(err.Error(), string(code)) {
			fe.Raw = err.Error()
			return fe
		}
	}
	return FriendlyError{
		Title:   "Join Refused",
		Message: "The server did not let you join.",
		Hints:   []string{"Try again"},
		Raw:     err.Error(),
	}
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}
	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}
	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Run with logger.level: debug for more details"},
		Raw:     err.Error(),
	}
}

// ResponseText describes a server result code for the status line.
func ResponseText(res domain.Response) string {
	switch res.Code {
	case domain.ResSuccess:
		return "Word accepted"
	case domain.ResOutOfTurn:
		return "Not your turn"
	case domain.ResInvalidWord:
		return "The server rejected that word"
	case domain.ResPlayerNotFound:
		return "The server no longer knows this player"
	}
	if res.Message != "" {
		return fmt.Sprintf("%s: %s", res.Code, res.Message)
	}
	return string(res.Code)
}

func isErr(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
