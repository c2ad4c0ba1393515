package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ResCode is the result code carried by a server Response.
type ResCode string

const (
	ResSuccess            ResCode = "SUCCESS"
	ResFail               ResCode = "FAIL"
	ResPlayerNotFound     ResCode = "PLAYER_NOT_FOUND"
	ResGameDoesntExist    ResCode = "GAME_DOESNT_EXIST"
	ResGameRunning        ResCode = "GAME_RUNNING"
	ResOutOfTurn          ResCode = "OUT_OF_TURN"
	ResIDInUse            ResCode = "ID_IN_USE"
	ResInvalidDisplayName ResCode = "INVALID_DISPLAY_NAME"
	ResInvalidWord        ResCode = "INVALID_WORD"
)

// Response is the server's verdict on a command. A non-SUCCESS code is a
// normal answer, not a transport error.
type Response struct {
	Code    ResCode `json:"code"`
	Message string  `json:"message,omitempty"`
}

// OK reports whether the server accepted the command.
func (r Response) OK() bool { return r.Code == ResSuccess }

// JoinResult is the outcome of joining the public lobby.
type JoinResult struct {
	PlayerID string   `json:"playerId"`
	Result   Response `json:"result"`
}

// SubmitResult is the outcome of submitting a word.
type SubmitResult = Response

// PlayerDisplayData describes one player as shown during a game.
type PlayerDisplayData struct {
	ID                  string `json:"id"`
	DisplayName         string `json:"displayName"`
	IsCurrentTurnPlayer bool   `json:"isCurrentTurnPlayer"`
}

// GameDisplayData is a snapshot of a running game.
type GameDisplayData struct {
	Players           []PlayerDisplayData `json:"players"`
	CurrentPlayerTurn *PlayerDisplayData  `json:"currentPlayerTurn,omitempty"`
	StoryString       string              `json:"storyString"`
	SecondsLeftInTurn int                 `json:"secondsLeftInTurn"`
}

// Player returns the player with the given ID.
func (g GameDisplayData) Player(id string) (PlayerDisplayData, bool) {
	for _, p := range g.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerDisplayData{}, false
}

// GameEndStats is the per-player statistics payload pushed when a game ends.
type GameEndStats struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Stats       []StatNode `json:"stats"`
}

// StatValue is a leaf of a statistics tree.
type StatValue struct {
	Value  int    `json:"value"`
	Suffix string `json:"suffix,omitempty"`
}

func (v StatValue) String() string {
	if v.Suffix == "" {
		return fmt.Sprintf("%d", v.Value)
	}
	return fmt.Sprintf("%d %s", v.Value, v.Suffix)
}

// StatNode is either a leaf value or a map of named child nodes.
type StatNode struct {
	Leaf     *StatValue
	Children map[string]StatNode
}

// UnmarshalJSON accepts {"value":N,"suffix":S} leaves and nested objects.
func (n *StatNode) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if isLeaf(fields) {
		var v StatValue
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		n.Leaf = &v
		n.Children = nil
		return nil
	}
	n.Leaf = nil
	n.Children = make(map[string]StatNode, len(fields))
	for k, raw := range fields {
		var child StatNode
		if err := json.Unmarshal(raw, &child); err != nil {
			return fmt.Errorf("stat %q: %w", k, err)
		}
		n.Children[k] = child
	}
	return nil
}

// MarshalJSON writes the node back in the server's shape.
func (n StatNode) MarshalJSON() ([]byte, error) {
	if n.Leaf != nil {
		return json.Marshal(n.Leaf)
	}
	if n.Children == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(n.Children)
}

func isLeaf(fields map[string]json.RawMessage) bool {
	raw, ok := fields["value"]
	if !ok {
		return false
	}
	for k := range fields {
		if k != "value" && k != "suffix" {
			return false
		}
	}
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'))
}

// StatRow is one flattened leaf of a statistics tree.
type StatRow struct {
	Path  []string
	Value StatValue
}

// Label joins the row path for display.
func (r StatRow) Label() string { return strings.Join(r.Path, " / ") }

// Flatten walks the tree depth-first with keys in lexical order.
func (n StatNode) Flatten() []StatRow {
	var rows []StatRow
	n.flatten(nil, &rows)
	return rows
}

func (n StatNode) flatten(prefix []string, rows *[]StatRow) {
	if n.Leaf != nil {
		path := append([]string(nil), prefix...)
		*rows = append(*rows, StatRow{Path: path, Value: *n.Leaf})
		return
	}
	keys := make([]string, 0, len(n.Children))
	for k := range n.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Children[k].flatten(append(prefix, k), rows)
	}
}

// Rows flattens every stat tree of the payload in order.
func (s GameEndStats) Rows() []StatRow {
	var rows []StatRow
	for _, node := range s.Stats {
		rows = append(rows, node.Flatten()...)
	}
	return rows
}

// GameRecord is a stored game-end payload.
type GameRecord struct {
	ID          string
	PlayerID    string
	DisplayName string
	Stats       GameEndStats
	EndedAt     time.Time
}
