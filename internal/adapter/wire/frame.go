// Package wire implements the delimited text framing used on the game socket.
//
// A frame is an ordered list of string fields joined by a single record
// separator byte. Field 0 is the message type tag. No escaping is done: a
// field that contains the separator shifts every later field on decode.
package wire

import (
	"strings"
)

// Separator is the ASCII record separator (0x1E). It is not expected to
// occur in display names, words or JSON payloads.
const Separator = "\x1e"

// Tag identifies the kind of frame.
type Tag string

// Outbound command tags.
const (
	TagJoin       Tag = "JPL"
	TagSubmitWord Tag = "SW"
	TagLeave      Tag = "leave"
)

// Inbound response and event tags.
const (
	TagJoinResponse   Tag = "JPL:out:in_pool"
	TagSubmitResponse Tag = "SW:out"
	TagState          Tag = "current_state"
	TagGameEnded      Tag = "PGE:out"
)

// Literal payload values the server uses in string fields.
const (
	LiteralTrue = "true"
	LiteralNull = "null"
)

// Frame is a decoded message: Frame[0] is the tag, the rest are payload fields.
type Frame []string

// Tag returns field 0 as a Tag, or "" for an empty frame.
func (f Frame) Tag() Tag {
	if len(f) == 0 {
		return ""
	}
	return Tag(f[0])
}

// Field returns field i, or "" when the frame is shorter.
func (f Frame) Field(i int) string {
	if i < 0 || i >= len(f) {
		return ""
	}
	return f[i]
}

// Is reports whether the frame carries the given tag.
func (f Frame) Is(tag Tag) bool { return f.Tag() == tag }

// String renders the frame for logs with a visible separator.
func (f Frame) String() string { return strings.Join(f, " | ") }

// Encode joins fields with the separator.
func Encode(fields ...string) string {
	return strings.Join(fields, Separator)
}

// Decode splits a raw message into its fields. A message without a
// separator yields one field; an empty message yields [""].
func Decode(raw string) Frame {
	return strings.Split(raw, Separator)
}

// NewFrame builds an outbound frame from a tag and payload fields.
func NewFrame(tag Tag, fields ...string) Frame {
	f := make(Frame, 0, len(fields)+1)
	f = append(f, string(tag))
	return append(f, fields...)
}

// Encode joins the frame's fields with the separator.
func (f Frame) Encode() string { return Encode(f...) }

// Unsafe returns the index of the first field containing the separator, or -1.
// Such a frame still encodes, but will decode with shifted fields.
func Unsafe(fields ...string) int {
	for i, s := range fields {
		if strings.Contains(s, Separator) {
			return i
		}
	}
	return -1
}
