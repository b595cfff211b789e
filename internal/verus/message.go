package verus

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// MessageTypeArtifact is the rustc JSON message kind that reports a written
// output file. Those lines are noise to the user and are dropped.
const MessageTypeArtifact = "artifact"

// MessageType returns the "$message_type" field of a JSON diagnostic line,
// or "" when the line is not a JSON object or has no such field.
func MessageType(line string) string {
	if !gjson.Valid(line) {
		return ""
	}
	v := gjson.Get(line, `\$message_type`)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

// IsArtifactMessage reports whether line is a rustc artifact notification.
func IsArtifactMessage(line string) bool {
	return MessageType(line) == MessageTypeArtifact
}

// Summary is the parsed terminal line verus prints on stdout.
type Summary struct {
	Verified uint
	Failed   uint
}

const (
	summaryPrefix   = "verification results:: "
	summaryVerified = " verified, "
	summaryErrors   = " errors"
)

// ParseSummary matches the grammar
//
//	"verification results:: " <uint> " verified, " <uint> " errors"
//
// against the whole line.
func ParseSummary(line string) (Summary, bool) {
	rest, ok := strings.CutPrefix(line, summaryPrefix)
	if !ok {
		return Summary{}, false
	}
	verified, rest, ok := cutUint(rest)
	if !ok {
		return Summary{}, false
	}
	rest, ok = strings.CutPrefix(rest, summaryVerified)
	if !ok {
		return Summary{}, false
	}
	failed, rest, ok := cutUint(rest)
	if !ok || rest != summaryErrors {
		return Summary{}, false
	}
	return Summary{Verified: verified, Failed: failed}, true
}

// cutUint consumes a leading run of ASCII digits.
func cutUint(s string) (uint, string, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, s, false
	}
	n, err := strconv.ParseUint(s[:end], 10, 0)
	if err != nil {
		return 0, s, false
	}
	return uint(n), s[end:], true
}
