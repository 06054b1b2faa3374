// Package codec serializes records to and from their on-disk textual
// representation: a delimited metadata block followed by raw content.
package codec

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/memvault-mcp/pkg/types"
)

// Delimiter is the line that opens and closes the metadata block.
const Delimiter = "---"

// TimestampLayout is the wire format for the timestamp metadata field.
// RFC3339Nano keeps sub-second precision; time.Parse with this layout also
// accepts plain RFC3339 values.
const TimestampLayout = time.RFC3339Nano

// Encode produces the on-disk representation of a record:
//
//	---
//	id: a1b2c3d4
//	timestamp: 2026-08-23T10:04:05.123456789Z
//	agent: claude
//	user: dave
//	topics: [go, testing]
//	---
//
//	<content>
func Encode(r *types.Record) []byte {
	var b strings.Builder
	b.WriteString(Delimiter + "\n")
	fmt.Fprintf(&b, "id: %s\n", r.ID)
	fmt.Fprintf(&b, "timestamp: %s\n", r.Timestamp.Format(TimestampLayout))
	fmt.Fprintf(&b, "agent: %s\n", r.Agent)
	fmt.Fprintf(&b, "user: %s\n", r.User)
	fmt.Fprintf(&b, "topics: [%s]\n", strings.Join(r.Topics, ", "))
	b.WriteString(Delimiter + "\n")
	b.WriteString("\n")
	b.WriteString(r.Content)
	return []byte(b.String())
}

// Decode parses the on-disk representation of a record. It never panics:
// any structural problem yields a *types.ParseError.
func Decode(data []byte) (*types.Record, error) {
	front, body, err := splitMetadata(string(data))
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	for _, line := range strings.Split(front, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			// Tolerated: Encode never emits such lines, but a stray one
			// should not poison the surrounding fields.
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	for _, required := range []string{"id", "timestamp", "agent", "user", "topics"} {
		if _, ok := fields[required]; !ok {
			return nil, &types.ParseError{Reason: fmt.Sprintf("missing required field %q", required)}
		}
	}

	id := fields["id"]
	if !types.ValidID(id) {
		return nil, &types.ParseError{Reason: fmt.Sprintf("malformed id %q", id)}
	}

	ts, err := time.Parse(TimestampLayout, fields["timestamp"])
	if err != nil {
		return nil, &types.ParseError{Reason: fmt.Sprintf("malformed timestamp %q", fields["timestamp"])}
	}

	topics, err := parseTopics(fields["topics"])
	if err != nil {
		return nil, err
	}

	return &types.Record{
		ID:        id,
		Timestamp: ts,
		Agent:     fields["agent"],
		User:      fields["user"],
		Topics:    topics,
		// Content keeps its internal formatting; only the very edges are
		// trimmed, matching the blank line encode inserts after the block.
		Content: strings.TrimSpace(body),
	}, nil
}

// splitMetadata separates the metadata block from the content. The input
// must begin with the opening delimiter line; the block ends at the first
// subsequent delimiter line.
func splitMetadata(s string) (front, body string, err error) {
	if !strings.HasPrefix(s, Delimiter+"\n") {
		return "", "", &types.ParseError{Reason: "missing opening delimiter"}
	}
	rest := s[len(Delimiter)+1:]

	// The closing delimiter is a whole line, so it is preceded by the
	// newline that terminates the last metadata line.
	if i := strings.Index(rest, "\n"+Delimiter+"\n"); i >= 0 {
		return rest[:i], rest[i+len(Delimiter)+2:], nil
	}
	if strings.HasSuffix(rest, "\n"+Delimiter) {
		return rest[:len(rest)-len(Delimiter)-1], "", nil
	}
	return "", "", &types.ParseError{Reason: "missing closing delimiter"}
}

// parseTopics parses a bracketed comma list: [a, b, c]. Entries are
// trimmed, stray quotes from older writers are stripped, and empties are
// discarded.
func parseTopics(value string) ([]string, error) {
	if !strings.HasPrefix(value, "[") || !strings.HasSuffix(value, "]") {
		return nil, &types.ParseError{Reason: fmt.Sprintf("unparsable topics value %q", value)}
	}
	inner := value[1 : len(value)-1]
	var topics []string
	for _, part := range strings.Split(inner, ",") {
		topic := strings.Trim(strings.TrimSpace(part), `"'`)
		if topic != "" {
			topics = append(topics, topic)
		}
	}
	return topics, nil
}
