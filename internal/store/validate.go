package store

import (
	"fmt"
	"strings"

	"github.com/dshills/memvault-mcp/pkg/types"
)

const (
	maxLabelLength = 256
	maxTopicLength = 128
	maxTopicCount  = 50
)

// validateInput rejects malformed caller input before any storage is
// touched. Content length is deliberately unbounded beyond being
// non-empty; labels and topics are single-line values because they live
// on metadata lines.
func validateInput(agent, user string, topics []string, content string) error {
	if err := validateLabel("agent", agent); err != nil {
		return err
	}
	if err := validateLabel("user", user); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return &types.ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if len(topics) > maxTopicCount {
		return &types.ValidationError{Field: "topics", Reason: fmt.Sprintf("at most %d topics allowed", maxTopicCount)}
	}
	for i, topic := range topics {
		field := fmt.Sprintf("topics[%d]", i)
		if strings.TrimSpace(topic) == "" {
			return &types.ValidationError{Field: field, Reason: "must not be empty"}
		}
		if len(topic) > maxTopicLength {
			return &types.ValidationError{Field: field, Reason: fmt.Sprintf("longer than %d characters", maxTopicLength)}
		}
		if strings.ContainsAny(topic, "\n\r,[]") {
			return &types.ValidationError{Field: field, Reason: "must not contain newlines, commas, or brackets"}
		}
	}
	return nil
}

func validateLabel(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &types.ValidationError{Field: field, Reason: "must not be empty"}
	}
	if len(value) > maxLabelLength {
		return &types.ValidationError{Field: field, Reason: fmt.Sprintf("longer than %d characters", maxLabelLength)}
	}
	if strings.ContainsAny(value, "\n\r") {
		return &types.ValidationError{Field: field, Reason: "must not contain newlines"}
	}
	return nil
}
