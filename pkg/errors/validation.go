package errors

import (
	"strconv"
	"strings"
	"unicode"
)

// maxTopicLength bounds channel topic names accepted by the hub.
const maxTopicLength = 128

// ValidateTopic validates a realtime channel topic name.
// Topics appear in URLs, so the rules are conservative:
//   - No empty names
//   - Maximum length of 128 characters
//   - Only letters, digits, '-', '_' and '.'
//   - No ".." sequences
func ValidateTopic(topic string) error {
	if topic == "" {
		return New(ErrCodeInvalidTopic, "topic cannot be empty")
	}
	if len(topic) > maxTopicLength {
		return New(ErrCodeInvalidTopic, "topic too long (max %d characters)", maxTopicLength)
	}
	if strings.Contains(topic, "..") {
		return New(ErrCodeInvalidTopic, "topic contains invalid sequence: %q", "..")
	}
	for _, r := range topic {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			continue
		}
		return New(ErrCodeInvalidTopic, "topic contains invalid character: %q", r)
	}
	return nil
}

// ValidateAttributeKey validates a model attribute key supplied from outside
// the process (HTTP bodies, channel payloads, CLI flags).
func ValidateAttributeKey(key string) error {
	if key == "" {
		return New(ErrCodeInvalidInput, "attribute key cannot be empty")
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "attribute key contains control characters")
		}
	}
	return nil
}

// ParseCID parses a child identifier from its decimal string form.
// Negative values are rejected since cids are assigned from zero upward.
func ParseCID(s string) (int, error) {
	cid, err := strconv.Atoi(s)
	if err != nil {
		return 0, Wrap(ErrCodeInvalidInput, err, "invalid cid %q", s)
	}
	if cid < 0 {
		return 0, New(ErrCodeInvalidInput, "invalid cid %d: must not be negative", cid)
	}
	return cid, nil
}
