package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/akvo/dws-datapro-sub000/internal/common"
)

// AnswerMap holds a survey's answers keyed by question id (possibly suffixed
// with a repeat-group index, e.g. "12-1").
type AnswerMap map[string]any

// EscapeQuotes doubles single quotes so serialized payloads survive storage
// in single-quote-delimited literals.
func EscapeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// UnescapeQuotes reverses EscapeQuotes.
func UnescapeQuotes(s string) string {
	return strings.ReplaceAll(s, "''", "'")
}

// Encode serializes the answers for storage: JSON marshal, then quote
// escaping. An empty map encodes to "" so the column stays NULL-able.
func (m AnswerMap) Encode() (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode answers: %w", err)
	}
	return EscapeQuotes(string(data)), nil
}

// DecodeAnswers reverses Encode. A malformed blob is data corruption for
// that row: the error wraps common.ErrAnswersCorrupted so the caller can
// flag the specific record instead of rendering partial data.
func DecodeAnswers(s string) (AnswerMap, error) {
	if s == "" {
		return AnswerMap{}, nil
	}
	var m AnswerMap
	if err := json.Unmarshal([]byte(UnescapeQuotes(s)), &m); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrAnswersCorrupted, err)
	}
	return m, nil
}

// EncodeRepeats serializes repeated question-group instances
// ({groupId: [0, 1, ...]}) for the datapoints.repeats column.
func EncodeRepeats(repeats map[string][]int) (string, error) {
	if len(repeats) == 0 {
		return "", nil
	}
	data, err := json.Marshal(repeats)
	if err != nil {
		return "", fmt.Errorf("failed to encode repeats: %w", err)
	}
	return string(data), nil
}

// DecodeRepeats reverses EncodeRepeats.
func DecodeRepeats(s string) (map[string][]int, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string][]int
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("failed to decode repeats: %w", err)
	}
	return m, nil
}
