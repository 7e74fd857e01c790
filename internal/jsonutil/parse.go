// Package jsonutil provides utilities for extracting and parsing JSON from
// LLM responses that may be wrapped in markdown code fences, preceded by
// reasoning blocks, or embedded in prose.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// thinkBlockRe matches reasoning blocks emitted by models such as DeepSeek R1.
// The content between the tags is dropped before JSON extraction.
var thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes <think>...</think> blocks from text.
func StripReasoning(text string) string {
	return thinkBlockRe.ReplaceAllString(text, "")
}

// StripMarkdownFences removes ```json ... ``` or ``` ... ``` wrapping from text.
// Returns the content between the fences, or the original text if no fences are found.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}

	startIdx := 1 // skip the opening ``` line
	endIdx := len(lines)

	// Find the closing ```. A truncated reply may never close the fence;
	// everything after the opening line is kept in that case.
	for i := len(lines) - 1; i >= startIdx; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}

	return strings.Join(lines[startIdx:endIdx], "\n")
}

// ExtractJSON finds and returns the JSON content (object or array) from text
// that may contain surrounding non-JSON content.
// It finds the first { or [ and matches it with the last corresponding } or ].
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	objIdx := strings.Index(text, "{")
	arrIdx := strings.Index(text, "[")

	if objIdx == -1 && arrIdx == -1 {
		return "", fmt.Errorf("no JSON content found")
	}

	// Determine which delimiter comes first
	var startIdx int
	var endChar string

	if arrIdx == -1 || (objIdx != -1 && objIdx <= arrIdx) {
		startIdx = objIdx
		endChar = "}"
	} else {
		startIdx = arrIdx
		endChar = "]"
	}

	text = text[startIdx:]
	endIdx := strings.LastIndex(text, endChar)
	if endIdx == -1 {
		return "", fmt.Errorf("no closing %s found", endChar)
	}

	return text[:endIdx+1], nil
}

// ParseInto strips reasoning blocks and markdown fences from raw LLM response
// text, extracts the JSON content, and unmarshals it into v. Malformed JSON is
// returned as an error, never repaired.
func ParseInto(raw string, v any) error {
	text := StripMarkdownFences(StripReasoning(raw))
	jsonStr, err := ExtractJSON(text)
	if err != nil {
		return fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		// Include a truncated preview in the error for debugging
		preview := jsonStr
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return nil
}
