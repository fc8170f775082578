// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
)

// fencedJSONRegex extracts the body of a markdown code fence. \x60 is a backtick, which a raw
// string cannot hold.
var fencedJSONRegex = regexp.MustCompile("(?s)^\x60\x60\x60(?:json)?\\s*(.*?)\\s*\x60\x60\x60$")

// ParseJSONResponse decodes model-produced JSON into T. Models occasionally wrap arguments
// in a markdown fence or surround an object with prose, so both are stripped first.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := ExtractJSON(response)
	if payload == "" {
		// An empty argument string from a tool call means "no arguments".
		payload = "{}"
	}

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, TruncateString(payload, 500))
	}
	return &result, nil
}

// ExtractJSON returns the JSON object or array embedded in response.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)
	if m := fencedJSONRegex.FindStringSubmatch(response); len(m) > 1 {
		response = strings.TrimSpace(m[1])
	}
	if response == "" || response[0] == '{' || response[0] == '[' {
		return response
	}

	// Conversational text around the payload: the earliest opening bracket decides whether
	// an object or an array is being returned.
	open, closing := "{", "}"
	obj, arr := strings.Index(response, "{"), strings.Index(response, "[")
	if arr != -1 && (obj == -1 || arr < obj) {
		open, closing = "[", "]"
	}
	first := strings.Index(response, open)
	last := strings.LastIndex(response, closing)
	if first != -1 && last > first {
		return response[first : last+1]
	}
	return response
}

// TruncateString cuts s to maxLen bytes and marks the cut.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
