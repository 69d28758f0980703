// Package units provides the credential matcher and title verifier used by
// the certificate verification pipeline.
package units

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/credcheck/internal/ports"
)

// Package-level validator instance for configuration and response validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// sanitizeUserContent protects against prompt injection by wrapping
// user-provided content in code blocks and escaping existing delimiters.
func sanitizeUserContent(content string) string {
	content = strings.ReplaceAll(content, "```", "'''")
	return "```\n" + content + "\n```\n"
}

// supportsJSONMode reports whether the client's model accepts a request for
// a bare JSON answer.
func supportsJSONMode(client ports.LLMClient) bool {
	model := strings.ToLower(client.GetModel())
	return strings.Contains(model, "gpt") ||
		strings.Contains(model, "gemini")
}

// extractJSON pulls the first JSON object out of a model answer. It handles
// ```json fences, bare ``` fences and JSON embedded in prose.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```json"); start != -1 {
		start += len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		// Skip any language identifier.
		if nl := strings.Index(response[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(response[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	// Find the matching closing brace, ignoring braces inside strings.
	depth := 0
	inString := false
	escapeNext := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		if c == '\\' {
			escapeNext = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
