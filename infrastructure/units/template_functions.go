package units

import (
	"strings"
	"text/template"
	"unicode/utf8"
)

// GetTemplateFuncMap returns the function map available to prompt templates.
//
// The functions are stateless and return safe defaults instead of panicking,
// so a custom prompt_template cannot crash a verification.
//
// Usage:
//
//	tmpl, err := template.New("prompt").Funcs(GetTemplateFuncMap()).Parse(config.PromptTemplate)
func GetTemplateFuncMap() template.FuncMap {
	return template.FuncMap{
		// truncate limits s to length runes, adding "..." if truncated.
		// Template usage: {{truncate .Certificate 500}}
		"truncate": func(s string, length int) string {
			if length <= 0 {
				return ""
			}
			if utf8.RuneCountInString(s) <= length {
				return s
			}
			r := []rune(s)
			if length > 3 {
				return string(r[:length-3]) + "..."
			}
			return string(r[:length])
		},

		// contains reports whether substr is within s.
		// Template usage: {{if contains .Title "Intro"}}
		"contains": strings.Contains,

		// lower returns s with all Unicode letters mapped to lowercase.
		"lower": strings.ToLower,

		// upper returns s with all Unicode letters mapped to uppercase.
		"upper": strings.ToUpper,

		// trim removes leading and trailing whitespace.
		"trim": strings.TrimSpace,

		// quote wraps s in double quotes, escaping embedded quotes.
		// Template usage: {{quote .Title}}
		"quote": func(s string) string {
			return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
		},

		// oneLine collapses all whitespace runs into single spaces.
		// Template usage: {{oneLine .Certificate}}
		"oneLine": func(s string) string {
			return strings.Join(strings.Fields(s), " ")
		},
	}
}
