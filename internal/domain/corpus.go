package domain

import (
	"strings"
	"unicode/utf8"
)

// CorpusSeparator joins recognized text from consecutive strategies.
const CorpusSeparator = "\n\n"

// CertificateAsset describes an uploaded certificate image. The caller owns
// the file; verification only reads it and writes derived files next to it.
type CertificateAsset struct {
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Corpus is the ordered concatenation of every non-empty recognition
// result from one extraction run. It is immutable once built.
type Corpus struct {
	text     string
	segments int
}

// NewCorpus joins the non-empty entries of results, preserving their order.
func NewCorpus(results []string) Corpus {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r) == "" {
			continue
		}
		parts = append(parts, r)
	}
	return Corpus{text: strings.Join(parts, CorpusSeparator), segments: len(parts)}
}

// Text returns the full corpus.
func (c Corpus) Text() string { return c.text }

// Segments reports how many strategies contributed text.
func (c Corpus) Segments() int { return c.segments }

// Empty reports whether no strategy produced any text.
func (c Corpus) Empty() bool { return c.text == "" }

// Prefix returns at most n runes of the corpus.
func (c Corpus) Prefix(n int) string { return TruncateRunes(c.text, n) }

// TruncateRunes cuts s to at most n runes without splitting a UTF-8 sequence.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// ExtractionReport summarizes one orchestrator run for diagnostics.
type ExtractionReport struct {
	// Attempted counts strategies that reached the recognizer.
	Attempted int `json:"attempted"`
	// Produced counts strategies that returned non-empty text.
	Produced int `json:"produced"`
	// Skipped counts strategies dropped because their variant could not be built.
	Skipped int `json:"skipped"`
}
