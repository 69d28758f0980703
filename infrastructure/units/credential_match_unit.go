package units

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"

	"github.com/ahrav/credcheck/internal/ports"
)

var (
	_ ports.CredentialMatcher = (*CredentialMatchUnit)(nil)

	// foldCaser is a package-level Unicode case folder for performance.
	// This avoids creating a new caser for each string preparation.
	foldCaser = cases.Fold()
)

// DefaultMatchThreshold is the minimum window similarity accepted as a match.
const DefaultMatchThreshold = 0.85

// confusionPair is a character pair commonly swapped by text recognition.
type confusionPair struct{ a, b rune }

// ocrConfusions lists the substitutions tried against a normalized claim.
// Each pair is applied in both directions, one pair at a time.
var ocrConfusions = []confusionPair{
	{'0', 'o'},
	{'1', 'i'},
	{'1', 'l'},
	{'5', 's'},
	{'8', 'b'},
}

// MatchMethod names the step that produced a credential match.
type MatchMethod string

// Match methods, in the order they are attempted.
const (
	MatchNone      MatchMethod = "none"
	MatchDirect    MatchMethod = "direct"
	MatchConfusion MatchMethod = "confusion"
	MatchFuzzy     MatchMethod = "fuzzy"
)

// CredentialMatchConfig defines the configuration parameters for the
// CredentialMatchUnit.
type CredentialMatchConfig struct {
	// Threshold is the minimum similarity (0.0-1.0) a corpus window must reach.
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"gt=0.0,max=1.0"`

	// MaxClaimLength bounds the normalized claim length for the sliding
	// window step. Longer claims can still match directly or through a
	// confusion variant.
	MaxClaimLength int `yaml:"max_claim_length" json:"max_claim_length" validate:"min=1,max=256"`
}

// DefaultCredentialMatchConfig returns a CredentialMatchConfig with the
// production defaults.
func DefaultCredentialMatchConfig() CredentialMatchConfig {
	return CredentialMatchConfig{
		Threshold:      DefaultMatchThreshold,
		MaxClaimLength: 128,
	}
}

// CredentialMatchUnit decides whether a claimed credential id is present in
// an extraction corpus. It tolerates OCR character confusions and bounded
// edit-distance drift using Levenshtein similarity over sliding windows.
//
// The unit is deterministic, stateless and safe for concurrent use.
type CredentialMatchUnit struct {
	// config contains the validated configuration parameters.
	config CredentialMatchConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// NewCredentialMatchUnit creates a CredentialMatchUnit after validating config.
func NewCredentialMatchUnit(config CredentialMatchConfig) (*CredentialMatchUnit, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &CredentialMatchUnit{
		config: config,
		tracer: otel.Tracer("credential-match-unit"),
	}, nil
}

// Match reports whether claim is present in corpus.
func (cmu *CredentialMatchUnit) Match(corpus, claim string) bool {
	return cmu.MatchContext(context.Background(), corpus, claim) != MatchNone
}

// MatchContext runs the matching steps in order and returns the first one
// that succeeded, or MatchNone. The context only carries the trace span.
func (cmu *CredentialMatchUnit) MatchContext(ctx context.Context, corpus, claim string) MatchMethod {
	_, span := cmu.tracer.Start(ctx, "CredentialMatchUnit.Match",
		trace.WithAttributes(
			attribute.String("unit.type", "credential_match"),
			attribute.Float64("config.threshold", cmu.config.Threshold),
		),
	)
	defer span.End()

	method := cmu.match(Normalize(corpus), Normalize(claim))
	span.SetAttributes(
		attribute.String("match.method", string(method)),
		attribute.Bool("no_llm_cost", true),
	)
	return method
}

func (cmu *CredentialMatchUnit) match(text, claim string) MatchMethod {
	// An empty claim would be a substring of everything.
	if claim == "" {
		return MatchNone
	}
	if strings.Contains(text, claim) {
		return MatchDirect
	}

	for _, variant := range ConfusionVariants(claim) {
		if strings.Contains(text, variant) {
			return MatchConfusion
		}
	}

	if utf8.RuneCountInString(claim) > cmu.config.MaxClaimLength {
		return MatchNone
	}
	if cmu.windowMatch(text, claim) {
		return MatchFuzzy
	}
	return MatchNone
}

// windowMatch slides a window of the claim's rune length across text and
// reports whether any window reaches the similarity threshold. When the
// claim is longer than text there are no windows.
func (cmu *CredentialMatchUnit) windowMatch(text, claim string) bool {
	runes := []rune(text)
	n := utf8.RuneCountInString(claim)
	for i := 0; i+n <= len(runes); i++ {
		if Similarity(string(runes[i:i+n]), claim) >= cmu.config.Threshold {
			return true
		}
	}
	return false
}

// Normalize prepares text for matching: it case-folds and drops every
// character that is not a letter, digit or hyphen. Whitespace is removed.
func Normalize(s string) string {
	folded := foldCaser.String(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ConfusionVariants returns the distinct rewrites of a normalized claim
// produced by replacing every occurrence of one confusable character with
// its partner. Only one substitution is applied per variant.
func ConfusionVariants(claim string) []string {
	seen := map[string]struct{}{claim: {}}
	var variants []string
	add := func(v string) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
	}
	for _, p := range ocrConfusions {
		add(strings.ReplaceAll(claim, string(p.a), string(p.b)))
		add(strings.ReplaceAll(claim, string(p.b), string(p.a)))
	}
	return variants
}

// Similarity computes 1 - distance/maxLen using the Levenshtein distance
// between a and b. The result is symmetric and lies in [0, 1]; two empty
// strings are identical.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	// The Levenshtein distance operates on runes, so lengths must too.
	distance := levenshtein.ComputeDistance(a, b)
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}

	similarity := 1.0 - float64(distance)/float64(maxLen)
	if similarity < 0 {
		similarity = 0
	}
	return similarity
}
