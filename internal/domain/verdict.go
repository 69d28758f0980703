package domain

import "strings"

// Relationship classifies how a skill title relates to what a certificate
// teaches.
type Relationship string

// Relationship values returned by the title verifier.
const (
	RelationshipSame      Relationship = "same"
	RelationshipSubset    Relationship = "subset"
	RelationshipSuperset  Relationship = "superset"
	RelationshipRelated   Relationship = "related"
	RelationshipUnrelated Relationship = "unrelated"
)

// ParseRelationship normalizes s and reports whether it is a known value.
func ParseRelationship(s string) (Relationship, bool) {
	r := Relationship(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RelationshipSame, RelationshipSubset, RelationshipSuperset, RelationshipRelated, RelationshipUnrelated:
		return r, true
	}
	return "", false
}

// Acceptable reports whether the relationship counts as topically relevant.
func (r Relationship) Acceptable() bool {
	switch r {
	case RelationshipSame, RelationshipSubset, RelationshipSuperset, RelationshipRelated:
		return true
	}
	return false
}

// TitleVerdict is the semantic verifier's structured judgement of a skill
// title against certificate text.
type TitleVerdict struct {
	// Success is IsRelevant && IsAppropriate.
	Success bool `json:"success"`

	// IsAppropriate is false when the title itself contains offensive or
	// inappropriate content, independent of the certificate.
	IsAppropriate bool `json:"isAppropriate"`

	// InappropriateReason explains an inappropriate title. Empty otherwise.
	InappropriateReason string `json:"inappropriateReason"`

	// IsRelevant is true when the title matches the certificate topic.
	IsRelevant bool `json:"isRelevant"`

	// Confidence is the model's self-reported confidence (0-100). It is
	// advisory only and never gates the decision.
	Confidence int `json:"confidence"`

	// Relationship is empty when the response could not be parsed.
	Relationship Relationship `json:"relationship"`

	// CertificateTitle is the course title the model read off the certificate.
	CertificateTitle string `json:"certificateTitle"`

	// Reason is the model's explanation, or the failure cause.
	Reason string `json:"reason"`
}

// VerificationResult is the coordinator's final output. Every field is
// populated on every return so callers can surface any subset.
type VerificationResult struct {
	Success             bool         `json:"success"`
	CredentialValid     bool         `json:"credentialValid"`
	TitleValid          bool         `json:"titleValid"`
	IsAppropriate       bool         `json:"isAppropriate"`
	InappropriateReason string       `json:"inappropriateReason"`
	Confidence          int          `json:"confidence"`
	Relationship        Relationship `json:"relationship"`
	CertificateTitle    string       `json:"certificateTitle"`
	AIReason            string       `json:"aiReason"`
	ExtractedText       string       `json:"extractedText"`
	Message             string       `json:"message"`

	// Error is set only on hard failure (extraction could not run).
	Error string `json:"error,omitempty"`

	// Extraction carries per-run strategy counts.
	Extraction ExtractionReport `json:"extraction"`
}
