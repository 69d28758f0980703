package application

import (
	"fmt"

	"github.com/ahrav/credcheck/infrastructure/units"
	"github.com/ahrav/credcheck/internal/domain"
)

// ExtractionFailedMessage is reported when no text could be extracted.
const ExtractionFailedMessage = "Failed to verify certificate. The image could not be processed; please upload a clearer image."

// unknownValue stands in for empty verdict fields in messages.
const unknownValue = "unknown"

// SynthesizeMessage picks the message for a decided verification. The
// templates are mutually exclusive and tried in priority order: an
// inappropriate title is always reported first, then both checks failing,
// then the credential alone, then relevance alone, then success. A verdict
// from an unconfigured verifier keeps the first slot but is worded as a
// service problem rather than a content rejection.
func SynthesizeMessage(credentialID, skillTitle string, credentialValid bool, verdict domain.TitleVerdict) string {
	switch {
	case !verdict.IsAppropriate && verdict.Reason == units.ReasonNotConfigured:
		return fmt.Sprintf(
			"The skill title %q could not be checked: %s. Please try again later.",
			skillTitle, units.ReasonNotConfigured,
		)

	case !verdict.IsAppropriate:
		return fmt.Sprintf(
			"The skill title %q did not pass the content check: %s. Please choose a different title.",
			skillTitle, inappropriateReason(verdict),
		)

	case !credentialValid && !verdict.IsRelevant:
		return fmt.Sprintf(
			"Credential ID %q was not found on the certificate, and the skill title %q does not match it%s.",
			credentialID, skillTitle, detail(verdict),
		)

	case !credentialValid:
		return fmt.Sprintf(
			"Credential ID %q was not found on the certificate. The skill title %q matches the certificate.",
			credentialID, skillTitle,
		)

	case !verdict.IsRelevant:
		return fmt.Sprintf(
			"The skill title %q does not match the certificate%s. The credential ID was found on the certificate.",
			skillTitle, detail(verdict),
		)

	default:
		return fmt.Sprintf(
			"Certificate verified. Credential ID %q was found and the skill title %q matches the certificate%s.",
			credentialID, skillTitle, detail(verdict),
		)
	}
}

func inappropriateReason(v domain.TitleVerdict) string {
	if v.InappropriateReason != "" {
		return v.InappropriateReason
	}
	if v.Reason != "" {
		return v.Reason
	}
	return "flagged as inappropriate"
}

// detail renders the certificate title, relationship and confidence.
func detail(v domain.TitleVerdict) string {
	title := v.CertificateTitle
	if title == "" {
		title = unknownValue
	}
	relationship := string(v.Relationship)
	if relationship == "" {
		relationship = unknownValue
	}
	return fmt.Sprintf(" (certificate title: %q, relationship: %s, confidence: %d%%)", title, relationship, v.Confidence)
}
