package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractionError(t *testing.T) {
	base := errors.New("image: unknown format")
	err := NewExtractionError("decode", "/tmp/cert.png", base)

	assert.Equal(t, "extraction error: step=decode, path=/tmp/cert.png, err=image: unknown format", err.Error())
	assert.True(t, errors.Is(err, base), "Should unwrap to underlying error")
	assert.True(t, errors.Is(err, ErrExtractionFailed), "Should match the extraction sentinel")

	wrapped := fmt.Errorf("orchestrator: %w", err)
	var target *ExtractionError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "decode", target.Step)
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("verification request")
		err.AddError("certificate path is required")

		assert.Equal(t, "validation error for verification request: certificate path is required", err.Error())
		assert.True(t, err.HasErrors(), "Should have errors")
		assert.True(t, errors.Is(err, ErrEmptyValue))
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("verification request")
		err.AddError("credential id is required")
		err.AddError("skill title is required")

		assert.Equal(t,
			"validation errors for verification request: [credential id is required skill title is required]",
			err.Error())
		assert.Len(t, err.Errors, 2)
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("verification request")
		assert.False(t, err.HasErrors())
	})
}
