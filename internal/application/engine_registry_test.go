package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/credcheck/internal/ports"
	"github.com/ahrav/credcheck/internal/testutils"
)

func TestEngineRegistry_BuiltinEngines(t *testing.T) {
	r := NewEngineRegistry()

	assert.Equal(t, []string{EngineTesseract, EngineVision}, r.Engines())
	assert.True(t, r.Has(EngineTesseract))
	assert.True(t, r.Has(EngineVision))
	assert.False(t, r.Has("abbyy"))
}

func TestEngineRegistry_Create(t *testing.T) {
	r := NewEngineRegistry()
	fake := &testutils.FakeRecognizer{Text: "hello"}
	require.NoError(t, r.Register("fake", func(context.Context, OCRConfig) (ports.Recognizer, error) {
		return fake, nil
	}))

	engine, err := r.Create(context.Background(), OCRConfig{Engine: "fake"})
	require.NoError(t, err)
	assert.Same(t, fake, engine)

	_, err = r.Create(context.Background(), OCRConfig{Engine: "abbyy"})
	assert.ErrorContains(t, err, "unsupported ocr engine: abbyy")
}

func TestEngineRegistry_CreateWrapsFactoryError(t *testing.T) {
	r := NewEngineRegistry()
	boom := errors.New("no binary")
	require.NoError(t, r.Register("broken", func(context.Context, OCRConfig) (ports.Recognizer, error) {
		return nil, boom
	}))

	_, err := r.Create(context.Background(), OCRConfig{Engine: "broken"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "failed to create ocr engine broken")
}

func TestEngineRegistry_TesseractMissingBinary(t *testing.T) {
	r := NewEngineRegistry()
	cfg := DefaultAppConfig().OCR
	cfg.Tesseract.Binary = "/nonexistent/tesseract-binary"

	_, err := r.Create(context.Background(), cfg)
	assert.Error(t, err)
}

func TestEngineRegistry_RegisterValidation(t *testing.T) {
	r := NewEngineRegistry()

	assert.Error(t, r.Register("", func(context.Context, OCRConfig) (ports.Recognizer, error) { return nil, nil }))
	assert.Error(t, r.Register("nil", nil))
	assert.False(t, r.Has("nil"))
}

func TestDefaultEngineRegistry_IsShared(t *testing.T) {
	assert.Same(t, DefaultEngineRegistry(), DefaultEngineRegistry())
}
