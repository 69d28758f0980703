package testutils

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"

	// Registers the PNG decoder for DecodeConfig.
	_ "image/png"

	"github.com/ahrav/credcheck/internal/domain"
	"github.com/ahrav/credcheck/internal/ports"
)

// RecognizeCall describes one call made to a FakeRecognizer.
type RecognizeCall struct {
	Mode    domain.SegmentationMode
	Width   int
	Height  int
	Allowed string
}

// FakeRecognizer is a scripted ports.Recognizer. Respond decides the answer
// for each call; when nil, every call returns Text.
type FakeRecognizer struct {
	Text    string
	Respond func(ctx context.Context, call RecognizeCall) (string, error)

	mu    sync.Mutex
	calls []RecognizeCall
}

// Name implements ports.Recognizer.
func (f *FakeRecognizer) Name() string { return "fake" }

// Recognize implements ports.Recognizer. The image must be decodable so
// callers can key answers on its dimensions.
func (f *FakeRecognizer) Recognize(ctx context.Context, img []byte, mode domain.SegmentationMode, allowed string) (string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return "", ports.NewRecognitionError(f.Name(), int(mode), fmt.Errorf("decode: %w", err))
	}
	call := RecognizeCall{Mode: mode, Width: cfg.Width, Height: cfg.Height, Allowed: allowed}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.Respond != nil {
		return f.Respond(ctx, call)
	}
	return f.Text, nil
}

// Calls returns the calls made so far, in arrival order.
func (f *FakeRecognizer) Calls() []RecognizeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecognizeCall(nil), f.calls...)
}

var _ ports.Recognizer = (*FakeRecognizer)(nil)
