package ocr

import (
	"context"
	"strings"
	"time"

	"github.com/ahrav/credcheck/internal/domain"
	"github.com/ahrav/credcheck/internal/logging"
	"github.com/ahrav/credcheck/internal/ports"
)

// Alphabet is the character set recognition is restricted to.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789- "

// DefaultRecognitionTimeout bounds one recognition call.
const DefaultRecognitionTimeout = 15 * time.Second

// Adapter wraps a recognition engine for the extraction battery. It limits
// each call with a timeout, restricts output to Alphabet, and reports every
// failure as empty text.
type Adapter struct {
	engine  ports.Recognizer
	timeout time.Duration
	logger  logging.Logger
}

// NewAdapter creates an Adapter. A non-positive timeout selects
// DefaultRecognitionTimeout; logger may be nil.
func NewAdapter(engine ports.Recognizer, timeout time.Duration, logger logging.Logger) *Adapter {
	if timeout <= 0 {
		timeout = DefaultRecognitionTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Adapter{engine: engine, timeout: timeout, logger: logger}
}

// Engine returns the name of the wrapped engine.
func (a *Adapter) Engine() string { return a.engine.Name() }

// Text returns the text recognized in image, or "" when recognition fails,
// times out or finds nothing.
func (a *Adapter) Text(ctx context.Context, image []byte, mode domain.SegmentationMode) string {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.engine.Recognize(callCtx, image, mode, Alphabet)
	if err != nil {
		a.logger.Warn("text recognition failed",
			logging.String("engine", a.engine.Name()),
			logging.String("mode", mode.String()),
			logging.Duration("elapsed", time.Since(start)),
			logging.Err(err),
		)
		return ""
	}
	return FilterAlphabet(raw)
}

// FilterAlphabet drops characters outside Alphabet. Line breaks are kept,
// other whitespace becomes a space, and each line is trimmed. Blank lines
// are removed.
func FilterAlphabet(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		var b strings.Builder
		for _, r := range line {
			switch {
			case r == '\t' || r == '\r' || r == '\v' || r == '\f':
				b.WriteByte(' ')
			case r < 128 && strings.ContainsRune(Alphabet, r):
				b.WriteRune(r)
			}
		}
		if trimmed := strings.TrimSpace(b.String()); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}
