// Package ocr provides text-recognition engines and the Adapter the
// extraction orchestrator calls. Engines report failures; the Adapter turns
// every failure into empty text so one bad strategy cannot stop a scan.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ahrav/credcheck/internal/domain"
	"github.com/ahrav/credcheck/internal/ports"
)

// DefaultTesseractBinary is looked up on PATH when no binary is configured.
const DefaultTesseractBinary = "tesseract"

// waitDelay bounds how long a killed process may keep its pipes open.
const waitDelay = time.Second

// TesseractConfig configures the tesseract CLI engine.
type TesseractConfig struct {
	// Binary is the tesseract executable.
	Binary string `yaml:"binary" env:"CREDCHECK_TESSERACT_BINARY"`
	// Language is the traineddata language passed with -l.
	Language string `yaml:"language" env:"CREDCHECK_TESSERACT_LANGUAGE" validate:"omitempty,min=3"`
}

var _ ports.Recognizer = (*Tesseract)(nil)

// Tesseract runs the tesseract command line tool, streaming the image on
// stdin and reading text from stdout.
type Tesseract struct {
	binary   string
	language string
}

// NewTesseract creates a Tesseract engine. It fails when the binary cannot
// be found.
func NewTesseract(cfg TesseractConfig) (*Tesseract, error) {
	binary := cfg.Binary
	if binary == "" {
		binary = DefaultTesseractBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("tesseract binary %q: %w", binary, err)
	}
	language := cfg.Language
	if language == "" {
		language = "eng"
	}
	return &Tesseract{binary: path, language: language}, nil
}

// Name implements ports.Recognizer.
func (t *Tesseract) Name() string { return "tesseract" }

// Recognize implements ports.Recognizer.
func (t *Tesseract) Recognize(ctx context.Context, image []byte, mode domain.SegmentationMode, allowed string) (string, error) {
	if len(image) == 0 {
		return "", ports.NewRecognitionError(t.Name(), int(mode), errors.New("empty image"))
	}

	cmd := exec.CommandContext(ctx, t.binary, t.args(mode, allowed)...)
	cmd.Stdin = bytes.NewReader(image)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", ports.NewRecognitionError(t.Name(), int(mode), err)
	}
	return stdout.String(), nil
}

func (t *Tesseract) args(mode domain.SegmentationMode, allowed string) []string {
	args := []string{"stdin", "stdout", "-l", t.language, "--psm", strconv.Itoa(int(mode))}
	if allowed != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+allowed)
	}
	return args
}
