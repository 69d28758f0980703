package testutils

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ahrav/credcheck/internal/logging"
)

// WriteCertificate saves a w x h certificate-like image (light paper with
// dark bars where text would be) into dir and returns its path. The format
// follows the file extension of name.
func WriteCertificate(t testing.TB, dir, name string, w, h int) string {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 235, G: 230, B: 215, A: 255})
	ink := color.NRGBA{R: 25, G: 25, B: 40, A: 255}
	img = imaging.Paste(img, imaging.New(w*6/10, max(h/12, 1), ink), image.Pt(w/5, h/3))
	img = imaging.Paste(img, imaging.New(w/5, max(h/30, 1), ink), image.Pt(w/20, h*9/10))

	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

// NewObservedLogger returns a logger that records entries at debug level
// and above for assertions.
func NewObservedLogger() (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.NewFromZap(zap.New(core)), logs
}
