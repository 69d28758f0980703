package imaging

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/credcheck/internal/domain"
)

// writeTestImage saves a w x h light-grey image with a dark bar to dir.
func writeTestImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	bar := imaging.New(w/2, max(h/10, 1), color.NRGBA{R: 30, G: 30, B: 30, A: 255})
	img = imaging.Paste(img, bar, image.Pt(w/4, h/2))
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestVariantPath(t *testing.T) {
	got := VariantPath("/data/uploads/cert.final.jpg", domain.VariantHighContrast, "abc")
	assert.Equal(t, "/data/uploads/cert.final_high_contrast_abc.png", got)
}

func TestRender_Geometry(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape upscaled", 400, 200, 2000 + 2*BorderWidth, 1000 + 2*BorderWidth},
		{"portrait upscaled", 300, 600, 1000 + 2*BorderWidth, 2000 + 2*BorderWidth},
		{"large not shrunk", 2400, 100, 2400 + 2*BorderWidth, 100 + 2*BorderWidth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := imaging.New(tt.w, tt.h, color.NRGBA{R: 120, G: 120, B: 120, A: 255})
			for _, v := range []domain.Variant{domain.VariantDefault, domain.VariantHighContrast, domain.VariantInverted} {
				out, err := Render(src, v)
				require.NoError(t, err)
				assert.Equal(t, tt.wantW, out.Bounds().Dx(), v)
				assert.Equal(t, tt.wantH, out.Bounds().Dy(), v)
			}
		})
	}
}

func TestRender_BorderIsWhiteAndGrey(t *testing.T) {
	src := imaging.New(100, 100, color.NRGBA{R: 10, G: 200, B: 90, A: 255})
	for _, v := range []domain.Variant{domain.VariantDefault, domain.VariantHighContrast, domain.VariantInverted} {
		out, err := Render(src, v)
		require.NoError(t, err)

		corner := out.NRGBAAt(0, 0)
		assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, corner, v)

		mid := out.NRGBAAt(out.Bounds().Dx()/2, out.Bounds().Dy()/2)
		assert.Equal(t, mid.R, mid.G, v)
		assert.Equal(t, mid.G, mid.B, v)
	}
}

func TestRender_InvertedFlipsPolarity(t *testing.T) {
	src := imaging.New(200, 200, color.White)
	src = imaging.Paste(src, imaging.New(100, 200, color.Black), image.Pt(0, 0))

	out, err := Render(src, domain.VariantInverted)
	require.NoError(t, err)

	// Left half was black and is now light; right half was white and is now dark.
	left := out.NRGBAAt(BorderWidth+100, out.Bounds().Dy()/2)
	right := out.NRGBAAt(out.Bounds().Dx()-BorderWidth-100, out.Bounds().Dy()/2)
	assert.Greater(t, left.R, right.R)
}

func TestRender_Errors(t *testing.T) {
	_, err := Render(imaging.New(10, 10, color.White), domain.Variant("sepia"))
	assert.ErrorContains(t, err, "unknown variant")

	_, err = Render(image.NewNRGBA(image.Rect(0, 0, 0, 0)), domain.VariantDefault)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	t.Run("stretches to full range", func(t *testing.T) {
		img := imaging.New(100, 1, color.Black)
		for x := 0; x < 100; x++ {
			v := uint8(100 + x/2)
			img.SetNRGBA(x, 0, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
		out := Normalize(img)

		var lo, hi uint8 = 255, 0
		for x := 0; x < 100; x++ {
			v := out.NRGBAAt(x, 0).R
			lo = min(lo, v)
			hi = max(hi, v)
		}
		assert.Equal(t, uint8(0), lo)
		assert.Equal(t, uint8(255), hi)
	})

	t.Run("flat image unchanged", func(t *testing.T) {
		img := imaging.New(10, 10, color.NRGBA{R: 77, G: 77, B: 77, A: 255})
		out := Normalize(img)
		assert.Equal(t, img.Pix, out.Pix)
	})
}

func TestPreprocessor_Process(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "cert.png", 300, 200)
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	p := NewPreprocessor()
	out, err := p.Process(context.Background(), src, domain.VariantDefault, "call1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cert_default_call1.png"), out)

	written, err := imaging.Open(out)
	require.NoError(t, err)
	assert.Equal(t, 2000+2*BorderWidth, written.Bounds().Dx())

	after, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after, "source must not be modified")
}

func TestPreprocessor_ProcessFailures(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor()

	t.Run("missing source", func(t *testing.T) {
		_, err := p.Process(context.Background(), filepath.Join(dir, "nope.png"), domain.VariantDefault, "x")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrExtractionFailed)
		var ee *domain.ExtractionError
		require.True(t, errors.As(err, &ee))
		assert.Equal(t, "decode", ee.Step)
	})

	t.Run("not an image", func(t *testing.T) {
		path := filepath.Join(dir, "notes.png")
		require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))
		_, err := p.Process(context.Background(), path, domain.VariantDefault, "x")
		assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	})

	t.Run("canceled context writes nothing", func(t *testing.T) {
		src := writeTestImage(t, dir, "c.png", 50, 50)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := p.Process(ctx, src, domain.VariantInverted, "y")
		assert.ErrorIs(t, err, context.Canceled)
		_, statErr := os.Stat(VariantPath(src, domain.VariantInverted, "y"))
		assert.True(t, os.IsNotExist(statErr))
	})
}
