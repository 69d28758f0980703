// Package imaging prepares certificate images for text recognition. It
// renders the preprocessing variants, writes them next to the source image,
// and cuts the corner regions that usually carry a credential id.
package imaging

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	// Registers the WebP decoder with image.Decode.
	_ "golang.org/x/image/webp"

	"github.com/ahrav/credcheck/internal/domain"
)

// Preprocessing constants.
const (
	// MinLongEdge is the long-edge size images are upscaled to. Larger
	// images are never shrunk.
	MinLongEdge = 2000
	// BorderWidth is the white margin added on every side.
	BorderWidth = 50
	// SharpenSigma is the Gaussian sigma of the default variant's sharpening.
	SharpenSigma = 1.0
	// ContrastPercentage is the imaging.AdjustContrast argument for the
	// high contrast variant: slope 1.5 pivoted at mid-grey.
	ContrastPercentage = 50
	// NormalizeLow and NormalizeHigh are the histogram percentiles mapped
	// to black and white by normalization.
	NormalizeLow  = 0.01
	NormalizeHigh = 0.99
)

// Preprocessor renders preprocessing variants of certificate images. It
// holds no state besides its tracer and is safe for concurrent use.
type Preprocessor struct {
	tracer trace.Tracer
}

// NewPreprocessor creates a Preprocessor.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{tracer: otel.Tracer("imaging-preprocessor")}
}

// Decode opens and decodes the image at path, applying EXIF orientation.
func Decode(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.NewExtractionError("decode", path, err)
	}
	return img, nil
}

// VariantPath returns the file name a variant of src is written to. callID
// keeps concurrent runs over the same source apart.
func VariantPath(src string, variant domain.Variant, callID string) string {
	dir := filepath.Dir(src)
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%s.png", stem, variant, callID))
}

// Process decodes src, renders variant and writes it as PNG next to src.
// It returns the written path. The source file is never modified.
func (p *Preprocessor) Process(ctx context.Context, src string, variant domain.Variant, callID string) (string, error) {
	img, err := Decode(src)
	if err != nil {
		return "", err
	}
	return p.ProcessImage(ctx, img, src, variant, callID)
}

// ProcessImage renders variant from an already decoded source image and
// writes it to VariantPath(src, variant, callID).
func (p *Preprocessor) ProcessImage(
	ctx context.Context,
	img image.Image,
	src string,
	variant domain.Variant,
	callID string,
) (string, error) {
	_, span := p.tracer.Start(ctx, "Preprocessor.Process",
		trace.WithAttributes(
			attribute.String("imaging.variant", string(variant)),
			attribute.Int("imaging.source_width", img.Bounds().Dx()),
			attribute.Int("imaging.source_height", img.Bounds().Dy()),
		),
	)
	defer span.End()

	step := "preprocess:" + string(variant)
	if err := ctx.Err(); err != nil {
		return "", domain.NewExtractionError(step, src, err)
	}

	out, err := Render(img, variant)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", domain.NewExtractionError(step, src, err)
	}

	dst := VariantPath(src, variant, callID)
	if dst == src {
		return "", domain.NewExtractionError(step, src, fmt.Errorf("variant path equals source"))
	}
	if err := imaging.Save(out, dst); err != nil {
		// A partial file may exist; it is not ours to keep.
		_ = os.Remove(dst)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", domain.NewExtractionError(step, dst, err)
	}

	span.SetAttributes(
		attribute.Int("imaging.output_width", out.Bounds().Dx()),
		attribute.Int("imaging.output_height", out.Bounds().Dy()),
	)
	return dst, nil
}

// Render applies the variant recipe to img: upscale, pad, then the
// variant's tonal steps.
func Render(img image.Image, variant domain.Variant) (*image.NRGBA, error) {
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}

	gray := imaging.Grayscale(upscale(img))

	var out *image.NRGBA
	switch variant {
	case domain.VariantDefault:
		out = imaging.Sharpen(Normalize(gray), SharpenSigma)
	case domain.VariantHighContrast:
		out = imaging.AdjustContrast(Normalize(gray), ContrastPercentage)
	case domain.VariantInverted:
		out = Normalize(imaging.Invert(gray))
	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
	return pad(out, BorderWidth), nil
}

// upscale grows img so its long edge is at least MinLongEdge.
func upscale(img image.Image) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	long := max(w, h)
	if long >= MinLongEdge {
		return img
	}
	if w >= h {
		return imaging.Resize(img, MinLongEdge, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, MinLongEdge, imaging.Lanczos)
}

// pad surrounds img with a white border of width px.
func pad(img *image.NRGBA, width int) *image.NRGBA {
	b := img.Bounds()
	canvas := imaging.New(b.Dx()+2*width, b.Dy()+2*width, color.White)
	return imaging.Paste(canvas, img, image.Pt(width, width))
}

// Normalize stretches the grey levels of img linearly so the NormalizeLow
// percentile becomes black and the NormalizeHigh percentile white. Images
// with a flat histogram are returned unchanged.
func Normalize(img *image.NRGBA) *image.NRGBA {
	var hist [256]int
	total := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[img.NRGBAAt(x, y).R]++
			total++
		}
	}
	lo := percentile(&hist, total, NormalizeLow)
	hi := percentile(&hist, total, NormalizeHigh)
	if hi <= lo {
		return imaging.Clone(img)
	}

	scale := 255.0 / float64(hi-lo)
	var lut [256]uint8
	for i := range lut {
		v := math.Round(float64(i-lo) * scale)
		lut[i] = uint8(math.Max(0, math.Min(255, v)))
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
}

// percentile returns the smallest grey level whose cumulative count
// reaches q of total.
func percentile(hist *[256]int, total int, q float64) int {
	target := int(math.Ceil(q * float64(total)))
	if target < 1 {
		target = 1
	}
	sum := 0
	for level, n := range hist {
		sum += n
		if sum >= target {
			return level
		}
	}
	return 255
}
