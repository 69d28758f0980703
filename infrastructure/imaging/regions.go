package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/ahrav/credcheck/internal/domain"
)

// Corner region geometry.
const (
	// CornerWidthFraction is the share of the image width a corner covers.
	CornerWidthFraction = 0.45
	// CornerHeightFraction is the share of the image height a corner covers.
	CornerHeightFraction = 0.25
	// MaxCropWidth bounds the width of a corner crop handed to recognition.
	MaxCropWidth = 1000
)

// CornerRegions returns the four corner rectangles of a w x h image, keyed
// by region. The rectangles are clipped to the image and may overlap on
// small images.
func CornerRegions(w, h int) map[domain.Region]image.Rectangle {
	cw := int(float64(w) * CornerWidthFraction)
	ch := int(float64(h) * CornerHeightFraction)
	bounds := image.Rect(0, 0, w, h)
	return map[domain.Region]image.Rectangle{
		domain.RegionTopLeft:     image.Rect(0, 0, cw, ch).Intersect(bounds),
		domain.RegionTopRight:    image.Rect(w-cw, 0, w, ch).Intersect(bounds),
		domain.RegionBottomLeft:  image.Rect(0, h-ch, cw, h).Intersect(bounds),
		domain.RegionBottomRight: image.Rect(w-cw, h-ch, w, h).Intersect(bounds),
	}
}

// CropRegion returns the part of img recognition should see for region.
// RegionFull returns img itself. Corner crops wider than MaxCropWidth are
// downscaled, preserving the aspect ratio.
func CropRegion(img image.Image, region domain.Region) (image.Image, error) {
	if region == domain.RegionFull {
		return img, nil
	}

	b := img.Bounds()
	rect, ok := CornerRegions(b.Dx(), b.Dy())[region]
	if !ok {
		return nil, fmt.Errorf("unknown region %q", region)
	}
	if rect.Empty() {
		return nil, fmt.Errorf("region %s is empty for a %dx%d image", region, b.Dx(), b.Dy())
	}

	crop := imaging.Crop(img, rect.Add(b.Min))
	if crop.Bounds().Dx() > MaxCropWidth {
		crop = imaging.Resize(crop, MaxCropWidth, 0, imaging.Lanczos)
	}
	return crop, nil
}

// CropCorners returns the four corner crops of img in domain.Corners order.
func CropCorners(img image.Image) ([]image.Image, error) {
	crops := make([]image.Image, 0, len(domain.Corners))
	for _, region := range domain.Corners {
		crop, err := CropRegion(img, region)
		if err != nil {
			return nil, err
		}
		crops = append(crops, crop)
	}
	return crops, nil
}

// EncodePNG encodes img as PNG for a recognition engine.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
