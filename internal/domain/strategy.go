// Package domain contains pure, dependency-free domain models and types
// for certificate credential verification.
package domain

import "fmt"

// Variant names a preprocessing recipe applied to a certificate image
// before text recognition.
type Variant string

// Supported preprocessing variants.
const (
	// VariantDefault is greyscale, normalized and mildly sharpened.
	VariantDefault Variant = "default"
	// VariantHighContrast stretches contrast around mid-grey to separate
	// ink from background.
	VariantHighContrast Variant = "high_contrast"
	// VariantInverted flips polarity for light-on-dark certificates.
	VariantInverted Variant = "inverted"
)

// Valid reports whether v is one of the supported variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantDefault, VariantHighContrast, VariantInverted:
		return true
	}
	return false
}

// Region identifies the part of a processed image handed to recognition.
type Region string

// Recognition regions. Corners are where credential ids are usually printed.
const (
	RegionFull        Region = "full"
	RegionTopLeft     Region = "top_left"
	RegionTopRight    Region = "top_right"
	RegionBottomLeft  Region = "bottom_left"
	RegionBottomRight Region = "bottom_right"
)

// Corners lists the four corner regions in extraction order.
var Corners = []Region{RegionTopLeft, RegionTopRight, RegionBottomLeft, RegionBottomRight}

// SegmentationMode is a page segmentation mode in the recognition engine's
// vocabulary. Values follow tesseract's --psm numbering.
type SegmentationMode int

// Segmentation modes used by the extraction battery.
const (
	// SegColumn assumes a single column of text of variable sizes.
	SegColumn SegmentationMode = 4
	// SegBlock assumes a single uniform block of text.
	SegBlock SegmentationMode = 6
	// SegSparse finds as much text as possible in no particular order.
	SegSparse SegmentationMode = 11
)

// String returns a short name for the mode, used in logs and span attributes.
func (m SegmentationMode) String() string {
	switch m {
	case SegColumn:
		return "column"
	case SegBlock:
		return "block"
	case SegSparse:
		return "sparse"
	default:
		return fmt.Sprintf("psm_%d", int(m))
	}
}

// Strategy is one (variant, region, segmentation mode) recipe in the
// extraction battery. Index fixes its position in the corpus.
type Strategy struct {
	Index   int
	Variant Variant
	Region  Region
	Mode    SegmentationMode
}

// Name returns a stable identifier such as "default/top_left/block".
func (s Strategy) Name() string {
	return fmt.Sprintf("%s/%s/%s", s.Variant, s.Region, s.Mode)
}

// Battery returns the fixed, ordered list of extraction strategies.
// When inverted is true a full-image pass over the inverted variant is
// appended after the standard twelve strategies.
func Battery(inverted bool) []Strategy {
	battery := make([]Strategy, 0, 13)
	add := func(v Variant, r Region, m SegmentationMode) {
		battery = append(battery, Strategy{Index: len(battery), Variant: v, Region: r, Mode: m})
	}

	for _, m := range []SegmentationMode{SegBlock, SegColumn, SegSparse} {
		add(VariantDefault, RegionFull, m)
	}
	for _, r := range Corners {
		add(VariantDefault, r, SegBlock)
	}
	add(VariantHighContrast, RegionFull, SegBlock)
	for _, r := range Corners {
		add(VariantHighContrast, r, SegSparse)
	}
	if inverted {
		add(VariantInverted, RegionFull, SegBlock)
	}

	return battery
}

// Variants returns the distinct variants a battery needs, in first-use order.
func Variants(battery []Strategy) []Variant {
	seen := make(map[Variant]bool, 3)
	var out []Variant
	for _, s := range battery {
		if !seen[s.Variant] {
			seen[s.Variant] = true
			out = append(out, s.Variant)
		}
	}
	return out
}
