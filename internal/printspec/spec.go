// Package printspec derives print-accurate document geometry from a book
// type profile and a page count. Every function is a pure computation so
// the renderer and the fulfillment client share one source of truth for
// physical dimensions.
package printspec

import (
	"fmt"
	"math"
)

const (
	// Trim size of a finished page, in inches.
	TrimWidthInches  = 8.5
	TrimHeightInches = 8.5

	// Bleed per edge for interior pages.
	PageBleedInches = 0.125

	// Combined bleed applied to cover width and height.
	CoverBleedTotalInches = 0.25

	// Print resolution used when converting inches to pixels.
	ResolutionDPI = 300

	// Binder limits. Both bounds are inclusive and the count must be
	// even, since the cover geometry assumes symmetric binding.
	MinPageCount = 24
	MaxPageCount = 800
)

// PageGeometrySpec describes one interior page including bleed.
type PageGeometrySpec struct {
	WidthInches  float64
	HeightInches float64
	BleedInches  float64
	WidthPixels  int
	HeightPixels int
	DPI          int
}

// CoverGeometrySpec describes the wrap-around cover: back cover, spine and
// front cover laid out side by side, plus total bleed.
type CoverGeometrySpec struct {
	BackWidthInches  float64
	SpineWidthInches float64
	FrontWidthInches float64
	BleedTotalInches float64
	WidthInches      float64
	HeightInches     float64
	WidthPixels      int
	HeightPixels     int
	DPI              int
}

// ValidationError reports a page count that violates binder constraints.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidatePageCount enforces parity and the [MinPageCount, MaxPageCount]
// range. It must run before any document is rendered; an odd or
// out-of-range count corrupts cover geometry.
func ValidatePageCount(pageCount int) error {
	if pageCount < MinPageCount {
		return &ValidationError{
			Field:  "page_count",
			Reason: fmt.Sprintf("%d is below the minimum of %d", pageCount, MinPageCount),
		}
	}
	if pageCount > MaxPageCount {
		return &ValidationError{
			Field:  "page_count",
			Reason: fmt.Sprintf("%d exceeds the maximum of %d", pageCount, MaxPageCount),
		}
	}
	if pageCount%2 != 0 {
		return &ValidationError{
			Field:  "page_count",
			Reason: fmt.Sprintf("%d is odd; bound books require an even page count", pageCount),
		}
	}
	return nil
}

// InteriorSpec returns the geometry of a single interior page. The result
// depends only on package constants.
func InteriorSpec() PageGeometrySpec {
	width := TrimWidthInches + 2*PageBleedInches
	height := TrimHeightInches + 2*PageBleedInches
	return PageGeometrySpec{
		WidthInches:  width,
		HeightInches: height,
		BleedInches:  PageBleedInches,
		WidthPixels:  toPixels(width),
		HeightPixels: toPixels(height),
		DPI:          ResolutionDPI,
	}
}

// SpineWidth returns the spine thickness for the given page count and
// profile. Callers are expected to validate the page count first.
func SpineWidth(pageCount int, profile BookTypeProfile) float64 {
	return float64(pageCount) * profile.PageThickness
}

// CoverSpec returns the wrap-around cover geometry for the given page count
// and profile, or a ValidationError when the count violates binder limits.
func CoverSpec(pageCount int, profile BookTypeProfile) (CoverGeometrySpec, error) {
	if err := ValidatePageCount(pageCount); err != nil {
		return CoverGeometrySpec{}, err
	}

	spine := SpineWidth(pageCount, profile)
	width := 2*TrimWidthInches + spine + CoverBleedTotalInches
	height := TrimHeightInches + CoverBleedTotalInches

	return CoverGeometrySpec{
		BackWidthInches:  TrimWidthInches,
		SpineWidthInches: spine,
		FrontWidthInches: TrimWidthInches,
		BleedTotalInches: CoverBleedTotalInches,
		WidthInches:      width,
		HeightInches:     height,
		WidthPixels:      toPixels(width),
		HeightPixels:     toPixels(height),
		DPI:              ResolutionDPI,
	}, nil
}

func toPixels(inches float64) int {
	return int(math.Round(inches * ResolutionDPI))
}
