package printspec

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestInteriorSpecIncludesBleed(t *testing.T) {
	spec := InteriorSpec()
	if spec.WidthInches != 8.75 {
		t.Fatalf("expected width 8.75, got %v", spec.WidthInches)
	}
	if spec.HeightInches != 8.75 {
		t.Fatalf("expected height 8.75, got %v", spec.HeightInches)
	}
	if spec.WidthPixels != 2625 || spec.HeightPixels != 2625 {
		t.Fatalf("expected 2625x2625 pixels, got %dx%d", spec.WidthPixels, spec.HeightPixels)
	}
	if spec.DPI != 300 {
		t.Fatalf("expected 300 dpi, got %d", spec.DPI)
	}
}

func TestSpineWidthSoftcoverExample(t *testing.T) {
	profile, err := ProfileFor(BindingSoftcover)
	if err != nil {
		t.Fatalf("lookup softcover: %v", err)
	}
	got := SpineWidth(32, profile)
	if math.Abs(got-0.072) > 1e-9 {
		t.Fatalf("expected spine width 0.072, got %v", got)
	}
}

func TestCoverSpecSoftcoverExample(t *testing.T) {
	profile, err := ProfileFor(BindingSoftcover)
	if err != nil {
		t.Fatalf("lookup softcover: %v", err)
	}
	spec, err := CoverSpec(32, profile)
	if err != nil {
		t.Fatalf("cover spec: %v", err)
	}
	if math.Abs(spec.WidthInches-17.322) > 1e-9 {
		t.Fatalf("expected cover width 17.322, got %v", spec.WidthInches)
	}
	if math.Abs(spec.HeightInches-8.75) > 1e-9 {
		t.Fatalf("expected cover height 8.75, got %v", spec.HeightInches)
	}
}

func TestCoverSpecHoldsForAllValidCounts(t *testing.T) {
	for _, profile := range Profiles() {
		for pageCount := MinPageCount; pageCount <= MaxPageCount; pageCount += 2 {
			spec, err := CoverSpec(pageCount, profile)
			if err != nil {
				t.Fatalf("%s page count %d: %v", profile.Binding, pageCount, err)
			}
			wantSpine := float64(pageCount) * profile.PageThickness
			if math.Abs(spec.SpineWidthInches-wantSpine) > 1e-9 {
				t.Fatalf("%s page count %d: spine %v, want %v", profile.Binding, pageCount, spec.SpineWidthInches, wantSpine)
			}
			wantWidth := 2*TrimWidthInches + wantSpine + CoverBleedTotalInches
			if math.Abs(spec.WidthInches-wantWidth) > 1e-9 {
				t.Fatalf("%s page count %d: width %v, want %v", profile.Binding, pageCount, spec.WidthInches, wantWidth)
			}
		}
	}
}

func TestCoverSpecRejectsInvalidCounts(t *testing.T) {
	profile, err := ProfileFor(BindingSoftcover)
	if err != nil {
		t.Fatalf("lookup softcover: %v", err)
	}

	cases := []struct {
		name      string
		pageCount int
		contains  string
	}{
		{"odd", 33, "odd"},
		{"below minimum", 22, "below the minimum"},
		{"above maximum", 802, "exceeds the maximum"},
		{"zero", 0, "below the minimum"},
		{"negative", -4, "below the minimum"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CoverSpec(tc.pageCount, profile)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(validationErr.Reason, tc.contains) {
				t.Fatalf("expected reason to mention %q, got %q", tc.contains, validationErr.Reason)
			}
		})
	}
}

func TestProfileForUnknownBinding(t *testing.T) {
	if _, err := ProfileFor("spiral"); err == nil {
		t.Fatal("expected error for unknown binding")
	}
}

func TestProfileForNormalizesInput(t *testing.T) {
	profile, err := ProfileFor("  Hardcover ")
	if err != nil {
		t.Fatalf("expected normalized lookup to succeed, got %v", err)
	}
	if profile.Binding != BindingHardcover {
		t.Fatalf("expected hardcover profile, got %s", profile.Binding)
	}
}
