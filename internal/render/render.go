// Package render builds the two print-ready documents for a book: the
// interior page block and the wrap-around cover. Geometry comes from
// printspec; rendering degrades per asset instead of aborting, so a book
// with missing images still produces a complete, binder-valid PDF.
package render

import (
	"context"

	"github.com/boilermanc/onceuponadrawing/internal/printspec"
)

// BookContent is the deterministic input used for document rendering.
type BookContent struct {
	Title         string
	Author        string
	Dedication    string
	CoverImageURL string
	Pages         []StoryPage
}

// StoryPage is one drawn page of the story.
type StoryPage struct {
	Text     string
	ImageURL string
}

// InteriorResult carries the rendered interior plus render metadata.
type InteriorResult struct {
	PDF []byte
	// PageCount is the final page count including front matter, back
	// matter and any padding. Always even and at least the binder
	// minimum.
	PageCount int
	// FallbackPages lists zero-based story page indexes that rendered
	// as text-only fallbacks after an image fetch failure.
	FallbackPages []int
	// BlankPageAppended reports whether a parity page was added.
	BlankPageAppended bool
}

// Renderer produces the print documents for a book.
type Renderer interface {
	RenderInterior(ctx context.Context, content BookContent) (*InteriorResult, error)
	RenderCover(ctx context.Context, content BookContent, pageCount int, profile printspec.BookTypeProfile) ([]byte, error)
}
