package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/boilermanc/onceuponadrawing/internal/observability/metrics"
	"github.com/boilermanc/onceuponadrawing/internal/printspec"
	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
)

const (
	bodyFont  = "Helvetica"
	titleSize = 30.0
	bodySize  = 14.0
	smallSize = 9.0

	// Margins keep text inside the trim box, clear of the bleed area.
	textMarginInches = 0.625
	lineHeightInches = 0.28

	// Spine text needs a minimum width to stay printable.
	minSpineTextWidthInches = 0.25
)

// PDFRenderer renders interior and cover documents as PDFs at the exact
// physical dimensions the print partner expects.
type PDFRenderer struct {
	fetcher  ImageFetcher
	log      *zap.Logger
	metrics  *metrics.PipelineMetrics
	minPages int
}

func NewPDFRenderer(fetcher ImageFetcher, log *zap.Logger, pipeline *metrics.PipelineMetrics, minPages int) *PDFRenderer {
	if log == nil {
		log = zap.NewNop()
	}
	if minPages < printspec.MinPageCount {
		minPages = printspec.MinPageCount
	}
	return &PDFRenderer{
		fetcher:  fetcher,
		log:      log.Named("render.pdf"),
		metrics:  pipeline,
		minPages: minPages,
	}
}

// RenderInterior produces the interior page block. The output always has an
// even page count of at least the binder minimum; a blank page is appended
// when the raw count is odd, and short stories gain blank pages until they
// are printable. Image fetch failures degrade to text-only fallback pages.
func (r *PDFRenderer) RenderInterior(ctx context.Context, content BookContent) (*InteriorResult, error) {
	spec := printspec.InteriorSpec()
	doc := newDocument(spec.WidthInches, spec.HeightInches)

	r.addTitlePage(doc, spec, content)
	r.addDedicationPage(doc, spec, content)

	images := fetchAll(ctx, r.fetcher, content.Pages)

	var fallbacks []int
	for index, page := range content.Pages {
		fetched, ok := images[index]
		switch {
		case strings.TrimSpace(page.ImageURL) == "":
			r.addTextPage(doc, spec, page.Text)
		case ok && fetched.err == nil:
			r.addImagePage(doc, spec, fetched.image, page.Text, index)
		default:
			var fetchErr error
			if ok {
				fetchErr = fetched.err
			}
			r.log.Warn("story page image failed, rendering text fallback",
				zap.Int("page_index", index),
				zap.Error(fetchErr),
			)
			r.metrics.RenderFallbackPage()
			fallbacks = append(fallbacks, index)
			r.addTextPage(doc, spec, page.Text)
		}
	}

	r.addColophonPage(doc, spec, content)

	appendedBlank := false
	if doc.PageCount()%2 != 0 {
		doc.AddPage()
		appendedBlank = true
	}

	// Short stories are padded up to the binder minimum with blank pages,
	// keeping the final count even.
	for doc.PageCount() < r.minPages || doc.PageCount()%2 != 0 {
		doc.AddPage()
	}

	pdfBytes, err := produce(doc)
	if err != nil {
		r.metrics.DocumentRendered("interior", "error")
		return nil, fmt.Errorf("render interior: %w", err)
	}

	r.metrics.DocumentRendered("interior", "ok")
	return &InteriorResult{
		PDF:               pdfBytes,
		PageCount:         doc.PageCount(),
		FallbackPages:     fallbacks,
		BlankPageAppended: appendedBlank,
	}, nil
}

// RenderCover produces the wrap-around cover: back cover, spine and front
// cover drawn side by side at the offsets implied by the cover geometry.
// A cover image failure degrades to a plain background.
func (r *PDFRenderer) RenderCover(ctx context.Context, content BookContent, pageCount int, profile printspec.BookTypeProfile) ([]byte, error) {
	spec, err := printspec.CoverSpec(pageCount, profile)
	if err != nil {
		return nil, err
	}

	doc := newDocument(spec.WidthInches, spec.HeightInches)
	doc.AddPage()

	// Panel offsets. Bleed is split evenly between the two outer edges.
	edgeBleed := spec.BleedTotalInches / 2
	backX := edgeBleed
	spineX := backX + spec.BackWidthInches
	frontX := spineX + spec.SpineWidthInches

	// Background across the full sheet, bleed included.
	doc.SetFillColor(246, 240, 227)
	doc.Rect(0, 0, spec.WidthInches, spec.HeightInches, "F")

	r.drawBackCover(doc, spec, content, backX)
	r.drawSpine(doc, spec, content, spineX)
	r.drawFrontCover(ctx, doc, spec, content, frontX)

	pdfBytes, err := produce(doc)
	if err != nil {
		r.metrics.DocumentRendered("cover", "error")
		return nil, fmt.Errorf("render cover: %w", err)
	}
	r.metrics.DocumentRendered("cover", "ok")
	return pdfBytes, nil
}

func (r *PDFRenderer) addTitlePage(doc *fpdf.Fpdf, spec printspec.PageGeometrySpec, content BookContent) {
	doc.AddPage()
	doc.SetFont(bodyFont, "B", titleSize)
	doc.SetTextColor(40, 40, 40)
	doc.SetXY(textMarginInches, spec.HeightInches*0.35)
	doc.MultiCell(spec.WidthInches-2*textMarginInches, 0.5, content.Title, "", "C", false)

	if strings.TrimSpace(content.Author) != "" {
		doc.SetFont(bodyFont, "", bodySize)
		doc.SetXY(textMarginInches, spec.HeightInches*0.55)
		doc.MultiCell(spec.WidthInches-2*textMarginInches, lineHeightInches, "written and illustrated by "+content.Author, "", "C", false)
	}
}

func (r *PDFRenderer) addDedicationPage(doc *fpdf.Fpdf, spec printspec.PageGeometrySpec, content BookContent) {
	doc.AddPage()
	dedication := strings.TrimSpace(content.Dedication)
	if dedication == "" {
		return
	}
	doc.SetFont(bodyFont, "I", bodySize)
	doc.SetTextColor(90, 90, 90)
	doc.SetXY(textMarginInches, spec.HeightInches*0.45)
	doc.MultiCell(spec.WidthInches-2*textMarginInches, lineHeightInches, dedication, "", "C", false)
}

func (r *PDFRenderer) addImagePage(doc *fpdf.Fpdf, spec printspec.PageGeometrySpec, img *FetchedImage, text string, index int) {
	doc.AddPage()

	name := fmt.Sprintf("story-page-%d", index)
	opts := fpdf.ImageOptions{ImageType: img.Type}
	doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))

	// Artwork bleeds off three edges; the caption band sits inside trim.
	imageHeight := spec.HeightInches * 0.78
	doc.ImageOptions(name, 0, 0, spec.WidthInches, imageHeight, false, opts, 0, "")

	if strings.TrimSpace(text) != "" {
		doc.SetFont(bodyFont, "", bodySize)
		doc.SetTextColor(40, 40, 40)
		doc.SetXY(textMarginInches, imageHeight+0.2)
		doc.MultiCell(spec.WidthInches-2*textMarginInches, lineHeightInches, text, "", "C", false)
	}
}

func (r *PDFRenderer) addTextPage(doc *fpdf.Fpdf, spec printspec.PageGeometrySpec, text string) {
	doc.AddPage()
	if strings.TrimSpace(text) == "" {
		return
	}
	doc.SetFont(bodyFont, "", bodySize)
	doc.SetTextColor(40, 40, 40)
	doc.SetXY(textMarginInches, spec.HeightInches*0.4)
	doc.MultiCell(spec.WidthInches-2*textMarginInches, lineHeightInches, text, "", "C", false)
}

func (r *PDFRenderer) addColophonPage(doc *fpdf.Fpdf, spec printspec.PageGeometrySpec, content BookContent) {
	doc.AddPage()
	doc.SetFont(bodyFont, "", smallSize)
	doc.SetTextColor(120, 120, 120)
	doc.SetXY(textMarginInches, spec.HeightInches*0.85)
	line := strings.TrimSpace(content.Title)
	if line != "" {
		line += " · "
	}
	line += "made with Once Upon a Drawing"
	doc.MultiCell(spec.WidthInches-2*textMarginInches, lineHeightInches, line, "", "C", false)
}

func (r *PDFRenderer) drawBackCover(doc *fpdf.Fpdf, spec printspec.CoverGeometrySpec, content BookContent, x float64) {
	doc.SetFont(bodyFont, "", smallSize)
	doc.SetTextColor(90, 90, 90)
	doc.SetXY(x+textMarginInches, spec.HeightInches*0.8)
	doc.MultiCell(spec.BackWidthInches-2*textMarginInches, lineHeightInches,
		"A story imagined and drawn by "+displayAuthor(content)+", printed just for them.",
		"", "C", false)
}

func (r *PDFRenderer) drawSpine(doc *fpdf.Fpdf, spec printspec.CoverGeometrySpec, content BookContent, x float64) {
	doc.SetFillColor(213, 196, 161)
	doc.Rect(x, 0, spec.SpineWidthInches, spec.HeightInches, "F")

	if spec.SpineWidthInches < minSpineTextWidthInches {
		return
	}
	title := strings.TrimSpace(content.Title)
	if title == "" {
		return
	}
	doc.SetFont(bodyFont, "B", smallSize)
	doc.SetTextColor(60, 60, 60)
	centerX := x + spec.SpineWidthInches/2
	centerY := spec.HeightInches / 2
	doc.TransformBegin()
	doc.TransformRotate(-90, centerX, centerY)
	doc.SetXY(centerX-2.5, centerY-0.1)
	doc.CellFormat(5, 0.2, title, "", 0, "C", false, 0, "")
	doc.TransformEnd()
}

func (r *PDFRenderer) drawFrontCover(ctx context.Context, doc *fpdf.Fpdf, spec printspec.CoverGeometrySpec, content BookContent, x float64) {
	imageDrawn := false
	if strings.TrimSpace(content.CoverImageURL) != "" {
		img, err := r.fetcher.Fetch(ctx, content.CoverImageURL)
		if err != nil {
			r.log.Warn("cover image failed, using plain background", zap.Error(err))
			r.metrics.RenderFallbackPage()
		} else {
			opts := fpdf.ImageOptions{ImageType: img.Type}
			doc.RegisterImageOptionsReader("cover-image", opts, bytes.NewReader(img.Data))
			imageSize := spec.FrontWidthInches * 0.6
			doc.ImageOptions("cover-image", x+(spec.FrontWidthInches-imageSize)/2, spec.HeightInches*0.3, imageSize, imageSize, false, opts, 0, "")
			imageDrawn = true
		}
	}

	doc.SetFont(bodyFont, "B", titleSize)
	doc.SetTextColor(40, 40, 40)
	titleY := spec.HeightInches * 0.12
	if !imageDrawn {
		titleY = spec.HeightInches * 0.4
	}
	doc.SetXY(x+textMarginInches, titleY)
	doc.MultiCell(spec.FrontWidthInches-2*textMarginInches, 0.5, content.Title, "", "C", false)

	if strings.TrimSpace(content.Author) != "" {
		doc.SetFont(bodyFont, "", bodySize)
		doc.SetXY(x+textMarginInches, spec.HeightInches*0.9)
		doc.MultiCell(spec.FrontWidthInches-2*textMarginInches, lineHeightInches, "by "+content.Author, "", "C", false)
	}
}

func displayAuthor(content BookContent) string {
	author := strings.TrimSpace(content.Author)
	if author == "" {
		return "a young author"
	}
	return author
}

func newDocument(widthInches, heightInches float64) *fpdf.Fpdf {
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "in",
		Size:           fpdf.SizeType{Wd: widthInches, Ht: heightInches},
	})
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(0, 0, 0)
	return doc
}

func produce(doc *fpdf.Fpdf) ([]byte, error) {
	if err := doc.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeCheck rejects images the PDF writer cannot embed before they reach
// it, since its internal error state is sticky.
func decodeCheck(data []byte) error {
	_, _, err := image.DecodeConfig(bytes.NewReader(data))
	return err
}
