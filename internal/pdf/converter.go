// Package pdf renders PDF pages to JPEG images suitable for vision model
// input, using go-fitz (MuPDF).
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"

	"github.com/graphpipe/graphpipe/internal/domain"
	"github.com/graphpipe/graphpipe/internal/observability"
)

// Converter renders PDF pages as in-memory JPEG images.
type Converter struct {
	quality int
	logger  *observability.Logger
}

// NewConverter creates a converter encoding JPEGs at the given quality
// (1-100).
func NewConverter(quality int, logger *observability.Logger) *Converter {
	return &Converter{quality: quality, logger: logger.WithComponent("pdf")}
}

// ConvertPage renders a single 1-based page to JPEG. page 0 means the
// first page.
func (c *Converter) ConvertPage(ctx context.Context, pdfPath string, page int) (domain.PageImage, error) {
	if page == 0 {
		page = 1
	}
	images, err := c.convert(ctx, pdfPath, page)
	if err != nil {
		return domain.PageImage{}, err
	}
	return images[0], nil
}

// ConvertAll renders every page of the document.
func (c *Converter) ConvertAll(ctx context.Context, pdfPath string) ([]domain.PageImage, error) {
	return c.convert(ctx, pdfPath, 0)
}

// convert renders the requested page, or all pages when page is 0.
func (c *Converter) convert(ctx context.Context, pdfPath string, page int) ([]domain.PageImage, error) {
	if err := ValidatePDFPath(pdfPath); err != nil {
		return nil, err
	}
	if err := ValidateQuality(c.quality); err != nil {
		return nil, err
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, domain.ConversionError(fmt.Sprintf("opening %s", pdfPath), err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ValidationError("pdf has no pages", nil)
	}
	if page > pageCount {
		return nil, domain.ValidationError(
			fmt.Sprintf("page %d out of range, document has %d", page, pageCount), nil)
	}

	first, last := 0, pageCount-1
	if page > 0 {
		first, last = page-1, page-1
	}

	images := make([]domain.PageImage, 0, last-first+1)
	for pageNum := first; pageNum <= last; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.Image(pageNum)
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("rendering page %d", pageNum+1), err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("encoding page %d", pageNum+1), err)
		}

		bounds := img.Bounds()
		images = append(images, domain.PageImage{
			PageNumber: pageNum + 1,
			Bytes:      buf.Bytes(),
			MIMEType:   "image/jpeg",
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		})
	}

	c.logger.Debug().
		Str("path", pdfPath).
		Int("pages", len(images)).
		Msg("pdf rendered")
	return images, nil
}
