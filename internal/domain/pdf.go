package domain

import "context"

// Paragraph is a cleaned block of text from one page.
type Paragraph struct {
	Text    string `json:"text"`
	Heading bool   `json:"heading"`
}

// PageText holds the extracted paragraphs of a single page (1-indexed).
type PageText struct {
	PageNumber int         `json:"page_number"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// PDFMetadata contains document metadata reported by the engine.
type PDFMetadata struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	PageCount int    `json:"page_count"`
}

// PDFProcessor defines the engine operations the extraction pipeline uses.
type PDFProcessor interface {
	// Validate checks limits and that the engine can open the document,
	// returning the page count.
	Validate(pdfBytes []byte, maxFileSize int64, maxPageCount int) (int, error)

	// ExtractPages extracts text page by page.
	ExtractPages(ctx context.Context, pdfBytes []byte) ([]PageText, PDFMetadata, error)

	// Render produces the final output for the given mode.
	Render(pages []PageText, mode ExtractMode) string
}
