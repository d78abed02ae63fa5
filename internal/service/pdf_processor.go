package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pdf-extract-service/internal/domain"
	apperrors "pdf-extract-service/pkg/errors"

	"github.com/gen2brain/go-fitz"
)

// PDFProcessor wraps the MuPDF engine (go-fitz) for validation and per-page
// text extraction. Everything format-related is delegated to the engine; this
// type only sequences pages and cleans up the text it gets back.
type PDFProcessor struct {
	logger domain.Logger
}

var _ domain.PDFProcessor = (*PDFProcessor)(nil)

// NewPDFProcessor creates a new PDF processor
func NewPDFProcessor(logger domain.Logger) *PDFProcessor {
	return &PDFProcessor{
		logger: logger,
	}
}

const pdfMagic = "%PDF-"

// pageTimeout bounds a single page extraction so one wedged page cannot eat
// the whole task budget.
const pageTimeout = 90 * time.Second

// Validate checks the raw bytes against the service limits and makes sure the
// engine can open the document. Returns the page count. All failures are
// validation errors, which are never retried.
func (p *PDFProcessor) Validate(pdfBytes []byte, maxFileSize int64, maxPageCount int) (int, error) {
	if int64(len(pdfBytes)) > maxFileSize {
		return 0, apperrors.NewValidationError(fmt.Sprintf(
			"file too large: %.1fMB (limit %.0fMB)",
			float64(len(pdfBytes))/(1024*1024),
			float64(maxFileSize)/(1024*1024),
		))
	}

	if len(pdfBytes) < len(pdfMagic) || string(pdfBytes[:len(pdfMagic)]) != pdfMagic {
		return 0, apperrors.NewValidationError("not a valid PDF file")
	}

	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return 0, apperrors.NewValidationError("unreadable PDF", err.Error())
	}
	pageCount := doc.NumPage()
	doc.Close()

	if pageCount == 0 {
		return 0, apperrors.NewValidationError("PDF has no pages")
	}
	if pageCount > maxPageCount {
		return 0, apperrors.NewValidationError(fmt.Sprintf(
			"too many pages: %d (limit %d)", pageCount, maxPageCount,
		))
	}

	return pageCount, nil
}

// ExtractPages extracts text page by page. Pages that fail or time out yield
// an empty entry instead of aborting the document, so page numbering stays
// stable for the caller.
func (p *PDFProcessor) ExtractPages(ctx context.Context, pdfBytes []byte) ([]domain.PageText, domain.PDFMetadata, error) {
	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, domain.PDFMetadata{}, apperrors.NewExtractionError("failed to open PDF", err)
	}
	defer doc.Close()

	docMetadata := doc.Metadata()
	metadata := domain.PDFMetadata{
		PageCount: doc.NumPage(),
	}
	if title, ok := docMetadata["title"]; ok {
		metadata.Title = title
	}
	if author, ok := docMetadata["author"]; ok {
		metadata.Author = author
	}

	type pageResult struct {
		text string
		err  error
	}

	numPages := doc.NumPage()
	pages := make([]domain.PageText, 0, numPages)

	for pageNum := 0; pageNum < numPages; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, metadata, ctx.Err()
		default:
		}

		p.logger.Debug("extracting page", "page", pageNum+1, "total", numPages)

		resultCh := make(chan pageResult, 1)
		go func(idx int) {
			t, e := doc.Text(idx)
			resultCh <- pageResult{text: t, err: e}
		}(pageNum)

		var text string
		var pageErr error
		select {
		case res := <-resultCh:
			text, pageErr = res.text, res.err
		case <-time.After(pageTimeout):
			p.logger.Warn("page extraction timeout, emitting empty page",
				"page", pageNum+1, "total", numPages, "timeout_sec", int(pageTimeout.Seconds()))
			pageErr = fmt.Errorf("timeout after %v", pageTimeout)
			go func() { <-resultCh }() // drain so the goroutine can exit
		case <-ctx.Done():
			go func() { <-resultCh }()
			return nil, metadata, ctx.Err()
		}

		page := domain.PageText{PageNumber: pageNum + 1}
		if pageErr != nil {
			p.logger.Warn("failed to extract page text",
				"page", pageNum+1, "total", numPages, "error", pageErr)
			pages = append(pages, page)
			continue
		}

		for _, para := range p.splitIntoParagraphs(text) {
			clean := p.sanitizeText(para)
			if clean == "" {
				continue
			}
			page.Paragraphs = append(page.Paragraphs, domain.Paragraph{
				Text:    clean,
				Heading: p.isHeading(clean),
			})
		}
		pages = append(pages, page)
	}

	return pages, metadata, nil
}

// Render produces the final output for the given mode.
func (p *PDFProcessor) Render(pages []domain.PageText, mode domain.ExtractMode) string {
	if mode == domain.ModeMarkdown {
		return p.RenderMarkdown(pages)
	}
	return p.RenderText(pages)
}

// RenderText joins non-empty pages with plain page separators.
func (p *PDFProcessor) RenderText(pages []domain.PageText) string {
	var sb strings.Builder
	for _, page := range pages {
		if len(page.Paragraphs) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("--- Page %d ---\n", page.PageNumber))
		for i, para := range page.Paragraphs {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(para.Text)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderMarkdown keeps paragraph structure, promotes likely headings and
// marks page boundaries with comments.
func (p *PDFProcessor) RenderMarkdown(pages []domain.PageText) string {
	var sb strings.Builder
	for _, page := range pages {
		if len(page.Paragraphs) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("<!-- Page %d -->", page.PageNumber))
		for _, para := range page.Paragraphs {
			sb.WriteString("\n\n")
			if para.Heading {
				sb.WriteString("## ")
			}
			sb.WriteString(para.Text)
		}
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	return sb.String()
}

// EngineProbe verifies the engine can open a document at all. Used by the
// health endpoint.
func (p *PDFProcessor) EngineProbe() error {
	doc, err := fitz.NewFromMemory(probePDF)
	if err != nil {
		return fmt.Errorf("engine probe failed: %w", err)
	}
	defer doc.Close()
	if doc.NumPage() != 1 {
		return fmt.Errorf("engine probe returned %d pages, expected 1", doc.NumPage())
	}
	return nil
}

// splitIntoParagraphs splits raw page text into paragraphs on blank lines and
// collapses intra-paragraph line breaks.
func (p *PDFProcessor) splitIntoParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var result []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.ReplaceAll(para, "\n", " ")
		para = strings.TrimSpace(para)
		if para != "" {
			result = append(result, para)
		}
	}
	return result
}

// isHeading applies the usual heuristics: short single-line text, all caps or
// very short lines are likely headings.
func (p *PDFProcessor) isHeading(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(text, "\n") {
		return false
	}

	if len(text) < 100 {
		if text == strings.ToUpper(text) && text != strings.ToLower(text) && len(text) > 3 {
			return true
		}
		if len(text) < 50 {
			return true
		}
	}
	return false
}

// sanitizeText drops NUL bytes, control characters and surrogates so the
// output is safe to store and JSON-encode.
func (p *PDFProcessor) sanitizeText(text string) string {
	var result strings.Builder
	result.Grow(len(text))

	for _, r := range text {
		switch {
		case r == 0x00:
			// PostgreSQL cannot store NUL even inside text columns.
		case r == 0x09 || r == 0x0A || r == 0x0D:
			result.WriteRune(r)
		case r < 0x20 || r == 0x7F:
			// other control characters
		case r >= 0xD800 && r <= 0xDFFF:
			// surrogate halves are invalid in UTF-8 output
		default:
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// probePDF is a minimal one-page document used to check the engine is loadable.
var probePDF = []byte("%PDF-1.4\n" +
	"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
	"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
	"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n" +
	"xref\n0 4\n" +
	"0000000000 65535 f \n" +
	"0000000009 00000 n \n" +
	"0000000058 00000 n \n" +
	"0000000115 00000 n \n" +
	"trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n186\n%%EOF\n")
