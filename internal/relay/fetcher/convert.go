package fetcher

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-pdf/fpdf"
	"github.com/mauidude/go-readability"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// convertMarkupToDocument runs the conversion chain for HTML content:
// primary html->markdown->PDF, secondary a markdown document, and reports
// failure so the caller can fall back to plain text.
func convertMarkupToDocument(html, origin, workDir string) (path, mimeType string, err error) {
	converter := md.NewConverter(origin, true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil || strings.TrimSpace(markdown) == "" {
		return "", "", fmt.Errorf("html to markdown conversion failed for %s: %w", origin, err)
	}

	pdfPath := filepath.Join(workDir, fmt.Sprintf("source-%d.pdf", fileSeq()))
	if err := markdownToPDF(markdown, pdfPath); err == nil {
		return pdfPath, "application/pdf", nil
	}

	mdPath := filepath.Join(workDir, fmt.Sprintf("source-%d.md", fileSeq()))
	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write markdown document for %s: %w", origin, err)
	}
	return mdPath, "text/markdown", nil
}

// markdownToPDF renders markdown into a PDF file. Headings, paragraphs,
// list items and code blocks are enough for article content.
func markdownToPDF(markdown, outPath string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)

	source := []byte(markdown)
	parser := goldmark.New(goldmark.WithExtensions(extension.Table, extension.Linkify))
	doc := parser.Parser().Parse(text.NewReader(source))

	walkErr := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			size := 14 - float64(node.Level)
			if size < 9 {
				size = 9
			}
			pdf.SetFont("Arial", "B", size)
			pdf.MultiCell(0, 6, pdfText(string(node.Text(source))), "", "L", false)
			pdf.SetFont("Arial", "", 9)
			pdf.Ln(1)
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			pdf.MultiCell(0, 4.5, pdfText(string(n.Text(source))), "", "L", false)
			pdf.Ln(1)
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			var b strings.Builder
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
			}
			pdf.SetFont("Courier", "", 8)
			pdf.MultiCell(0, 4, pdfText(b.String()), "", "L", false)
			pdf.SetFont("Arial", "", 9)
			pdf.Ln(1)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if walkErr != nil {
		return fmt.Errorf("failed to render markdown: %w", walkErr)
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// pdfText maps text onto the cp1252 range the core fonts can draw.
func pdfText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x2500 {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}

// extractPlainText is the last-resort conversion: isolate the article body
// with readability, strip the remaining tags with goquery, and collapse
// whitespace.
func extractPlainText(html string) (string, error) {
	content := html
	if doc, err := readability.NewDocument(html); err == nil {
		content = doc.Content()
	}

	gq, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(gq.Text()), " "), nil
}
