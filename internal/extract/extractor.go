package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/docindexer/backend/pkg/logger"
)

// Extractor turns uploaded files into plain text with reconstructed
// paragraphs (blank-line separated).
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path. ext is the lowercased extension without
// the dot.
func (e *Extractor) Extract(path, ext string) (string, error) {
	switch ext {
	case "txt", "md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", ext, err)
		}
		return string(data), nil
	case "docx":
		return extractDocx(path)
	case "pdf":
		return extractPDF(path)
	case "html", "htm":
		return extractHTML(path)
	default:
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}
}

type docxDocument struct {
	Paragraphs []docxParagraph `xml:"body>p"`
}

type docxParagraph struct {
	Style *struct {
		Val string `xml:"val,attr"`
	} `xml:"pPr>pStyle"`
	Runs []struct {
		Text []string `xml:"t"`
	} `xml:"r"`
}

func (p docxParagraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t)
		}
	}
	return strings.TrimSpace(b.String())
}

func (p docxParagraph) isHeading() bool {
	if p.Style == nil {
		return false
	}
	return strings.HasPrefix(p.Style.Val, "Heading") || strings.HasPrefix(p.Style.Val, "Title")
}

// extractDocx reads word/document.xml and rebuilds true paragraphs: heading
// and title styles start a new paragraph, everything else merges into the
// current one.
func extractDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", fmt.Errorf("open document.xml: %w", err)
			}
			var buf bytes.Buffer
			_, err = buf.ReadFrom(rc)
			rc.Close()
			if err != nil {
				return "", fmt.Errorf("read document.xml: %w", err)
			}
			docXML = buf.Bytes()
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("docx has no word/document.xml")
	}

	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return "", fmt.Errorf("parse document.xml: %w", err)
	}

	var paragraphs []string
	var current []string

	for _, para := range doc.Paragraphs {
		text := para.text()
		if text == "" {
			continue
		}
		if para.isHeading() && len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = []string{text}
			continue
		}
		current = append(current, text)
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, " "))
	}

	return strings.Join(paragraphs, "\n\n"), nil
}

// extractPDF extracts page text and rebuilds paragraphs: lines accumulate
// until one ends a sentence or the paragraph passes 200 characters. A file
// carrying a .pdf extension without the %PDF- header is read as plain text.
func extractPDF(path string) (string, error) {
	header, err := readHeader(path, 5)
	if err != nil {
		return "", fmt.Errorf("read pdf header: %w", err)
	}
	if !bytes.HasPrefix(header, []byte("%PDF-")) {
		logger.Warn("File has .pdf extension but no PDF header, reading as text",
			zap.String("path", path),
		)
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read pdf-named file as text: %w", err)
		}
		if !utf8.Valid(data) {
			return "", fmt.Errorf("file %s is neither a PDF nor readable text", path)
		}
		return string(data), nil
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	if reader.NumPage() == 0 {
		return "", fmt.Errorf("pdf has no pages")
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("Failed to extract pdf page text",
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			text.WriteString(pageText)
			text.WriteString("\n")
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("no text could be extracted from pdf")
	}

	return rebuildParagraphs(text.String()), nil
}

func rebuildParagraphs(text string) string {
	var paragraphs []string
	var current []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		current = append(current, line)
		joined := strings.Join(current, " ")
		if strings.HasSuffix(line, ".") || strings.HasSuffix(line, "!") ||
			strings.HasSuffix(line, "?") || len(joined) > 200 {
			paragraphs = append(paragraphs, joined)
			current = nil
		}
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, " "))
	}

	return strings.Join(paragraphs, "\n\n")
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// extractHTML strips boilerplate elements and collapses whitespace.
func extractHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open html: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), nil
}

func readHeader(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:read], nil
}
