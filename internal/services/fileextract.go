package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FileExtractService turns uploaded documents into plain text. The pipeline
// only ever consumes the resulting string; per-format details stay here.
type FileExtractService struct{}

func NewFileExtractService() *FileExtractService {
	return &FileExtractService{}
}

func (s *FileExtractService) ExtractTextFromPath(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt":
		return s.extractTXT(path)
	case ".pdf":
		return s.extractPDF(path)
	case ".docx":
		return s.extractZipXML(path, isDocxDocument, stripDocXML)
	case ".pptx":
		return s.extractZipXML(path, isPptxSlide, stripSlideXML)
	default:
		return "", fmt.Errorf("unsupported file type for text extraction: %s", ext)
	}
}

func (s *FileExtractService) extractTXT(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	text := normalizeExtractedText(string(b))
	if text == "" {
		return "", fmt.Errorf("text file is empty")
	}

	return text, nil
}

func (s *FileExtractService) extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	text := normalizeExtractedText(b.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text found in pdf")
	}

	return text, nil
}

// extractZipXML handles the OOXML family: collect matching XML parts from the
// zip container, strip markup, normalize. DOCX has one document part; PPTX
// has one part per slide, read in slide order.
func (s *FileExtractService) extractZipXML(path string, match func(string) bool, strip func([]byte) string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var names []string
	parts := make(map[string][]byte)
	for _, f := range r.File {
		if !match(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		names = append(names, f.Name)
		parts[f.Name] = data
	}

	if len(names) == 0 {
		return "", fmt.Errorf("no document xml found in archive")
	}
	sortPartNames(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(strip(parts[name]))
		b.WriteString("\n")
	}

	text := normalizeExtractedText(b.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text found in document")
	}

	return text, nil
}

var partNumberPattern = regexp.MustCompile(`(\d+)\.xml$`)

// sortPartNames orders archive parts by their numeric suffix, so slide10
// comes after slide9, not after slide1. Parts without a number sort by name.
func sortPartNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		ni, oki := partNumber(names[i])
		nj, okj := partNumber(names[j])
		if oki && okj && ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})
}

func partNumber(name string) (int, bool) {
	m := partNumberPattern.FindStringSubmatch(name)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDocxDocument(name string) bool {
	return name == "word/document.xml"
}

var slideNamePattern = regexp.MustCompile(`^ppt/slides/slide\d+\.xml$`)

func isPptxSlide(name string) bool {
	return slideNamePattern.MatchString(name)
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func stripDocXML(src []byte) string {
	s := string(src)

	s = strings.ReplaceAll(s, "</w:p>", "\n")
	s = strings.ReplaceAll(s, "<w:br/>", "\n")
	s = strings.ReplaceAll(s, "<w:br />", "\n")
	s = strings.ReplaceAll(s, "<w:tab/>", "\t")

	return decodeEntities(xmlTagPattern.ReplaceAllString(s, ""))
}

func stripSlideXML(src []byte) string {
	s := string(src)

	// Slide paragraphs end text runs; keep them as line breaks.
	s = strings.ReplaceAll(s, "</a:p>", "\n")
	s = strings.ReplaceAll(s, "<a:br/>", "\n")

	return decodeEntities(xmlTagPattern.ReplaceAllString(s, ""))
}

func decodeEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
	)
	return replacer.Replace(s)
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}
