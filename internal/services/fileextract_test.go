package services

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeZip(t *testing.T, path string, parts map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range parts {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to add zip entry: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write zip entry: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
}

func TestExtractTXT_NormalizesWhitespace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")

	raw := "  First line  \r\n\r\n\r\n\r\nSecond line\r\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	svc := NewFileExtractService()
	got, err := svc.ExtractTextFromPath(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := "First line\n\nSecond line"
	if got != want {
		t.Errorf("Normalized text = %q, want %q", got, want)
	}
}

func TestExtractTXT_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(path, []byte("   \n  \n"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	svc := NewFileExtractService()
	if _, err := svc.ExtractTextFromPath(path); err == nil {
		t.Error("Expected an error for an empty text file")
	}
}

func TestExtractDOCX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")

	writeZip(t, path, map[string]string{
		"word/document.xml": `<w:document><w:body>` +
			`<w:p><w:r><w:t>Hello &amp; welcome</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>` +
			`</w:body></w:document>`,
		"word/styles.xml": `<w:styles><w:t>ignored</w:t></w:styles>`,
	})

	svc := NewFileExtractService()
	got, err := svc.ExtractTextFromPath(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := "Hello & welcome\nSecond paragraph"
	if got != want {
		t.Errorf("Extracted text = %q, want %q", got, want)
	}
}

func TestExtractPPTX_SlidesInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.pptx")

	writeZip(t, path, map[string]string{
		"ppt/slides/slide2.xml":     `<p:sld><a:p><a:r><a:t>Slide two</a:t></a:r></a:p></p:sld>`,
		"ppt/slides/slide1.xml":     `<p:sld><a:p><a:r><a:t>Slide one</a:t></a:r></a:p></p:sld>`,
		"ppt/notesSlides/note1.xml": `<p:notes><a:t>speaker notes</a:t></p:notes>`,
	})

	svc := NewFileExtractService()
	got, err := svc.ExtractTextFromPath(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := "Slide one\nSlide two"
	if got != want {
		t.Errorf("Extracted text = %q, want %q", got, want)
	}
}

func TestExtractPPTX_TenPlusSlidesStayNumeric(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.pptx")

	parts := make(map[string]string)
	var want strings.Builder
	for i := 1; i <= 12; i++ {
		parts[fmt.Sprintf("ppt/slides/slide%d.xml", i)] =
			fmt.Sprintf(`<p:sld><a:p><a:r><a:t>S%02d</a:t></a:r></a:p></p:sld>`, i)
		if i > 1 {
			want.WriteString("\n")
		}
		fmt.Fprintf(&want, "S%02d", i)
	}
	writeZip(t, path, parts)

	svc := NewFileExtractService()
	got, err := svc.ExtractTextFromPath(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got != want.String() {
		t.Errorf("Slides out of numeric order:\ngot  %q\nwant %q", got, want.String())
	}
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	svc := NewFileExtractService()
	if _, err := svc.ExtractTextFromPath("/tmp/file.exe"); err == nil {
		t.Error("Expected an error for unsupported extension")
	}
}

func TestExtractZip_NoDocumentXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.docx")
	writeZip(t, path, map[string]string{"other/part.xml": "<x/>"})

	svc := NewFileExtractService()
	if _, err := svc.ExtractTextFromPath(path); err == nil {
		t.Error("Expected an error when the archive has no document part")
	}
}
