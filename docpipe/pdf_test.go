package docpipe

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/polizas/apperr"
)

func TestAccept_TextPDF(t *testing.T) {
	pipe := New(Config{})
	doc, err := pipe.Accept("poliza.pdf", buildRealTextPDF("Poliza numero 12345 Asegurado Juan Perez"))
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if doc.Pages != 1 {
		t.Errorf("pages = %d, want 1", doc.Pages)
	}
	if doc.MIME != MIMEPDF {
		t.Errorf("mime = %q", doc.MIME)
	}
	if len(doc.SHA256) != 64 {
		t.Errorf("sha256 = %q", doc.SHA256)
	}
	if doc.Quality == nil {
		t.Fatal("expected quality")
	}
	if !strings.Contains(doc.Preview, "12345") {
		t.Errorf("preview = %q, want the page text", doc.Preview)
	}
}

func TestAccept_ImageOnlyPDF(t *testing.T) {
	pipe := New(Config{})
	doc, err := pipe.Accept("scan.pdf", buildImageOnlyPDF())
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !doc.Quality.Scanned() {
		t.Log("warning: image-only PDF should be flagged as scanned")
	}
}

func TestAccept_Rejections(t *testing.T) {
	pipe := New(Config{MaxFileSize: 1024})
	big := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 2048)...)

	cases := []struct {
		name     string
		filename string
		data     []byte
		want     string
	}{
		{"wrong extension", "poliza.docx", buildRealTextPDF("x"), "solo se aceptan archivos PDF"},
		{"empty", "poliza.pdf", nil, "el archivo está vacío"},
		{"too large", "poliza.pdf", big, "tamaño máximo"},
		{"not a pdf", "poliza.pdf", []byte("PK\x03\x04 zip file"), "solo se aceptan archivos PDF"},
		{"corrupt", "poliza.pdf", []byte("%PDF-1.4\ngarbage without xref"), "dañado"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pipe.Accept(tc.filename, tc.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperr.Is(err, apperr.KindUpload) {
				t.Fatalf("kind = %s, want upload", apperr.KindOf(err))
			}
			if msg := apperr.UserMessage(err); !strings.Contains(msg, tc.want) {
				t.Fatalf("message = %q, want contains %q", msg, tc.want)
			}
		})
	}
}

func TestReadUpload_TooLarge(t *testing.T) {
	pipe := New(Config{MaxFileSize: 16})
	_, err := pipe.ReadUpload(bytes.NewReader(bytes.Repeat([]byte("a"), 64)), "poliza.pdf")
	if !apperr.Is(err, apperr.KindUpload) {
		t.Fatalf("err = %v, want upload error", err)
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || !strings.Contains(ae.Message, "tamaño máximo") {
		t.Fatalf("err = %v", err)
	}
}

func TestAccept_SanitizesFilename(t *testing.T) {
	pipe := New(Config{})
	_, err := pipe.Accept("../../etc/passwd", []byte("%PDF-1.4"))
	if err == nil || !strings.Contains(apperr.UserMessage(err), "solo se aceptan archivos PDF") {
		t.Fatalf("err = %v", err)
	}
}

func TestExtractTextFromStream(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf\n72 720 Td\n(Poliza \\(AUTO\\)) Tj\n0 -14 Td\n(N\\372mero 42) Tj\nT*\n(Fin) '\nET")
	got := cleanPDFText(extractTextFromStream(stream))
	want := "Poliza (AUTO) Número 42 Fin"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPrintableRatio(t *testing.T) {
	if r := printableRatio("hola"); r != 1 {
		t.Fatalf("ratio = %v", r)
	}
	if r := printableRatio("\uFFFD\uFFFDab"); r != 0.5 {
		t.Fatalf("ratio = %v", r)
	}
	q := &Quality{CharsPerPage: 10, PrintableRatio: 1, HasImageStreams: true}
	if !q.Scanned() {
		t.Fatal("low text with images is a scan")
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("áéíóú", 3); got != "áéí" {
		t.Fatalf("got %q", got)
	}
	if got := truncateRunes("ab", 5); got != "ab" {
		t.Fatalf("got %q", got)
	}
}

// --- PDF test helpers ---

// buildRealTextPDF creates a valid PDF with proper xref offsets.
func buildRealTextPDF(text string) []byte {
	escaped := strings.ReplaceAll(text, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "(", `\(`)
	escaped = strings.ReplaceAll(escaped, ")", `\)`)

	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + escaped + ") Tj\nET"
	streamLen := len(stream)

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")

	offsets[4] = b.Len()
	b.WriteString("4 0 obj\n<< /Length ")
	b.WriteString(pdfItoa(streamLen))
	b.WriteString(" >>\nstream\n")
	b.WriteString(stream)
	b.WriteString("\nendstream\nendobj\n")

	offsets[5] = b.Len()
	b.WriteString("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xrefOffset := b.Len()
	b.WriteString("xref\n0 6\n")
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		b.WriteString(pdfPadOffset(offsets[i]))
		b.WriteString(" 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n")
	b.WriteString(pdfItoa(xrefOffset))
	b.WriteString("\n%%EOF\n")

	return []byte(b.String())
}

func buildImageOnlyPDF() []byte {
	imgData := "\xff\xd8\xff\xe0"

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n")

	offsets[4] = b.Len()
	b.WriteString("4 0 obj\n<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Length ")
	b.WriteString(pdfItoa(len(imgData)))
	b.WriteString(" >>\nstream\n")
	b.WriteString(imgData)
	b.WriteString("\nendstream\nendobj\n")

	drawStream := "q 100 0 0 100 72 692 cm /Im1 Do Q"
	offsets[5] = b.Len()
	b.WriteString("5 0 obj\n<< /Length ")
	b.WriteString(pdfItoa(len(drawStream)))
	b.WriteString(" >>\nstream\n")
	b.WriteString(drawStream)
	b.WriteString("\nendstream\nendobj\n")

	xrefOffset := b.Len()
	b.WriteString("xref\n0 6\n")
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		b.WriteString(pdfPadOffset(offsets[i]))
		b.WriteString(" 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n")
	b.WriteString(pdfItoa(xrefOffset))
	b.WriteString("\n%%EOF\n")
	return []byte(b.String())
}

func pdfItoa(n int) string {
	if n == 0 {
		return "0"
	}
	s := ""
	for n > 0 {
		s = string(rune('0'+n%10)) + s
		n /= 10
	}
	return s
}

func pdfPadOffset(n int) string {
	s := pdfItoa(n)
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}
