package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// writePDF builds a minimal PDF with one Helvetica text line per page.
// An empty string produces a page with no text.
func writePDF(t *testing.T, pageTexts ...string) string {
	t.Helper()

	n := len(pageTexts)
	fontObj := 3
	firstPage := 4
	total := 3 + 2*n

	objs := make([]string, total+1)
	kids := ""
	for i := range pageTexts {
		kids += fmt.Sprintf("%d 0 R ", firstPage+2*i)
	}
	objs[1] = "<< /Type /Catalog /Pages 2 0 R >>"
	objs[2] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n)
	objs[fontObj] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

	for i, text := range pageTexts {
		pageObj := firstPage + 2*i
		contentObj := pageObj + 1
		objs[pageObj] = fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			fontObj, contentObj)

		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		}
		objs[contentObj] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, total+1)
	for i := 1; i <= total; i++ {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i, objs[i])
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", total+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= total; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xref)

	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
	return path
}

func TestExtractor_SupportedTypes(t *testing.T) {
	assert.Equal(t, []domain.FileType{domain.FileTypePDF}, New().SupportedTypes())
}

func TestExtractor_Extract(t *testing.T) {
	path := writePDF(t, "First page", "", "Third page")

	ext, err := New().Extract(context.Background(), path, domain.ExtractOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, ext.PageCount)
	assert.Len(t, ext.Pages, 2)
	assert.Equal(t, "First page", ext.Pages[1])
	assert.Equal(t, "Third page", ext.Pages[3])
	_, ok := ext.Pages[2]
	assert.False(t, ok)
}

func TestExtractor_ReadPages(t *testing.T) {
	path := writePDF(t, "One", "Two", "Three")
	e := New()

	tests := []struct {
		name       string
		start, end int
		want       []int
	}{
		{"full range", 1, 3, []int{1, 2, 3}},
		{"single page", 2, 2, []int{2}},
		{"clamped", 0, 10, []int{1, 2, 3}},
		{"empty range", 3, 2, nil},
		{"beyond document", 5, 9, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := e.ReadPages(context.Background(), path, tt.start, tt.end)
			require.NoError(t, err)

			var got []int
			for _, p := range pages {
				got = append(got, p.PageNumber)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractor_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := New().Extract(context.Background(), filepath.Join(dir, "missing.pdf"), domain.ExtractOptions{})
	assert.ErrorIs(t, err, domain.ErrExtraction)

	garbage := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbage, []byte("not a pdf at all"), 0600))
	_, err = New().Extract(context.Background(), garbage, domain.ExtractOptions{})
	assert.ErrorIs(t, err, domain.ErrExtraction)
}
