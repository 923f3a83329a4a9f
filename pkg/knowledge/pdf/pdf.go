// Package pdf converts PDF documents into markdown knowledge files, one
// "## Page N" section per page.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const pdfExt = ".pdf"

// Page is the extracted text of one page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Render joins pages into markdown. Each page starts with a blank line and a
// "## Page N" heading followed by its trimmed text.
func Render(pages []Page) string {
	lines := make([]string, 0, len(pages)*2)
	for _, p := range pages {
		lines = append(lines, fmt.Sprintf("\n## Page %d\n", p.Number))
		lines = append(lines, strings.TrimSpace(p.Text))
	}
	return strings.Join(lines, "\n")
}

// ExtractPages reads the plain text of every page in the PDF at path. Pages
// without content keep their number with empty text.
func ExtractPages(path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]Page, 0, total)
	for n := 1; n <= total; n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: n})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", n, err)
		}
		pages = append(pages, Page{Number: n, Text: text})
	}
	return pages, nil
}

// ToMarkdown converts the PDF at path to markdown.
func ToMarkdown(path string) (string, error) {
	pages, err := ExtractPages(path)
	if err != nil {
		return "", err
	}
	return Render(pages), nil
}

// Conversion is the outcome of converting one PDF.
type Conversion struct {
	Source string
	Output string
	Pages  int
	Err    error
}

// ConvertDirectory converts every PDF directly inside inDir into a markdown
// file of the same base name in outDir. Files that fail are reported in the
// result without stopping the run.
func ConvertDirectory(ctx context.Context, inDir, outDir string, logger *slog.Logger) ([]Conversion, error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return nil, fmt.Errorf("reading pdf directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var out []Conversion
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), pdfExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		src := filepath.Join(inDir, e.Name())
		dst := filepath.Join(outDir, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))+".md")
		c := Conversion{Source: src, Output: dst}

		pages, err := ExtractPages(src)
		if err == nil {
			c.Pages = len(pages)
			err = os.WriteFile(dst, []byte(Render(pages)), 0o644)
		}
		if err != nil {
			c.Err = err
			logger.Error("failed to convert pdf", "file", src, "error", err)
		} else {
			logger.Info("converted pdf", "file", src, "output", dst, "pages", c.Pages)
		}
		out = append(out, c)
	}

	if len(out) == 0 {
		logger.Warn("no pdf files found", "dir", inDir)
	}
	return out, nil
}

// Failed counts conversions with errors.
func Failed(cs []Conversion) int {
	n := 0
	for _, c := range cs {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// ErrNoPDFs is returned by callers that require at least one conversion.
var ErrNoPDFs = errors.New("no pdf files found")
