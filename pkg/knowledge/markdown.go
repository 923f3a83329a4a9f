package knowledge

import (
	"bytes"
	"crypto/md5"
	"math/big"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var docIDModulus = big.NewInt(1_000_000)

// DocID derives the numeric document id of a knowledge file: the MD5 of the
// file name read as a big-endian integer, modulo one million.
func DocID(filename string) uint64 {
	sum := md5.Sum([]byte(filename))
	n := new(big.Int).SetBytes(sum[:])
	return n.Mod(n, docIDModulus).Uint64()
}

var markdownParser = goldmark.DefaultParser()

// MarkdownToText renders markdown to plain text: formatting and HTML are
// dropped, block boundaries become line breaks and code block contents are
// kept verbatim.
func MarkdownToText(source []byte) string {
	doc := markdownParser.Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.Label(source))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return tidyLines(buf.String())
}

// tidyLines trims every line and collapses runs of blank lines.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
