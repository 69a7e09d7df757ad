package recovery

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type fencedBlock struct {
	lang string
	body string
}

// fencedBlocks walks the markdown AST of s and returns every fenced code block.
func fencedBlocks(s string) []fencedBlock {
	source := []byte(s)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var blocks []fencedBlock
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		blocks = append(blocks, fencedBlock{
			lang: strings.ToLower(string(fcb.Language(source))),
			body: buf.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// extractCodeBlock returns the content of the fenced block most likely to hold
// JSON. Blocks tagged json win, then blocks whose content starts with a
// bracket, then the first block. Text without a fence is returned unchanged.
func extractCodeBlock(s string) string {
	if !strings.Contains(s, "```") && !strings.Contains(s, "~~~") {
		return s
	}

	blocks := fencedBlocks(s)
	if len(blocks) == 0 {
		if inner, ok := scanFence(s); ok {
			return inner
		}
		return s
	}

	for _, b := range blocks {
		if b.lang == "json" || b.lang == "jsonc" || b.lang == "json5" {
			return b.body
		}
	}
	for _, b := range blocks {
		trimmed := strings.TrimSpace(b.body)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			return b.body
		}
	}
	return blocks[0].body
}

// scanFence handles fences the markdown parser does not see as blocks, such
// as a fence opened in the middle of a line.
func scanFence(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		info := strings.TrimSpace(rest[:nl])
		if !strings.ContainsAny(info, "{[") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest, true
}
