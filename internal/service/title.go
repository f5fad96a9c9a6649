package service

import (
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// extractTitle takes the first heading of the markdown body as the note
// title, falling back to the file name without its extension.
func extractTitle(path string, body []byte) string {
	parser := goldmark.New().Parser()
	root := parser.Parse(text.NewReader(body))
	var title string
	_ = ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := node.(*ast.Heading); ok {
			title = string(heading.Text(body))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	title = strings.TrimSpace(title)
	if title != "" {
		return title
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
