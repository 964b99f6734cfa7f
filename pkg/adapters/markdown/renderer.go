// Package markdown renders note text to HTML for the preview pane.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"github.com/aretw0/inkwell/pkg/core"
)

// Options tune the renderer.
type Options struct {
	// Unsafe passes raw HTML through instead of omitting it.
	Unsafe bool
}

// Renderer is a GitHub-flavoured markdown renderer with single newlines
// rendered as line breaks and clickable task checkboxes.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a renderer.
func New(opts Options) *Renderer {
	rendererOpts := []renderer.Option{
		html.WithHardWraps(),
		renderer.WithNodeRenderers(util.Prioritized(&checkboxRenderer{}, 500)),
	}
	if opts.Unsafe {
		rendererOpts = append(rendererOpts, html.WithUnsafe())
	}

	// Task lists are wired by hand so only our checkbox renderer is registered.
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		goldmark.WithParserOptions(
			parser.WithInlineParsers(util.Prioritized(extension.NewTaskCheckBoxParser(), 0)),
		),
		goldmark.WithRendererOptions(rendererOpts...),
	)
	return &Renderer{md: md}
}

// Render converts text to HTML.
func (r *Renderer) Render(text string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

type checkboxRenderer struct{}

func (c *checkboxRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(east.KindTaskCheckBox, c.render)
}

func (c *checkboxRenderer) render(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*east.TaskCheckBox)
	if n.IsChecked {
		_, _ = w.WriteString(`<input type="checkbox" checked class="task-list-item-checkbox"> `)
	} else {
		_, _ = w.WriteString(`<input type="checkbox" class="task-list-item-checkbox"> `)
	}
	return ast.WalkContinue, nil
}

var _ core.Renderer = (*Renderer)(nil)
