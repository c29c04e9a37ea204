package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/api/internal/layout"
	"portfolio/api/internal/store"
)

func TestMarkdownRendersGFMAndStripsScripts(t *testing.T) {
	r := New()

	out, err := r.Markdown("# Projects\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n<script>alert(1)</script>\n\n~~old~~")
	require.NoError(t, err)
	assert.Contains(t, out, `<h1 id="projects">Projects</h1>`)
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<del>old</del>")
	assert.NotContains(t, out, "<script")
}

func TestMarkdownDropsJavascriptLinks(t *testing.T) {
	out, err := New().Markdown(`[click](javascript:alert(1)) <a href="https://example.com" onclick="x()">ok</a>`)
	require.NoError(t, err)
	assert.NotContains(t, out, "javascript:")
	assert.NotContains(t, out, "onclick")
	assert.Contains(t, out, `href="https://example.com"`)
}

func TestBlockSpacer(t *testing.T) {
	out, err := New().Block(store.Block{ID: "s", Type: store.BlockSpacer, Height: 64, ClassName: `wide "x"`})
	require.NoError(t, err)
	assert.Equal(t, `<div class="wide &#34;x&#34;" style="height:64px"></div>`, out)
}

func TestBlockUnknownType(t *testing.T) {
	_, err := New().Block(store.Block{ID: "x", Type: "video"})
	require.Error(t, err)
}

func TestPageRendersColumnsInOrder(t *testing.T) {
	page := store.Page{ID: "p", Layout: store.LayoutTwoColumn, Title: "About"}
	resolved := layout.Resolve(page, []store.Block{
		{ID: "b", Type: store.BlockText, Order: 2, Column: store.Int(1), Content: "second"},
		{ID: "a", Type: store.BlockText, Order: 1, Column: store.Int(1), Content: "first"},
		{ID: "c", Type: store.BlockSpacer, Order: 1, Column: store.Int(2), Height: 10},
	})

	rendered, err := New().Page(page, resolved)
	require.NoError(t, err)
	require.Len(t, rendered.Columns, 2)
	first := rendered.Columns[0].HTML
	assert.Less(t, strings.Index(first, "first"), strings.Index(first, "second"))
	assert.Equal(t, `<div style="height:10px"></div>`, rendered.Columns[1].HTML)
	assert.Equal(t, 50.0, rendered.Columns[1].Width)
}

func TestText(t *testing.T) {
	out, err := New().Text("## Hello\n\nSome **bold** & plain text")
	require.NoError(t, err)
	assert.Equal(t, "Hello Some bold & plain text", out)
}
