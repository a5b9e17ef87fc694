// Package ui holds the server-side pieces of the board's presentation layer.
package ui

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	goldmark.WithRendererOptions(
		// Raw HTML is left out of the output; html.WithUnsafe is never set.
		gmhtml.WithHardWraps(),
	),
)

var markdownPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

var classPattern = regexp.MustCompile(`^[A-Za-z0-9 _:\-]*$`)

// RenderMarkdown converts user supplied markdown into sanitized HTML.
// Blank input renders as an empty string.
func RenderMarkdown(src string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return "<pre>" + html.EscapeString(src) + "</pre>"
	}
	return markdownPolicy.Sanitize(b.String())
}

// MarkdownBlock renders src inside a markdown container. Extra classes that
// contain anything but class-name characters are ignored.
func MarkdownBlock(src, className string) string {
	class := "markdown"
	if extra := strings.TrimSpace(className); extra != "" && classPattern.MatchString(extra) {
		class += " " + extra
	}
	return `<div class="` + class + `">` + RenderMarkdown(src) + `</div>`
}
