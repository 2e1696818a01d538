package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"dailydigest/internal/domain"
	"dailydigest/internal/textutil"
)

// RenderMarkdown renders markdown with glamour. style is a glamour standard
// style name; "" picks one for the terminal.
func RenderMarkdown(content string, width int, style string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	styleOpt := glamour.WithAutoStyle()
	if style != "" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// articleMarkdown is the detail view of one article.
func articleMarkdown(a domain.Article, saved bool, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)

	meta := []string{}
	for _, part := range []string{a.Source, a.Category, a.Author()} {
		if part != "" {
			meta = append(meta, part)
		}
	}
	if a.PublishedAt != nil {
		if ago := textutil.Ago(a.PublishedAt.Time, now); ago != "" {
			meta = append(meta, ago)
		}
	}
	if saved {
		meta = append(meta, "saved")
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "*%s*\n\n", strings.Join(meta, " · "))
	}

	if summary := textutil.PlainText(a.Summary()); summary != "" {
		fmt.Fprintf(&b, "%s\n\n", summary)
	}
	if a.URL != "" {
		fmt.Fprintf(&b, "[Read the full article](%s)\n", a.URL)
	}
	return b.String()
}
