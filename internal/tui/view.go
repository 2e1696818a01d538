package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dailydigest/internal/digest"
	"dailydigest/internal/domain"
	"dailydigest/internal/textutil"
)

func (a *App) digestView() string {
	s := a.digestState
	var b strings.Builder

	title := "Daily Digest"
	if s.Digest != nil {
		title = fmt.Sprintf("Daily Digest · %s edition · %s", s.Digest.Edition, s.Digest.Date.Format("Mon Jan 2"))
	}
	b.WriteString(headerStyle.Render(title))
	if u := a.sess.User(); u != nil {
		b.WriteString(dimStyle.Render("  " + u.DisplayName()))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf(" category: %s   source: %s", s.Category, s.Source)))
	b.WriteString("\n")

	if s.Loading || s.Refreshing {
		b.WriteString(" " + a.spinner.View() + " ")
	}
	switch {
	case s.Error != "":
		b.WriteString(errorStyle.Render(s.Error + "  (r to retry, esc to dismiss)"))
	case s.Notice != "":
		b.WriteString(noticeStyle.Render(s.Notice))
	case s.Loading:
		b.WriteString(dimStyle.Render("Loading..."))
	}
	b.WriteString("\n")

	view := digest.ViewOf(s)
	switch {
	case s.Digest == nil:
		if !s.Loading {
			b.WriteString("\n" + dimStyle.Render(" Press c to create a digest.") + "\n")
		}
	case len(view.Articles) == 0:
		b.WriteString("\n" + dimStyle.Render(" No articles match the current filters.") + "\n")
	case view.Groups != nil:
		i := 0
		for _, g := range view.Groups {
			b.WriteString(categoryStyle.Render(fmt.Sprintf("%s (%d)", g.Category, len(g.Articles))))
			b.WriteString("\n")
			for _, art := range g.Articles {
				b.WriteString(a.articleLine(art, i == a.cursor, s.IsSaved(art.ID)))
				b.WriteString("\n")
				i++
			}
		}
	default:
		for i, art := range view.Articles {
			b.WriteString(a.articleLine(art, i == a.cursor, s.IsSaved(art.ID)))
			b.WriteString("\n")
		}
	}

	if a.status != "" {
		b.WriteString("\n" + noticeStyle.Render(a.status))
	}
	if a.err != "" {
		b.WriteString("\n" + errorStyle.Render(a.err))
	}

	k := a.keys
	return a.fill(b.String()) + a.bottomBar(helpLine(k.Open, k.Save, k.Create, k.Reload, k.Category, k.Source, k.Edition, k.Saved, k.Logout, k.Quit))
}

func (a *App) articleLine(art domain.Article, selected, saved bool) string {
	mark := " "
	if saved {
		mark = "★"
	}
	line := fmt.Sprintf("%s %s", mark, textutil.Truncate(art.Title, max(20, a.width-30)))
	if art.Source != "" {
		line += "  " + itemSourceStyle.Render(art.Source)
	}
	if selected {
		return itemSelectedStyle.Render("›" + line)
	}
	return itemStyle.Render(line)
}

func (a *App) savedView() string {
	s := a.readingState
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Saved articles (%s)", textutil.Count(len(s.Items)))))
	b.WriteString("\n")

	switch {
	case s.Loading:
		b.WriteString(" " + a.spinner.View() + " " + dimStyle.Render("Loading..."))
	case s.Error != "":
		b.WriteString(errorStyle.Render(s.Error))
	case len(s.Items) == 0:
		b.WriteString(dimStyle.Render(" Nothing saved yet. Press s on an article to save it."))
	}
	b.WriteString("\n")

	now := a.opts.Now()
	for i, item := range s.Items {
		line := a.articleLine(item.Article, i == a.savedCursor, true)
		if ago := textutil.Ago(item.SavedAt.Time, now); ago != "" {
			line += dimStyle.Render("  saved " + ago)
		}
		b.WriteString(line + "\n")
	}
	if a.err != "" {
		b.WriteString("\n" + errorStyle.Render(a.err))
	}

	k := a.keys
	return a.fill(b.String()) + a.bottomBar(helpLine(k.Open, k.Browser, k.Remove, k.Reload, k.Back, k.Quit))
}

// fill pads content so the bottom bar sits on the last line.
func (a *App) fill(content string) string {
	lines := strings.Count(content, "\n") + 1
	if pad := a.height - 1 - lines; pad > 0 {
		content += strings.Repeat("\n", pad)
	}
	return content + "\n"
}

func (a *App) bottomBar(hints string) string {
	return statusBarStyle.Width(a.width).Render(lipgloss.NewStyle().MaxWidth(max(1, a.width-2)).Render(hints))
}
