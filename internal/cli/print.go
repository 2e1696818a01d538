package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"dailydigest/internal/digest"
	"dailydigest/internal/domain"
	"dailydigest/internal/textutil"
)

const summaryRunes = 800

// printDigest writes the digest grouped by category, or as a flat list when
// a filter is active.
func printDigest(w io.Writer, s digest.State, now time.Time) {
	d := s.Digest
	view := digest.ViewOf(s)
	fmt.Fprintf(w, "%s edition · %s · %s articles\n",
		editionTitle(d.Edition),
		d.Date.Format("Mon, Jan 2 2006"),
		textutil.Count(len(d.Articles)))
	if s.Category != digest.All || s.Source != digest.All {
		fmt.Fprintf(w, "Filter: category=%s source=%s\n", s.Category, s.Source)
	}

	if len(view.Articles) == 0 {
		fmt.Fprintln(w, "\nNo articles match the filter.")
		return
	}
	if view.Groups == nil {
		fmt.Fprintln(w)
		for _, a := range view.Articles {
			printArticleLine(w, a, s.IsSaved(a.ID), now)
		}
		return
	}
	for _, g := range view.Groups {
		fmt.Fprintf(w, "\n%s (%d)\n", g.Category, len(g.Articles))
		for _, a := range g.Articles {
			printArticleLine(w, a, s.IsSaved(a.ID), now)
		}
	}
}

func editionTitle(e domain.Edition) string {
	s := e.String()
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func printArticleLine(w io.Writer, a domain.Article, saved bool, now time.Time) {
	mark := " "
	if saved {
		mark = "★"
	}
	fmt.Fprintf(w, "  %s [%d] %s\n", mark, a.ID, a.Title)
	if meta := articleMeta(a, now); meta != "" {
		fmt.Fprintf(w, "        %s\n", meta)
	}
	if a.URL != "" {
		fmt.Fprintf(w, "        %s\n", a.URL)
	}
}

func articleMeta(a domain.Article, now time.Time) string {
	var parts []string
	if a.Source != "" {
		parts = append(parts, a.Source)
	}
	if a.PublishedAt != nil {
		if ago := textutil.Ago(a.PublishedAt.Time, now); ago != "" {
			parts = append(parts, ago)
		}
	}
	return strings.Join(parts, " · ")
}

func printArticle(w io.Writer, a domain.Article, now time.Time) {
	fmt.Fprintln(w, a.Title)
	meta := []string{}
	if m := articleMeta(a, now); m != "" {
		meta = append(meta, m)
	}
	if a.Category != "" {
		meta = append(meta, a.Category)
	}
	if author := a.Author(); author != "" {
		meta = append(meta, "by "+author)
	}
	if len(meta) > 0 {
		fmt.Fprintln(w, strings.Join(meta, " · "))
	}
	if summary := textutil.PlainText(a.Summary()); summary != "" {
		fmt.Fprintf(w, "\n%s\n", textutil.Truncate(summary, summaryRunes))
	}
	if a.URL != "" {
		fmt.Fprintf(w, "\n%s\n", a.URL)
	}
}

func printDigestList(w io.Writer, digests []domain.DigestSummary) {
	if len(digests) == 0 {
		fmt.Fprintln(w, "No digests yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEDITION\tDATE\tARTICLES\tPUBLISHED")
	for _, d := range digests {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", d.ID, d.Edition, d.Date.Format("2006-01-02 15:04"), textutil.Count(d.ArticleCount), d.IsPublished)
	}
	_ = tw.Flush()
}

func printSaved(w io.Writer, items []domain.SavedArticle, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(w, "Your reading list is empty.")
		return
	}
	fmt.Fprintf(w, "Saved articles (%d)\n\n", len(items))
	for _, item := range items {
		printArticleLine(w, item.Article, true, now)
		if ago := textutil.Ago(item.SavedAt.Time, now); ago != "" {
			fmt.Fprintf(w, "        saved %s\n", ago)
		}
	}
}
