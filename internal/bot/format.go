package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"

	"dailydigest/internal/digest"
	"dailydigest/internal/domain"
	"dailydigest/internal/textutil"
)

const (
	saveCallbackPrefix   = "save:"
	unsaveCallbackPrefix = "unsave:"
	buttonsPerRow        = 5
	summaryRunes         = 160
	// Telegram rejects messages over 4096 characters.
	maxMessageRunes = 4000
)

const helpText = `<b>Daily Digest</b>

/login &lt;email&gt; &lt;password&gt; - log in
/register &lt;email&gt; &lt;password&gt; [full name] - create an account
/logout - log out
/me - show the account of this chat
/digest [morning|evening] - latest digest
/create - create a digest for the current edition
/saved - your reading list
/subscribe - receive digests every morning and evening
/unsubscribe - stop scheduled digests`

const loginPrompt = "Please log in with /login &lt;email&gt; &lt;password&gt;."

// digestHeader introduces a digest before its category messages.
func digestHeader(d *domain.Digest) string {
	header := fmt.Sprintf("<b>%s edition</b>", html.EscapeString(capitalize(d.Edition.String())))
	if !d.Date.IsZero() {
		header += " · " + d.Date.Format("Mon, Jan 2")
	}
	return header + fmt.Sprintf(" · %d articles", len(d.Articles))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// groupMessage renders one category. Articles are numbered from first so
// the numbers match the buttons beneath.
func groupMessage(g digest.Group, first int) string {
	lines := make([]string, len(g.Articles))
	for i, a := range g.Articles {
		lines[i] = articleLine(first+i, a)
	}
	return joinLines(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(g.Category)), lines)
}

// joinLines appends whole lines to header while the message stays under the
// Telegram limit. Cutting inside a line could break the HTML.
func joinLines(header string, lines []string) string {
	var b strings.Builder
	b.WriteString(header)
	size := utf8.RuneCountInString(header)
	for i, line := range lines {
		n := utf8.RuneCountInString(line) + 1
		if size+n > maxMessageRunes-32 {
			fmt.Fprintf(&b, "\n…and %d more", len(lines)-i)
			break
		}
		b.WriteString("\n")
		b.WriteString(line)
		size += n
	}
	return b.String()
}

func articleLine(n int, a domain.Article) string {
	title := html.EscapeString(a.Title)
	if a.URL != "" {
		title = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(a.URL), title)
	}
	line := fmt.Sprintf("%d. %s", n, title)
	if a.Source != "" {
		line += " <i>(" + html.EscapeString(a.Source) + ")</i>"
	}
	if summary := textutil.Truncate(textutil.PlainText(a.Summary()), summaryRunes); summary != "" {
		line += "\n" + html.EscapeString(summary)
	}
	return line + "\n"
}

// savedMessage renders the reading list.
func savedMessage(items []domain.SavedArticle) string {
	if len(items) == 0 {
		return "Your reading list is empty."
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = articleLine(i+1, item.Article)
	}
	return joinLines(fmt.Sprintf("<b>Saved articles</b> (%d)\n", len(items)), lines)
}

func saveButton(n int, id int64, saved bool) models.InlineKeyboardButton {
	if saved {
		return models.InlineKeyboardButton{
			Text:         fmt.Sprintf("★ %d", n),
			CallbackData: unsaveCallbackPrefix + strconv.FormatInt(id, 10),
		}
	}
	return models.InlineKeyboardButton{
		Text:         fmt.Sprintf("☆ %d", n),
		CallbackData: saveCallbackPrefix + strconv.FormatInt(id, 10),
	}
}

// saveKeyboard has one toggle button per article, numbered from first.
func saveKeyboard(articles []domain.Article, first int, isSaved func(int64) bool) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for i, a := range articles {
		row = append(row, saveButton(first+i, a.ID, isSaved(a.ID)))
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// parseToggle decodes callback data into an article id and whether the
// button asks to save it.
func parseToggle(data string) (id int64, save bool, ok bool) {
	rest, save := strings.CutPrefix(data, saveCallbackPrefix)
	if !save {
		var unsave bool
		if rest, unsave = strings.CutPrefix(data, unsaveCallbackPrefix); !unsave {
			return 0, false, false
		}
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false, false
	}
	return id, save, true
}

// flipButton returns a copy of markup with the button for data switched to
// its opposite state. The button number is kept.
func flipButton(markup *models.InlineKeyboardMarkup, data string) *models.InlineKeyboardMarkup {
	if markup == nil {
		return nil
	}
	id, save, ok := parseToggle(data)
	if !ok {
		return markup
	}
	out := &models.InlineKeyboardMarkup{InlineKeyboard: make([][]models.InlineKeyboardButton, len(markup.InlineKeyboard))}
	for r, row := range markup.InlineKeyboard {
		out.InlineKeyboard[r] = make([]models.InlineKeyboardButton, len(row))
		for c, btn := range row {
			if btn.CallbackData == data {
				n, _ := strconv.Atoi(strings.TrimSpace(strings.TrimLeft(btn.Text, "★☆")))
				btn = saveButton(n, id, save)
			}
			out.InlineKeyboard[r][c] = btn
		}
	}
	return out
}

func userLine(u *domain.User) string {
	line := fmt.Sprintf("Logged in as <b>%s</b>", html.EscapeString(u.DisplayName()))
	if u.FullName != "" && u.Email != "" {
		line += " (" + html.EscapeString(u.Email) + ")"
	}
	return line
}
