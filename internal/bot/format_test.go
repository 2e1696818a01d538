package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailydigest/internal/digest"
	"dailydigest/internal/domain"
)

func articles(n int) []domain.Article {
	out := make([]domain.Article, n)
	for i := range out {
		out[i] = domain.Article{ID: int64(i + 10), Title: "Story"}
	}
	return out
}

func TestParseToggle(t *testing.T) {
	tests := []struct {
		data     string
		wantID   int64
		wantSave bool
		wantOK   bool
	}{
		{"save:12", 12, true, true},
		{"unsave:7", 7, false, true},
		{"save:", 0, false, false},
		{"save:-3", 0, false, false},
		{"unsave:abc", 0, false, false},
		{"settings", 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			id, save, ok := parseToggle(tt.data)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantSave, save)
		})
	}
}

func TestSaveKeyboard_WrapsRows(t *testing.T) {
	markup := saveKeyboard(articles(7), 4, func(id int64) bool { return id == 11 })

	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], buttonsPerRow)
	assert.Len(t, markup.InlineKeyboard[1], 2)
	assert.Equal(t, "☆ 4", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "★ 5", markup.InlineKeyboard[0][1].Text)
	assert.Equal(t, "unsave:11", markup.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "☆ 10", markup.InlineKeyboard[1][1].Text)
}

func TestFlipButton(t *testing.T) {
	original := saveKeyboard(articles(3), 1, func(int64) bool { return false })

	flipped := flipButton(original, "save:11")
	assert.Equal(t, "★ 2", flipped.InlineKeyboard[0][1].Text)
	assert.Equal(t, "unsave:11", flipped.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "☆ 2", original.InlineKeyboard[0][1].Text, "The input markup is not modified")

	back := flipButton(flipped, "unsave:11")
	assert.Equal(t, original, back)

	assert.Same(t, original, flipButton(original, "bogus"))
	assert.Nil(t, flipButton(nil, "save:11"))
}

func TestGroupMessage(t *testing.T) {
	desc := "<p>Prices <b>fall</b> fast</p>"
	msg := groupMessage(digest.Group{
		Category: "Science & Tech",
		Articles: []domain.Article{
			{Title: "A <b>bold</b> claim", Source: "BBC News", URL: "https://example.com/a?x=1&y=2", Description: &desc},
			{Title: "Plain"},
		},
	}, 5)

	assert.True(t, strings.HasPrefix(msg, "<b>Science &amp; Tech</b>\n"))
	assert.Contains(t, msg, `5. <a href="https://example.com/a?x=1&amp;y=2">A &lt;b&gt;bold&lt;/b&gt; claim</a> <i>(BBC News)</i>`)
	assert.Contains(t, msg, "\nPrices fall fast\n")
	assert.Contains(t, msg, "6. Plain\n")
}

func TestGroupMessage_Truncates(t *testing.T) {
	long := make([]domain.Article, 200)
	for i := range long {
		long[i] = domain.Article{Title: strings.Repeat("x", 60)}
	}
	msg := groupMessage(digest.Group{Category: "Tech", Articles: long}, 1)
	assert.LessOrEqual(t, len([]rune(msg)), maxMessageRunes)
}

func TestSavedMessage(t *testing.T) {
	assert.Equal(t, "Your reading list is empty.", savedMessage(nil))

	msg := savedMessage([]domain.SavedArticle{{Article: domain.Article{Title: "Kept"}}})
	assert.Contains(t, msg, "<b>Saved articles</b> (1)")
	assert.Contains(t, msg, "1. Kept")
}

func TestDigestHeader(t *testing.T) {
	d := &domain.Digest{Edition: domain.EditionEvening, Articles: articles(2)}
	assert.Equal(t, "<b>Evening edition</b> · 2 articles", digestHeader(d))
}

func TestUserLine(t *testing.T) {
	assert.Equal(t, "Logged in as <b>Ada</b> (ada@example.com)",
		userLine(&domain.User{FullName: "Ada", Email: "ada@example.com"}))
	assert.Equal(t, "Logged in as <b>bob@example.com</b>",
		userLine(&domain.User{Email: "bob@example.com"}))
}
