package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailydigest/internal/api"
	"dailydigest/internal/api/apitest"
	"dailydigest/internal/domain"
	"dailydigest/internal/logging"
)

type memTokens struct{ token string }

func (m *memTokens) Token(context.Context) (string, error) { return m.token, nil }

func (m *memTokens) SetToken(_ context.Context, t string) error {
	m.token = t
	return nil
}

func (m *memTokens) ClearToken(context.Context) error {
	m.token = ""
	return nil
}

func newTestApp(t *testing.T, tokens *memTokens) (*App, *apitest.Backend) {
	t.Helper()
	backend := apitest.NewServer(t)
	backend.AddUser("ada@example.com", "s3cret", "Ada Lovelace")
	backend.AddDigest(domain.EditionMorning,
		domain.Article{ID: 1, Title: "Chip shortage eases", Category: "Tech", Source: "BBC News", URL: "https://example.com/1"},
		domain.Article{ID: 2, Title: "New compiler released", Category: "Tech", Source: "DW"},
		domain.Article{ID: 3, Title: "Summit ends", Category: "World", Source: "BBC News"},
	)

	log := logging.Discard()
	client := api.New(backend.URL(), tokens, api.WithLogger(log))
	a := NewApp(context.Background(), Options{
		Client:        client,
		Tokens:        tokens,
		Log:           log,
		PollInterval:  10 * time.Millisecond,
		PollTimeout:   time.Second,
		Now:           func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local) },
		MarkdownStyle: "notty",
	})
	t.Cleanup(a.closeControllers)
	return a, backend
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// step feeds msg to the model and runs the command it returns once.
func step(t *testing.T, a *App, msg tea.Msg) tea.Msg {
	t.Helper()
	_, cmd := a.Update(msg)
	if cmd == nil {
		return nil
	}
	return cmd()
}

func start(t *testing.T, a *App) {
	t.Helper()
	msg := a.startSessionCmd()()
	_, cmd := a.Update(msg)
	if a.screen == screenDigest {
		require.NotNil(t, cmd)
		a.Update(cmd())
	}
}

func loggedIn(t *testing.T) (*App, *apitest.Backend) {
	t.Helper()
	tokens := &memTokens{}
	a, backend := newTestApp(t, tokens)
	tokens.token = backend.IssueToken("ada@example.com")
	start(t, a)
	require.Equal(t, screenDigest, a.screen)
	return a, backend
}

func TestApp_StartsOnLoginWithoutToken(t *testing.T) {
	a, backend := newTestApp(t, &memTokens{})
	start(t, a)

	assert.Equal(t, screenLogin, a.screen)
	assert.Zero(t, backend.Calls("GET /auth/me"))
	assert.Contains(t, a.View(), "Log in to Daily Digest")
}

func TestApp_LoginShowsDigest(t *testing.T) {
	a, _ := newTestApp(t, &memTokens{})
	start(t, a)

	a.Update(keyRunes("ada@example.com"))
	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	a.Update(keyRunes("s3cret"))

	result := step(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.IsType(t, authResultMsg{}, result)
	changed := step(t, a, result)
	require.IsType(t, digestChangedMsg{}, changed)
	a.Update(changed)

	assert.Equal(t, screenDigest, a.screen)
	require.NotNil(t, a.digestState.Digest)
	view := a.View()
	assert.Contains(t, view, "Chip shortage eases")
	assert.Contains(t, view, "Tech (2)")
	assert.Contains(t, view, "World (1)")
}

func TestApp_LoginFailureShowsDetail(t *testing.T) {
	a, _ := newTestApp(t, &memTokens{})
	start(t, a)

	a.Update(keyRunes("ada@example.com"))
	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	a.Update(keyRunes("wrong"))
	result := step(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	a.Update(result)

	assert.Equal(t, screenLogin, a.screen)
	assert.Equal(t, "Incorrect email or password", a.login.err)
	assert.False(t, a.login.busy)
}

func TestApp_LoginRequiresFields(t *testing.T) {
	a, backend := newTestApp(t, &memTokens{})
	start(t, a)

	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.NotEmpty(t, a.login.err)
	assert.Zero(t, backend.Calls("POST /auth/login"))
}

func TestApp_RegisterMode(t *testing.T) {
	a, backend := newTestApp(t, &memTokens{})
	start(t, a)

	a.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.True(t, a.login.register)
	assert.Contains(t, a.View(), "Create a Daily Digest account")

	a.Update(keyRunes("new@example.com"))
	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	a.Update(keyRunes("pw"))
	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	a.Update(keyRunes("Newcomer"))
	result := step(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.IsType(t, authResultMsg{}, result)
	assert.NoError(t, result.(authResultMsg).err)
	assert.Equal(t, 1, backend.Calls("POST /auth/register"))
	assert.Equal(t, 1, backend.Calls("POST /auth/login"))
}

func TestApp_SaveToggleAndFilters(t *testing.T) {
	a, backend := loggedIn(t)

	a.Update(keyRunes("j"))
	assert.Equal(t, 1, a.cursor)
	a.Update(step(t, a, keyRunes("s")))
	assert.True(t, a.digestState.IsSaved(2))
	assert.Equal(t, []int64{2}, backend.SavedIDs("ada@example.com"))
	assert.Contains(t, a.View(), "★")

	a.Update(keyRunes("f"))
	assert.Equal(t, "Tech", a.digestState.Category)
	assert.Equal(t, 0, a.cursor)
	view := a.View()
	assert.NotContains(t, view, "Summit ends")
	assert.NotContains(t, view, "Tech (2)", "No group headers while filtering")

	a.Update(keyRunes("f"))
	a.Update(keyRunes("f"))
	assert.Equal(t, "all", a.digestState.Category)
}

func TestApp_SaveFailureShowsError(t *testing.T) {
	a, backend := loggedIn(t)
	backend.Fail("POST /articles/save", 500, "Database unavailable")

	a.Update(step(t, a, keyRunes("s")))
	assert.Equal(t, "Database unavailable", a.err)
	assert.False(t, a.digestState.IsSaved(1))
}

func TestApp_UnauthorizedReturnsToLogin(t *testing.T) {
	a, _ := loggedIn(t)

	a.Update(toLoginMsg{})
	assert.Equal(t, screenLogin, a.screen)
	assert.Equal(t, sessionExpired, a.login.info)
	assert.Nil(t, a.ctrl)
}

func TestApp_Logout(t *testing.T) {
	a, _ := loggedIn(t)
	tokens := a.opts.Tokens.(*memTokens)

	a.Update(keyRunes("L"))
	assert.Equal(t, screenLogin, a.screen)
	assert.Empty(t, tokens.token)
	assert.Empty(t, a.login.info)
}

func TestApp_SavedScreen(t *testing.T) {
	a, backend := loggedIn(t)
	client := a.opts.Client
	for _, id := range []int64{1, 3} {
		_, err := client.SaveArticle(context.Background(), id)
		require.NoError(t, err)
	}

	a.Update(step(t, a, keyRunes("v")))
	assert.Equal(t, screenSaved, a.screen)
	require.Len(t, a.readingState.Items, 2)
	assert.Contains(t, a.View(), "Saved articles (2)")

	a.Update(step(t, a, keyRunes("d")))
	assert.Len(t, a.readingState.Items, 1)
	assert.Equal(t, []int64{1}, backend.SavedIDs("ada@example.com"))

	a.Update(step(t, a, tea.KeyMsg{Type: tea.KeyEsc}))
	assert.Equal(t, screenDigest, a.screen)
	assert.True(t, a.digestState.IsSaved(1))
	assert.False(t, a.digestState.IsSaved(3))
}

func TestApp_Detail(t *testing.T) {
	a, _ := loggedIn(t)

	a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, screenDetail, a.screen)
	assert.Equal(t, int64(1), a.detailArticle.ID)
	assert.Contains(t, a.View(), "Chip shortage eases")

	a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, screenDigest, a.screen)
}

func TestApp_CreateDigestShowsNotice(t *testing.T) {
	a, backend := loggedIn(t)
	backend.QueueDigest(domain.EditionMorning, 100)

	a.Update(step(t, a, keyRunes("c")))
	assert.True(t, a.digestState.Refreshing)
	assert.Contains(t, a.View(), "Your morning digest is being created...")

	_, cmd := a.Update(keyRunes("c"))
	assert.Nil(t, cmd)
	assert.Equal(t, "A digest is already being created.", a.status)
}

func TestArticleMarkdown(t *testing.T) {
	desc := "<p>Prices <b>fall</b></p>"
	published := domain.NewTimestamp(time.Date(2025, 3, 14, 6, 0, 0, 0, time.UTC))
	md := articleMarkdown(domain.Article{
		Title:       "Chip shortage eases",
		Source:      "BBC News",
		Category:    "Tech",
		URL:         "https://example.com/1",
		Description: &desc,
		PublishedAt: &published,
	}, true, time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))

	assert.True(t, strings.HasPrefix(md, "# Chip shortage eases\n"))
	assert.Contains(t, md, "*BBC News · Tech · 3 hours ago · saved*")
	assert.Contains(t, md, "Prices fall")
	assert.Contains(t, md, "[Read the full article](https://example.com/1)")
}

func TestRenderMarkdown(t *testing.T) {
	assert.Empty(t, RenderMarkdown("  ", 80, "notty"))
	out := RenderMarkdown("# Hello\n\nworld", 40, "notty")
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "world")
}
