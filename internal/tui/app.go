// Package tui is the interactive terminal client.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"dailydigest/internal/api"
	"dailydigest/internal/browser"
	"dailydigest/internal/digest"
	"dailydigest/internal/domain"
	"dailydigest/internal/session"
)

type screen int

const (
	screenStarting screen = iota
	screenLogin
	screenDigest
	screenSaved
	screenDetail
)

const sessionExpired = "Your session has ended. Please log in again."

// Options configures the terminal client.
type Options struct {
	Client       *api.Client
	Tokens       api.TokenStore
	Log          logrus.FieldLogger
	PollInterval time.Duration
	PollTimeout  time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	// MarkdownStyle is a glamour style name; "" picks one automatically.
	MarkdownStyle string
}

// App is the bubbletea model of the whole client.
type App struct {
	ctx  context.Context
	opts Options
	log  logrus.FieldLogger
	keys KeyMap

	sess *session.Session
	// send delivers messages from background goroutines. Nil until Run.
	send func(tea.Msg)

	screen   screen
	previous screen
	width    int
	height   int
	spinner  spinner.Model

	login loginForm

	ctrl        *digest.Controller
	digestState digest.State
	cursor      int

	reading      *digest.ReadingList
	readingState digest.ReadingListState
	savedCursor  int

	detail        viewport.Model
	detailArticle domain.Article

	status string
	err    string
}

// NewApp builds the model and its session. ctx bounds every backend call.
func NewApp(ctx context.Context, opts Options) *App {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	a := &App{
		ctx:     ctx,
		opts:    opts,
		log:     opts.Log.WithField("component", "tui"),
		keys:    DefaultKeyMap(),
		spinner: sp,
		login:   newLoginForm(),
		width:   80,
		height:  24,
		detail:  viewport.New(80, 20),
	}
	a.sess = session.New(opts.Client, opts.Tokens, a, opts.Log)
	opts.Client.SetUnauthorizedHandler(a.sess.HandleUnauthorized)
	return a
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	a := NewApp(ctx, opts)
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(ctx))
	a.send = p.Send
	defer a.closeControllers()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run terminal ui: %w", err)
	}
	return nil
}

// ToLogin implements session.Navigator.
func (a *App) ToLogin() {
	a.notify(toLoginMsg{})
}

// notify never blocks. It is also reached from inside Update.
func (a *App) notify(msg tea.Msg) {
	if a.send != nil {
		go a.send(msg)
	}
}

// Session exposes the session for callers that embed the model.
func (a *App) Session() *session.Session { return a.sess }

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.startSessionCmd())
}

func (a *App) startSessionCmd() tea.Cmd {
	sess, ctx := a.sess, a.ctx
	return func() tea.Msg {
		sess.Start(ctx)
		return sessionMsg{snapshot: sess.Snapshot()}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.detail.Width = msg.Width
		a.detail.Height = max(1, msg.Height-3)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case sessionMsg:
		if msg.snapshot.State == session.Authenticated {
			return a, a.enterDigest()
		}
		a.showLogin("")
		return a, a.login.focus()

	case toLoginMsg:
		if a.screen != screenLogin && a.screen != screenStarting {
			a.showLogin(sessionExpired)
			return a, a.login.focus()
		}
		return a, nil

	case authResultMsg:
		a.login.busy = false
		if msg.err != nil {
			a.login.err = msg.err.Error()
			return a, nil
		}
		a.login.reset()
		return a, a.enterDigest()

	case digestChangedMsg:
		if msg.ctrl == a.ctrl && a.ctrl != nil {
			a.digestState = a.ctrl.State()
			a.clampCursor()
		}
		return a, nil

	case readingListMsg:
		a.readingState = msg.state
		a.savedCursor = clamp(a.savedCursor, len(a.readingState.Items))
		return a, nil

	case opErrMsg:
		a.err = api.DetailOf(msg.err, msg.err.Error())
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.closeControllers()
			return a, tea.Quit
		}
		a.status = ""
		switch a.screen {
		case screenLogin:
			return a.updateLogin(msg)
		case screenDigest:
			return a.updateDigest(msg)
		case screenSaved:
			return a.updateSaved(msg)
		case screenDetail:
			return a.updateDetail(msg)
		}
	}

	if a.screen == screenLogin {
		return a, a.login.update(msg)
	}
	return a, nil
}

func (a *App) showLogin(info string) {
	a.closeControllers()
	a.screen = screenLogin
	a.login.info = info
	a.err = ""
}

func (a *App) closeControllers() {
	if a.ctrl != nil {
		a.ctrl.Close()
		a.ctrl = nil
	}
	a.reading = nil
}

// enterDigest starts a fresh controller bound to this screen and mounts it.
func (a *App) enterDigest() tea.Cmd {
	a.closeControllers()
	a.screen = screenDigest
	a.cursor = 0
	a.err = ""
	var c *digest.Controller
	c = digest.NewController(a.opts.Client,
		digest.WithLogger(a.opts.Log),
		digest.WithClock(a.opts.Now),
		digest.WithPollInterval(a.opts.PollInterval),
		digest.WithPollTimeout(a.opts.PollTimeout),
		digest.WithOnChange(func(digest.State) { a.notify(digestChangedMsg{ctrl: c}) }),
	)
	a.ctrl = c
	a.digestState = c.State()
	return a.controllerCmd(func(ctx context.Context, c *digest.Controller) error {
		return c.Mount(ctx)
	}, false)
}

// controllerCmd runs fn off the update loop. Failures already reflected in
// the controller state are not repeated unless report is set.
func (a *App) controllerCmd(fn func(context.Context, *digest.Controller) error, report bool) tea.Cmd {
	c, ctx := a.ctrl, a.ctx
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		err := fn(ctx, c)
		if errors.Is(err, digest.ErrClosed) {
			return nil
		}
		if report && err != nil {
			return opErrMsg{err: err}
		}
		return digestChangedMsg{ctrl: c}
	}
}

// visible is the article list in display order.
func (a *App) visible() []domain.Article {
	v := digest.ViewOf(a.digestState)
	if v.Groups == nil {
		return v.Articles
	}
	out := make([]domain.Article, 0, len(v.Articles))
	for _, g := range v.Groups {
		out = append(out, g.Articles...)
	}
	return out
}

func (a *App) clampCursor() {
	a.cursor = clamp(a.cursor, len(a.visible()))
}

func clamp(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	return max(0, cursor)
}

func (a *App) selected() (domain.Article, bool) {
	articles := a.visible()
	if a.cursor < 0 || a.cursor >= len(articles) {
		return domain.Article{}, false
	}
	return articles[a.cursor], true
}

func (a *App) updateDigest(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		a.closeControllers()
		return a, tea.Quit
	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.visible())-1 {
			a.cursor++
		}
	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, a.keys.Back):
		a.err = ""
		if a.ctrl != nil {
			a.ctrl.DismissError()
			a.digestState = a.ctrl.State()
		}
	case key.Matches(msg, a.keys.Open):
		if art, ok := a.selected(); ok {
			a.openDetail(art, a.digestState.IsSaved(art.ID))
		}
	case key.Matches(msg, a.keys.Browser):
		if art, ok := a.selected(); ok {
			return a, openBrowserCmd(art.URL)
		}
	case key.Matches(msg, a.keys.Save):
		if art, ok := a.selected(); ok {
			id := art.ID
			return a, a.controllerCmd(func(ctx context.Context, c *digest.Controller) error {
				return c.ToggleSave(ctx, id)
			}, true)
		}
	case key.Matches(msg, a.keys.Create):
		if a.digestState.Refreshing {
			a.status = "A digest is already being created."
			return a, nil
		}
		return a, a.controllerCmd(func(ctx context.Context, c *digest.Controller) error {
			return c.CreateDigest(ctx)
		}, false)
	case key.Matches(msg, a.keys.Reload):
		return a, a.controllerCmd(func(ctx context.Context, c *digest.Controller) error {
			return c.Reload(ctx)
		}, false)
	case key.Matches(msg, a.keys.Edition):
		next := domain.EditionEvening
		if a.digestState.Edition == domain.EditionEvening {
			next = domain.EditionMorning
		}
		return a, a.controllerCmd(func(ctx context.Context, c *digest.Controller) error {
			return c.LoadEdition(ctx, next)
		}, false)
	case key.Matches(msg, a.keys.Category):
		if a.ctrl != nil {
			v := digest.ViewOf(a.digestState)
			a.ctrl.SetCategory(digest.Cycle(a.digestState.Category, v.Categories))
			a.digestState = a.ctrl.State()
			a.cursor = 0
		}
	case key.Matches(msg, a.keys.Source):
		if a.ctrl != nil {
			v := digest.ViewOf(a.digestState)
			a.ctrl.SetSource(digest.Cycle(a.digestState.Source, v.Sources))
			a.digestState = a.ctrl.State()
			a.cursor = 0
		}
	case key.Matches(msg, a.keys.Saved):
		return a, a.enterSaved()
	case key.Matches(msg, a.keys.Logout):
		a.sess.Logout(a.ctx)
		a.showLogin("")
		return a, a.login.focus()
	}
	return a, nil
}

func (a *App) enterSaved() tea.Cmd {
	a.screen = screenSaved
	a.savedCursor = 0
	a.err = ""
	list := digest.NewReadingList(a.opts.Client, a.opts.Log, nil)
	a.reading = list
	a.readingState = digest.ReadingListState{Loading: true}
	return a.readingCmd(func(ctx context.Context, r *digest.ReadingList) error {
		return r.Load(ctx)
	})
}

func (a *App) readingCmd(fn func(context.Context, *digest.ReadingList) error) tea.Cmd {
	r, ctx := a.reading, a.ctx
	if r == nil {
		return nil
	}
	return func() tea.Msg {
		err := fn(ctx, r)
		state := r.State()
		if err != nil && state.Error == "" {
			state.Error = api.DetailOf(err, err.Error())
		}
		return readingListMsg{state: state}
	}
}

func (a *App) updateSaved(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := a.readingState.Items
	switch {
	case key.Matches(msg, a.keys.Quit):
		a.closeControllers()
		return a, tea.Quit
	case key.Matches(msg, a.keys.Back):
		a.screen = screenDigest
		a.reading = nil
		// The saved set may have changed here.
		return a, a.controllerCmd(func(ctx context.Context, c *digest.Controller) error {
			return c.Reload(ctx)
		}, false)
	case key.Matches(msg, a.keys.Down):
		if a.savedCursor < len(items)-1 {
			a.savedCursor++
		}
	case key.Matches(msg, a.keys.Up):
		if a.savedCursor > 0 {
			a.savedCursor--
		}
	case key.Matches(msg, a.keys.Open):
		if a.savedCursor < len(items) {
			a.openDetail(items[a.savedCursor].Article, true)
		}
	case key.Matches(msg, a.keys.Browser):
		if a.savedCursor < len(items) {
			return a, openBrowserCmd(items[a.savedCursor].URL)
		}
	case key.Matches(msg, a.keys.Remove):
		if a.savedCursor < len(items) {
			id := items[a.savedCursor].ID
			return a, a.readingCmd(func(ctx context.Context, r *digest.ReadingList) error {
				return r.Remove(ctx, id)
			})
		}
	case key.Matches(msg, a.keys.Reload):
		return a, a.readingCmd(func(ctx context.Context, r *digest.ReadingList) error {
			return r.Load(ctx)
		})
	}
	return a, nil
}

func (a *App) openDetail(art domain.Article, saved bool) {
	a.previous = a.screen
	a.screen = screenDetail
	a.detailArticle = art
	a.detail.SetContent(RenderMarkdown(articleMarkdown(art, saved, a.opts.Now()), a.width-2, a.opts.MarkdownStyle))
	a.detail.GotoTop()
}

func (a *App) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back), msg.String() == "q":
		a.screen = a.previous
		return a, nil
	case key.Matches(msg, a.keys.Browser):
		return a, openBrowserCmd(a.detailArticle.URL)
	}
	var cmd tea.Cmd
	a.detail, cmd = a.detail.Update(msg)
	return a, cmd
}

func openBrowserCmd(url string) tea.Cmd {
	return func() tea.Msg {
		if err := browser.Open(url); err != nil {
			return opErrMsg{err: err}
		}
		return nil
	}
}

func (a *App) View() string {
	switch a.screen {
	case screenLogin:
		return a.login.view(a.width)
	case screenDigest:
		return a.digestView()
	case screenSaved:
		return a.savedView()
	case screenDetail:
		return a.detail.View() + "\n" + a.bottomBar(helpLine(a.keys.Back, a.keys.Browser, a.keys.Up, a.keys.Down))
	default:
		return "\n " + a.spinner.View() + " Checking session...\n"
	}
}
