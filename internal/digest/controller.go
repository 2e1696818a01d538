// Package digest holds the view logic behind the digest and reading-list
// screens. Controllers own their state and report it through a callback;
// surfaces only render.
package digest

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dailydigest/internal/api"
	"dailydigest/internal/domain"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 2 * time.Minute
)

// User-facing messages.
const (
	NoDigestNotice  = "No digest yet. Create your first digest."
	TimeoutNotice   = "Digest creation is taking longer than expected. Please refresh manually."
	loadFailed      = "Failed to load digest"
	loadInterrupted = "Loading the digest took too long. Please try again."
	createFailed    = "Failed to create digest"
)

var (
	ErrAlreadyRefreshing = errors.New("digest creation already in progress")
	ErrClosed            = errors.New("controller closed")
)

// CreatingNotice is shown while a new digest is being assembled.
func CreatingNotice(edition domain.Edition) string {
	return fmt.Sprintf("Your %s digest is being created...", edition)
}

// API is the part of the backend the controllers need.
type API interface {
	LatestDigest(ctx context.Context, edition domain.Edition) (*domain.Digest, error)
	CreateDigest(ctx context.Context, edition domain.Edition) (*domain.Ack, error)
	SavedArticles(ctx context.Context) ([]domain.SavedArticle, error)
	SaveArticle(ctx context.Context, id int64) (*domain.Ack, error)
	UnsaveArticle(ctx context.Context, id int64) (*domain.Ack, error)
}

// State is what the digest screen renders.
type State struct {
	Digest     *domain.Digest
	Edition    domain.Edition
	Loading    bool
	Refreshing bool
	// Error is a hard failure with a retry affordance.
	Error string
	// Notice is informational: no digest yet, creation in progress, timeout.
	Notice   string
	SavedIDs map[int64]struct{}
	Category string
	Source   string
}

// IsSaved reports whether id is in the saved set.
func (s State) IsSaved(id int64) bool {
	_, ok := s.SavedIDs[id]
	return ok
}

// Articles returns the articles of the loaded digest, or nil.
func (s State) Articles() []domain.Article {
	if s.Digest == nil {
		return nil
	}
	return s.Digest.Articles
}

// View is the derived, render-ready form of State.
type View struct {
	Articles   []domain.Article
	Groups     []Group
	Categories []string
	Sources    []string
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now for edition selection.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithPollInterval sets the delay between polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.pollInterval = d }
}

// WithPollTimeout sets how long polling may run in total.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Controller) { c.pollTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = log }
}

// WithOnChange registers the callback fired after every state change. It is
// called without locks held, possibly from a background goroutine.
func WithOnChange(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// Controller drives the digest screen.
type Controller struct {
	api          API
	log          logrus.FieldLogger
	now          func() time.Time
	pollInterval time.Duration
	pollTimeout  time.Duration
	onChange     func(State)

	life   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	polling  atomic.Bool
	inFlight atomic.Bool

	mu     sync.Mutex
	closed bool
	state  State
}

// NewController creates a controller. Call Close when the screen goes away.
func NewController(a API, opts ...Option) *Controller {
	c := &Controller{
		api:          a,
		log:          logrus.StandardLogger(),
		now:          time.Now,
		pollInterval: DefaultPollInterval,
		pollTimeout:  DefaultPollTimeout,
		state: State{
			Edition:  domain.EditionMorning,
			SavedIDs: make(map[int64]struct{}),
			Category: All,
			Source:   All,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "digest_controller")
	c.life, c.cancel = context.WithCancel(context.Background())
	return c
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.SavedIDs = maps.Clone(c.state.SavedIDs)
	return s
}

// update applies fn and notifies. It is a no-op after Close.
func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn(&c.state)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(snap)
	}
}

// scope returns a context that ends with either ctx or the controller.
func (c *Controller) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Mount loads the latest morning digest and the saved ids concurrently.
// Outcomes land in State; the returned error is the first failure that was
// not an expected "no digest yet".
func (c *Controller) Mount(ctx context.Context) error {
	return c.load(ctx, domain.EditionMorning)
}

// Reload loads the current edition and the saved ids again.
func (c *Controller) Reload(ctx context.Context) error {
	return c.load(ctx, c.State().Edition)
}

// LoadEdition switches to edition and loads it.
func (c *Controller) LoadEdition(ctx context.Context, edition domain.Edition) error {
	return c.load(ctx, edition)
}

func (c *Controller) load(ctx context.Context, edition domain.Edition) error {
	if c.isClosed() {
		return ErrClosed
	}
	ctx, cancel := c.scope(ctx)
	defer cancel()

	c.update(func(s *State) {
		s.Edition = edition
		s.Loading = true
		s.Error = ""
		if !s.Refreshing {
			s.Notice = ""
		}
	})

	var g errgroup.Group
	g.Go(func() error { return c.loadDigest(ctx, edition) })
	g.Go(func() error { return c.loadSaved(ctx) })
	return g.Wait()
}

func (c *Controller) loadDigest(ctx context.Context, edition domain.Edition) error {
	d, err := c.api.LatestDigest(ctx, edition)
	switch {
	case err == nil:
		c.update(func(s *State) {
			s.Digest = d
			s.Loading = false
			if !s.Refreshing {
				s.Notice = ""
			}
		})
		return nil
	case api.IsNotFound(err):
		c.update(func(s *State) {
			s.Digest = nil
			s.Loading = false
			if !s.Refreshing {
				s.Notice = api.DetailOf(err, NoDigestNotice)
			}
		})
		return nil
	case ctx.Err() != nil:
		c.update(func(s *State) {
			s.Loading = false
			s.Error = loadInterrupted
		})
		return ctx.Err()
	default:
		c.log.WithError(err).WithField("edition", edition).Warn("Failed to load digest")
		c.update(func(s *State) {
			s.Loading = false
			s.Error = api.DetailOf(err, loadFailed)
		})
		return fmt.Errorf("failed to load %s digest: %w", edition, err)
	}
}

func (c *Controller) loadSaved(ctx context.Context) error {
	saved, err := c.api.SavedArticles(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.WithError(err).Warn("Failed to load saved articles")
		}
		return fmt.Errorf("failed to load saved articles: %w", err)
	}
	ids := make(map[int64]struct{}, len(saved))
	for _, a := range saved {
		ids[a.ID] = struct{}{}
	}
	c.update(func(s *State) { s.SavedIDs = ids })
	return nil
}

// CreateDigest asks the backend for a new digest of the edition matching the
// local hour, then polls until it has articles or the poll timeout passes.
// It returns once the request was accepted; polling runs in the background.
func (c *Controller) CreateDigest(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.polling.CompareAndSwap(false, true) {
		c.mu.Unlock()
		return ErrAlreadyRefreshing
	}
	c.mu.Unlock()

	edition := domain.EditionFor(c.now())
	log := c.log.WithField("edition", edition)
	c.update(func(s *State) {
		s.Refreshing = true
		s.Error = ""
	})

	ctx, cancel := c.scope(ctx)
	defer cancel()
	if _, err := c.api.CreateDigest(ctx, edition); err != nil {
		c.polling.Store(false)
		log.WithError(err).Warn("Failed to create digest")
		c.update(func(s *State) {
			s.Refreshing = false
			s.Error = api.DetailOf(err, createFailed)
		})
		return fmt.Errorf("failed to create %s digest: %w", edition, err)
	}
	log.Info("Digest creation requested")

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.polling.Store(false)
		return ErrClosed
	}
	c.wg.Add(1)
	c.mu.Unlock()

	c.update(func(s *State) {
		s.Edition = edition
		s.Notice = CreatingNotice(edition)
	})
	go c.poll(edition)
	return nil
}

// poll fetches the latest digest every interval. At most one request is
// outstanding; ticks that arrive while one is pending are skipped. Request
// failures only mean the digest is not ready yet.
func (c *Controller) poll(edition domain.Edition) {
	defer c.wg.Done()
	defer c.polling.Store(false)

	log := c.log.WithField("edition", edition)
	ctx, cancel := context.WithTimeout(c.life, c.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	ready := make(chan *domain.Digest, 1)
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			if c.life.Err() != nil {
				log.Debug("Polling cancelled")
				return
			}
			log.WithField("attempts", attempts).Warn("Digest not ready before poll timeout")
			c.update(func(s *State) {
				s.Refreshing = false
				s.Notice = TimeoutNotice
			})
			return

		case <-ticker.C:
			if !c.inFlight.CompareAndSwap(false, true) {
				log.Debug("Previous poll still pending")
				continue
			}
			attempts++
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				defer c.inFlight.Store(false)
				d, err := c.api.LatestDigest(ctx, edition)
				if err != nil {
					log.WithError(err).Debug("Digest not ready")
					return
				}
				if d.Ready() {
					select {
					case ready <- d:
					default:
					}
				}
			}()

		case d := <-ready:
			log.WithFields(logrus.Fields{"attempts": attempts, "digest_id": d.ID}).Info("Digest ready")
			c.update(func(s *State) {
				s.Digest = d
				s.Refreshing = false
				s.Loading = false
				s.Notice = ""
				s.Error = ""
			})
			return
		}
	}
}

// ToggleSave saves the article when it is not in the saved set and unsaves
// it otherwise. The set changes only after the backend confirms; on failure
// it is left alone and the error is returned.
func (c *Controller) ToggleSave(ctx context.Context, id int64) error {
	if c.isClosed() {
		return ErrClosed
	}
	ctx, cancel := c.scope(ctx)
	defer cancel()

	saved := c.State().IsSaved(id)
	var err error
	if saved {
		_, err = c.api.UnsaveArticle(ctx, id)
	} else {
		_, err = c.api.SaveArticle(ctx, id)
	}
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{"article_id": id, "saved": saved}).Warn("Failed to toggle save")
		return fmt.Errorf("failed to toggle save for article %d: %w", id, err)
	}

	c.update(func(s *State) {
		if saved {
			delete(s.SavedIDs, id)
		} else {
			s.SavedIDs[id] = struct{}{}
		}
	})
	return nil
}

// SetCategory selects a category filter. "" or All clears it.
func (c *Controller) SetCategory(category string) {
	if category == "" {
		category = All
	}
	c.update(func(s *State) { s.Category = category })
}

// SetSource selects a source filter. "" or All clears it.
func (c *Controller) SetSource(source string) {
	if source == "" {
		source = All
	}
	c.update(func(s *State) { s.Source = source })
}

// DismissError clears the error banner.
func (c *Controller) DismissError() {
	c.update(func(s *State) { s.Error = "" })
}

// View derives the filtered articles from the current state.
func (c *Controller) View() View {
	return ViewOf(c.State())
}

// ViewOf derives the filtered articles from s. Groups are only built when
// both filters are All.
func ViewOf(s State) View {
	articles := s.Articles()
	v := View{
		Articles:   FilterArticles(articles, s.Category, s.Source),
		Categories: Categories(articles),
		Sources:    Sources(articles),
	}
	if matches(s.Category, All) && matches(s.Source, All) {
		v.Groups = GroupByCategory(v.Articles)
	}
	return v
}

// Close stops polling and waits for background work. No state changes are
// reported afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
