package digest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"dailydigest/internal/api"
	"dailydigest/internal/domain"
)

const loadSavedFailed = "Failed to load saved articles"

// SavedAPI is the part of the backend the reading list needs.
type SavedAPI interface {
	SavedArticles(ctx context.Context) ([]domain.SavedArticle, error)
	UnsaveArticle(ctx context.Context, id int64) (*domain.Ack, error)
}

// ReadingListState is what the saved screen renders.
type ReadingListState struct {
	Items   []domain.SavedArticle
	Loading bool
	Error   string
}

// ReadingList drives the saved articles screen.
type ReadingList struct {
	api      SavedAPI
	log      logrus.FieldLogger
	onChange func(ReadingListState)

	mu    sync.Mutex
	state ReadingListState
}

// NewReadingList creates a reading list. onChange may be nil.
func NewReadingList(a SavedAPI, log logrus.FieldLogger, onChange func(ReadingListState)) *ReadingList {
	return &ReadingList{
		api:      a,
		log:      log.WithField("component", "reading_list"),
		onChange: onChange,
	}
}

// State returns a copy of the current state.
func (r *ReadingList) State() ReadingListState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state
	s.Items = slices.Clone(r.state.Items)
	return s
}

func (r *ReadingList) update(fn func(*ReadingListState)) {
	r.mu.Lock()
	fn(&r.state)
	s := r.state
	s.Items = slices.Clone(r.state.Items)
	r.mu.Unlock()
	if r.onChange != nil {
		r.onChange(s)
	}
}

// Load fetches the saved list.
func (r *ReadingList) Load(ctx context.Context) error {
	r.update(func(s *ReadingListState) {
		s.Loading = true
		s.Error = ""
	})

	items, err := r.api.SavedArticles(ctx)
	if err != nil {
		r.log.WithError(err).Warn("Failed to load saved articles")
		r.update(func(s *ReadingListState) {
			s.Loading = false
			s.Error = api.DetailOf(err, loadSavedFailed)
		})
		return fmt.Errorf("failed to load saved articles: %w", err)
	}

	r.update(func(s *ReadingListState) {
		s.Items = items
		s.Loading = false
	})
	return nil
}

// Remove unsaves id and drops it from the list once the backend confirms.
func (r *ReadingList) Remove(ctx context.Context, id int64) error {
	if _, err := r.api.UnsaveArticle(ctx, id); err != nil {
		r.log.WithError(err).WithField("article_id", id).Warn("Failed to remove saved article")
		return fmt.Errorf("failed to remove article %d: %w", id, err)
	}
	r.update(func(s *ReadingListState) {
		s.Items = slices.DeleteFunc(s.Items, func(a domain.SavedArticle) bool { return a.ID == id })
	})
	return nil
}
