package domain

import (
	"fmt"
	"time"
)

// Edition is the morning or evening variant of a digest.
type Edition string

const (
	EditionMorning Edition = "morning"
	EditionEvening Edition = "evening"
)

// editionBoundaryHour splits the day: hours before it are morning.
const editionBoundaryHour = 12

// EditionFor picks the edition for the given local wall-clock time.
// The noon boundary is fixed and uses t's own location.
func EditionFor(t time.Time) Edition {
	if t.Hour() < editionBoundaryHour {
		return EditionMorning
	}
	return EditionEvening
}

// ParseEdition validates a user-supplied edition name.
func ParseEdition(s string) (Edition, error) {
	switch Edition(s) {
	case EditionMorning, EditionEvening:
		return Edition(s), nil
	default:
		return "", fmt.Errorf("edition must be %q or %q, got %q", EditionMorning, EditionEvening, s)
	}
}

func (e Edition) String() string { return string(e) }

// Digest is a server-curated bundle of articles for one edition.
// It is always replaced wholesale by a re-fetch.
type Digest struct {
	ID          int64     `json:"id"`
	Edition     Edition   `json:"edition"`
	Date        Timestamp `json:"date"`
	IsPublished bool      `json:"is_published"`
	Articles    []Article `json:"articles"`

	// ArticlesByCategory is the server-side grouping. Clients regroup locally
	// and only keep this for completeness.
	ArticlesByCategory map[string][]Article `json:"articles_by_category,omitempty"`
}

// Ready reports whether the digest has any articles to show.
func (d *Digest) Ready() bool {
	return d != nil && len(d.Articles) > 0
}

// DigestSummary is an entry of the digest list endpoint.
type DigestSummary struct {
	ID           int64     `json:"id"`
	Edition      Edition   `json:"edition"`
	Date         Timestamp `json:"date"`
	IsPublished  bool      `json:"is_published"`
	ArticleCount int       `json:"article_count"`
}
