package digest_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailydigest/internal/digest"
	"dailydigest/internal/domain"
	"dailydigest/internal/logging"
)

func TestReadingList(t *testing.T) {
	backend, client, _, _ := setup(t)
	backend.AddDigest(domain.EditionEvening, sampleArticles()...)
	ctx := context.Background()
	for _, id := range []int64{1, 3} {
		_, err := client.SaveArticle(ctx, id)
		require.NoError(t, err)
	}

	var updates []digest.ReadingListState
	list := digest.NewReadingList(client, logging.Discard(), func(s digest.ReadingListState) {
		updates = append(updates, s)
	})

	require.NoError(t, list.Load(ctx))
	require.Len(t, updates, 2)
	assert.True(t, updates[0].Loading)
	assert.False(t, updates[1].Loading)

	items := list.State().Items
	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items[0].ID)

	require.NoError(t, list.Remove(ctx, 3))
	assert.Len(t, list.State().Items, 1)
	assert.Equal(t, []int64{1}, backend.SavedIDs(email))

	backend.Fail("DELETE /articles/save/1", http.StatusInternalServerError, "")
	require.Error(t, list.Remove(ctx, 1))
	assert.Len(t, list.State().Items, 1, "Items stay until the backend confirms")
}

func TestReadingList_LoadFailure(t *testing.T) {
	backend, client, _, _ := setup(t)
	backend.Fail("GET /articles/saved", http.StatusInternalServerError, "")

	list := digest.NewReadingList(client, logging.Discard(), nil)
	require.Error(t, list.Load(context.Background()))
	s := list.State()
	assert.False(t, s.Loading)
	assert.Equal(t, "Failed to load saved articles", s.Error)
}

func TestFilterHelpers(t *testing.T) {
	articles := append(sampleArticles(), domain.Article{ID: 4, Title: "Loose"})

	assert.Equal(t, []string{"Tech", "World", "Uncategorized"}, digest.Categories(articles))
	assert.Equal(t, []string{"BBC News", "DW"}, digest.Sources(articles))
	assert.Equal(t, []int64{4}, ids(digest.FilterArticles(articles, "Uncategorized", "")))
	assert.Equal(t, []int64{2}, ids(digest.FilterArticles(articles, "Tech", "DW")))
	assert.Empty(t, digest.FilterArticles(articles, "Sports", digest.All))
	assert.Nil(t, digest.GroupByCategory(nil))
}

func TestCycle(t *testing.T) {
	options := []string{"Tech", "World"}
	tests := []struct {
		current string
		want    string
	}{
		{digest.All, "Tech"},
		{"", "Tech"},
		{"Tech", "World"},
		{"World", digest.All},
		{"Gone", digest.All},
	}
	for _, tt := range tests {
		t.Run(tt.current, func(t *testing.T) {
			assert.Equal(t, tt.want, digest.Cycle(tt.current, options))
		})
	}
	assert.Equal(t, digest.All, digest.Cycle(digest.All, nil))
}
