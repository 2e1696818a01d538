package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditionFor(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	tests := []struct {
		hour int
		want Edition
	}{
		{0, EditionMorning},
		{6, EditionMorning},
		{11, EditionMorning},
		{12, EditionEvening},
		{18, EditionEvening},
		{23, EditionEvening},
	}
	for _, tt := range tests {
		at := time.Date(2026, 3, 1, tt.hour, 59, 0, 0, loc)
		assert.Equal(t, tt.want, EditionFor(at), "hour %d", tt.hour)
	}
}

func TestParseEdition(t *testing.T) {
	e, err := ParseEdition("evening")
	require.NoError(t, err)
	assert.Equal(t, EditionEvening, e)

	_, err = ParseEdition("noon")
	assert.Error(t, err)
}

func TestDigestReady(t *testing.T) {
	var nilDigest *Digest
	assert.False(t, nilDigest.Ready())
	assert.False(t, (&Digest{}).Ready())
	assert.True(t, (&Digest{Articles: []Article{{ID: 1}}}).Ready())
}

func TestDigestDecodesBackendPayload(t *testing.T) {
	payload := `{
		"id": 7,
		"edition": "morning",
		"date": "2026-03-01T06:00:00.123456",
		"is_published": true,
		"articles": [
			{"id": 1, "title": "A", "url": "https://a", "source": "BBC News", "category": "Technology",
			 "description": null, "published_date": "2026-03-01T05:00:00Z", "created_at": "2026-03-01T06:00:00",
			 "is_saved": true, "metadata_json": {"author": "Jane", "image_url": "https://img"}},
			{"id": 2, "title": "B", "url": "https://b", "source": "DW", "category": "Germany",
			 "description": "Berlin", "published_date": null, "created_at": "2026-03-01T06:00:00"}
		]
	}`

	var d Digest
	require.NoError(t, json.Unmarshal([]byte(payload), &d))

	assert.Equal(t, EditionMorning, d.Edition)
	assert.Equal(t, time.Date(2026, 3, 1, 6, 0, 0, 123456000, time.UTC), d.Date.Time)
	require.Len(t, d.Articles, 2)

	a := d.Articles[0]
	assert.Nil(t, a.Description)
	assert.Equal(t, "", a.Summary())
	require.NotNil(t, a.PublishedAt)
	assert.Equal(t, 5, a.PublishedAt.Hour())
	assert.Equal(t, "Jane", a.Author())
	assert.Equal(t, "https://img", a.ImageURL())

	b := d.Articles[1]
	assert.Equal(t, "Berlin", b.Summary())
	assert.Empty(t, b.Author())
	assert.True(t, d.Ready())
}

func TestTimestampRejectsGarbage(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`12`), &ts))
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
}

func TestTimestampMarshal(t *testing.T) {
	ts := NewTimestamp(time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC))
	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-01T06:00:00Z"`, string(out))

	out, err = json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Ada", User{Email: "ada@example.com", FullName: "Ada"}.DisplayName())
	assert.Equal(t, "ada@example.com", User{Email: "ada@example.com"}.DisplayName())
}
