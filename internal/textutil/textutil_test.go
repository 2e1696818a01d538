package textutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Markets   rally\n today ", "Markets rally today"},
		{"tags", "<p>Markets <b>rally</b></p><p>today</p>", "Markets rally today"},
		{"entities", "Fish &amp; chips", "Fish & chips"},
		{"script", "<script>alert(1)</script>News", "News"},
		{"breaks", "one<br>two", "one two"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "Hello…", Truncate("Hello world", 6))
	assert.Equal(t, "Grüß…", Truncate("Grüße aus Berlin", 5))
	assert.Equal(t, "…", Truncate("abc", 1))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestAgo(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "3 hours ago", Ago(now.Add(-3*time.Hour), now))
	assert.Equal(t, "", Ago(time.Time{}, now))
}

func TestCount(t *testing.T) {
	assert.Equal(t, "1,234", Count(1234))
}
