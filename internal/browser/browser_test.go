package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://www.bbc.co.uk/news/articles/1", false},
		{"http://example.com", false},
		{"javascript:alert(1)", true},
		{"file:///etc/passwd", true},
		{"https://", true},
		{"://broken", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := Validate(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCommand(t *testing.T) {
	name, args := command("darwin", "https://a.example")
	assert.Equal(t, "open", name)
	assert.Equal(t, []string{"https://a.example"}, args)

	name, args = command("windows", "https://a.example")
	assert.Equal(t, "rundll32", name)
	assert.Equal(t, "url.dll,FileProtocolHandler", args[0])

	name, _ = command("freebsd", "https://a.example")
	assert.Equal(t, "xdg-open", name)
}

func TestOpen(t *testing.T) {
	orig := start
	t.Cleanup(func() { start = orig })

	var launched []string
	start = func(name string, args ...string) error {
		launched = append(launched, args[len(args)-1])
		return nil
	}
	require.NoError(t, Open("https://a.example/story"))
	assert.Equal(t, []string{"https://a.example/story"}, launched)

	require.Error(t, Open("ftp://a.example"))
	assert.Len(t, launched, 1, "Rejected URLs never reach the launcher")

	start = func(string, ...string) error { return errors.New("no browser") }
	assert.ErrorContains(t, Open("https://a.example"), "no browser")
}
