package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nhttp "github.com/chaos-io/rembg-tool/util/http"
)

const page = `<html><body>
<img alt="a" src="/images/thumb/a/ab/Hero_codex_axe.png/120px-Hero_codex_axe.png" width="120">
<img src="https://cdn.example.com/logo.svg">
<img class="x" src="/images/c/cd/Hero_codex_lina.png">
<img src="/images/c/cd/Hero_codex_lina.png">
</body></html>`

func TestImageURLs(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wiki/Heroes", r.URL.Path)
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	tests := []struct {
		name  string
		match string
		want  []string
	}{
		{
			name:  "按关键字过滤",
			match: "Hero_codex",
			want: []string{
				server.URL + "/images/a/ab/Hero_codex_axe.png",
				server.URL + "/images/c/cd/Hero_codex_lina.png",
			},
		},
		{
			name: "不过滤",
			want: []string{
				server.URL + "/images/a/ab/Hero_codex_axe.png",
				"https://cdn.example.com/logo.svg",
				server.URL + "/images/c/cd/Hero_codex_lina.png",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ImageURLs(context.Background(), nhttp.NewHTTPClient(), server.URL+"/wiki/Heroes", tt.match)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageURLs_Error(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := ImageURLs(context.Background(), nhttp.NewHTTPClient(), server.URL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch page")
}

func TestNormalizeThumbURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/images/a/ab/X.png", normalizeThumbURL("/images/thumb/a/ab/X.png/120px-X.png"))
	assert.Equal(t, "/images/a/ab/X.png", normalizeThumbURL("/images/a/ab/X.png"))
	assert.Equal(t, "/images/thumb", normalizeThumbURL("/images/thumb"))
}

func TestFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Hero_codex_axe", FileName("https://x.com/images/a/ab/Hero_codex_axe.png?v=1"))
	assert.Equal(t, "", FileName("https://x.com/"))
}
