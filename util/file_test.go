package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nhttp "github.com/chaos-io/rembg-tool/util/http"
)

func TestReadImage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			_, _ = w.Write([]byte("png-bytes"))
		case "/empty.png":
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	local := filepath.Join(t.TempDir(), "in.png")
	require.NoError(t, os.WriteFile(local, []byte("local-bytes"), 0o644))

	tests := []struct {
		name    string
		src     string
		want    string
		wantErr string
	}{
		{name: "本地文件", src: local, want: "local-bytes"},
		{name: "远程图片", src: server.URL + "/ok.png", want: "png-bytes"},
		{name: "远程404", src: server.URL + "/missing.png", wantErr: "status 404"},
		{name: "远程空响应", src: server.URL + "/empty.png", wantErr: "empty body"},
		{name: "本地不存在", src: local + ".missing", wantErr: "open image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ReadImage(context.Background(), nhttp.NewHTTPClient(), tt.src)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "nested", "a.png")
	require.NoError(t, WriteFile(path, []byte("x")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	assert.True(t, IsURL("https://a.com/x.png"))
	assert.True(t, IsURL("http://a.com/x.png"))
	assert.False(t, IsURL("./input/x.png"))
}
