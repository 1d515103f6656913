package rembg

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/rembg-tool/config"
	nhttp "github.com/chaos-io/rembg-tool/util/http"
)

func TestPassthrough(t *testing.T) {
	t.Parallel()

	p := NewPassthrough()
	got, err := p.Remove(context.Background(), inputPNG)
	require.NoError(t, err)
	assert.Equal(t, inputPNG, got)

	got[0] = 0
	assert.Equal(t, byte(0x89), inputPNG[0], "返回的是副本")
	assert.NoError(t, p.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Remove(ctx, inputPNG)
	assert.ErrorIs(t, err, ErrRemoval)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRembgServer_Remove(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/remove", r.URL.Path)

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		assert.Equal(t, inputPNG, data)
		assert.Equal(t, "birefnet-general", r.FormValue("model"))

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(outputPNG)
	}))
	defer server.Close()

	got, err := NewRembgServer(server.URL, "birefnet-general").Remove(context.Background(), inputPNG)
	require.NoError(t, err)
	assert.Equal(t, outputPNG, got)
}

func TestRembgServer_Remove_SlowerThanClientDefault(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write(outputPNG)
	}))
	defer server.Close()

	r := NewRembgServer(server.URL, "")
	r.cli = nhttp.NewHTTPClientWithTimeout(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := r.Remove(ctx, inputPNG)
	require.NoError(t, err, "以调用方的 deadline 为准")
	assert.Equal(t, outputPNG, got)

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shortCancel()
	_, err = r.Remove(shortCtx, inputPNG)
	require.ErrorIs(t, err, ErrRemoval)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRembgServer_Remove_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantErrMsg string
	}{
		{
			name: "服务端报错",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("cannot identify image file"))
			},
			wantErrMsg: "cannot identify image file",
		},
		{
			name:       "空响应",
			handler:    func(w http.ResponseWriter, r *http.Request) {},
			wantErrMsg: "empty response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewRembgServer(server.URL, "").Remove(context.Background(), inputPNG)
			require.ErrorIs(t, err, ErrRemoval)
			assert.Contains(t, err.Error(), tt.wantErrMsg)
		})
	}
}

func TestRembgServer_Ping(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api", r.URL.Path)
		_, _ = w.Write([]byte("<html>docs</html>"))
	}))
	defer server.Close()

	assert.NoError(t, NewRembgServer(server.URL+"/", "").Ping(context.Background()))
}

func TestNew(t *testing.T) {
	t.Parallel()

	workflowFile := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(workflowFile, workflowData, 0o644))

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		check   func(t *testing.T, r Remover)
		wantErr string
	}{
		{
			name:   "none",
			mutate: func(cfg *config.Config) { cfg.Backend = config.BackendNone },
			check: func(t *testing.T, r Remover) {
				assert.IsType(t, &Passthrough{}, r)
			},
		},
		{
			name:   "comfyui",
			mutate: func(cfg *config.Config) {},
			check: func(t *testing.T, r Remover) {
				assert.IsType(t, &BiRefNetRemBG{}, r)
			},
		},
		{
			name:   "comfyui自定义工作流",
			mutate: func(cfg *config.Config) { cfg.ComfyUI.WorkflowFile = workflowFile },
			check: func(t *testing.T, r Remover) {
				assert.Equal(t, "1", r.(*BiRefNetRemBG).loadNode)
			},
		},
		{
			name:    "工作流文件不存在",
			mutate:  func(cfg *config.Config) { cfg.ComfyUI.WorkflowFile = workflowFile + ".missing" },
			wantErr: "read workflow file",
		},
		{
			name: "rembg",
			mutate: func(cfg *config.Config) {
				cfg.Backend = config.BackendRembg
				cfg.Rembg.Model = "isnet-general-use"
			},
			check: func(t *testing.T, r Remover) {
				assert.Equal(t, "isnet-general-use", r.(*RembgServer).model)
			},
		},
		{
			name:    "未知后端",
			mutate:  func(cfg *config.Config) { cfg.Backend = "magic" },
			wantErr: `unknown backend "magic"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.mutate(cfg)

			r, err := New(cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, r)

			_, ok := r.(Pinger)
			assert.True(t, ok, "所有后端都支持健康检查")
		})
	}
}
