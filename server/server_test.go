package server_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctfer-io/lfs-station/pkg/fs"
	"github.com/ctfer-io/lfs-station/pkg/station"
	"github.com/ctfer-io/lfs-station/server"
)

func Test_U_Root(t *testing.T) {
	t.Parallel()

	srv := server.NewServer(server.Options{})
	h := srv.Handler()

	// Whatever the number of requests, the page stays the same
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
		assert.Equal(t, server.DefaultPage, rec.Body.String())
	}
}

func Test_U_Unhandled(t *testing.T) {
	t.Parallel()

	h := server.NewServer(server.Options{}).Handler()

	var tests = map[string]struct {
		Method, Path string
	}{
		"other-path": {
			Method: http.MethodGet,
			Path:   "/index.html",
		},
		"healthcheck-off": {
			Method: http.MethodGet,
			Path:   "/healthcheck",
		},
		"post-root": {
			Method: http.MethodPost,
			Path:   "/",
		},
	}

	for testname, tt := range tests {
		t.Run(testname, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.Method, tt.Path, nil))
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
}

func Test_U_CustomPage(t *testing.T) {
	t.Parallel()

	h := server.NewServer(server.Options{Page: "<p>hi</p>"}).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "<p>hi</p>", rec.Body.String())
}

func Test_U_Healthcheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, err := fs.MountPartition(ctx, fs.NewMemFlash(), fs.Partition{
		Name:     "spiffs",
		Label:    "/littlefs",
		MaxFiles: 1,
	}, fs.MountOptions{FormatIfFailed: true})
	require.NoError(t, err)

	h := server.NewServer(server.Options{
		Healthcheck: true,
		Mount:       m,
		Link:        station.HostLink{},
	}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"OK"`)

	// Once unmounted, the flash check fails
	require.NoError(t, m.Unmount(ctx))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func Test_F_Run(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := server.NewServer(server.Options{Port: 0})
	require.NoError(t, srv.Run(ctx))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	client := &http.Client{Timeout: 5 * time.Second}
	for i := 0; i < 3; i++ {
		res, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/", srv.Addr().(*net.TCPAddr).Port))
		require.NoError(t, err)
		b, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		require.NoError(t, res.Body.Close())

		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, server.DefaultPage, string(b))
	}
}
