package httpserver_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavespoole/carwash/pkg/httpserver"
)

func waitReady(t *testing.T, srv *httpserver.Server) string {
	t.Helper()
	select {
	case <-srv.Ready():
		return "http://" + srv.Addr()
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
		return ""
	}
}

func ok(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	})
}

func TestServer(t *testing.T) {
	t.Parallel()

	t.Run("serves until context is cancelled", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.Config{Addr: "127.0.0.1:0"})
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Run(ctx, ok("pong")) }()

		base := waitReady(t, srv)
		resp, err := http.Get(base + "/ping")
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		assert.Equal(t, "pong", string(body))

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})

	t.Run("manual shutdown", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.Config{}, httpserver.WithAddr("127.0.0.1:0"))
		done := make(chan error, 1)
		go func() { done <- srv.Run(context.Background(), nil) }()

		base := waitReady(t, srv)
		resp, err := http.Get(base + "/")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		require.NoError(t, srv.Shutdown(context.Background()))
		require.NoError(t, srv.Shutdown(context.Background()))
		assert.NoError(t, <-done)
	})

	t.Run("runs once", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.Config{Addr: "127.0.0.1:0"})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = srv.Run(ctx, ok("")) }()
		waitReady(t, srv)

		err := srv.Run(ctx, ok(""))
		assert.ErrorIs(t, err, httpserver.ErrStart)
		assert.ErrorIs(t, err, httpserver.ErrAlreadyRunning)
	})

	t.Run("listen failure", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.Config{Addr: "256.0.0.1:bad"})
		assert.ErrorIs(t, srv.Run(context.Background(), nil), httpserver.ErrStart)
	})

	t.Run("shutdown before run", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, httpserver.New(httpserver.Config{}).Shutdown(context.Background()))
	})

	t.Run("handler sees the run context values", func(t *testing.T) {
		t.Parallel()
		type key struct{}
		ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "api"))
		defer cancel()

		srv := httpserver.New(httpserver.Config{Addr: "127.0.0.1:0"})
		go func() {
			_ = srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				v, _ := r.Context().Value(key{}).(string)
				_, _ = io.WriteString(w, v)
			}))
		}()

		resp, err := http.Get(waitReady(t, srv))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		assert.Equal(t, "api", string(body))
	})
}
