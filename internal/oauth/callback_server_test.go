package oauth

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startCallbackServer(t *testing.T) (*CallbackServer, string) {
	t.Helper()

	server, err := NewCallbackServer("http://localhost:0/callback")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, server.Start(ctx))
	t.Cleanup(server.Stop)

	return server, "http://" + server.Addr() + "/callback"
}

func TestNewCallbackServer_RejectsNonLoopback(t *testing.T) {
	_, err := NewCallbackServer("https://example.com/callback")
	assert.Error(t, err)

	_, err = NewCallbackServer("app://auth/callback")
	assert.Error(t, err)

	_, err = NewCallbackServer("http://127.0.0.1:3000/callback")
	assert.NoError(t, err)
}

func TestCallbackServer_ReceivesCode(t *testing.T) {
	server, base := startCallbackServer(t)

	resp, err := http.Get(base + "?code=abc&state=xyz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Authentication complete")
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := server.WaitForCallback(ctx)
	require.NoError(t, err)

	assert.False(t, result.IsError())
	assert.Equal(t, "abc", result.Code)
	assert.Equal(t, "xyz", result.State)
	assert.Contains(t, result.RedirectURL, "code=abc")
	assert.Contains(t, result.RedirectURL, "/callback?")
}

func TestCallbackServer_ReceivesError(t *testing.T) {
	server, base := startCallbackServer(t)

	resp, err := http.Get(base + "?error=access_denied&error_description=%3Cscript%3E")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Contains(t, string(body), "access_denied")
	assert.NotContains(t, string(body), "<script>", "description is escaped")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := server.WaitForCallback(ctx)
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.Equal(t, "access_denied", result.Error)
}

func TestCallbackServer_OnlyFirstCallbackCounts(t *testing.T) {
	_, base := startCallbackServer(t)

	resp, err := http.Get(base + "?code=first&state=s")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(base + "?code=second&state=s")
	if err != nil {
		// The server may already be shutting down.
		return
	}
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCallbackServer_WaitHonoursContext(t *testing.T) {
	server, _ := startCallbackServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := server.WaitForCallback(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
