package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/fetchgate/config"
	"github.com/BaSui01/fetchgate/gateway"
	"github.com/BaSui01/fetchgate/mcp"
)

func newTestGateway(t *testing.T) (*gateway.Gateway, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markdown":
			w.Header().Set("Content-Type", "text/markdown")
			_, _ = w.Write([]byte("# Heading\n\nBody text."))
		case "/html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><body>nope</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultFetchConfig()
	gw := gateway.New(cfg, zap.NewNop(), gateway.Options{Client: srv.Client()})
	return gw, srv
}

func TestFetchTool_Definition(t *testing.T) {
	gw, _ := newTestGateway(t)
	def, handler := NewFetchTool(gw, zap.NewNop())

	require.NoError(t, def.Validate())
	assert.Equal(t, FetchToolName, def.Name)
	assert.Contains(t, def.Description, "uithub.com")
	assert.Contains(t, def.Description, "fxtwitter.com")

	required, ok := def.InputSchema["required"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"url"}, required)
	require.NotNil(t, handler)
}

func TestFetchTool_Success(t *testing.T) {
	gw, srv := newTestGateway(t)
	_, handler := NewFetchTool(gw, zap.NewNop())

	result, err := handler(context.Background(), map[string]any{"url": srv.URL + "/markdown"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.False(t, result.IsError)
	assert.Equal(t, "# Heading\n\nBody text.", result.Content[0].Text)
}

func TestFetchTool_HTMLRejected(t *testing.T) {
	gw, srv := newTestGateway(t)
	_, handler := NewFetchTool(gw, zap.NewNop())

	result, err := handler(context.Background(), map[string]any{"url": srv.URL + "/html"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.True(t, result.IsError)
	assert.Equal(t, gateway.HTMLRejectionMessage, result.Content[0].Text)
}

func TestFetchTool_UpstreamError(t *testing.T) {
	gw, srv := newTestGateway(t)
	_, handler := NewFetchTool(gw, zap.NewNop())

	result, err := handler(context.Background(), map[string]any{"url": srv.URL + "/missing"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0].Text, "404")
}

func TestRegister_ExposesToolOnServer(t *testing.T) {
	gw, srv := newTestGateway(t)
	server := mcp.NewServer("test", "0.0.1", time.Second, zap.NewNop())
	require.NoError(t, Register(server, gw, zap.NewNop()))

	listed := server.ListTools()
	require.Len(t, listed, 1)
	assert.Equal(t, FetchToolName, listed[0].Name)

	result, err := server.CallTool(context.Background(), FetchToolName,
		map[string]any{"url": srv.URL + "/markdown"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestFetchTool_MissingURLArgument(t *testing.T) {
	gw, _ := newTestGateway(t)
	_, handler := NewFetchTool(gw, zap.NewNop())

	for _, args := range []map[string]any{
		nil,
		{},
		{"url": ""},
		{"url": "   "},
		{"url": 12345},
	} {
		result, err := handler(context.Background(), args)
		require.NoError(t, err)
		assert.True(t, result.IsError)
		require.Len(t, result.Content, 1)
		assert.Contains(t, result.Content[0].Text, "missing required argument: url")
	}
}
