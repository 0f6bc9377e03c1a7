package cloud

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/holmdigital/a11y-cli/internal/config"
)

type request struct {
	method  string
	path    string
	headers http.Header
	body    []byte
}

type captured struct {
	mu  sync.Mutex
	req request
}

func (c *captured) snapshot() request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reader io.Reader = r.Body
		if r.Header.Get("Content-Encoding") == "br" {
			reader = brotli.NewReader(r.Body)
		}
		body, _ := io.ReadAll(reader)

		got.mu.Lock()
		got.req = request{method: r.Method, path: r.URL.Path, headers: r.Header.Clone(), body: body}
		got.mu.Unlock()

		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(server.Close)
	return server, got
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://x.test/api/v1/ingest", Endpoint("https://x.test/"))
	assert.Equal(t, "https://x.test/api/v1/ingest", Endpoint("https://x.test"))
	assert.Equal(t, Endpoint("https://x.test/"), Endpoint("https://x.test"))
	assert.Equal(t, "https://x.test/base/api/v1/ingest", Endpoint("https://x.test/base//"))
}

func TestSend_Success(t *testing.T) {
	server, got := newServer(t, http.StatusOK, `{"message":"Results saved"}`)
	client := NewClient(server.Client(), zap.NewNop())

	resp := client.Send(context.Background(), Config{URL: server.URL + "/", APIKey: "test-api-key"}, sampleResult())
	require.True(t, resp.Success, resp.Error())
	assert.Equal(t, "Results saved", resp.Message)
	assert.NoError(t, resp.Err)
	assert.Empty(t, resp.Error())

	req := got.snapshot()
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/v1/ingest", req.path)
	assert.Equal(t, "application/json", req.headers.Get("Content-Type"))
	assert.Equal(t, "test-api-key", req.headers.Get("x-api-key"))
	assert.Empty(t, req.headers.Get("Content-Encoding"))

	var payload Payload
	require.NoError(t, json.Unmarshal(req.body, &payload))
	assert.Equal(t, ToPayload(sampleResult()), payload)
}

func TestSend_DefaultMessage(t *testing.T) {
	for name, reply := range map[string]string{
		"empty object": `{}`,
		"empty body":   ``,
		"not json":     `ok`,
	} {
		t.Run(name, func(t *testing.T) {
			server, _ := newServer(t, http.StatusCreated, reply)
			resp := NewClient(server.Client(), nil).Send(context.Background(), Config{URL: server.URL}, sampleResult())
			require.True(t, resp.Success)
			assert.Equal(t, DefaultSuccessMessage, resp.Message)
		})
	}
}

func TestSend_StatusErrors(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		wantIs   error
		contains string
	}{
		{"unauthorized", http.StatusUnauthorized, "Unauthorized", ErrAuthenticationFailed, "Authentication failed"},
		{"forbidden", http.StatusForbidden, "Forbidden", ErrAccessDenied, "Access denied"},
		{"server error", http.StatusServiceUnavailable, "maintenance", nil, "Server error (503): maintenance"},
		{"bad request", http.StatusBadRequest, "invalid payload", nil, "Server error (400): invalid payload"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server, _ := newServer(t, tc.status, tc.body)
			resp := NewClient(server.Client(), nil).Send(context.Background(), Config{URL: server.URL, APIKey: "k"}, sampleResult())

			assert.False(t, resp.Success)
			require.Error(t, resp.Err)
			assert.Contains(t, resp.Error(), tc.contains)
			if tc.wantIs != nil {
				assert.ErrorIs(t, resp.Err, tc.wantIs)
				return
			}
			var serverErr *ServerError
			require.ErrorAs(t, resp.Err, &serverErr)
			assert.Equal(t, tc.status, serverErr.Status)
			assert.Equal(t, tc.body, serverErr.Body)
		})
	}
}

func TestSend_RedirectIsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer server.Close()

	httpClient := server.Client()
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp := NewClient(httpClient, nil).Send(context.Background(), Config{URL: server.URL}, sampleResult())
	var serverErr *ServerError
	require.ErrorAs(t, resp.Err, &serverErr)
	assert.Equal(t, http.StatusFound, serverErr.Status)
}

func TestSend_ConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	target := "http://" + listener.Addr().String()
	listener.Close()

	resp := NewClient(nil, nil).Send(context.Background(), Config{URL: target, APIKey: "k"}, sampleResult())
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error(), "Could not connect")
	assert.Contains(t, resp.Error(), target)

	var connErr *ConnectionFailedError
	require.ErrorAs(t, resp.Err, &connErr)
	assert.Equal(t, target, connErr.Target)
}

func TestSend_UnresolvableHost(t *testing.T) {
	direct := &http.Client{Transport: &http.Transport{}}
	resp := NewClient(direct, nil).Send(context.Background(), Config{URL: "http://cloud.invalid"}, sampleResult())
	assert.False(t, resp.Success)

	var connErr *ConnectionFailedError
	assert.ErrorAs(t, resp.Err, &connErr)
}

func TestClassifyTransportError(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	assert.IsType(t, &ConnectionFailedError{}, classifyTransportError("https://x.test", refused))

	dns := &net.DNSError{Err: "no such host", Name: "x.test", IsNotFound: true}
	assert.IsType(t, &ConnectionFailedError{}, classifyTransportError("https://x.test", dns))

	other := classifyTransportError("https://x.test", errors.New("connection reset by peer"))
	var netErr *NetworkError
	require.ErrorAs(t, other, &netErr)
	assert.Equal(t, "Network error: connection reset by peer", other.Error())
}

func TestSend_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp := NewClient(server.Client(), nil).Send(ctx, Config{URL: server.URL}, sampleResult())
	assert.False(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Error(), "Network error: "), resp.Error())

	var netErr *NetworkError
	require.ErrorAs(t, resp.Err, &netErr)
	assert.ErrorIs(t, resp.Err, context.DeadlineExceeded)
}

func TestSend_Brotli(t *testing.T) {
	server, got := newServer(t, http.StatusOK, `{}`)
	resp := NewClient(server.Client(), nil).Send(context.Background(),
		Config{URL: server.URL, APIKey: "k", Compression: CompressionBrotli}, sampleResult())
	require.True(t, resp.Success, resp.Error())

	req := got.snapshot()
	assert.Equal(t, "br", req.headers.Get("Content-Encoding"))

	var payload Payload
	require.NoError(t, json.Unmarshal(req.body, &payload))
	assert.Equal(t, "https://example.test/", payload.URL)
}

func TestSend_NilResult(t *testing.T) {
	resp := NewClient(nil, nil).Send(context.Background(), Config{URL: "https://x.test"}, nil)
	assert.False(t, resp.Success)
	assert.Error(t, resp.Err)
}

func TestSend_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	server, _ := newServer(t, http.StatusUnauthorized, "")
	client := NewClient(server.Client(), zap.New(core))

	client.Send(context.Background(), Config{URL: server.URL, APIKey: "secret-key"}, sampleResult())

	rejected := logs.FilterMessage("Cloud upload rejected.").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, "cloud", rejected[0].LoggerName)
	for _, entry := range logs.All() {
		for _, f := range entry.Context {
			assert.NotContains(t, f.String, "secret-key", "API key must never be logged")
		}
	}
}

func TestConfigFromApp(t *testing.T) {
	cfg := ConfigFromApp(config.CloudConfig{URL: "https://x.test", APIKey: "k", Compression: "BR"})
	assert.Equal(t, Config{URL: "https://x.test", APIKey: "k", Compression: CompressionBrotli}, cfg)
}
