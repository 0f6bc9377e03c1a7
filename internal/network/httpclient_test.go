package network

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *ClientConfig {
	config := NewDefaultClientConfig()
	config.Logger = zap.NewNop()
	return config
}

func TestNewDefaultClientConfig(t *testing.T) {
	config := NewDefaultClientConfig()

	assert.Equal(t, DefaultRequestTimeout, config.RequestTimeout)
	assert.Equal(t, DefaultResponseHeaderTimeout, config.ResponseHeaderTimeout)
	assert.Equal(t, DefaultMaxIdleConns, config.MaxIdleConns)
	assert.True(t, config.ForceHTTP2)
	assert.False(t, config.FollowRedirects)
	assert.Contains(t, config.UserAgent, "holmdigital-a11y/")
	require.NotNil(t, config.DialerConfig)
	assert.True(t, config.DialerConfig.ForceNoDelay)
	assert.Equal(t, DefaultDialTimeout, config.DialerConfig.Timeout)
	assert.NotNil(t, config.Logger)
}

func TestConfigureTLS_Defaults(t *testing.T) {
	config := testConfig()
	tlsConfig := configureTLS(config)

	require.NotNil(t, tlsConfig)
	assert.Equal(t, uint16(requiredMinTLSVersion), tlsConfig.MinVersion)
	assert.False(t, tlsConfig.InsecureSkipVerify)
	assert.Equal(t, defaultSecureCipherSuites, tlsConfig.CipherSuites)
	assert.NotNil(t, tlsConfig.ClientSessionCache)
}

func TestConfigureTLS_CustomConfig(t *testing.T) {
	t.Run("clone and merge", func(t *testing.T) {
		custom := &tls.Config{ServerName: "custom.sni"}
		config := testConfig()
		config.TLSConfig = custom
		config.IgnoreTLSErrors = true

		tlsConfig := configureTLS(config)
		assert.Equal(t, "custom.sni", tlsConfig.ServerName)
		assert.Equal(t, uint16(requiredMinTLSVersion), tlsConfig.MinVersion)
		assert.NotEmpty(t, tlsConfig.CipherSuites)
		assert.True(t, tlsConfig.InsecureSkipVerify)
		assert.NotSame(t, custom, tlsConfig)
		assert.False(t, custom.InsecureSkipVerify, "original must not be modified")
	})

	t.Run("explicit values are kept", func(t *testing.T) {
		ciphers := []uint16{tls.TLS_AES_256_GCM_SHA384}
		config := testConfig()
		config.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS13, CipherSuites: ciphers}

		tlsConfig := configureTLS(config)
		assert.Equal(t, uint16(tls.VersionTLS13), tlsConfig.MinVersion)
		assert.Equal(t, ciphers, tlsConfig.CipherSuites)
	})

	t.Run("old versions are raised", func(t *testing.T) {
		config := testConfig()
		config.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS10}
		assert.Equal(t, uint16(requiredMinTLSVersion), configureTLS(config).MinVersion)
	})
}

func TestNewHTTPTransport_ConfigurationMapping(t *testing.T) {
	config := testConfig()
	config.MaxIdleConns = 55
	config.IdleConnTimeout = 99 * time.Second
	config.DisableCompression = true
	config.ResponseHeaderTimeout = 5 * time.Second

	transport := NewHTTPTransport(config)

	assert.Equal(t, 55, transport.MaxIdleConns)
	assert.Equal(t, 99*time.Second, transport.IdleConnTimeout)
	assert.True(t, transport.DisableCompression)
	assert.Equal(t, 5*time.Second, transport.ResponseHeaderTimeout)
}

func TestNewHTTPTransport_NilConfig(t *testing.T) {
	transport := NewHTTPTransport(nil)
	assert.Equal(t, DefaultMaxIdleConns, transport.MaxIdleConns)
	assert.NotNil(t, transport.DialContext)
	assert.NotNil(t, transport.TLSClientConfig)
}

func TestNewHTTPTransport_Proxy(t *testing.T) {
	proxyURL, err := url.Parse("http://proxy.example.com:8080")
	require.NoError(t, err)
	config := testConfig()
	config.ProxyURL = proxyURL

	transport := NewHTTPTransport(config)
	req, _ := http.NewRequest(http.MethodGet, "http://target.example.com", nil)
	got, err := transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, proxyURL, got)
}

func TestNewHTTPTransport_HTTP2(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		config := testConfig()
		transport := NewHTTPTransport(config)
		assert.True(t, transport.ForceAttemptHTTP2)
		assert.Equal(t, []string{"h2", "http/1.1"}, transport.TLSClientConfig.NextProtos)
	})

	t.Run("disabled", func(t *testing.T) {
		config := testConfig()
		config.ForceHTTP2 = false
		transport := NewHTTPTransport(config)
		assert.False(t, transport.ForceAttemptHTTP2)
		assert.Equal(t, []string{"http/1.1"}, transport.TLSClientConfig.NextProtos)
	})
}

func TestNewClient_RedirectPolicy(t *testing.T) {
	var hops int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hops++
		mu.Unlock()
		switch r.URL.Path {
		case "/":
			http.Redirect(w, r, "/moved", http.StatusFound)
		case "/loop":
			http.Redirect(w, r, "/loop", http.StatusFound)
		default:
			fmt.Fprint(w, "landed")
		}
	}))
	defer server.Close()

	t.Run("not followed by default", func(t *testing.T) {
		resp, err := NewClient(testConfig()).Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/moved", resp.Header.Get("Location"))
	})

	t.Run("followed when enabled", func(t *testing.T) {
		config := testConfig()
		config.FollowRedirects = true
		resp, err := NewClient(config).Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "landed", string(body))
	})

	t.Run("chains are bounded", func(t *testing.T) {
		mu.Lock()
		hops = 0
		mu.Unlock()

		config := testConfig()
		config.FollowRedirects = true
		config.MaxRedirects = 3
		resp, err := NewClient(config).Get(server.URL + "/loop")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, hops)
	})
}

func TestNewClient_UserAgent(t *testing.T) {
	agents := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
	}))
	defer server.Close()

	config := testConfig()
	config.UserAgent = "a11y-test/1.0"
	client := NewClient(config)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "a11y-test/1.0", <-agents)

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "custom")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "custom", <-agents)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	config := testConfig()
	config.RequestTimeout = 100 * time.Millisecond
	client := NewClient(config)

	start := time.Now()
	resp, err := client.Get(server.URL)
	require.Error(t, err)
	assert.Nil(t, resp)

	var urlErr *url.Error
	require.ErrorAs(t, err, &urlErr)
	assert.True(t, urlErr.Timeout() || errors.Is(urlErr.Err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_HTTPS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "secure")
	}))
	defer server.Close()

	t.Run("untrusted certificate fails", func(t *testing.T) {
		_, err := NewClient(testConfig()).Get(server.URL)
		assert.Error(t, err)
	})

	t.Run("trusted root succeeds", func(t *testing.T) {
		pool := x509.NewCertPool()
		pool.AddCert(server.Certificate())
		config := testConfig()
		config.TLSConfig = &tls.Config{RootCAs: pool}

		resp, err := NewClient(config).Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "secure", string(body))
	})

	t.Run("ignore TLS errors", func(t *testing.T) {
		config := testConfig()
		config.IgnoreTLSErrors = true
		resp, err := NewClient(config).Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()
	})
}

func TestClient_ConnectionReuse(t *testing.T) {
	var mu sync.Mutex
	remotes := make(map[string]bool)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		remotes[r.RemoteAddr] = true
		mu.Unlock()
	}))
	defer server.Close()

	client := NewClient(testConfig())
	for i := 0; i < 5; i++ {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		io.ReadAll(resp.Body)
		resp.Body.Close()
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, remotes, 1)
}
