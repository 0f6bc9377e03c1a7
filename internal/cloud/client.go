package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/andybalholm/brotli"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IngestPath is appended to the configured cloud URL.
const IngestPath = "/api/v1/ingest"

// DefaultSuccessMessage is used when the server does not send one.
const DefaultSuccessMessage = "Results uploaded successfully"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 << 10

// CompressionBrotli enables brotli request bodies.
const CompressionBrotli = "br"

// Config addresses the ingestion API.
type Config struct {
	URL         string
	APIKey      string
	Compression string
}

// ConfigFromApp maps the application cloud section.
func ConfigFromApp(c config.CloudConfig) Config {
	return Config{URL: c.URL, APIKey: c.APIKey, Compression: strings.ToLower(c.Compression)}
}

// Response is the outcome of one Send. Err is nil exactly when Success is true.
type Response struct {
	Success bool
	Message string
	Err     error
}

// Error returns the failure message, or "" on success.
func (r Response) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Endpoint builds the ingestion URL. Trailing slashes on base are ignored.
func Endpoint(base string) string {
	return strings.TrimRight(base, "/") + IngestPath
}

// Client sends results to the ingestion API. It performs no retries.
type Client struct {
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a client. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: httpClient, logger: logger.Named("cloud")}
}

// Send posts result to the ingestion endpoint. Every failure is reported in
// the returned Response; Send never panics on transport problems.
func (c *Client) Send(ctx context.Context, cfg Config, result *schemas.ScanResult) Response {
	if result == nil {
		return failed(&NetworkError{Message: "no scan result to upload"})
	}
	endpoint := Endpoint(cfg.URL)

	body, err := json.Marshal(ToPayload(result))
	if err != nil {
		return failed(&NetworkError{Message: fmt.Sprintf("failed to encode payload: %v", err), Err: err})
	}

	var encoding string
	if cfg.Compression == CompressionBrotli {
		if body, err = compress(body); err != nil {
			return failed(&NetworkError{Message: fmt.Sprintf("failed to compress payload: %v", err), Err: err})
		}
		encoding = CompressionBrotli
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return failed(&NetworkError{Message: err.Error(), Err: err})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", cfg.APIKey)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	c.logger.Debug("Uploading scan result.", zap.String("endpoint", endpoint), zap.Int("bytes", len(body)))

	resp, err := c.http.Do(req)
	if err != nil {
		out := failed(classifyTransportError(cfg.URL, err))
		c.logger.Warn("Cloud upload failed.", zap.String("endpoint", endpoint), zap.Error(out.Err))
		return out
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out := failed(classifyStatus(resp))
		c.logger.Warn("Cloud upload rejected.", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode))
		return out
	}

	msg := successMessage(resp.Body)
	c.logger.Info("Scan result uploaded.", zap.String("endpoint", endpoint), zap.String("url", result.URL))
	return Response{Success: true, Message: msg}
}

func failed(err error) Response {
	return Response{Success: false, Err: err}
}

func compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func classifyStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrAuthenticationFailed
	case http.StatusForbidden:
		return ErrAccessDenied
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &ServerError{Status: resp.StatusCode, Body: string(data)}
}

func classifyTransportError(target string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || errors.Is(err, syscall.ECONNREFUSED) {
		return &ConnectionFailedError{Target: target, Err: err}
	}
	return &NetworkError{Message: err.Error(), Err: err}
}

// successMessage reads the optional "message" field of the reply.
func successMessage(body io.Reader) string {
	var reply struct {
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || json.Unmarshal(data, &reply) != nil || reply.Message == "" {
		return DefaultSuccessMessage
	}
	return reply.Message
}
