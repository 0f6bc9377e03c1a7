package axe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sync"

	"go.uber.org/zap"
)

// DefaultCDNURL serves the axe-core release the mapping dataset was curated against.
const DefaultCDNURL = "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.10.2/axe.min.js"

// maxSourceSize guards against a misconfigured URL returning something huge.
const maxSourceSize = 8 << 20

var versionBanner = regexp.MustCompile(`axe v(\d+\.\d+\.\d+)`)

// Source is the axe-core script text.
type Source struct {
	Script string
	// Version is read from the release banner, if present.
	Version string
	Origin  string
}

// Loader resolves the axe-core source from a local file or a URL and caches it
// for the life of the process.
type Loader struct {
	logger *zap.Logger
	client *http.Client
	path   string
	url    string

	mu     sync.Mutex
	cached *Source
}

// NewLoader creates a loader. A non-empty path wins over url; an empty url
// means DefaultCDNURL.
func NewLoader(path, url string, client *http.Client, logger *zap.Logger) *Loader {
	if url == "" {
		url = DefaultCDNURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{
		logger: logger.Named("axe_loader"),
		client: client,
		path:   path,
		url:    url,
	}
}

// Load returns the axe source, fetching it on first use. Failures are not
// cached, so a later call retries.
func (l *Loader) Load(ctx context.Context) (Source, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil {
		return *l.cached, nil
	}

	var (
		src Source
		err error
	)
	if l.path != "" {
		src, err = l.loadFile()
	} else {
		src, err = l.fetch(ctx)
	}
	if err != nil {
		return Source{}, err
	}

	l.logger.Debug("axe-core source loaded.",
		zap.String("origin", src.Origin),
		zap.String("version", src.Version),
		zap.Int("bytes", len(src.Script)),
	)
	l.cached = &src
	return src, nil
}

func (l *Loader) loadFile() (Source, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Source{}, fmt.Errorf("failed to read axe-core source %s: %w", l.path, err)
	}
	return newSource(string(data), l.path)
}

func (l *Loader) fetch(ctx context.Context) (Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return Source{}, fmt.Errorf("invalid axe-core URL %q: %w", l.url, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Source{}, fmt.Errorf("failed to download axe-core from %s: %w", l.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Source{}, fmt.Errorf("failed to download axe-core from %s: status %d", l.url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize+1))
	if err != nil {
		return Source{}, fmt.Errorf("failed to read axe-core response: %w", err)
	}
	if len(data) > maxSourceSize {
		return Source{}, fmt.Errorf("axe-core source at %s exceeds %d bytes", l.url, maxSourceSize)
	}
	return newSource(string(data), l.url)
}

func newSource(script, origin string) (Source, error) {
	if script == "" {
		return Source{}, fmt.Errorf("axe-core source from %s is empty", origin)
	}
	src := Source{Script: script, Origin: origin}
	if m := versionBanner.FindStringSubmatch(firstBytes(script, 512)); m != nil {
		src.Version = m[1]
	}
	return src, nil
}

func firstBytes(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
