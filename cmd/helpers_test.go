package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/cloud"
	"github.com/holmdigital/a11y-cli/internal/config"
	"github.com/holmdigital/a11y-cli/internal/engine"
	"github.com/holmdigital/a11y-cli/internal/observability"
	"github.com/holmdigital/a11y-cli/internal/results"
	"github.com/holmdigital/a11y-cli/internal/scanner"
	"github.com/holmdigital/a11y-cli/internal/store"
)

// -- Fakes --

type fakeScanner struct {
	mu       sync.Mutex
	configs  []scanner.Config
	critical bool
	fail     map[string]error
}

func (f *fakeScanner) Scan(ctx context.Context, cfg scanner.Config) (*schemas.ScanResult, error) {
	f.mu.Lock()
	f.configs = append(f.configs, cfg)
	err := f.fail[cfg.URL]
	critical := f.critical
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return fakeResult(cfg, critical), nil
}

func (f *fakeScanner) calls() []scanner.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scanner.Config(nil), f.configs...)
}

// fakeResult has 8 passes and 2 violations, so its score is 80.
func fakeResult(cfg scanner.Config, critical bool) *schemas.ScanResult {
	second := schemas.Violation{ID: "region", Description: "Content should be in landmarks", Impact: schemas.SeverityModerate}
	if critical {
		second = schemas.Violation{ID: "image-alt", Description: "Images must have alternate text", Impact: schemas.SeverityCritical}
	}
	violations := []schemas.Violation{
		{
			ID:          "color-contrast",
			Description: "Elements must meet minimum color contrast ratio thresholds",
			Impact:      schemas.SeveritySerious,
			Nodes:       []schemas.ViolationNode{{HTML: `<p class="muted">x</p>`, Target: []string{"p.muted"}}},
			Regulatory:  schemas.RegulatoryEntry{RuleID: "color-contrast", WCAGCriterion: "1.4.3", RiskTier: schemas.RiskHigh},
		},
		second,
	}
	passes := make([]schemas.Pass, 8)
	for i := range passes {
		passes[i] = schemas.Pass{ID: fmt.Sprintf("pass-%d", i), NodeCount: 1}
	}
	return &schemas.ScanResult{
		ScanID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte(cfg.URL)).String(),
		URL:           cfg.URL,
		Timestamp:     time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
		Standard:      cfg.Standard,
		Level:         cfg.Level,
		EngineVersion: schemas.EngineVersion,
		Summary:       results.Summarize(violations, passes, nil),
		Violations:    violations,
		Passes:        passes,
		Incomplete:    []schemas.Incomplete{},
	}
}

type fakeRepo struct {
	mu      sync.Mutex
	saved   []*schemas.ScanResult
	records []schemas.ScanRecord
	filter  store.ListFilter
	saveErr error
	closed  int
}

func (r *fakeRepo) SaveScan(ctx context.Context, result *schemas.ScanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, result)
	return nil
}

func (r *fakeRepo) ListScans(ctx context.Context, filter store.ListFilter) ([]schemas.ScanRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter = filter
	return r.records, nil
}

func (r *fakeRepo) GetScan(ctx context.Context, scanID string) (*schemas.ScanResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.saved {
		if s.ScanID == scanID {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", store.ErrNotFound, scanID)
}

func (r *fakeRepo) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

type fakeArchiver struct {
	mu    sync.Mutex
	paths []string
}

func (a *fakeArchiver) UploadFile(ctx context.Context, result *schemas.ScanResult, reportPath string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, reportPath)
	return "s3://reports/" + filepath.Base(reportPath), nil
}

type fakeUploader struct {
	mu       sync.Mutex
	response cloud.Response
	cfgs     []cloud.Config
	sent     []*schemas.ScanResult
}

func (u *fakeUploader) Send(ctx context.Context, cfg cloud.Config, result *schemas.ScanResult) cloud.Response {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.cfgs = append(u.cfgs, cfg)
	u.sent = append(u.sent, result)
	return u.response
}

// -- Harness --

type testEnv struct {
	deps     *dependencies
	scanner  *fakeScanner
	repo     *fakeRepo
	archiver *fakeArchiver
	uploader *fakeUploader
	storeErr error
	dir      string
}

// newTestEnv runs each test in its own working directory with a silent
// logger and fakes for every external service.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	cfgFile = ""

	observability.ResetForTest()
	observability.Initialize(config.LoggerConfig{Level: "fatal", Format: "console"}, zapcore.AddSync(io.Discard))
	t.Cleanup(observability.ResetForTest)

	env := &testEnv{
		scanner:  &fakeScanner{},
		repo:     &fakeRepo{},
		archiver: &fakeArchiver{},
		uploader: &fakeUploader{response: cloud.Response{Success: true, Message: "ok"}},
		dir:      dir,
	}
	env.deps = &dependencies{
		newScanner: func(*config.Config, *zap.Logger) (engine.Scanner, error) {
			return env.scanner, nil
		},
		openStore: func(context.Context, *config.Config, *zap.Logger) (store.Repository, error) {
			if env.storeErr != nil {
				return nil, env.storeErr
			}
			return env.repo, nil
		},
		newArchiver: func(*config.Config, *zap.Logger) (reportArchiver, error) {
			return env.archiver, nil
		},
		newUploader: func(*config.Config, *zap.Logger) resultUploader {
			return env.uploader
		},
	}
	return env
}

// run executes the CLI and returns what it printed to stdout and stderr.
func (e *testEnv) run(args ...string) (string, error) {
	root := newRootCommand(e.deps)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
