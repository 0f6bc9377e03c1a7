// Package archive uploads rendered reports to S3 compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/config"
)

// ObjectStore is the subset of *minio.Client the archiver needs.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".json":  "application/json",
	".sarif": "application/sarif+json",
	".xml":   "application/xml",
	".md":    "text/markdown; charset=utf-8",
}

// Archiver stores reports under bucket/prefix.
type Archiver struct {
	store  ObjectStore
	bucket string
	prefix string
	logger *zap.Logger
}

// New connects to the configured endpoint.
func New(cfg config.ArchiveConfig, logger *zap.Logger) (*Archiver, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("archive endpoint and bucket must be configured")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}
	return NewWithStore(mc, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewWithStore wraps an existing client.
func NewWithStore(store ObjectStore, bucket, prefix string, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{store: store, bucket: bucket, prefix: prefix, logger: logger.Named("archive")}
}

// ObjectKey names a report: prefix/host/YYYY/MM/DD/<scan id><ext>.
func ObjectKey(prefix string, result *schemas.ScanResult, ext string) string {
	host := "unknown-host"
	if u, err := url.Parse(result.URL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}
	ts := result.Timestamp.UTC()
	name := result.ScanID
	if name == "" {
		name = ts.Format("20060102T150405Z")
	}
	return path.Join(strings.Trim(prefix, "/"), host, ts.Format("2006/01/02"), name+ext)
}

// ContentType maps a report extension to its MIME type.
func ContentType(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Upload stores a rendered report and returns its s3:// location.
func (a *Archiver) Upload(ctx context.Context, result *schemas.ScanResult, report []byte, ext string) (string, error) {
	if result == nil {
		return "", fmt.Errorf("cannot archive a report without its scan result")
	}

	exists, err := a.store.BucketExists(ctx, a.bucket)
	if err != nil {
		return "", fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		return "", fmt.Errorf("bucket %s does not exist", a.bucket)
	}

	key := ObjectKey(a.prefix, result, ext)
	info, err := a.store.PutObject(ctx, a.bucket, key, bytes.NewReader(report), int64(len(report)), minio.PutObjectOptions{
		ContentType: ContentType(ext),
		UserMetadata: map[string]string{
			"scan-id":          result.ScanID,
			"target-url":       result.URL,
			"compliance-score": strconv.Itoa(result.Summary.ComplianceScore),
			"engine-version":   result.EngineVersion,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	a.logger.Info("Report archived.", zap.String("location", location), zap.Int64("bytes", info.Size))
	return location, nil
}

// UploadFile archives a report already written to disk.
func (a *Archiver) UploadFile(ctx context.Context, result *schemas.ScanResult, reportPath string) (string, error) {
	data, err := os.ReadFile(reportPath)
	if err != nil {
		return "", fmt.Errorf("failed to read report %s: %w", reportPath, err)
	}
	return a.Upload(ctx, result, data, filepath.Ext(reportPath))
}
