// File: internal/photos/ingest.go

// Package photos downloads a bounded set of remote images into ephemeral
// scratch storage and injects them into the page's file-input control.
// Per-image failures never abort the batch; scratch files are always cleaned
// up.
package photos

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"resty.dev/v3"

	"github.com/wardrobelabs/relist/internal/config"
	"github.com/wardrobelabs/relist/internal/locator"
)

// defaultExtension is used when the image URL carries no recognizable one.
const defaultExtension = ".jpg"

var knownExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".heic": true,
}

// Failure records one image that could not be ingested.
type Failure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Result is the partial-tolerant outcome of one ingestion batch.
type Result struct {
	Uploaded int       `json:"uploaded"`
	Failures []Failure `json:"failures,omitempty"`
}

// InputLocator resolves the page's image-accepting file input.
type InputLocator interface {
	Locate(ctx context.Context, scope locator.Scope, target locator.Target) (*locator.Element, error)
}

// Ingestor downloads images and feeds them into the upload control.
type Ingestor struct {
	cfg     config.PhotosConfig
	client  *resty.Client
	limiter *rate.Limiter
	loc     InputLocator
	surface locator.Surface
	logger  *zap.Logger

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewIngestor builds an ingestor. Downloads are not retried: a flaky image
// host is reported as a per-image failure, not worth stalling the attempt.
func NewIngestor(cfg config.PhotosConfig, loc InputLocator, surface locator.Surface, logger *zap.Logger) *Ingestor {
	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "image/*")

	downloadRate := cfg.DownloadRate
	if downloadRate <= 0 {
		downloadRate = 2.0
	}

	return &Ingestor{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(downloadRate), 1),
		loc:     loc,
		surface: surface,
		logger:  logger.Named("photos"),
		sleep:   sleepCtx,
	}
}

// Close releases the underlying HTTP client.
func (i *Ingestor) Close() error {
	return i.client.Close()
}

// Ingest processes up to the configured photo cap from the given URLs. Each
// image is handled independently; the batch continues past individual
// failures. Every scratch file created is removed before returning,
// regardless of outcome.
func (i *Ingestor) Ingest(ctx context.Context, imageURLs []string) (*Result, error) {
	result := &Result{}
	if len(imageURLs) == 0 {
		return result, nil
	}

	if len(imageURLs) > i.cfg.MaxPhotos {
		i.logger.Warn("Image list exceeds marketplace cap; truncating.",
			zap.Int("requested", len(imageURLs)),
			zap.Int("cap", i.cfg.MaxPhotos))
		imageURLs = imageURLs[:i.cfg.MaxPhotos]
	}

	scratch, err := os.MkdirTemp(i.cfg.ScratchRoot, "relist-photos-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			i.logger.Warn("Failed to remove scratch directory.", zap.String("dir", scratch), zap.Error(rmErr))
		}
	}()

	input, err := i.loc.Locate(ctx, locator.ScopeUploadForm, locator.Field(locator.KindPhotoInput))
	if err != nil {
		return nil, fmt.Errorf("could not locate file input: %w", err)
	}

	for idx, imageURL := range imageURLs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err := i.ingestOne(ctx, scratch, idx, imageURL, input.Selector); err != nil {
			i.logger.Warn("Image ingestion failed.", zap.String("url", imageURL), zap.Error(err))
			result.Failures = append(result.Failures, Failure{URL: imageURL, Reason: err.Error()})
			continue
		}
		result.Uploaded++
	}

	i.logger.Info("Photo ingestion finished.",
		zap.Int("uploaded", result.Uploaded),
		zap.Int("failed", len(result.Failures)))
	return result, nil
}

// ingestOne downloads a single image into the scratch directory and injects
// it into the file input.
func (i *Ingestor) ingestOne(ctx context.Context, scratch string, idx int, imageURL, inputSelector string) error {
	if err := i.limiter.Wait(ctx); err != nil {
		return err
	}

	localPath := filepath.Join(scratch, fmt.Sprintf("photo-%02d%s", idx, extensionFor(imageURL)))

	resp, err := i.client.R().
		SetContext(ctx).
		SetOutputFileName(localPath).
		SetSaveResponse(true).
		Get(imageURL)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("download failed: status %s", resp.Status())
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("downloaded file missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("downloaded file is empty")
	}

	if err := i.surface.SetFiles(ctx, inputSelector, []string{localPath}); err != nil {
		return fmt.Errorf("file injection failed: %w", err)
	}

	// Give the page a bounded moment to register the upload before the next
	// injection replaces the input's file list.
	settle := i.cfg.SettleWait
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return i.sleep(ctx, settle)
}

// extensionFor derives a file extension from the image URL, defaulting when
// the path carries none we recognize.
func extensionFor(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return defaultExtension
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if knownExtensions[ext] {
		return ext
	}
	return defaultExtension
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
