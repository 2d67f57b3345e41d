package assets

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"resty.dev/v3"
)

const chunkSize = 32 * 1024

// Fetcher downloads remote files into a local directory.
type Fetcher interface {
	// Fetch reports whether the file was stored. Failures are logged, never returned.
	Fetch(ctx context.Context, url, dir, filename string) bool
}

type fetcher struct {
	httpClient *resty.Client
	fs         afero.Fs
	onStored   func()
}

// NewFetcher returns a Fetcher writing through fs. onStored, if non-nil, is
// called after every stored file.
func NewFetcher(httpClient *resty.Client, fs afero.Fs, onStored func()) Fetcher {
	return &fetcher{
		httpClient: httpClient,
		fs:         fs,
		onStored:   onStored,
	}
}

// NewHTTPClient returns the resty client used for image downloads.
func NewHTTPClient(timeout time.Duration, retries int) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36").
		SetHeader("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")
}

func (f *fetcher) Fetch(ctx context.Context, url, dir, filename string) bool {
	if err := f.fetch(ctx, url, dir, filename); err != nil {
		log.Errorf("❌ Failed to download image %s: %v", url, err)
		return false
	}
	if f.onStored != nil {
		f.onStored()
	}
	log.Debugf("🖼️ Stored %s", filename)
	return true
}

func (f *fetcher) fetch(ctx context.Context, url, dir, filename string) error {
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	resp, err := f.httpClient.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if resp != nil && resp.Body != nil {
		// resp.Body is the decompressed stream, RawResponse.Body is not
		defer resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	path := filepath.Join(dir, filename)
	file, err := f.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(file, resp.Body, buf); err != nil {
		file.Close()
		_ = f.fs.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return file.Close()
}
