package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Downloader pulls source recordings from the feed CDN onto local disk.
type Downloader struct {
	http *http.Client
}

func NewDownloader(client *http.Client) *Downloader {
	return &Downloader{http: client}
}

// Fetch streams the recording at url into dest. Partial files are removed
// on failure so a retry starts clean.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audio fetch returned HTTP %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		removeQuietly(dest)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		removeQuietly(dest)
		return fmt.Errorf("close %s: %w", dest, err)
	}
	return nil
}
