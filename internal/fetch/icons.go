package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"feedloop/internal/hashutil"
)

// maxIconSize bounds how large an icon we will cache.
const maxIconSize = 1 << 20

// IconFetcher downloads feed icons into a local cache directory. The feed's
// declared image is tried first, then the site's /favicon.ico.
type IconFetcher struct {
	http *http.Client
	dir  string
}

func NewIconFetcher(httpClient *http.Client, dir string) *IconFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &IconFetcher{http: httpClient, dir: dir}
}

// FetchIcon saves the feed's icon locally and returns its path. When the
// declared image URL is empty or unreachable it falls back to the site
// origin's favicon.
func (f *IconFetcher) FetchIcon(ctx context.Context, imageURL, siteURL string) (string, error) {
	candidates := make([]string, 0, 2)
	if imageURL != "" {
		candidates = append(candidates, imageURL)
	}
	if favicon := faviconURL(siteURL); favicon != "" {
		candidates = append(candidates, favicon)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no icon source for %q", siteURL)
	}

	var lastErr error
	for _, candidate := range candidates {
		path, err := f.download(ctx, candidate)
		if err == nil {
			return path, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (f *IconFetcher) download(ctx context.Context, iconURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get %s: HTTP %d", iconURL, resp.StatusCode)
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(f.dir, hashutil.SHA256Hex(iconURL)+".ico")

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(resp.Body, maxIconSize)); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func faviconURL(siteURL string) string {
	parsed, err := url.Parse(siteURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host + "/favicon.ico"
}
