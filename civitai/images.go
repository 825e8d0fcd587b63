package civitai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/flanksource/commons/logger"
)

// DownloadImage streams a preview image to destPath. The download goes
// through a temp file in the same directory followed by a rename, so an
// interrupted transfer never leaves a truncated image behind.
func (c *Client) DownloadImage(ctx context.Context, url, destPath string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.imageClient.Do(req)
	if err != nil {
		return &apiError{kind: ErrTransient, msg: fmt.Sprintf("GET %s: %v", url, err)}
	}
	defer resp.Body.Close()

	if err := classifyStatus(url, resp.StatusCode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", destPath, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return &apiError{kind: ErrTransient, msg: fmt.Sprintf("GET %s: reading body: %v", url, err)}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file for %s: %w", destPath, err)
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		return fmt.Errorf("moving image into place at %s: %w", destPath, err)
	}

	logger.Debugf("Saved preview image %s", destPath)
	return nil
}
