// Package scraper fetches the static GTFS archive, extracts the configured
// tables and keeps the extraction directory in sync with the allow-list.
package scraper

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/transitlens-data/internal/common/errs"
	"github.com/transitlens-data/internal/common/logger"
)

// Downloader fetches a URL to a local path.
type Downloader interface {
	Download(ctx context.Context, url, destPath string) error
}

// MetadataFetcher reports upstream archive metadata without downloading it.
type MetadataFetcher interface {
	Fetch(ctx context.Context) (*ArchiveMetadata, error)
}

// HTTPDownloader downloads over HTTP to a temp file and renames into place,
// so the destination path never holds a partial archive.
type HTTPDownloader struct {
	client *http.Client
	logger logger.Logger
}

func NewHTTPDownloader(timeout time.Duration, verifyTLS bool, log logger.Logger) *HTTPDownloader {
	transport := &http.Transport{}
	if !verifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &HTTPDownloader{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: log,
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, url, destPath string) error {
	d.logger.Info("Starting download", "url", url, "dest", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.Transport("build download request", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return errs.Transport("download "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.Transport("download "+url,
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return errs.Transport("create download dir", err)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return errs.Transport("create temp file", err)
	}

	written, err := d.copyWithProgress(out, resp.Body, resp.ContentLength)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return errs.Transport("write "+tmpPath, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return errs.Transport("finalize download", err)
	}

	d.logger.Info("Download complete", "dest", destPath, "bytes", written)
	return nil
}

func (d *HTTPDownloader) copyWithProgress(dst io.Writer, src io.Reader, total int64) (int64, error) {
	var written int64
	buf := make([]byte, 32*1024)
	lastLogged := time.Now()

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if time.Since(lastLogged) > 5*time.Second {
				d.logger.Debug("Download progress", "bytes", written, "total", total)
				lastLogged = time.Now()
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
