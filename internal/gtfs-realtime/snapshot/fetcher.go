package snapshot

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/transitlens-data/internal/common/config"
	"github.com/transitlens-data/internal/common/errs"
	"github.com/transitlens-data/internal/common/logger"
)

// maxConcurrentFetches bounds parallel endpoint downloads per capture.
const maxConcurrentFetches = 4

// Fetcher captures one snapshot: it downloads every configured realtime
// endpoint into a staging directory and renames it into place only when all
// of them succeed. A snapshot directory therefore never exists half-written.
type Fetcher struct {
	provider config.RealtimeProvider
	client   *http.Client
	logger   logger.Logger
	now      func() time.Time
}

func NewFetcher(provider config.RealtimeProvider, log logger.Logger) *Fetcher {
	transport := &http.Transport{}
	if !config.VerifyTLSOrDefault(provider.VerifyTLS) {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Fetcher{
		provider: provider,
		client: &http.Client{
			Timeout:   time.Duration(provider.TimeoutS) * time.Second,
			Transport: transport,
		},
		logger: log,
		now:    time.Now,
	}
}

// Fetch downloads all endpoints and returns the finished snapshot directory.
// Any endpoint failure aborts the whole capture and removes the staging
// directory, so partial snapshots are never observable.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	if f.provider.Type != config.RealtimeProviderType {
		return "", errs.Configf("realtime provider type is %q, want %q",
			f.provider.Type, config.RealtimeProviderType)
	}
	if len(f.provider.Endpoints) == 0 {
		return "", errs.Configf("realtime provider has no endpoints configured")
	}

	headers, params, err := f.provider.Auth.BuildAuth()
	if err != nil {
		return "", err
	}

	id := f.now().UTC().Format(DirTimestampLayout)
	finalDir := filepath.Join(f.provider.OutDir, id)
	stagingDir := filepath.Join(f.provider.OutDir, ".tmp-"+id)

	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", errs.Transport("create snapshot staging dir", err)
	}

	f.logger.Info("Capturing realtime snapshot",
		"snapshot", id, "endpoints", len(f.provider.Endpoints))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, maxConcurrentFetches)
		errOnce  sync.Once
		fetchErr error
	)

	for _, ep := range f.provider.Endpoints {
		wg.Add(1)
		go func(ep config.Endpoint) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			if err := f.fetchEndpoint(ctx, ep, stagingDir, headers, params); err != nil {
				errOnce.Do(func() {
					fetchErr = err
					cancel()
				})
			}
		}(ep)
	}
	wg.Wait()

	if fetchErr == nil && ctx.Err() != nil {
		fetchErr = errs.Transport("snapshot capture", ctx.Err())
	}
	if fetchErr != nil {
		if rmErr := os.RemoveAll(stagingDir); rmErr != nil {
			f.logger.Warn("Failed to remove snapshot staging dir",
				"dir", stagingDir, "error", rmErr)
		}
		return "", fetchErr
	}

	if err := os.Rename(stagingDir, finalDir); err != nil {
		os.RemoveAll(stagingDir)
		return "", errs.Transport("finalize snapshot dir", err)
	}

	f.logger.Info("Snapshot captured", "snapshot", id, "dir", finalDir)
	return finalDir, nil
}

func (f *Fetcher) fetchEndpoint(ctx context.Context, ep config.Endpoint, dir string, headers, params map[string]string) error {
	reqURL := ep.URL
	if len(params) > 0 {
		u, err := url.Parse(ep.URL)
		if err != nil {
			return errs.Configf("invalid endpoint url for %s: %v", ep.Name, err)
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		reqURL = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errs.Transport("build request for "+ep.Name, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return errs.Transport("fetch "+ep.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.Transport("fetch "+ep.Name,
			fmt.Errorf("unexpected status %d from %s", resp.StatusCode, ep.URL))
	}

	path := filepath.Join(dir, ep.OutputFilename())
	out, err := os.Create(path)
	if err != nil {
		return errs.Transport("create "+path, err)
	}

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errs.Transport("write "+path, err)
	}

	f.logger.Debug("Endpoint captured", "endpoint", ep.Name, "bytes", n)
	return nil
}
