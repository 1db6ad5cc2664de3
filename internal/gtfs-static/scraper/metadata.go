package scraper

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/transitlens-data/internal/common/errs"
	"github.com/transitlens-data/internal/common/logger"
)

// ArchiveMetadata is what the upstream server reports about the static
// archive without serving the body. Either field may be empty.
type ArchiveMetadata struct {
	LastModified string `json:"last_modified"`
	ETag         string `json:"etag"`
	CheckedAt    string `json:"checked_at"`
}

// Changed reports whether the upstream archive differs from a previously
// recorded state. With no comparable fields on either side it returns true,
// which errs on the side of re-downloading.
func (m *ArchiveMetadata) Changed(prev *ArchiveMetadata) bool {
	if prev == nil {
		return true
	}
	if m.ETag != "" && prev.ETag != "" {
		return m.ETag != prev.ETag
	}
	if m.LastModified != "" && prev.LastModified != "" {
		return m.LastModified != prev.LastModified
	}
	return true
}

// HeadMetadataFetcher issues an HTTP HEAD against the archive URL.
type HeadMetadataFetcher struct {
	url    string
	client *http.Client
	logger logger.Logger
}

func NewHeadMetadataFetcher(url string, timeout time.Duration, verifyTLS bool, log logger.Logger) *HeadMetadataFetcher {
	transport := &http.Transport{}
	if !verifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &HeadMetadataFetcher{
		url:    url,
		client: &http.Client{Timeout: timeout, Transport: transport},
		logger: log,
	}
}

func (f *HeadMetadataFetcher) Fetch(ctx context.Context) (*ArchiveMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, f.url, nil)
	if err != nil {
		return nil, errs.Transport("build metadata request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errs.Transport("head "+f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.Transport("head "+f.url,
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	md := &ArchiveMetadata{
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("ETag"),
		CheckedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	f.logger.Debug("Archive metadata fetched",
		"last_modified", md.LastModified, "etag", md.ETag)
	return md, nil
}

// MetadataStateFile persists the last-seen archive metadata between runs.
const MetadataStateFile = ".archive_metadata.json"

// LoadMetadataState reads the recorded metadata for an output directory.
// A missing or unreadable state file returns nil, which forces a download.
func LoadMetadataState(outDir string) *ArchiveMetadata {
	data, err := os.ReadFile(filepath.Join(outDir, MetadataStateFile))
	if err != nil {
		return nil
	}
	var md ArchiveMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil
	}
	return &md
}

// SaveMetadataState records the metadata after a successful refresh.
func SaveMetadataState(outDir string, md *ArchiveMetadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, MetadataStateFile), data, 0o644)
}
