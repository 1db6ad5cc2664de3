package scraper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/transitlens-data/internal/common/config"
	"github.com/transitlens-data/internal/common/errs"
	"github.com/transitlens-data/internal/common/logger"
)

// Pipeline runs one full static refresh: download the archive, extract the
// allow-listed tables, clean stale files, drop the archive.
type Pipeline struct {
	provider   config.StaticProvider
	downloader Downloader
	extractor  *Extractor
	logger     logger.Logger
}

func NewPipeline(provider config.StaticProvider, dl Downloader, log logger.Logger) *Pipeline {
	if dl == nil {
		dl = NewHTTPDownloader(
			time.Duration(provider.TimeoutS)*time.Second,
			config.VerifyTLSOrDefault(provider.VerifyTLS),
			log)
	}
	return &Pipeline{
		provider:   provider,
		downloader: dl,
		extractor:  NewExtractor(log),
		logger:     log,
	}
}

// Run fetches and extracts the static archive. Configuration problems are
// caught before any network traffic. Returns what was extracted.
func (p *Pipeline) Run(ctx context.Context) (*ExtractResult, error) {
	if p.provider.Type != config.StaticProviderType {
		return nil, errs.Configf("static provider type is %q, want %q",
			p.provider.Type, config.StaticProviderType)
	}
	if p.provider.URL == "" {
		return nil, errs.Configf("static provider url is empty")
	}
	if len(p.provider.Extract.Files) == 0 {
		return nil, errs.Configf("extract.files is empty; refusing to download an archive nothing would be extracted from")
	}
	for _, entry := range p.provider.Extract.Files {
		if !strings.Contains(filepath.Base(entry), ".") {
			p.logger.Warn("Extensionless allow-list entry, matching by stem", "entry", entry)
		}
	}

	zipPath := filepath.Join(p.provider.OutDir, p.provider.Filename)
	if err := p.downloader.Download(ctx, p.provider.URL, zipPath); err != nil {
		return nil, err
	}

	result, err := p.extractor.Extract(zipPath, p.provider.OutDir, p.provider.Extract.Files)
	if err != nil {
		return nil, err
	}

	if p.provider.Extract.CleanOutDir == nil || *p.provider.Extract.CleanOutDir {
		keep := append([]string{p.provider.Filename}, result.Extracted...)
		result.Removed = p.extractor.CleanOutDir(p.provider.OutDir, keep)
	}

	// the archive has served its purpose
	if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("Failed to remove archive after extraction", "path", zipPath, "error", err)
	}

	p.logger.Info("Static refresh complete",
		"extracted", len(result.Extracted),
		"missing", len(result.Missing),
		"removed", len(result.Removed))
	return result, nil
}
