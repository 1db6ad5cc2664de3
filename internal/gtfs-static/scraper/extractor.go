package scraper

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/transitlens-data/internal/common/errs"
	"github.com/transitlens-data/internal/common/logger"
	"github.com/transitlens-data/internal/gtfs-static/store"
)

// managedExtensions are file types the extractor considers its own inside
// the output directory. Hygiene never touches anything else.
var managedExtensions = map[string]bool{
	".txt":  true,
	".csv":  true,
	".json": true,
	".pb":   true,
	".zip":  true,
}

// ExtractResult reports what the allow-list extraction actually did.
type ExtractResult struct {
	Extracted []string
	Missing   []string
	Removed   []string
}

type Extractor struct {
	logger logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
	return &Extractor{logger: log}
}

// Extract unpacks exactly the allow-listed members of the archive into
// outDir, flattened to basenames. Entries containing "." match an archive
// member by exact basename; bare stems match any member with that stem,
// preferring .txt over .csv over other extensions. Allow-list entries with
// no matching member are reported, not fatal.
func (e *Extractor) Extract(zipPath, outDir string, files []string) (*ExtractResult, error) {
	if len(files) == 0 {
		return nil, errs.Configf("extract.files is empty; list which archive members to extract")
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, errs.Decode(zipPath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errs.Transport("create extraction dir", err)
	}

	// archive member basenames, directories flattened away
	members := make(map[string]*zip.File)
	for _, zf := range r.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		members[filepath.Base(zf.Name)] = zf
	}

	result := &ExtractResult{}
	for _, entry := range files {
		zf := resolveMember(members, entry)
		if zf == nil {
			e.logger.Warn("Allow-listed file not present in archive", "entry", entry)
			result.Missing = append(result.Missing, entry)
			continue
		}
		name := filepath.Base(zf.Name)
		if err := extractMember(zf, filepath.Join(outDir, name)); err != nil {
			return nil, err
		}
		result.Extracted = append(result.Extracted, name)
		e.logger.Debug("Extracted archive member", "file", name)
	}

	return result, nil
}

// resolveMember applies the same stem-matching rule as the static table
// store, so extraction and loading agree on which file a bare entry means.
func resolveMember(members map[string]*zip.File, entry string) *zip.File {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil
	}
	base := filepath.Base(entry)
	if strings.Contains(base, ".") {
		return members[base]
	}

	var candidates []string
	for name := range members {
		if strings.EqualFold(store.TableKey(name), strings.ToLower(base)) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		ei := strings.ToLower(filepath.Ext(candidates[i]))
		ej := strings.ToLower(filepath.Ext(candidates[j]))
		if pi, pj := extPriority(ei), extPriority(ej); pi != pj {
			return pi < pj
		}
		if ei != ej {
			return ei < ej
		}
		return strings.ToLower(candidates[i]) < strings.ToLower(candidates[j])
	})
	return members[candidates[0]]
}

func extPriority(ext string) int {
	switch ext {
	case ".txt":
		return 0
	case ".csv":
		return 1
	default:
		return 9
	}
}

func extractMember(zf *zip.File, destPath string) error {
	rc, err := zf.Open()
	if err != nil {
		return errs.Decode(zf.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return errs.Transport("create "+destPath, err)
	}

	_, err = io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return errs.Transport("write "+destPath, err)
	}
	return nil
}

// CleanOutDir removes managed-extension files in outDir that the current
// extraction did not produce, so stale tables from a previous allow-list
// cannot leak into later loads. Removal failures are logged, not fatal.
func (e *Extractor) CleanOutDir(outDir string, keep []string) []string {
	keepSet := make(map[string]bool, len(keep))
	for _, name := range keep {
		keepSet[name] = true
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil
	}

	var removed []string
	for _, de := range entries {
		if de.IsDir() || keepSet[de.Name()] {
			continue
		}
		if !managedExtensions[strings.ToLower(filepath.Ext(de.Name()))] {
			continue
		}
		path := filepath.Join(outDir, de.Name())
		if err := os.Remove(path); err != nil {
			e.logger.Warn("Failed to remove stale file", "path", path, "error", err)
			continue
		}
		e.logger.Info("Removed stale file", "path", path)
		removed = append(removed, de.Name())
	}
	return removed
}
