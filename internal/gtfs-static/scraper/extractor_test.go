package scraper

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlens-data/internal/common/logger"
)

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestExtractOnlyAllowListed(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "static.zip")
	writeZip(t, zipPath, map[string]string{
		"routes.txt": "route_id\nR1\n",
		"trips.txt":  "trip_id\nT1\n",
		"shapes.txt": "shape_id\nSH1\n",
	})

	outDir := filepath.Join(dir, "out")
	e := NewExtractor(logger.New())
	result, err := e.Extract(zipPath, outDir, []string{"routes.txt", "trips.txt"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"routes.txt", "trips.txt"}, result.Extracted)
	assert.Empty(t, result.Missing)

	_, err = os.Stat(filepath.Join(outDir, "shapes.txt"))
	assert.True(t, os.IsNotExist(err), "non-allow-listed member must not be extracted")
}

func TestExtractFlattensNestedMembers(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "static.zip")
	writeZip(t, zipPath, map[string]string{
		"gtfs/feed/routes.txt": "route_id\nR1\n",
	})

	outDir := filepath.Join(dir, "out")
	e := NewExtractor(logger.New())
	result, err := e.Extract(zipPath, outDir, []string{"routes.txt"})
	require.NoError(t, err)
	require.Equal(t, []string{"routes.txt"}, result.Extracted)

	data, err := os.ReadFile(filepath.Join(outDir, "routes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "route_id\nR1\n", string(data))
}

func TestExtractStemMatchPrefersTxt(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "static.zip")
	writeZip(t, zipPath, map[string]string{
		"routes.csv": "csv",
		"routes.txt": "txt",
	})

	outDir := filepath.Join(dir, "out")
	e := NewExtractor(logger.New())
	result, err := e.Extract(zipPath, outDir, []string{"routes"})
	require.NoError(t, err)
	require.Equal(t, []string{"routes.txt"}, result.Extracted)
}

func TestExtractReportsMissingEntries(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "static.zip")
	writeZip(t, zipPath, map[string]string{"routes.txt": "route_id\n"})

	e := NewExtractor(logger.New())
	result, err := e.Extract(zipPath, filepath.Join(dir, "out"), []string{"routes.txt", "fares.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"routes.txt"}, result.Extracted)
	assert.Equal(t, []string{"fares.txt"}, result.Missing)
}

func TestCleanOutDirRemovesOnlyManagedStale(t *testing.T) {
	outDir := t.TempDir()
	for name, content := range map[string]string{
		"routes.txt": "kept",
		"stale.txt":  "old table",
		"stale.csv":  "old table",
		"notes.md":   "operator notes, not ours",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(outDir, name), []byte(content), 0o644))
	}

	e := NewExtractor(logger.New())
	removed := e.CleanOutDir(outDir, []string{"routes.txt"})
	assert.ElementsMatch(t, []string{"stale.txt", "stale.csv"}, removed)

	_, err := os.Stat(filepath.Join(outDir, "routes.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "notes.md"))
	assert.NoError(t, err, "unmanaged extensions are never touched")
}
