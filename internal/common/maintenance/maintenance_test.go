package maintenance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlens-data/internal/common/logger"
)

func mkDirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
}

func dirNames(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPruneSnapshotsKeepsNewest(t *testing.T) {
	root := t.TempDir()
	mkDirs(t, root,
		"20260101T000000Z",
		"20260102T000000Z",
		"20260103T000000Z",
		"20260104T000000Z",
	)

	m := New(root, t.TempDir(), logger.New())
	removed := m.PruneSnapshots(2, "")

	assert.ElementsMatch(t, []string{"20260101T000000Z", "20260102T000000Z"}, removed)
	assert.ElementsMatch(t,
		[]string{"20260103T000000Z", "20260104T000000Z"},
		dirNames(t, root))
}

func TestPruneSnapshotsNeverRemovesPinned(t *testing.T) {
	root := t.TempDir()
	mkDirs(t, root,
		"20260101T000000Z",
		"20260102T000000Z",
		"20260103T000000Z",
	)

	m := New(root, t.TempDir(), logger.New())
	removed := m.PruneSnapshots(1, "20260101T000000Z")

	assert.Equal(t, []string{"20260102T000000Z"}, removed)
	assert.Contains(t, dirNames(t, root), "20260101T000000Z")
}

func TestPruneSnapshotsUnderKeepIsNoop(t *testing.T) {
	root := t.TempDir()
	mkDirs(t, root, "20260101T000000Z")

	m := New(root, t.TempDir(), logger.New())
	assert.Empty(t, m.PruneSnapshots(5, ""))
	assert.Len(t, dirNames(t, root), 1)
}

func TestPruneSnapshotsRemovesStaleStaging(t *testing.T) {
	root := t.TempDir()
	mkDirs(t, root, "20260103T000000Z", ".tmp-20260101T000000Z")

	stale := filepath.Join(root, ".tmp-20260101T000000Z")
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	m := New(root, t.TempDir(), logger.New())
	removed := m.PruneSnapshots(10, "")

	assert.Equal(t, []string{".tmp-20260101T000000Z"}, removed)
}

func TestPruneSnapshotsKeepsFreshStaging(t *testing.T) {
	root := t.TempDir()
	mkDirs(t, root, ".tmp-20260101T000000Z")

	m := New(root, t.TempDir(), logger.New())
	assert.Empty(t, m.PruneSnapshots(10, ""), "an in-progress capture must not be removed")
}

func TestPruneArtifactsByAge(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.csv")
	newPath := filepath.Join(dir, "new.csv")
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(newPath, []byte("x"), 0o644))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	m := New(t.TempDir(), dir, logger.New())
	removed := m.PruneArtifacts(24 * time.Hour)

	assert.Equal(t, []string{"old.csv"}, removed)
	_, err := os.Stat(newPath)
	assert.NoError(t, err)
}
