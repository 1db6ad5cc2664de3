package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlens-data/internal/common/errs"
	"github.com/transitlens-data/internal/common/logger"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestTableKey(t *testing.T) {
	assert.Equal(t, "agency", TableKey("agency.txt"))
	assert.Equal(t, "stop_times", TableKey("stop_times.txt"))
	assert.Equal(t, "routes", TableKey("ROUTES.CSV"))
	assert.Equal(t, "trips", TableKey("some/dir/trips.txt"))
}

func TestResolveEntryExactFilename(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "routes.csv", "route_id\nR1\n")

	// an entry with an extension is taken literally, present or not
	assert.Equal(t, "routes.csv", ResolveEntry(dir, "routes.csv"))
	assert.Equal(t, "routes.txt", ResolveEntry(dir, "routes.txt"))
}

func TestResolveEntryStemPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "routes.csv", "route_id\n")
	writeFile(t, dir, "routes.txt", "route_id\n")
	writeFile(t, dir, "routes.json", "{}")

	assert.Equal(t, "routes.txt", ResolveEntry(dir, "routes"))

	require.NoError(t, os.Remove(filepath.Join(dir, "routes.txt")))
	assert.Equal(t, "routes.csv", ResolveEntry(dir, "routes"))

	require.NoError(t, os.Remove(filepath.Join(dir, "routes.csv")))
	assert.Equal(t, "routes.json", ResolveEntry(dir, "routes"))
}

func TestResolveEntryNoMatch(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", ResolveEntry(dir, "shapes"))
}

func TestLoadEmptyEntriesIsConfigError(t *testing.T) {
	s := New(logger.New())
	_, err := s.Load(t.TempDir(), nil)
	require.Error(t, err)

	var ce *errs.ConfigError
	assert.True(t, errors.As(err, &ce))
}

func TestLoadMissingFileYieldsEmptyTable(t *testing.T) {
	s := New(logger.New())
	tables, err := s.Load(t.TempDir(), []string{"routes.txt"})
	require.NoError(t, err)

	require.Contains(t, tables, "routes")
	assert.True(t, tables["routes"].Empty())
}

func TestLoadParsesRowsAndStripsBOM(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "routes.txt",
		"\uFEFFroute_id,route_short_name\nR1, Red Line\nR2,Blue\n")

	s := New(logger.New())
	tables, err := s.Load(dir, []string{"routes.txt"})
	require.NoError(t, err)

	rt := tables["routes"]
	require.NotNil(t, rt)
	assert.Equal(t, 0, rt.Col("route_id"), "BOM must not hide the first column")
	assert.Equal(t, 2, rt.NumRows())
	// TrimLeadingSpace applies to cells
	assert.Equal(t, "Red Line", rt.Cell(0, rt.Col("route_short_name")))
}

func TestLoadVariableFieldCounts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "trips.txt", "trip_id,route_id,headsign\nT1,R1\nT2,R2,Downtown\n")

	s := New(logger.New())
	tables, err := s.Load(dir, []string{"trips"})
	require.NoError(t, err)

	tr := tables["trips"]
	require.Equal(t, 2, tr.NumRows())
	// short row reads as empty cell
	assert.Equal(t, "", tr.Cell(0, tr.Col("headsign")))
	assert.Equal(t, "Downtown", tr.Cell(1, tr.Col("headsign")))
}

func TestLoadUnresolvableStemYieldsEmptyTableQuietly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "routes.txt", "route_id\nR1\n")

	var logs bytes.Buffer
	s := New(logger.New(&logs))
	tables, err := s.Load(dir, []string{"shapes", "routes"})
	require.NoError(t, err)

	require.Contains(t, tables, "shapes")
	assert.True(t, tables["shapes"].Empty())
	assert.Equal(t, 1, tables["routes"].NumRows())
	assert.NotContains(t, logs.String(), "unreadable",
		"a table with no file at all is merely missing, not broken")
}

func TestLoadUnreadableFileLoadsAsEmpty(t *testing.T) {
	dir := t.TempDir()
	// quote error midway through the file
	writeFile(t, dir, "stops.txt", "stop_id,stop_name\nS1,\"broken\nS2,ok\n")
	writeFile(t, dir, "routes.txt", "route_id\nR1\n")

	s := New(logger.New())
	tables, err := s.Load(dir, []string{"stops.txt", "routes.txt"})
	require.NoError(t, err)

	assert.True(t, tables["stops"].Empty())
	assert.Equal(t, 1, tables["routes"].NumRows())
}
