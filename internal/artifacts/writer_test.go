package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlens-data/pkg/gtfs/models"
)

func TestWriteTable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	w := NewWriter(dir)

	tbl := models.NewTable("violations", []string{"row", "route_id"})
	tbl.Append([]string{"2", "R404"})
	tbl.Append([]string{"3", "R404"})

	ref, err := w.WriteTable(tbl, "missing_route_refs", "rows referencing a missing route_id")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "missing_route_refs.csv"), ref.Path)
	assert.Equal(t, "csv", ref.Format)
	assert.Equal(t, 2, ref.Rows)
	assert.Equal(t, []string{"row", "route_id"}, ref.Columns)

	data, err := os.ReadFile(ref.Path)
	require.NoError(t, err)
	assert.Equal(t, "row,route_id\n2,R404\n3,R404\n", string(data))
}

func TestWriteTableEmptyStillHasHeader(t *testing.T) {
	w := NewWriter(t.TempDir())
	tbl := models.NewTable("empty", []string{"a", "b"})

	ref, err := w.WriteTable(tbl, "empty", "")
	require.NoError(t, err)
	assert.Equal(t, 0, ref.Rows)

	data, err := os.ReadFile(ref.Path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}
