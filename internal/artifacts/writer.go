// Package artifacts exports tabular results as CSV files with a header row,
// one file per table, under a configured artifacts directory.
package artifacts

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/transitlens-data/pkg/gtfs/models"
)

type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string { return w.dir }

// WriteTable writes the table as <dir>/<name>.csv and returns a reference.
func (w *Writer) WriteTable(t *models.Table, name, description string) (*models.ArtifactRef, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifacts dir: %w", err)
	}

	path := filepath.Join(w.dir, name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating artifact %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("writing artifact header: %w", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("writing artifact row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flushing artifact %s: %w", path, err)
	}

	return &models.ArtifactRef{
		Path:        path,
		Format:      "csv",
		Rows:        t.NumRows(),
		Columns:     append([]string(nil), t.Columns...),
		Description: description,
	}, nil
}
