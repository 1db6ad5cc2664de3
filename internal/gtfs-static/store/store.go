// Package store loads the static GTFS schedule as a named set of tables.
// The set of tables to load is always explicit (the extraction allow-list);
// there is no "load everything in the directory" default.
package store

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/transitlens-data/internal/common/errs"
	"github.com/transitlens-data/internal/common/logger"
	"github.com/transitlens-data/pkg/gtfs/models"
)

type Store struct {
	logger logger.Logger
}

func New(log logger.Logger) *Store {
	return &Store{logger: log}
}

// TableKey derives the table name from a filename: agency.txt -> agency,
// stop_times.txt -> stop_times. Case-insensitive and unique within a set.
func TableKey(filename string) string {
	name := filepath.Base(filename)
	ext := filepath.Ext(name)
	return strings.ToLower(strings.TrimSpace(strings.TrimSuffix(name, ext)))
}

// extPriority orders stem-resolution candidates: .txt before .csv before
// anything else, then lexicographic extension, then filename.
func extPriority(ext string) int {
	switch strings.ToLower(ext) {
	case ".txt":
		return 0
	case ".csv":
		return 1
	default:
		return 9
	}
}

// ResolveEntry maps a configured table entry to an on-disk filename.
// An entry containing "." is an exact filename; a bare stem matches any
// file whose stem equals it, with the deterministic tie-break above.
// Returns "" when nothing matches (the table loads as empty).
func ResolveEntry(dir, entry string) string {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return ""
	}

	base := filepath.Base(entry)
	if strings.Contains(base, ".") {
		return base
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var candidates []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		if strings.EqualFold(TableKey(de.Name()), strings.ToLower(base)) {
			candidates = append(candidates, de.Name())
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.Slice(candidates, func(i, j int) bool {
		ei := strings.ToLower(filepath.Ext(candidates[i]))
		ej := strings.ToLower(filepath.Ext(candidates[j]))
		if extPriority(ei) != extPriority(ej) {
			return extPriority(ei) < extPriority(ej)
		}
		if ei != ej {
			return ei < ej
		}
		return strings.ToLower(candidates[i]) < strings.ToLower(candidates[j])
	})
	return candidates[0]
}

// Load reads each configured entry into a table. Every load call rebuilds
// the whole set; nothing is cached between calls.
//
// A missing file yields a present-but-empty table, indistinguishable from a
// table with zero rows. An unreadable file is a per-table failure: it is
// logged, left empty, and the rest of the set still loads.
func (s *Store) Load(dir string, entries []string) (map[string]*models.Table, error) {
	if len(entries) == 0 {
		return nil, errs.Configf("static table list is empty; list which GTFS tables to load explicitly")
	}

	tables := make(map[string]*models.Table, len(entries))
	for _, entry := range entries {
		resolved := ResolveEntry(dir, entry)
		key := TableKey(entry)
		if resolved == "" {
			// unresolvable stem: same quiet path as a missing file
			tables[key] = models.NewTable(key, nil)
			s.logger.Debug("Static table loaded",
				"table", key, "file", "", "rows", 0)
			continue
		}
		key = TableKey(resolved)

		t, err := readTable(filepath.Join(dir, resolved), key)
		if err != nil {
			var de *errs.DecodeError
			if errors.As(err, &de) {
				s.logger.Error("Static table unreadable, loading as empty",
					"table", key, "error", err)
				t = models.NewTable(key, nil)
			} else {
				return nil, err
			}
		}
		tables[key] = t
		s.logger.Debug("Static table loaded",
			"table", key, "file", resolved, "rows", t.NumRows())
	}

	return tables, nil
}

func readTable(path, key string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		// missing file: present-but-empty table
		return models.NewTable(key, nil), nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // GTFS rows may have a variable field count
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return models.NewTable(key, nil), nil
	}
	if err != nil {
		return nil, errs.Decode(path, err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := models.NewTable(key, columns)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Decode(path, err)
		}
		t.Append(record)
	}
	return t, nil
}
