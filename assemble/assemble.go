// Package assemble turns accumulated crawl records into a tabular
// result: duplicates are dropped first-seen-wins on the product URL and
// columns are ordered deterministically for the export sinks.
package assemble

import (
	"errors"

	"github.com/aluiziolira/go-catalog-export/models"
	"github.com/aluiziolira/go-catalog-export/parser"
)

// ErrNoData signals that the crawl produced zero exportable records.
// Callers must not write an empty export; report "no data" instead.
var ErrNoData = errors.New("assemble: no records collected")

// preferredColumns is the fixed column prefix. Any remaining
// dynamically-discovered column follows in first-seen order.
var preferredColumns = []string{
	"title", "price", "rating", "availability",
	"category", "product_url", "description", "image_url",
}

// coreColumns always exist on a record regardless of detail extraction.
var coreColumns = []string{"title", "price", "rating", "availability", "product_url"}

// Table is the assembled, deduplicated result set.
type Table struct {
	Columns []string
	Records []*models.Record
}

// Row renders one record against the table's column order. Absent
// fields render as empty cells.
func (t *Table) Row(rec *models.Record) []string {
	row := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		v, _ := rec.Field(col)
		row[i] = v
	}
	return row
}

// Assemble deduplicates records by product URL, keeping the first
// occurrence in encounter order, and computes the column ordering.
// Records failing basic validation (no title or URL) are dropped.
// Returns ErrNoData when nothing survives.
func Assemble(records []*models.Record) (*Table, error) {
	seen := make(map[string]struct{}, len(records))
	kept := make([]*models.Record, 0, len(records))
	for _, rec := range records {
		if parser.ValidateRecord(rec) != nil {
			continue
		}
		if _, dup := seen[rec.ProductURL]; dup {
			continue
		}
		seen[rec.ProductURL] = struct{}{}
		kept = append(kept, rec)
	}

	if len(kept) == 0 {
		return nil, ErrNoData
	}

	return &Table{
		Columns: columnOrder(kept),
		Records: kept,
	}, nil
}

func columnOrder(records []*models.Record) []string {
	present := make(map[string]struct{}, len(coreColumns))
	for _, col := range coreColumns {
		present[col] = struct{}{}
	}
	for _, rec := range records {
		for _, key := range rec.ExtraKeys() {
			present[key] = struct{}{}
		}
	}

	columns := make([]string, 0, len(present))
	used := make(map[string]struct{}, len(present))
	for _, col := range preferredColumns {
		if _, ok := present[col]; ok {
			columns = append(columns, col)
			used[col] = struct{}{}
		}
	}
	for _, rec := range records {
		for _, key := range rec.ExtraKeys() {
			if _, ok := used[key]; ok {
				continue
			}
			columns = append(columns, key)
			used[key] = struct{}{}
		}
	}
	return columns
}
