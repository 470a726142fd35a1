// Package dataset parses the county factor table and indexes it by join key.
package dataset

import (
	"time"

	"github.com/couchcryptid/county-factor-map/internal/domain"
)

// LoadStats counts what happened to the input rows during a parse.
type LoadStats struct {
	Rows       int `json:"rows"`
	Indexed    int `json:"indexed"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
}

// Table is the immutable join table built by the loader.
type Table struct {
	records  map[domain.JoinKey]*domain.CountyRecord
	order    []domain.JoinKey
	factors  []string
	stats    LoadStats
	loadedAt time.Time
}

func newTable(capacity int) *Table {
	return &Table{
		records: make(map[domain.JoinKey]*domain.CountyRecord, capacity),
		order:   make([]domain.JoinKey, 0, capacity),
	}
}

// Lookup returns the record for key.
func (t *Table) Lookup(key domain.JoinKey) (*domain.CountyRecord, bool) {
	if t == nil {
		return nil, false
	}
	r, ok := t.records[key]
	return r, ok
}

// Len is the number of indexed counties.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Factors returns the distinct factor codes in first-occurrence order.
func (t *Table) Factors() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.factors...)
}

// Records returns the indexed records in first-insertion order of their keys.
func (t *Table) Records() []*domain.CountyRecord {
	if t == nil {
		return nil
	}
	out := make([]*domain.CountyRecord, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.records[k])
	}
	return out
}

// Stats reports how the input rows were handled.
func (t *Table) Stats() LoadStats {
	if t == nil {
		return LoadStats{}
	}
	return t.stats
}

// LoadedAt is when the table was built.
func (t *Table) LoadedAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.loadedAt
}

// put indexes a record; a later row with the same key replaces the earlier one.
func (t *Table) put(r *domain.CountyRecord) {
	if _, exists := t.records[r.Key]; exists {
		t.stats.Duplicates++
	} else {
		t.order = append(t.order, r.Key)
	}
	t.records[r.Key] = r
}
