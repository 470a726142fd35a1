package viewer

import (
	"github.com/couchcryptid/county-factor-map/internal/dataset"
	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/couchcryptid/county-factor-map/internal/geometry"
)

// JoinCoverage describes how well the dataset and the geometry join.
type JoinCoverage struct {
	MatchedRecords    int
	UnmatchedRecords  []domain.JoinKey // records with no feature, in dataset order
	MatchedFeatures   int
	UnmatchedFeatures int // features with no key or no record
}

// Coverage joins table against layer through the same keys used for styling.
func Coverage(table *dataset.Table, layer *geometry.Layer) JoinCoverage {
	var cov JoinCoverage
	for _, r := range table.Records() {
		if _, ok := layer.Find(r.Key); ok {
			cov.MatchedRecords++
			continue
		}
		cov.UnmatchedRecords = append(cov.UnmatchedRecords, r.Key)
	}
	for _, c := range layer.Counties() {
		if c.Key == "" {
			cov.UnmatchedFeatures++
			continue
		}
		if _, ok := table.Lookup(c.Key); ok {
			cov.MatchedFeatures++
		} else {
			cov.UnmatchedFeatures++
		}
	}
	return cov
}
