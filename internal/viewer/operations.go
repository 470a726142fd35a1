package viewer

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/couchcryptid/county-factor-map/internal/dataset"
	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/couchcryptid/county-factor-map/internal/geometry"
)

// ErrSearchDisabled is returned by Search when no geocoder is configured.
var ErrSearchDisabled = errors.New("place search is disabled")

// FactorInfo is one entry of the factor selection list.
type FactorInfo struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	Display string `json:"display"`
}

// FactorList is the selection list in dataset order plus its category view.
type FactorList struct {
	Factors []FactorInfo    `json:"factors"`
	Buckets []domain.Bucket `json:"buckets"`
	Active  string          `json:"active"`
}

// Factors returns the distinct factor codes in first-occurrence order. The
// list is empty until the load chain completes.
func (v *Viewer) Factors() FactorList {
	list := FactorList{Factors: []FactorInfo{}, Buckets: []domain.Bucket{}, Active: v.state.Active()}
	snap, ok := v.Snapshot()
	if !ok {
		return list
	}
	codes := snap.Table.Factors()
	for _, code := range codes {
		list.Factors = append(list.Factors, FactorInfo{
			Code:    code,
			Label:   v.labels.Resolve(code),
			Display: v.labels.Display(code),
		})
	}
	list.Buckets = domain.GroupFactors(codes, v.buckets)
	return list
}

// SelectFactor makes code the active factor and records the interaction.
func (v *Viewer) SelectFactor(ctx context.Context, code string) string {
	v.state.SetActive(code)
	active := v.state.Active()
	v.publish(ctx, domain.NewFactorSelected(active))
	return active
}

// Styles re-styles every feature for factor. Each call is a complete
// re-style; no previous output is reused.
func (v *Viewer) Styles(factor string) ([]geometry.FeatureStyle, error) {
	snap, ok := v.Snapshot()
	if !ok {
		return nil, ErrNotReady
	}
	v.metrics.StyleRequests.Inc()
	return snap.Layer.Style(strings.TrimSpace(factor), snap.Table), nil
}

// ActiveStyles re-styles every feature for the shared active factor.
func (v *Viewer) ActiveStyles() ([]geometry.FeatureStyle, error) {
	return v.Styles(v.state.Active())
}

// GeoJSON returns the loaded feature collection.
func (v *Viewer) GeoJSON() ([]byte, error) {
	snap, ok := v.Snapshot()
	if !ok {
		return nil, ErrNotReady
	}
	return snap.Layer.GeoJSON(), nil
}

// Detail renders the panel for a county key. A key without a record yields
// the no-data panel. The active factor is left unchanged.
func (v *Viewer) Detail(ctx context.Context, key domain.JoinKey) (domain.Detail, error) {
	snap, ok := v.Snapshot()
	if !ok {
		return domain.Detail{}, ErrNotReady
	}
	title := string(key)
	if c, found := snap.Layer.Find(key); found {
		title = c.Title()
	}
	return v.render(ctx, snap, key, title), nil
}

// DetailAt renders the panel for the feature at index, the map click path.
func (v *Viewer) DetailAt(ctx context.Context, index int) (domain.Detail, bool, error) {
	snap, ok := v.Snapshot()
	if !ok {
		return domain.Detail{}, false, ErrNotReady
	}
	c, found := snap.Layer.Select(index)
	if !found {
		return domain.Detail{}, false, nil
	}
	return v.render(ctx, snap, c.Key, c.Title()), true, nil
}

// Locate renders the panel for the county containing the point.
func (v *Viewer) Locate(ctx context.Context, lat, lon float64) (domain.Detail, bool, error) {
	snap, ok := v.Snapshot()
	if !ok {
		return domain.Detail{}, false, ErrNotReady
	}
	c, found := snap.Layer.Locate(lat, lon)
	if !found {
		return domain.Detail{}, false, nil
	}
	return v.render(ctx, snap, c.Key, c.Title()), true, nil
}

// SearchResult is a place search answer.
type SearchResult struct {
	Place  domain.GeocodingResult `json:"place"`
	Found  bool                   `json:"found"`
	Detail *domain.Detail         `json:"detail,omitempty"`
}

// Search geocodes a place name and renders the county containing it.
func (v *Viewer) Search(ctx context.Context, query string) (SearchResult, error) {
	if v.geocoder == nil {
		return SearchResult{}, ErrSearchDisabled
	}
	if _, ok := v.Snapshot(); !ok {
		return SearchResult{}, ErrNotReady
	}
	place, err := v.geocoder.ForwardGeocode(ctx, strings.TrimSpace(query))
	if err != nil {
		return SearchResult{}, err
	}
	if !place.Found() {
		return SearchResult{Place: place}, nil
	}
	detail, found, err := v.Locate(ctx, place.Lat, place.Lon)
	if err != nil || !found {
		return SearchResult{Place: place}, err
	}
	return SearchResult{Place: place, Found: true, Detail: &detail}, nil
}

// Summary computes statistics over the joined records.
func (v *Viewer) Summary() (domain.Summary, error) {
	snap, ok := v.Snapshot()
	if !ok {
		return domain.Summary{}, ErrNotReady
	}
	return domain.Summarize(snap.Table.Records(), snap.Table.Factors(), v.labels), nil
}

// Export writes the join table as a workbook.
func (v *Viewer) Export(w io.Writer) error {
	snap, ok := v.Snapshot()
	if !ok {
		return ErrNotReady
	}
	return dataset.WriteXLSX(w, snap.Table, v.labels)
}

func (v *Viewer) render(ctx context.Context, snap *Snapshot, key domain.JoinKey, title string) domain.Detail {
	var rec *domain.CountyRecord
	if key != "" {
		rec, _ = snap.Table.Lookup(key)
	}
	detail := domain.RenderDetail(rec, v.labels, title)
	if detail.Key == "" {
		detail.Key = key
	}

	outcome := "miss"
	if detail.Found {
		outcome = "hit"
	}
	v.metrics.DetailRequests.WithLabelValues(outcome).Inc()
	v.publish(ctx, domain.NewCountyViewed(key, detail.Found))
	return detail
}

func (v *Viewer) publish(ctx context.Context, event domain.InteractionEvent) {
	if err := v.publisher.Publish(ctx, event); err != nil {
		v.logger.Warn("publish interaction event failed", "type", event.Type, "error", err)
	}
}
