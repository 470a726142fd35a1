// Package geometry loads county boundary features and applies factor styling.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/paulmach/orb/geojson"
)

// JoinKeyProperty is added to every served feature so the page can address
// counties without re-deriving keys.
const JoinKeyProperty = "join_key"

// Property names read from each feature, in order of preference.
var (
	stateProperties  = []string{"STATE", "STATEFP", "STATE_FIPS"}
	countyProperties = []string{"NAME", "COUNTY", "NAMELSAD"}
)

// County is one feature of the loaded layer.
type County struct {
	Index     int
	Key       domain.JoinKey // empty when the feature cannot be joined
	Name      string
	StateFIPS string
	Feature   *geojson.Feature
}

// Title renders "Name, State" for panels and logs.
func (c County) Title() string {
	if state, ok := domain.StateName(c.StateFIPS); ok && c.Name != "" {
		return c.Name + ", " + state
	}
	return c.Name
}

// FeatureStyle is the style computed for one feature.
type FeatureStyle struct {
	Index int            `json:"index"`
	Key   domain.JoinKey `json:"key,omitempty"`
	Style domain.Style   `json:"style"`
}

// Layer is an immutable, loaded county feature collection.
type Layer struct {
	counties []County
	byKey    map[domain.JoinKey]int
	cells    *cellIndex
	encoded  []byte
	unjoined int
}

// Decode reads a GeoJSON FeatureCollection from r.
func Decode(r io.Reader) (*Layer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geometry: %w", err)
	}
	return Parse(data)
}

// Parse builds a layer from GeoJSON bytes. Features whose state or county
// properties cannot form a join key are kept but never match a record.
func Parse(data []byte) (*Layer, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, errors.New("parse geometry: feature collection is empty")
	}

	l := &Layer{
		counties: make([]County, len(fc.Features)),
		byKey:    make(map[domain.JoinKey]int, len(fc.Features)),
	}
	for i, f := range fc.Features {
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		state := propertyString(f.Properties, stateProperties)
		name := propertyString(f.Properties, countyProperties)
		fips, _ := domain.ResolveStateFIPS(state)

		c := County{Index: i, Name: name, StateFIPS: fips, Feature: f}
		if key, ok := domain.NewJoinKey(state, name); ok {
			c.Key = key
			if _, dup := l.byKey[key]; !dup {
				l.byKey[key] = i
			}
			f.Properties[JoinKeyProperty] = string(key)
		} else {
			l.unjoined++
		}
		l.counties[i] = c
	}

	l.cells = newCellIndex(l.counties)

	l.encoded, err = json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	return l, nil
}

// Len is the number of features.
func (l *Layer) Len() int { return len(l.counties) }

// Unjoined counts features that produced no join key.
func (l *Layer) Unjoined() int { return l.unjoined }

// Counties returns every feature in source order.
func (l *Layer) Counties() []County {
	return append([]County(nil), l.counties...)
}

// Select returns the feature at index, the click target of the map layer.
func (l *Layer) Select(index int) (County, bool) {
	if index < 0 || index >= len(l.counties) {
		return County{}, false
	}
	return l.counties[index], true
}

// Find returns the first feature with the given join key.
func (l *Layer) Find(key domain.JoinKey) (County, bool) {
	i, ok := l.byKey[key]
	if !ok {
		return County{}, false
	}
	return l.counties[i], true
}

// GeoJSON returns the encoded feature collection, including join keys.
func (l *Layer) GeoJSON() []byte { return l.encoded }

// Style computes every feature's style for the active factor. It reads the
// records but never modifies them, so repeated calls with the same inputs
// return identical output.
func (l *Layer) Style(active string, records domain.RecordLookup) []FeatureStyle {
	out := make([]FeatureStyle, len(l.counties))
	for i, c := range l.counties {
		var rec *domain.CountyRecord
		if c.Key != "" && records != nil {
			rec, _ = records.Lookup(c.Key)
		}
		out[i] = FeatureStyle{Index: i, Key: c.Key, Style: domain.StyleFor(rec, active)}
	}
	return out
}

// propertyString returns the first non-empty property among names as text.
// Numeric values (FIPS codes encoded as numbers) are formatted as integers.
func propertyString(props geojson.Properties, names []string) string {
	for _, name := range names {
		switch v := props[name].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
