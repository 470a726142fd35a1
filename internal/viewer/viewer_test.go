package viewer_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/county-factor-map/internal/dataset"
	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/couchcryptid/county-factor-map/internal/observability"
	"github.com/couchcryptid/county-factor-map/internal/viewer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

const datasetCSV = `State,County,factor_1,contribution_1,factor_2,contribution_2,factor_3,contribution_3,predicted_life_expectancy,actual_life_expectancy
Alabama,Autauga,E_UNEMP,0.65,E_PARK,-0.2,E_NOINT,0.1,75.2,74.1
Texas,Travis,E_PM,-3,E_UNEMP,0,,,78,79
Ohio,Adams,E_NOINT,0.4,,,,,73,72
Narnia,Lantern,E_OZONE,0.2,,,,,70,70
`

const countiesGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"STATE":"01","NAME":"Autauga"},
  "geometry":{"type":"Polygon","coordinates":[[[-87,32],[-86,32],[-86,33],[-87,33],[-87,32]]]}},
 {"type":"Feature","properties":{"STATE":"48","NAME":"Travis"},
  "geometry":{"type":"Polygon","coordinates":[[[-98,30],[-97,30],[-97,31],[-98,31],[-98,30]]]}},
 {"type":"Feature","properties":{"STATE":"01","NAME":"Baldwin"},
  "geometry":{"type":"Polygon","coordinates":[[[-88,30],[-87,30],[-87,31],[-88,31],[-88,30]]]}}
]}`

type mockOpener struct {
	mu       sync.Mutex
	files    map[string]string
	failures map[string]int // remaining failures per location
	opened   []string
}

func (m *mockOpener) Open(_ context.Context, location string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, location)
	if m.failures[location] > 0 {
		m.failures[location]--
		return nil, errors.New("connection refused")
	}
	body, ok := m.files[location]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *mockOpener) openedLocations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.opened...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.InteractionEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.InteractionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type stubGeocoder struct {
	result domain.GeocodingResult
	err    error
}

func (g stubGeocoder) ForwardGeocode(context.Context, string) (domain.GeocodingResult, error) {
	return g.result, g.err
}

func newOpener() *mockOpener {
	return &mockOpener{
		files:    map[string]string{"data.csv": datasetCSV, "counties.geojson": countiesGeoJSON},
		failures: map[string]int{},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newViewer(t *testing.T, opener viewer.Opener, opts ...viewer.Option) *viewer.Viewer {
	t.Helper()
	opts = append([]viewer.Option{viewer.WithBackoff(time.Millisecond, 2*time.Millisecond)}, opts...)
	return viewer.New(opener, viewer.Sources{Dataset: "data.csv", Geometry: "counties.geojson"},
		discardLogger(), observability.NewMetricsForTesting(), opts...)
}

func loadedViewer(t *testing.T, opts ...viewer.Option) *viewer.Viewer {
	t.Helper()
	v := newViewer(t, newOpener(), opts...)
	require.NoError(t, v.Load(context.Background()))
	return v
}

// --- tests ---

func TestLoad_DatasetBeforeGeometry(t *testing.T) {
	opener := newOpener()
	v := newViewer(t, opener)

	require.Error(t, v.CheckReadiness(context.Background()))
	require.NoError(t, v.Load(context.Background()))
	require.NoError(t, v.CheckReadiness(context.Background()))

	assert.Equal(t, []string{"data.csv", "counties.geojson"}, opener.openedLocations())

	snap, ok := v.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 3, snap.Table.Len())
	assert.Equal(t, 3, snap.Layer.Len())
}

func TestLoad_DatasetFailureNeverFetchesGeometry(t *testing.T) {
	opener := newOpener()
	delete(opener.files, "data.csv")
	v := newViewer(t, opener, viewer.WithAttempts(2))

	err := v.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load dataset")

	assert.Equal(t, []string{"data.csv", "data.csv"}, opener.openedLocations())

	rerr := v.CheckReadiness(context.Background())
	require.Error(t, rerr)
	assert.Contains(t, rerr.Error(), "load failed")

	assert.Empty(t, v.Factors().Factors)
	_, err = v.Styles("E_UNEMP")
	assert.ErrorIs(t, err, viewer.ErrNotReady)
}

func TestLoad_RetriesTransientFailures(t *testing.T) {
	opener := newOpener()
	opener.failures["counties.geojson"] = 2
	v := newViewer(t, opener, viewer.WithAttempts(3))

	require.NoError(t, v.Load(context.Background()))
	assert.Equal(t, []string{"data.csv", "counties.geojson", "counties.geojson", "counties.geojson"}, opener.openedLocations())
}

func TestLoad_GeometryParseFailureNotReady(t *testing.T) {
	opener := newOpener()
	opener.files["counties.geojson"] = "{not geojson"
	v := newViewer(t, opener)

	require.Error(t, v.Load(context.Background()))
	require.Error(t, v.CheckReadiness(context.Background()))
	_, ok := v.Snapshot()
	assert.False(t, ok)
}

func TestLoad_CanceledContextStopsRetrying(t *testing.T) {
	opener := newOpener()
	opener.failures["data.csv"] = 100
	v := viewer.New(opener, viewer.Sources{Dataset: "data.csv", Geometry: "counties.geojson"},
		discardLogger(), observability.NewMetricsForTesting(),
		viewer.WithAttempts(100), viewer.WithBackoff(time.Hour, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := v.Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFactors_FirstOccurrenceOrderWithLabels(t *testing.T) {
	v := loadedViewer(t)

	list := v.Factors()
	codes := make([]string, 0, len(list.Factors))
	for _, f := range list.Factors {
		codes = append(codes, f.Code)
	}
	assert.Equal(t, []string{"E_UNEMP", "E_PARK", "E_NOINT", "E_PM", "E_OZONE"}, codes)
	assert.Equal(t, v.Labels().Resolve("E_UNEMP"), list.Factors[0].Label)
	assert.NotEmpty(t, list.Buckets)
}

func TestStyles_AutaugaUnemploymentScenario(t *testing.T) {
	v := loadedViewer(t)

	styles, err := v.Styles("E_UNEMP")
	require.NoError(t, err)
	require.Len(t, styles, 3)

	assert.Equal(t, domain.JoinKey("01-autauga"), styles[0].Key)
	assert.Equal(t, "red", styles[0].Style.FillColor)
	assert.InDelta(t, 0.65, styles[0].Style.FillOpacity, 1e-9)

	// Travis references E_UNEMP with a zero contribution; Baldwin has no record.
	assert.Equal(t, domain.NeutralStyle(), styles[1].Style)
	assert.Equal(t, domain.NeutralStyle(), styles[2].Style)
}

func TestSelectFactor_LastWriteWinsAndRevert(t *testing.T) {
	pub := &recordingPublisher{}
	v := loadedViewer(t, viewer.WithPublisher(pub))

	assert.Equal(t, "E_UNEMP", v.SelectFactor(context.Background(), " E_UNEMP "))
	first, err := v.ActiveStyles()
	require.NoError(t, err)

	v.SelectFactor(context.Background(), "E_PM")
	travis, err := v.ActiveStyles()
	require.NoError(t, err)
	assert.InDelta(t, domain.MaxIntensity, travis[1].Style.FillOpacity, 1e-9)

	v.SelectFactor(context.Background(), "E_UNEMP")
	again, err := v.ActiveStyles()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	v.SelectFactor(context.Background(), "NOT_A_FACTOR")
	unknown, err := v.ActiveStyles()
	require.NoError(t, err)
	for _, s := range unknown {
		assert.Equal(t, domain.NeutralStyle(), s.Style)
	}

	require.Len(t, pub.events, 4)
	assert.Equal(t, domain.EventFactorSelected, pub.events[0].Type)
	assert.Equal(t, "E_UNEMP", pub.events[0].FactorCode)
}

func TestDetail_RankedPanel(t *testing.T) {
	v := loadedViewer(t)
	v.SelectFactor(context.Background(), "E_PARK")

	d, err := v.Detail(context.Background(), "01-autauga")
	require.NoError(t, err)
	require.True(t, d.Found)
	assert.Equal(t, "Autauga, Alabama", d.Title)
	require.Len(t, d.Factors, 3)
	assert.Equal(t, "E_UNEMP", d.Factors[0].Code)
	assert.Equal(t, "E_PARK", d.Factors[1].Code)
	assert.Equal(t, "E_NOINT", d.Factors[2].Code)
	assert.Equal(t, "75.20", d.Predicted)
	assert.Equal(t, "74.10", d.Actual)

	assert.Equal(t, "E_PARK", v.State().Active(), "county selection leaves the active factor unchanged")
}

func TestDetail_NoRecordForFeature(t *testing.T) {
	pub := &recordingPublisher{}
	v := loadedViewer(t, viewer.WithPublisher(pub))

	d, found, err := v.DetailAt(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, d.Found)
	assert.Equal(t, "Baldwin, Alabama", d.Title)
	assert.Equal(t, domain.NoDataMessage, d.Message)
	assert.Equal(t, domain.JoinKey("01-baldwin"), d.Key)

	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.EventCountyViewed, pub.events[0].Type)
	assert.False(t, pub.events[0].Found)

	_, found, err = v.DetailAt(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDetail_PublishFailureIgnored(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	v := loadedViewer(t, viewer.WithPublisher(pub))

	d, err := v.Detail(context.Background(), "48-travis")
	require.NoError(t, err)
	assert.True(t, d.Found)
}

func TestLocate(t *testing.T) {
	v := loadedViewer(t)

	d, found, err := v.Locate(context.Background(), 30.5, -97.5)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Travis, Texas", d.Title)

	_, found, err = v.Locate(context.Background(), 45, 0)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSearch(t *testing.T) {
	_, err := loadedViewer(t).Search(context.Background(), "Austin")
	require.ErrorIs(t, err, viewer.ErrSearchDisabled)

	v := loadedViewer(t, viewer.WithGeocoder(stubGeocoder{result: domain.GeocodingResult{Lat: 32.4, Lon: -86.6, PlaceName: "Prattville"}}))
	res, err := v.Search(context.Background(), "Prattville, AL")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "Autauga, Alabama", res.Detail.Title)

	v = loadedViewer(t, viewer.WithGeocoder(stubGeocoder{}))
	res, err = v.Search(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, res.Found)

	v = loadedViewer(t, viewer.WithGeocoder(stubGeocoder{err: errors.New("quota")}))
	_, err = v.Search(context.Background(), "Austin")
	require.Error(t, err)
}

func TestSummaryAndExport(t *testing.T) {
	v := loadedViewer(t)

	s, err := v.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Counties)

	var buf bytes.Buffer
	require.NoError(t, v.Export(&buf))
	tbl, err := dataset.Parse(&buf, dataset.FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
}

func TestCoverage(t *testing.T) {
	v := loadedViewer(t)
	snap, _ := v.Snapshot()

	cov := viewer.Coverage(snap.Table, snap.Layer)
	assert.Equal(t, 2, cov.MatchedRecords)
	assert.Equal(t, []domain.JoinKey{"39-adams"}, cov.UnmatchedRecords)
	assert.Equal(t, 2, cov.MatchedFeatures)
	assert.Equal(t, 1, cov.UnmatchedFeatures)
}

func TestState_ConcurrentSelections(t *testing.T) {
	var s viewer.State
	assert.Empty(t, s.Active())

	var wg sync.WaitGroup
	for _, code := range []string{"A", "B", "C", "D"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SetActive(code)
		}()
	}
	wg.Wait()
	assert.Contains(t, []string{"A", "B", "C", "D"}, s.Active())

	assert.Equal(t, s.Active(), s.SetActive(""))
	assert.Empty(t, s.Active())
}
