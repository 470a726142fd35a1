package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpadapter "github.com/couchcryptid/county-factor-map/internal/adapter/http"
	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/couchcryptid/county-factor-map/internal/observability"
	"github.com/couchcryptid/county-factor-map/internal/viewer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// --- mocks ---

const datasetCSV = `State,County,factor_1,contribution_1,factor_2,contribution_2,factor_3,contribution_3,predicted_life_expectancy,actual_life_expectancy
Alabama,Autauga,E_UNEMP,0.65,E_PARK,-0.2,E_NOINT,0.1,75.2,74.1
Texas,Travis,E_PM,-3,,,,,78,79
`

const countiesGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"STATE":"01","NAME":"Autauga"},
  "geometry":{"type":"Polygon","coordinates":[[[-87,32],[-86,32],[-86,33],[-87,33],[-87,32]]]}},
 {"type":"Feature","properties":{"STATE":"48","NAME":"Travis"},
  "geometry":{"type":"Polygon","coordinates":[[[-98,30],[-97,30],[-97,31],[-98,31],[-98,30]]]}},
 {"type":"Feature","properties":{"STATE":"01","NAME":"Baldwin"},
  "geometry":{"type":"Polygon","coordinates":[[[-88,30],[-87,30],[-87,31],[-88,31],[-88,30]]]}}
]}`

type memOpener map[string]string

func (m memOpener) Open(_ context.Context, location string) (io.ReadCloser, error) {
	body, ok := m[location]
	if !ok {
		return nil, fmt.Errorf("no resource %s", location)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type stubGeocoder struct {
	places map[string]domain.GeocodingResult
	err    error
}

func (g stubGeocoder) ForwardGeocode(_ context.Context, query string) (domain.GeocodingResult, error) {
	return g.places[query], g.err
}

// faultyService serves real data but fails or corrupts selected operations.
type faultyService struct {
	*viewer.Viewer
	summary   *domain.Summary
	exportErr error
}

func (f faultyService) Summary() (domain.Summary, error) {
	if f.summary != nil {
		return *f.summary, nil
	}
	return f.Viewer.Summary()
}

func (f faultyService) Export(w io.Writer) error {
	if f.exportErr != nil {
		_, _ = w.Write([]byte("PK partial"))
		return f.exportErr
	}
	return f.Viewer.Export(w)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newViewer(t *testing.T, load bool, opts ...viewer.Option) *viewer.Viewer {
	t.Helper()
	v := viewer.New(memOpener{"data.csv": datasetCSV, "counties.geojson": countiesGeoJSON},
		viewer.Sources{Dataset: "data.csv", Geometry: "counties.geojson"},
		discardLogger(), observability.NewMetricsForTesting(), opts...)
	if load {
		require.NoError(t, v.Load(context.Background()))
	}
	return v
}

func newTestServer(t *testing.T, opts ...viewer.Option) *httpadapter.Server {
	t.Helper()
	page := httpadapter.PageConfig{TileURL: "https://tiles.example/{z}/{x}/{y}.png"}
	return httpadapter.NewServer(":0", newViewer(t, true, opts...), page, discardLogger())
}

func serve(srv *httpadapter.Server, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// --- tests ---

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenLoaded(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503BeforeLoad(t *testing.T) {
	srv := httpadapter.NewServer(":0", newViewer(t, false), httpadapter.PageConfig{}, discardLogger())
	rec := serve(srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestIndexAndStaticAssets(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="map"`)

	rec = serve(srv, http.MethodGet, "/static/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/styles")

	// The page waits on readiness before fetching geometry.
	js := rec.Body.String()
	ready := strings.Index(js, `fetch("/readyz")`)
	require.NotEqual(t, -1, ready)
	assert.Less(t, ready, strings.Index(js, `fetch("/api/geometry")`))
}

func TestConfig(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)

	cfg := decode[httpadapter.PageConfig](t, rec)
	assert.Equal(t, "https://tiles.example/{z}/{x}/{y}.png", cfg.TileURL)
	assert.False(t, cfg.SearchEnabled)
}

func TestFactorsInDatasetOrder(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/api/factors", "")
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[viewer.FactorList](t, rec)
	codes := make([]string, len(list.Factors))
	for i, f := range list.Factors {
		codes[i] = f.Code
	}
	assert.Equal(t, []string{"E_UNEMP", "E_PARK", "E_NOINT", "E_PM"}, codes)
	assert.Empty(t, list.Active)
}

func TestActiveFactorSelection(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodPut, "/api/active-factor", `{"code":" E_UNEMP "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "E_UNEMP", decode[map[string]string](t, rec)["code"])

	rec = serve(srv, http.MethodGet, "/api/active-factor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "E_UNEMP", decode[map[string]string](t, rec)["code"])
}

func TestActiveFactorRejectsBadBody(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodPut, "/api/active-factor", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type styleEntry struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
	Style struct {
		FillOpacity float64 `json:"fillOpacity"`
	} `json:"style"`
}

func TestStylesFollowActiveFactor(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/styles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	for _, s := range decode[[]styleEntry](t, rec) {
		assert.Zero(t, s.Style.FillOpacity, "no factor selected leaves %s neutral", s.Key)
	}

	serve(srv, http.MethodPut, "/api/active-factor", `{"code":"E_UNEMP"}`)
	rec = serve(srv, http.MethodGet, "/api/styles", "")
	require.Equal(t, http.StatusOK, rec.Code)

	styles := decode[[]styleEntry](t, rec)
	require.Len(t, styles, 3)
	assert.Equal(t, "01-autauga", styles[0].Key)
	assert.InDelta(t, 0.65, styles[0].Style.FillOpacity, 1e-9)
	assert.Zero(t, styles[1].Style.FillOpacity)
	assert.Zero(t, styles[2].Style.FillOpacity)
}

func TestStylesExplicitFactorLeavesSelection(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/styles?factor=E_PM", "")
	require.Equal(t, http.StatusOK, rec.Code)
	styles := decode[[]styleEntry](t, rec)
	assert.InDelta(t, 1.0, styles[1].Style.FillOpacity, 1e-9, "|-3| clamps to the maximum")

	rec = serve(srv, http.MethodGet, "/api/active-factor", "")
	assert.Empty(t, decode[map[string]string](t, rec)["code"])
}

func TestGeometry(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/api/geometry", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"join_key":"01-autauga"`)
}

func TestNotLoadedReturns503(t *testing.T) {
	srv := httpadapter.NewServer(":0", newViewer(t, false), httpadapter.PageConfig{}, discardLogger())

	for _, target := range []string{"/api/styles", "/api/geometry", "/api/counties/01-autauga", "/api/summary", "/api/export.xlsx"} {
		t.Run(target, func(t *testing.T) {
			rec := serve(srv, http.MethodGet, target, "")
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		})
	}
}

func TestCountyDetail(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/api/counties/01-autauga", "")
	require.Equal(t, http.StatusOK, rec.Code)

	detail := decode[domain.Detail](t, rec)
	assert.True(t, detail.Found)
	assert.Equal(t, "Autauga, Alabama", detail.Title)
	require.Len(t, detail.Factors, 3)
	assert.Equal(t, "E_UNEMP", detail.Factors[0].Code)
	assert.Equal(t, "E_PARK", detail.Factors[1].Code)
	assert.Equal(t, "75.20", detail.Predicted)
}

func TestCountyDetailNoData(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/api/counties/01-baldwin", "")
	require.Equal(t, http.StatusOK, rec.Code)

	detail := decode[domain.Detail](t, rec)
	assert.False(t, detail.Found)
	assert.Equal(t, domain.NoDataMessage, detail.Message)
}

func TestCountyPanelIsHTML(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/api/counties/01-autauga/panel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<strong>Autauga, Alabama</strong>")
}

func TestFeatureDetail(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/features/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Travis, Texas", decode[domain.Detail](t, rec).Title)

	rec = serve(srv, http.MethodGet, "/api/features/0/panel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Autauga")
}

func TestFeatureDetailBadIndex(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, serve(srv, http.MethodGet, "/api/features/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/api/features/99", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/api/features/-1", "").Code)
}

func TestLocateByPoint(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/locate?lat=32.5&lon=-86.5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[viewer.SearchResult](t, rec)
	require.True(t, result.Found)
	assert.Equal(t, domain.JoinKey("01-autauga"), result.Detail.Key)

	rec = serve(srv, http.MethodGet, "/api/locate?lat=0&lon=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	result = decode[viewer.SearchResult](t, rec)
	assert.False(t, result.Found)
	assert.Nil(t, result.Detail)
}

func TestLocateRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, serve(srv, http.MethodGet, "/api/locate?lat=x&lon=1", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(srv, http.MethodGet, "/api/locate", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(srv, http.MethodGet, "/api/locate?q=%20", "").Code)
}

func TestLocateBySearch(t *testing.T) {
	geocoder := stubGeocoder{places: map[string]domain.GeocodingResult{
		"Prattville": {Lat: 32.46, Lon: -86.47, PlaceName: "Prattville, Alabama"},
	}}
	srv := newTestServer(t, viewer.WithGeocoder(geocoder))

	rec := serve(srv, http.MethodGet, "/api/locate?q=Prattville", "")
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[viewer.SearchResult](t, rec)
	assert.True(t, result.Found)
	assert.Equal(t, "Prattville, Alabama", result.Place.PlaceName)
	assert.Equal(t, "Autauga, Alabama", result.Detail.Title)

	rec = serve(srv, http.MethodGet, "/api/locate?q=Atlantis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[viewer.SearchResult](t, rec).Found)
}

func TestLocateSearchErrors(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/api/locate?q=Prattville", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	srv := newTestServer(t, viewer.WithGeocoder(stubGeocoder{err: errors.New("upstream down")}))
	rec = serve(srv, http.MethodGet, "/api/locate?q=Prattville", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSummary(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[domain.Summary](t, rec).Counties)
}

func TestExportWorkbook(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/api/export.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))

	book, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer func() { _ = book.Close() }()
	assert.NotEmpty(t, book.GetSheetList())
}

func TestNonFiniteDatasetValuesStillRender(t *testing.T) {
	const body = `State,County,factor_1,contribution_1,factor_2,contribution_2,factor_3,contribution_3,predicted_life_expectancy,actual_life_expectancy
Alabama,Autauga,E_UNEMP,NaN,E_PARK,Inf,E_NOINT,0.1,75.2,NaN
`
	v := viewer.New(memOpener{"data.csv": body, "counties.geojson": countiesGeoJSON},
		viewer.Sources{Dataset: "data.csv", Geometry: "counties.geojson"},
		discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, v.Load(context.Background()))
	srv := httpadapter.NewServer(":0", v, httpadapter.PageConfig{}, discardLogger())

	rec := serve(srv, http.MethodGet, "/api/counties/01-autauga", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[domain.Detail](t, rec)
	assert.True(t, detail.Found)
	assert.Equal(t, "E_NOINT", detail.Factors[0].Code)

	rec = serve(srv, http.MethodGet, "/api/features/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[domain.Detail](t, rec).Found)

	rec = serve(srv, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[domain.Summary](t, rec).Counties)
}

func TestUnencodableResponseIs500(t *testing.T) {
	bad := domain.Summary{Correlation: math.NaN()}
	svc := faultyService{Viewer: newViewer(t, true), summary: &bad}
	srv := httpadapter.NewServer(":0", svc, httpadapter.PageConfig{}, discardLogger())

	rec := serve(srv, http.MethodGet, "/api/summary", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
}

func TestExportFailureIsNotPartialWorkbook(t *testing.T) {
	svc := faultyService{Viewer: newViewer(t, true), exportErr: errors.New("disk full")}
	srv := httpadapter.NewServer(":0", svc, httpadapter.PageConfig{}, discardLogger())

	rec := serve(srv, http.MethodGet, "/api/export.xlsx", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "PK partial")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
