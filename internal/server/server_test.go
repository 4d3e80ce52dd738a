package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	overpass "github.com/serjvanilla/go-overpass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/parcelworks/siteatlas/internal/analysis"
	"github.com/parcelworks/siteatlas/internal/config"
	"github.com/parcelworks/siteatlas/internal/features"
	"github.com/parcelworks/siteatlas/internal/fetcher"
	"github.com/parcelworks/siteatlas/internal/geometry"
	"github.com/parcelworks/siteatlas/internal/identifier"
	"github.com/parcelworks/siteatlas/internal/parcel"
	"github.com/parcelworks/siteatlas/internal/refdata"
)

var testSite = geometry.LonLat{Lon: 114.15, Lat: 22.28}

type fakeOverpass struct {
	result overpass.Result
}

func (f *fakeOverpass) Query(q string) (overpass.Result, error) {
	return f.result, nil
}

// testStack wires a Server over httptest upstreams and a canned street
// network, mirroring the production wiring without the real services.
func testStack(t *testing.T) (*Server, func()) {
	t.Helper()

	grid := geometry.WGS84ToHK80(testSite)
	geodata := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "SearchNumber") {
			_, _ = fmt.Fprintf(w, `{"candidates":[{"score":100,"location":{"x":%f,"y":%f}}]}`,
				grid.X, grid.Y)
			return
		}
		http.NotFound(w, r)
	}))

	n1 := &overpass.Node{Meta: overpass.Meta{ID: 1}, Lon: testSite.Lon, Lat: testSite.Lat}
	n2 := &overpass.Node{Meta: overpass.Meta{ID: 2}, Lon: testSite.Lon + 0.002, Lat: testSite.Lat}
	op := &fakeOverpass{result: overpass.Result{
		Nodes: map[int64]*overpass.Node{
			1: n1, 2: n2,
			50: {
				Meta: overpass.Meta{ID: 50,
					Tags: map[string]string{"railway": "station", "name": "East Station"}},
				Lon: testSite.Lon + 0.002, Lat: testSite.Lat,
			},
		},
		Ways: map[int64]*overpass.Way{
			100: {
				Meta:  overpass.Meta{ID: 100, Tags: map[string]string{"highway": "residential"}},
				Nodes: []*overpass.Node{n1, n2},
			},
		},
	}}

	pt := geometry.WGS84ToMercator(testSite)
	zoning := refdata.NewZoningIndex(
		[]geom.T{geom.NewPolygonFlat(geom.XY, []float64{
			pt.X - 500, pt.Y - 500,
			pt.X + 500, pt.Y - 500,
			pt.X + 500, pt.Y + 500,
			pt.X - 500, pt.Y + 500,
			pt.X - 500, pt.Y - 500,
		}, []int{10})},
		[]refdata.ZoningRecord{{ZoneLabel: "R(A)", PlanNo: "S/K1/1"}},
	)

	client := fetcher.New(fetcher.Options{UserAgent: "test", Timeout: 2 * time.Second})
	svc := analysis.NewWithDeps(
		config.AnalysisConfig{
			WalkSpeedKMH: 5, DriveSpeedKMH: 35,
			GraphRadiusM: 1200, StationRadiusM: 1000, StationCount: 3,
			FetchMaxRows: 800, SectorWidthDeg: 20, ViewRadiusM: 360,
			ViewContextM: 800, ViewFetchM: 1500,
			NoiseStudyM: 140, NoiseGridResM: 10,
			TrafficFlow: 1200, HeavyPercent: 0.12, TrafficSpeedKMH: 40,
			GroundAbsorption: 0.6,
		},
		config.ReportConfig{},
		identifier.NewResolver(geodata.URL, client),
		parcel.NewLocator(geodata.URL, client, 0),
		features.NewFetcherWithClient(op, 800),
		zoning,
		refdata.NewBuildingLayer(nil),
	)

	cfg := &config.Config{}
	return New(cfg, svc), geodata.Close
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_WalkingEndpoint(t *testing.T) {
	srv, cleanup := testStack(t)
	defer cleanup()
	h := srv.Handler()

	rec := postJSON(t, h, "/v1/walking", `{"data_type":"LOT","value":"DD1 LOT 1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var res analysis.WalkingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "LOT", res.Site.DataType)
	require.Len(t, res.Stations, 1)
	assert.Equal(t, "East Station", *res.Stations[0].StationName)
}

func TestServer_ReportEndpoint(t *testing.T) {
	srv, cleanup := testStack(t)
	defer cleanup()
	h := srv.Handler()

	rec := postJSON(t, h, "/v1/report", `{"data_type":"LOT","value":"DD1 LOT 1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report analysis.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Len(t, report.Sections, 6)
}

func TestServer_BadRequests(t *testing.T) {
	srv, cleanup := testStack(t)
	defer cleanup()
	h := srv.Handler()

	// Malformed body.
	rec := postJSON(t, h, "/v1/walking", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing value.
	rec = postJSON(t, h, "/v1/walking", `{"data_type":"LOT"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown identifier type maps to 400 through the error taxonomy.
	rec = postJSON(t, h, "/v1/walking", `{"data_type":"PARCEL","value":"X"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestServer_Health(t *testing.T) {
	srv, cleanup := testStack(t)
	defer cleanup()
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "boundary_cache")
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{eris.Wrap(identifier.ErrInvalidIdentifierType, "x"), http.StatusBadRequest},
		{eris.Wrap(identifier.ErrNoMatchFound, "x"), http.StatusNotFound},
		{eris.Wrap(refdata.ErrZoningNotFound, "x"), http.StatusUnprocessableEntity},
		{eris.Wrap(analysis.ErrInsufficientData, "x"), http.StatusUnprocessableEntity},
		{eris.Wrap(identifier.ErrUpstreamUnavailable, "x"), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{eris.New("anything else"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.err))
	}
}

func TestTileProxy(t *testing.T) {
	var calls int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/12/3456/1234.png", r.URL.Path)
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer upstream.Close()

	proxy := NewTileProxy(upstream.URL, "png", "test", newTileCache(16, time.Hour))

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/12/3456/1234.png", nil)
		rec := httptest.NewRecorder()
		proxy.ServeHTTP(rec, req)
		return rec
	}

	rec := get()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	// Second fetch is served from cache.
	rec = get()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)

	stats := proxy.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	// Bad paths are rejected before touching upstream.
	req := httptest.NewRequest(http.MethodGet, "/not-a-tile", nil)
	bad := httptest.NewRecorder()
	proxy.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}
