package analysis

import (
	"context"
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

	"github.com/parcelworks/siteatlas/internal/config"
	"github.com/parcelworks/siteatlas/internal/features"
	"github.com/parcelworks/siteatlas/internal/fetcher"
	"github.com/parcelworks/siteatlas/internal/geometry"
	"github.com/parcelworks/siteatlas/internal/identifier"
	"github.com/parcelworks/siteatlas/internal/parcel"
	"github.com/parcelworks/siteatlas/internal/refdata"
)

// The synthetic site used throughout: a point in Kowloon.
var testSite = geometry.LonLat{Lon: 114.15, Lat: 22.28}

func testAnalysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		WalkSpeedKMH:     5,
		DriveSpeedKMH:    35,
		GraphRadiusM:     1200,
		StationRadiusM:   1000,
		StationCount:     3,
		FetchMaxRows:     800,
		SectorWidthDeg:   20,
		ViewRadiusM:      360,
		ViewContextM:     800,
		ViewFetchM:       1500,
		NoiseStudyM:      140,
		NoiseGridResM:    10,
		TrafficFlow:      1200,
		HeavyPercent:     0.12,
		TrafficSpeedKMH:  40,
		GroundAbsorption: 0.6,
	}
}

// fakeOverpass serves one canned result for every query.
type fakeOverpass struct {
	result overpass.Result
	err    error
}

func (f *fakeOverpass) Query(q string) (overpass.Result, error) {
	return f.result, f.err
}

func opNode(id int64, lon, lat float64, tags map[string]string) *overpass.Node {
	return &overpass.Node{Meta: overpass.Meta{ID: id, Tags: tags}, Lon: lon, Lat: lat}
}

func opWay(id int64, nodes []*overpass.Node, tags map[string]string) *overpass.Way {
	return &overpass.Way{Meta: overpass.Meta{ID: id, Tags: tags}, Nodes: nodes}
}

// streetResult is a small street network running east from the site, with a
// station at its far end.
func streetResult() overpass.Result {
	n1 := opNode(1, testSite.Lon, testSite.Lat, nil)
	n2 := opNode(2, testSite.Lon+0.001, testSite.Lat, nil)
	n3 := opNode(3, testSite.Lon+0.002, testSite.Lat, nil)
	return overpass.Result{
		Nodes: map[int64]*overpass.Node{
			1: n1, 2: n2, 3: n3,
			50: opNode(50, testSite.Lon+0.002, testSite.Lat,
				map[string]string{"railway": "station", "name": "East Station"}),
		},
		Ways: map[int64]*overpass.Way{
			100: opWay(100, []*overpass.Node{n1, n2, n3},
				map[string]string{"highway": "residential"}),
		},
	}
}

// geodataServer mocks the search endpoint; the lot-index endpoint returns no
// boundary so the site falls back to a synthetic footprint.
func geodataServer(t *testing.T) *httptest.Server {
	t.Helper()
	grid := geometry.WGS84ToHK80(testSite)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "SearchNumber") {
			_, _ = fmt.Fprintf(w, `{"candidates":[{"score":100,"location":{"x":%f,"y":%f}}]}`,
				grid.X, grid.Y)
			return
		}
		http.NotFound(w, r)
	}))
}

func zoningAround(pt geometry.XY) *refdata.ZoningIndex {
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		pt.X - 500, pt.Y - 500,
		pt.X + 500, pt.Y - 500,
		pt.X + 500, pt.Y + 500,
		pt.X - 500, pt.Y + 500,
		pt.X - 500, pt.Y - 500,
	}, []int{10})
	return refdata.NewZoningIndex(
		[]geom.T{poly},
		[]refdata.ZoningRecord{{ZoneLabel: "R(A)", PlanNo: "S/K1/1"}},
	)
}

func newTestService(t *testing.T, baseURL string, op *fakeOverpass, buildings *refdata.BuildingLayer) *Service {
	t.Helper()
	client := fetcher.New(fetcher.Options{UserAgent: "test", Timeout: 2 * time.Second})
	if buildings == nil {
		buildings = refdata.NewBuildingLayer(nil)
	}
	return NewWithDeps(
		testAnalysisConfig(),
		config.ReportConfig{},
		identifier.NewResolver(baseURL, client),
		parcel.NewLocator(baseURL, client, 0),
		features.NewFetcherWithClient(op, 800),
		zoningAround(geometry.WGS84ToMercator(testSite)),
		buildings,
	)
}

func TestService_Walking(t *testing.T) {
	srv := geodataServer(t)
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeOverpass{result: streetResult()}, nil)

	res, err := svc.Walking(context.Background(), "LOT", "DD1 LOT 1")
	require.NoError(t, err)

	assert.Equal(t, "LOT", res.Site.DataType)
	assert.InDelta(t, testSite.Lon, res.Site.Lon, 1e-9)
	assert.InDelta(t, testSite.Lat, res.Site.Lat, 1e-9)
	assert.Equal(t, "buffer", res.Site.ShapeSource, "no boundary, no buildings")

	require.Len(t, res.Stations, 1)
	require.NotNil(t, res.Stations[0].StationName)
	assert.Equal(t, "East Station", *res.Stations[0].StationName)
	assert.Greater(t, res.Stations[0].Route.DistanceKM, 0.0)
	assert.NotEmpty(t, res.Stations[0].Route.Path)
}

func TestService_Driving(t *testing.T) {
	srv := geodataServer(t)
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeOverpass{result: streetResult()}, nil)

	res, err := svc.Driving(context.Background(), "LOT", "DD1 LOT 1")
	require.NoError(t, err)

	assert.Equal(t, "R(A)", res.Zoning.ZoneLabel)
	assert.Equal(t, "S/K1/1", res.Zoning.PlanNo)

	require.Len(t, res.Routes, 1)
	assert.NotNil(t, res.Routes[0].Ingress, "two-way street: ingress exists")
	assert.NotNil(t, res.Routes[0].Egress, "two-way street: egress exists")
}

// testBuildings is one footprint straddling the site.
func testBuildings() *refdata.BuildingLayer {
	pt := geometry.WGS84ToMercator(testSite)
	footprint := geom.NewPolygonFlat(geom.XY, []float64{
		pt.X - 15, pt.Y - 15,
		pt.X + 15, pt.Y - 15,
		pt.X + 15, pt.Y + 15,
		pt.X - 15, pt.Y + 15,
		pt.X - 15, pt.Y - 15,
	}, []int{10})
	return refdata.NewBuildingLayer([]refdata.Building{
		{Geometry: footprint, HeightM: 40},
	})
}

func TestService_SiteFallsBackToBuildingFootprint(t *testing.T) {
	srv := geodataServer(t)
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeOverpass{result: streetResult()}, testBuildings())

	res, err := svc.Walking(context.Background(), "LOT", "DD1 LOT 1")
	require.NoError(t, err)
	assert.Equal(t, "building", res.Site.ShapeSource)
}

func TestService_InvalidIdentifierType(t *testing.T) {
	srv := geodataServer(t)
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeOverpass{result: streetResult()}, nil)

	_, err := svc.Walking(context.Background(), "PARCEL", "X")
	require.Error(t, err)
	assert.True(t, eris.Is(err, identifier.ErrInvalidIdentifierType))
}

func TestService_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeOverpass{result: streetResult()}, nil)

	_, err := svc.Transport(context.Background(), "LOT", "NOPE")
	require.Error(t, err)
	assert.True(t, eris.Is(err, identifier.ErrNoMatchFound))
}

func TestService_NoiseRequiresRoads(t *testing.T) {
	srv := geodataServer(t)
	defer srv.Close()

	// A footprint exists but no roads lie in the study radius.
	svc := newTestService(t, srv.URL, &fakeOverpass{}, testBuildings())

	_, err := svc.Noise(context.Background(), "LOT", "DD1 LOT 1")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInsufficientData))
}

func TestService_NoiseRequiresBuildingFootprint(t *testing.T) {
	srv := geodataServer(t)
	defer srv.Close()

	// Roads exist but no building lies near the site; a buffer shape is not
	// a facade to propagate against.
	svc := newTestService(t, srv.URL, &fakeOverpass{result: streetResult()}, nil)

	_, err := svc.Noise(context.Background(), "LOT", "DD1 LOT 1")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInsufficientData))
	assert.Contains(t, err.Error(), "building footprint")
}

func TestService_Noise(t *testing.T) {
	srv := geodataServer(t)
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeOverpass{result: streetResult()}, testBuildings())

	res, err := svc.Noise(context.Background(), "LOT", "DD1 LOT 1")
	require.NoError(t, err)
	assert.Greater(t, res.SourceLevelDB, 0.0)
	assert.GreaterOrEqual(t, res.MaxDB, res.MinDB)
	assert.NotEmpty(t, res.Facades)
}

func TestService_TransportAndContext(t *testing.T) {
	srv := geodataServer(t)
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeOverpass{result: streetResult()}, nil)

	tr, err := svc.Transport(context.Background(), "LOT", "DD1 LOT 1")
	require.NoError(t, err)
	require.Len(t, tr.Stations, 1)
	assert.Equal(t, "East Station", *tr.Stations[0].Name)
	assert.Len(t, tr.Layers, 5)

	cx, err := svc.Context(context.Background(), "LOT", "DD1 LOT 1")
	require.NoError(t, err)
	assert.Equal(t, "R(A)", cx.Zoning.ZoneLabel)
	require.Len(t, cx.Stations, 1)
}

func TestService_Report_PartialFailure(t *testing.T) {
	srv := geodataServer(t)
	defer srv.Close()

	// Overpass down and no buildings loaded: walking, driving, and noise
	// fail; transport, context, and view still produce (empty-layer)
	// artifacts.
	svc := newTestService(t, srv.URL, &fakeOverpass{err: eris.New("overpass: gateway timeout")}, nil)

	report, err := svc.Report(context.Background(), "LOT", "DD1 LOT 1")
	require.NoError(t, err)

	byName := make(map[string]Section)
	for _, s := range report.Sections {
		byName[s.Name] = s
	}
	require.Len(t, byName, 6)

	assert.False(t, byName["walking"].OK)
	assert.False(t, byName["driving"].OK)
	assert.False(t, byName["noise"].OK)
	assert.NotEmpty(t, byName["walking"].Error)

	assert.True(t, byName["transport"].OK)
	assert.True(t, byName["context"].OK)
	assert.True(t, byName["view"].OK)

	assert.Nil(t, report.Walking)
	assert.NotNil(t, report.Transport)
	assert.NotNil(t, report.View)
}

func TestService_Report_AllSectionsSucceed(t *testing.T) {
	srv := geodataServer(t)
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeOverpass{result: streetResult()}, testBuildings())

	report, err := svc.Report(context.Background(), "LOT", "DD1 LOT 1")
	require.NoError(t, err)

	for _, s := range report.Sections {
		assert.True(t, s.OK, s.Name)
	}
	require.NotNil(t, report.Walking)
	require.NotNil(t, report.Driving)
	require.NotNil(t, report.Noise)
	assert.Equal(t, "R(A)", report.Driving.Zoning.ZoneLabel)
	assert.InDelta(t, testSite.Lon, report.Site.Lon, 1e-9)
}
