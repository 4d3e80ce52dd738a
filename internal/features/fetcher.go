package features

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	overpass "github.com/serjvanilla/go-overpass"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/parcelworks/siteatlas/internal/geometry"
)

// overpassClient abstracts the Overpass client for tests.
type overpassClient interface {
	Query(query string) (overpass.Result, error)
}

// Fetcher issues bounded-radius feature queries against an Overpass
// endpoint. Fetch absorbs upstream failures into empty layers; Ways, used by
// the routing graph builder, propagates them.
type Fetcher struct {
	client  overpassClient
	maxRows int
	log     *zap.Logger
}

// NewFetcher creates a Fetcher against the given Overpass endpoint. maxRows
// bounds the number of features kept per fetch.
func NewFetcher(endpoint string, timeout time.Duration, maxRows int) *Fetcher {
	httpClient := &http.Client{Timeout: timeout}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &Fetcher{
		client:  &client,
		maxRows: maxRows,
		log:     zap.L().With(zap.String("component", "features.fetcher")),
	}
}

// NewFetcherWithClient injects a client; used by tests.
func NewFetcherWithClient(client overpassClient, maxRows int) *Fetcher {
	return &Fetcher{
		client:  client,
		maxRows: maxRows,
		log:     zap.L().With(zap.String("component", "features.fetcher")),
	}
}

// tagSelector renders a filter as an Overpass QL tag selector.
func tagSelector(filter TagFilter) string {
	if len(filter.Values) == 0 {
		return fmt.Sprintf("[%q]", filter.Key)
	}
	if len(filter.Values) == 1 {
		return fmt.Sprintf("[%q=%q]", filter.Key, filter.Values[0])
	}
	return fmt.Sprintf("[%q~%q]", filter.Key, "^("+strings.Join(filter.Values, "|")+")$")
}

// buildQuery renders the around-point query for a filter.
func buildQuery(pt geometry.LonLat, radiusM float64, filter TagFilter) string {
	sel := tagSelector(filter)
	around := fmt.Sprintf("(around:%.0f,%.6f,%.6f)", radiusM, pt.Lat, pt.Lon)
	return fmt.Sprintf(`[out:json];
(
	node%s%s;
	way%s%s;
);
out body;
>;
out skel qt;
`, sel, around, sel, around)
}

// query runs an Overpass query honoring context cancellation. The underlying
// call cannot be aborted mid-flight; cancellation abandons it and the HTTP
// client timeout reaps the connection.
func (f *Fetcher) query(ctx context.Context, q string) (overpass.Result, error) {
	type outcome struct {
		result overpass.Result
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		result, err := f.client.Query(q)
		ch <- outcome{result: result, err: err}
	}()
	select {
	case <-ctx.Done():
		return overpass.Result{}, eris.Wrap(ctx.Err(), "features: query canceled")
	case out := <-ch:
		return out.result, out.err
	}
}

// Fetch returns the features matching filter within radiusM of pt. Upstream
// failure yields an empty layer, never an error: missing data must not take
// down an analysis that can proceed partially.
func (f *Fetcher) Fetch(ctx context.Context, pt geometry.LonLat, radiusM float64, filter TagFilter) Layer {
	result, err := f.query(ctx, buildQuery(pt, radiusM, filter))
	if err != nil {
		f.log.Warn("feature fetch failed; returning empty layer",
			zap.String("key", filter.Key),
			zap.Error(err),
		)
		return Layer{Filter: filter}
	}

	layer := normalize(result, filter, f.maxRows)
	f.log.Debug("feature fetch",
		zap.String("key", filter.Key),
		zap.Int("features", layer.Len()),
		zap.Bool("truncated", layer.Truncated),
	)
	return layer
}

// Ways returns the raw ways matching filter within radiusM of pt, with node
// identity preserved. Unlike Fetch, upstream failure propagates: the routing
// graph cannot be built from silence.
func (f *Fetcher) Ways(ctx context.Context, pt geometry.LonLat, radiusM float64, filter TagFilter) ([]Way, error) {
	result, err := f.query(ctx, buildQuery(pt, radiusM, filter))
	if err != nil {
		return nil, eris.Wrap(err, "features: fetch ways")
	}

	ids := make([]int64, 0, len(result.Ways))
	for id := range result.Ways {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	ways := make([]Way, 0, len(ids))
	for _, id := range ids {
		w := result.Ways[id]
		if w == nil || len(w.Nodes) < 2 || !matchesFilter(w.Tags, filter) {
			continue
		}
		way := Way{ID: id, Tags: w.Tags}
		for _, n := range w.Nodes {
			if n == nil {
				continue
			}
			way.NodeIDs = append(way.NodeIDs, n.ID)
			way.Coords = append(way.Coords,
				geometry.WGS84ToMercator(geometry.LonLat{Lon: n.Lon, Lat: n.Lat}))
		}
		if len(way.NodeIDs) >= 2 {
			ways = append(ways, way)
		}
	}
	return ways, nil
}

// matchesFilter tests a tag map against a filter.
func matchesFilter(tags map[string]string, filter TagFilter) bool {
	v, ok := tags[filter.Key]
	if !ok {
		return false
	}
	if len(filter.Values) == 0 {
		return true
	}
	for _, want := range filter.Values {
		if v == want {
			return true
		}
	}
	return false
}

// lineKeys marks tag keys whose closed ways stay lines rather than areas.
var lineKeys = map[string]bool{
	"highway":  true,
	"railway":  true,
	"waterway": true,
	"barrier":  true,
}

// normalize converts an Overpass result into a Layer: geometries reprojected
// to Mercator, names unified, rows sorted by element id (the upstream maps
// are unordered) and truncated to maxRows.
func normalize(result overpass.Result, filter TagFilter, maxRows int) Layer {
	layer := Layer{Filter: filter}

	nodeIDs := make([]int64, 0, len(result.Nodes))
	for id := range result.Nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })

	for _, id := range nodeIDs {
		n := result.Nodes[id]
		if n == nil || !matchesFilter(n.Tags, filter) {
			continue
		}
		m := geometry.WGS84ToMercator(geometry.LonLat{Lon: n.Lon, Lat: n.Lat})
		layer.Features = append(layer.Features, Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{m.X, m.Y}),
			Name:     displayName(n.Tags),
			Tags:     n.Tags,
		})
	}

	wayIDs := make([]int64, 0, len(result.Ways))
	for id := range result.Ways {
		wayIDs = append(wayIDs, id)
	}
	sort.Slice(wayIDs, func(i, j int) bool { return wayIDs[i] < wayIDs[j] })

	for _, id := range wayIDs {
		w := result.Ways[id]
		if w == nil || len(w.Nodes) < 2 || !matchesFilter(w.Tags, filter) {
			continue
		}
		g := wayGeometry(w, filter)
		if g == nil {
			continue
		}
		layer.Features = append(layer.Features, Feature{
			Geometry: g,
			Name:     displayName(w.Tags),
			Tags:     w.Tags,
		})
	}

	if maxRows > 0 && len(layer.Features) > maxRows {
		layer.Features = layer.Features[:maxRows]
		layer.Truncated = true
	}
	return layer
}

// wayGeometry builds a Mercator geometry for a way: closed ways become
// polygons unless their primary key is inherently linear.
func wayGeometry(w *overpass.Way, filter TagFilter) geom.T {
	flat := make([]float64, 0, len(w.Nodes)*2)
	for _, n := range w.Nodes {
		if n == nil {
			continue
		}
		m := geometry.WGS84ToMercator(geometry.LonLat{Lon: n.Lon, Lat: n.Lat})
		flat = append(flat, m.X, m.Y)
	}
	if len(flat) < 4 {
		return nil
	}

	closed := flat[0] == flat[len(flat)-2] && flat[1] == flat[len(flat)-1]
	if closed && len(flat) >= 8 && !lineKeys[filter.Key] {
		return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
	}
	return geom.NewLineStringFlat(geom.XY, flat)
}

// displayName returns name:en falling back to name, or nil when unnamed.
func displayName(tags map[string]string) *string {
	if v, ok := tags["name:en"]; ok && v != "" {
		return &v
	}
	if v, ok := tags["name"]; ok && v != "" {
		return &v
	}
	return nil
}
