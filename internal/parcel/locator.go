// Package parcel retrieves authoritative lot boundaries from the lot-index
// service. Every "no boundary" condition (upstream failure, empty body,
// unusable geometry) yields a nil boundary, never an error: callers proceed
// with a fallback footprint.
package parcel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/parcelworks/siteatlas/internal/fetcher"
	"github.com/parcelworks/siteatlas/internal/geometry"
	"github.com/parcelworks/siteatlas/internal/identifier"
	"github.com/parcelworks/siteatlas/internal/resilience"
)

const (
	// bboxHalfWidthM is the half-side of the lot-index query box in meters.
	// The upstream API accepts boxes up to 750x600 m.
	bboxHalfWidthM = 300.0

	// nearToleranceM accepts the nearest polygon when the point sits exactly
	// on a boundary after coordinate rounding.
	nearToleranceM = 50.0
)

// Boundary is an authoritative lot polygon in the projected frame, with the
// identifier context it was located for.
type Boundary struct {
	Geometry *geom.Polygon
	DataType identifier.DataType
}

// Locator fetches and caches lot boundaries.
type Locator struct {
	baseURL    string
	client     *fetcher.Client
	cache      *boundaryCache
	maxRetries int
	log        *zap.Logger
}

// NewLocator creates a Locator. maxRetries applies to the idempotent
// lot-index GET; zero preserves the no-retry upstream policy.
func NewLocator(baseURL string, client *fetcher.Client, maxRetries int) *Locator {
	return &Locator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     client,
		cache:      newBoundaryCache(1024, 24*time.Hour),
		maxRetries: maxRetries,
		log:        zap.L().With(zap.String("component", "parcel.locator")),
	}
}

// subResource maps a data type onto the lot-index sub-resource name.
// Unrecognized types query the generic lot resource; that is not an error.
func subResource(dt identifier.DataType) string {
	switch dt {
	case identifier.TypeGLA:
		return "gla"
	case identifier.TypeSTT:
		return "stt"
	default:
		return "lot"
	}
}

// Locate returns the boundary containing coord, or nil when no authoritative
// boundary is available. A cache hit, positive or negative, short-circuits
// the network call. The only non-nil errors are context faults.
func (l *Locator) Locate(ctx context.Context, coord geometry.LonLat, dataType identifier.DataType) (*Boundary, error) {
	key := cacheKey(coord.Lon, coord.Lat, string(dataType))
	if b, ok := l.cache.get(key); ok {
		return b, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := l.fetch(ctx, coord, dataType)
	l.cache.put(key, b)
	return b, nil
}

// Stats exposes boundary cache counters.
func (l *Locator) Stats() CacheStats {
	return l.cache.stats()
}

// fetch performs the upstream bbox query and polygon selection.
func (l *Locator) fetch(ctx context.Context, coord geometry.LonLat, dataType identifier.DataType) *Boundary {
	grid := geometry.WGS84ToHK80(coord)
	box := geometry.BBoxAround(geometry.XY{X: grid.X, Y: grid.Y}, bboxHalfWidthM)

	reqURL := fmt.Sprintf("%s/iC1000/%s?bbox=%.2f,%.2f,%.2f,%.2f,EPSG:2326",
		l.baseURL, subResource(dataType),
		box.MinX, box.MinY, box.MaxX, box.MaxY,
	)

	var body []byte
	var status int
	err := resilience.Do(ctx, resilience.RetryN(l.maxRetries), func(ctx context.Context) error {
		var err error
		body, status, err = l.client.Get(ctx, reqURL)
		if err != nil {
			return resilience.NewTransientError(err, 0)
		}
		if status >= http.StatusInternalServerError {
			return resilience.NewTransientError(fmt.Errorf("lot index status %d", status), status)
		}
		return nil
	})
	if err != nil || status != http.StatusOK || len(strings.TrimSpace(string(body))) == 0 {
		l.log.Debug("lot boundary unavailable",
			zap.String("type", string(dataType)),
			zap.Int("status", status),
			zap.Error(err),
		)
		return nil
	}

	polys := decodeBoundaries(body)
	if len(polys) == 0 {
		return nil
	}

	pt := geometry.WGS84ToMercator(coord)

	// First polygon containing the query point wins.
	for _, p := range polys {
		if geometry.PointInPolygon(pt, p) {
			return &Boundary{Geometry: p, DataType: dataType}
		}
	}

	// Point on a boundary after rounding: accept the nearest polygon within
	// tolerance.
	var best *geom.Polygon
	bestDist := nearToleranceM
	for _, p := range polys {
		if d := distToPolygon(pt, p); d < bestDist {
			best = p
			bestDist = d
		}
	}
	if best == nil {
		return nil
	}
	return &Boundary{Geometry: best, DataType: dataType}
}

// decodeBoundaries parses the lot-index GeoJSON body into Mercator polygons.
// Coordinates arrive in the HK1980 grid frame. Unparseable payloads yield nil.
func decodeBoundaries(body []byte) []*geom.Polygon {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil
	}

	var out []*geom.Polygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case *geom.Polygon:
			if p := reprojectPolygon(g); p != nil {
				out = append(out, p)
			}
		case *geom.MultiPolygon:
			for i := 0; i < g.NumPolygons(); i++ {
				if p := reprojectPolygon(g.Polygon(i)); p != nil {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// reprojectPolygon converts a HK1980-grid polygon into the Mercator frame.
func reprojectPolygon(p *geom.Polygon) *geom.Polygon {
	if p == nil || p.NumLinearRings() == 0 {
		return nil
	}
	flat := p.FlatCoords()
	stride := p.Stride()
	outFlat := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i+1 < len(flat); i += stride {
		ll := geometry.HK80ToWGS84(geometry.XY{X: flat[i], Y: flat[i+1]})
		m := geometry.WGS84ToMercator(ll)
		outFlat = append(outFlat, m.X, m.Y)
	}

	ends := make([]int, len(p.Ends()))
	for i, e := range p.Ends() {
		ends[i] = e / stride * 2
	}
	return geom.NewPolygonFlat(geom.XY, outFlat, ends)
}

// distToPolygon returns the minimum distance from pt to the polygon's
// exterior ring.
func distToPolygon(pt geometry.XY, p *geom.Polygon) float64 {
	flat := p.FlatCoords()
	stride := p.Stride()
	end := p.Ends()[0]
	best := -1.0
	for i := stride; i < end; i += stride {
		a := geometry.XY{X: flat[i-stride], Y: flat[i-stride+1]}
		b := geometry.XY{X: flat[i], Y: flat[i+1]}
		d := geometry.DistToSegment(pt, a, b)
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}
