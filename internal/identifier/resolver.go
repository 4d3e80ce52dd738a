package identifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parcelworks/siteatlas/internal/fetcher"
	"github.com/parcelworks/siteatlas/internal/geometry"
)

// Sentinel errors for the resolution contract.
var (
	// ErrUpstreamUnavailable signals the search service failed outright.
	// The caller may retry; the resolver itself never does.
	ErrUpstreamUnavailable = eris.New("identifier: search service unavailable")

	// ErrNoMatchFound signals the search succeeded but returned no candidate.
	ErrNoMatchFound = eris.New("identifier: no matching result")
)

// ResolvedLocation is the coordinate produced by resolving an identifier,
// plus the confidence score that selected it among candidates.
type ResolvedLocation struct {
	Coordinate geometry.LonLat
	Score      float64
}

// Resolver turns identifiers into coordinates via the geodata search API.
type Resolver struct {
	baseURL string
	client  *fetcher.Client
}

// NewResolver creates a Resolver against the given API base URL.
func NewResolver(baseURL string, client *fetcher.Client) *Resolver {
	return &Resolver{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// searchResponse is the JSON shape of the SearchNumber endpoint. Candidate
// locations are HK1980 Grid easting/northing.
type searchResponse struct {
	Candidates []searchCandidate `json:"candidates"`
}

type searchCandidate struct {
	Score    float64 `json:"score"`
	Location struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"location"`
}

// Resolve looks up an identifier and returns its WGS84 coordinate.
// The best-scoring candidate wins; equal scores resolve to the lowest
// candidate index so repeated calls on the same response are deterministic.
func (r *Resolver) Resolve(ctx context.Context, dataType DataType, value string) (ResolvedLocation, error) {
	if !allTypes[dataType] {
		return ResolvedLocation{}, eris.Wrapf(ErrInvalidIdentifierType, "%q", string(dataType))
	}

	reqURL := fmt.Sprintf("%s/lus/%s/SearchNumber?text=%s",
		r.baseURL,
		strings.ToLower(string(dataType)),
		url.QueryEscape(value),
	)

	body, status, err := r.client.Get(ctx, reqURL)
	if err != nil {
		return ResolvedLocation{}, eris.Wrap(ErrUpstreamUnavailable, err.Error())
	}
	if status != http.StatusOK {
		return ResolvedLocation{}, eris.Wrapf(ErrUpstreamUnavailable, "status %d", status)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ResolvedLocation{}, eris.Wrap(ErrUpstreamUnavailable, err.Error())
	}
	if len(resp.Candidates) == 0 {
		return ResolvedLocation{}, eris.Wrapf(ErrNoMatchFound, "%s %s", dataType, value)
	}

	best := resp.Candidates[0]
	for _, c := range resp.Candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}

	coord := geometry.HK80ToWGS84(geometry.XY{X: best.Location.X, Y: best.Location.Y})
	zap.L().Debug("identifier: resolved",
		zap.String("type", string(dataType)),
		zap.String("value", value),
		zap.Float64("score", best.Score),
		zap.Float64("lon", coord.Lon),
		zap.Float64("lat", coord.Lat),
	)
	return ResolvedLocation{Coordinate: coord, Score: best.Score}, nil
}
