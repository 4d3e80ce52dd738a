package analysis

import (
	"github.com/parcelworks/siteatlas/internal/noise"
	"github.com/parcelworks/siteatlas/internal/refdata"
	"github.com/parcelworks/siteatlas/internal/view"
)

// Point is a projected-frame coordinate in a JSON artifact.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SiteSummary identifies the resolved site in every artifact.
type SiteSummary struct {
	DataType    string  `json:"data_type"`
	Value       string  `json:"value"`
	Lon         float64 `json:"lon"`
	Lat         float64 `json:"lat"`
	Score       float64 `json:"score"`
	ShapeSource string  `json:"shape_source"` // boundary | building | buffer
	Center      Point   `json:"center"`
}

// RouteSummary is one computed path with derived totals.
type RouteSummary struct {
	DistanceKM float64 `json:"distance_km"`
	TimeMin    int     `json:"time_min"`
	Path       []Point `json:"path"`
}

// StationRoute is a walking route from the site to one station.
type StationRoute struct {
	StationName *string      `json:"station_name"`
	Station     Point        `json:"station"`
	Route       RouteSummary `json:"route"`
}

// WalkingResult is the walking accessibility artifact.
type WalkingResult struct {
	Site       SiteSummary    `json:"site"`
	Stations   []StationRoute `json:"stations"`
	GraphNodes int            `json:"graph_nodes"`
}

// DriveStationRoutes carries both directions for one station; either may be
// absent when no path exists.
type DriveStationRoutes struct {
	StationName *string       `json:"station_name"`
	Station     Point         `json:"station"`
	Ingress     *RouteSummary `json:"ingress,omitempty"`
	Egress      *RouteSummary `json:"egress,omitempty"`
}

// DrivingResult is the driving accessibility artifact.
type DrivingResult struct {
	Site       SiteSummary          `json:"site"`
	Zoning     refdata.ZoningRecord `json:"zoning"`
	Routes     []DriveStationRoutes `json:"routes"`
	GraphNodes int                  `json:"graph_nodes"`
}

// LayerSummary is a clipped layer's contribution to the transport context.
type LayerSummary struct {
	Name      string `json:"name"`
	Features  int    `json:"features"`
	Truncated bool   `json:"truncated"`
}

// StationInfo is one station point with its display name.
type StationInfo struct {
	Name     *string `json:"name"`
	Location Point   `json:"location"`
}

// TransportResult is the public-transport context artifact.
type TransportResult struct {
	Site      SiteSummary    `json:"site"`
	Layers    []LayerSummary `json:"layers"`
	RailLines []string       `json:"rail_lines"`
	Stations  []StationInfo  `json:"stations"`
}

// LanduseBreakdown aggregates one land-use category.
type LanduseBreakdown struct {
	Category string  `json:"category"`
	Features int     `json:"features"`
	AreaM2   float64 `json:"area_m2"`
}

// Label is a named amenity annotation for the context artifact.
type Label struct {
	Text     string `json:"text"`
	Location Point  `json:"location"`
}

// ContextResult is the land-use context artifact.
type ContextResult struct {
	Site     SiteSummary          `json:"site"`
	Zoning   refdata.ZoningRecord `json:"zoning"`
	Landuse  []LanduseBreakdown   `json:"landuse"`
	Stations []StationInfo        `json:"stations"`
	BusStops []Point              `json:"bus_stops"`
	Labels   []Label              `json:"labels"`
}

// BuildingHeight is one labeled building height for the view artifact.
type BuildingHeight struct {
	Location Point   `json:"location"`
	HeightM  float64 `json:"height_m"`
}

// ViewResult is the skyline/view exposure artifact.
type ViewResult struct {
	Site         SiteSummary      `json:"site"`
	Arcs         []view.Arc       `json:"arcs"`
	TopBuildings []BuildingHeight `json:"top_buildings"`
}

// NoiseResult is the traffic-noise exposure artifact.
type NoiseResult struct {
	Site          SiteSummary          `json:"site"`
	SourceLevelDB float64              `json:"source_level_db"`
	MinDB         float64              `json:"min_db"`
	MaxDB         float64              `json:"max_db"`
	Field         *noise.Field         `json:"field"`
	Facades       []noise.FacadeSample `json:"facades"`
}
