package routing

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/parcelworks/siteatlas/internal/features"
	"github.com/parcelworks/siteatlas/internal/geometry"
)

func residentialWay(id int64, nodeIDs []int64, coords []geometry.XY, tags map[string]string) features.Way {
	if tags == nil {
		tags = map[string]string{}
	}
	if _, ok := tags["highway"]; !ok {
		tags["highway"] = "residential"
	}
	return features.Way{ID: id, NodeIDs: nodeIDs, Coords: coords, Tags: tags}
}

// lShape is a two-segment path 1 -> 2 -> 3, 1000 m per segment.
func lShape() []features.Way {
	return []features.Way{
		residentialWay(1, []int64{1, 2, 3}, []geometry.XY{
			{X: 0, Y: 0}, {X: 1000, Y: 0}, {X: 1000, Y: 1000},
		}, nil),
	}
}

func TestBuild_SimplifiesPassThroughNodes(t *testing.T) {
	g, err := Build(lShape(), ModeWalk, 5)
	require.NoError(t, err)

	// Node 2 is a pure pass-through and gets merged away.
	assert.Equal(t, 2, g.NodeCount())
	_, ok := g.Node(2)
	assert.False(t, ok)
}

func TestRoute_LengthAndTravelTime(t *testing.T) {
	g, err := Build(lShape(), ModeWalk, 5)
	require.NoError(t, err)

	route, err := g.Route(1, 3)
	require.NoError(t, err)

	// 2000 m at 5 km/h is exactly 1440 seconds.
	assert.InDelta(t, 2000, route.LengthM, 1e-9)
	assert.InDelta(t, 1440, route.TravelSecs, 1e-9)
	assert.InDelta(t, 2.0, route.DistanceKM(), 1e-9)
	assert.Equal(t, int64(1), route.NodeIDs[0])
	assert.Equal(t, int64(3), route.NodeIDs[len(route.NodeIDs)-1])
}

func TestRoute_PicksFasterPath(t *testing.T) {
	// Two routes from 1 to 3: direct 1-3 (2500 m) and via 2 (2000 m).
	ways := []features.Way{
		residentialWay(1, []int64{1, 2}, []geometry.XY{{X: 0, Y: 0}, {X: 1000, Y: 0}}, nil),
		residentialWay(2, []int64{2, 3}, []geometry.XY{{X: 1000, Y: 0}, {X: 1000, Y: 1000}}, nil),
		residentialWay(3, []int64{1, 3}, []geometry.XY{{X: 0, Y: 0}, {X: 1500, Y: 2000}}, nil),
	}
	g, err := Build(ways, ModeWalk, 5)
	require.NoError(t, err)

	route, err := g.Route(1, 3)
	require.NoError(t, err)
	assert.InDelta(t, 2000, route.LengthM, 1e-9)
}

func TestRoute_OnewayRespectedInDriveMode(t *testing.T) {
	ways := []features.Way{
		residentialWay(1, []int64{1, 2}, []geometry.XY{{X: 0, Y: 0}, {X: 1000, Y: 0}},
			map[string]string{"highway": "primary", "oneway": "yes"}),
	}
	g, err := Build(ways, ModeDrive, 35)
	require.NoError(t, err)

	_, err = g.Route(1, 2)
	require.NoError(t, err)

	_, err = g.Route(2, 1)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoRouteFound))

	// Walk mode ignores oneway.
	gw, err := Build(ways, ModeWalk, 5)
	require.NoError(t, err)
	_, err = gw.Route(2, 1)
	assert.NoError(t, err)
}

func TestBuild_ModeExclusions(t *testing.T) {
	motorway := []features.Way{
		residentialWay(1, []int64{1, 2}, []geometry.XY{{X: 0, Y: 0}, {X: 1000, Y: 0}},
			map[string]string{"highway": "motorway"}),
	}
	_, err := Build(motorway, ModeWalk, 5)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrEmptyGraph))

	// Drivable, though.
	_, err = Build(motorway, ModeDrive, 35)
	assert.NoError(t, err)

	footway := []features.Way{
		residentialWay(1, []int64{1, 2}, []geometry.XY{{X: 0, Y: 0}, {X: 1000, Y: 0}},
			map[string]string{"highway": "footway"}),
	}
	_, err = Build(footway, ModeDrive, 35)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrEmptyGraph))
}

func TestRoute_UnknownNodes(t *testing.T) {
	g, err := Build(lShape(), ModeWalk, 5)
	require.NoError(t, err)

	_, err = g.Route(99, 1)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoRouteFound))

	_, err = g.Route(1, 99)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoRouteFound))
}

func TestNearestNode(t *testing.T) {
	g, err := Build(lShape(), ModeWalk, 5)
	require.NoError(t, err)

	n, ok := g.NearestNode(geometry.XY{X: 10, Y: 10})
	require.True(t, ok)
	assert.Equal(t, int64(1), n.ID)

	n, ok = g.NearestNode(geometry.XY{X: 990, Y: 990})
	require.True(t, ok)
	assert.Equal(t, int64(3), n.ID)
}

func TestNearestStations(t *testing.T) {
	mkStation := func(x, y float64, name string) features.Feature {
		return features.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{x, y}),
			Name:     &name,
			Tags:     map[string]string{"railway": "station"},
		}
	}
	layer := features.Layer{Features: []features.Feature{
		mkStation(500, 0, "C"),
		mkStation(100, 0, "A"),
		mkStation(300, 0, "B"),
		mkStation(900, 0, "D"),
	}}

	got := NearestStations(layer, geometry.XY{X: 0, Y: 0}, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "A", *got[0].Name)
	assert.Equal(t, "B", *got[1].Name)
	assert.Equal(t, "C", *got[2].Name)

	assert.Nil(t, NearestStations(features.Layer{}, geometry.XY{}, 3))
	assert.Nil(t, NearestStations(layer, geometry.XY{}, 0))
}
