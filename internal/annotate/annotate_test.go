package annotate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tophatmaps/routeannotator/internal/db"
	"github.com/tophatmaps/routeannotator/internal/errs"
	"github.com/tophatmaps/routeannotator/internal/ids"
)

func buildGeoScenario(t *testing.T) (*db.Database, map[ids.ExternalNodeID]ids.InternalNodeID) {
	t.Helper()
	d := db.New(db.WithGeometry(true))

	keyID, err := d.AddString([]byte("highway"))
	require.NoError(t, err)
	valID, err := d.AddString([]byte("primary"))
	require.NoError(t, err)

	first := d.Len()
	_, err = d.AppendTagPair(keyID, valID)
	require.NoError(t, err)
	last := d.Len()
	way, err := d.EmplaceWayTagRange(first, last, 42)
	require.NoError(t, err)

	nodes := map[ids.ExternalNodeID]ids.InternalNodeID{}
	fixtures := []struct {
		ext      ids.ExternalNodeID
		lon, lat float64
	}{
		{1, 13.388860, 52.517037},
		{2, 13.397634, 52.529407},
		{3, 13.428555, 52.523219},
	}
	for _, f := range fixtures {
		internal, err := d.InternalizeNode(f.ext, f.lon, f.lat, true)
		require.NoError(t, err)
		nodes[f.ext] = internal
	}

	require.NoError(t, d.EmplacePair(nodes[1], nodes[2], way))
	require.NoError(t, d.EmplacePair(nodes[2], nodes[3], way))

	require.NoError(t, d.Compact())
	return d, nodes
}

func TestAnnotator_CoordinateToInternal_ExactMatch(t *testing.T) {
	d, nodes := buildGeoScenario(t)
	a := New(d)

	internal, ok, err := a.CoordinateToInternal(13.388860, 52.517037)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, nodes[1], internal)
}

func TestAnnotator_CoordinateToInternal_FarAwayMisses(t *testing.T) {
	d, _ := buildGeoScenario(t)
	a := New(d)

	_, ok, err := a.CoordinateToInternal(0, 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAnnotator_CoordinateToInternal_WithinGateMatches(t *testing.T) {
	d, nodes := buildGeoScenario(t)
	a := New(d)

	// ~1 meter north of node 1, well inside the 5m gate.
	internal, ok, err := a.CoordinateToInternal(13.388860, 52.517037+0.000009)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, nodes[1], internal)
}

func TestAnnotator_CoordinateToInternal_RequiresGeometry(t *testing.T) {
	d := db.New(db.WithGeometry(false))
	require.NoError(t, d.Compact())
	a := New(d)

	_, _, err := a.CoordinateToInternal(0, 0)
	require.ErrorIs(t, err, errs.ErrRtreeNotBuilt)
}

func TestAnnotator_ExternalToInternal(t *testing.T) {
	d, nodes := buildGeoScenario(t)
	a := New(d)

	internal, ok := a.ExternalToInternal(1)
	require.True(t, ok)
	require.Equal(t, nodes[1], internal)

	_, ok = a.ExternalToInternal(999)
	require.False(t, ok)
}

func TestAnnotator_AnnotateRoute(t *testing.T) {
	d, nodes := buildGeoScenario(t)
	a := New(d)

	ways, err := a.AnnotateRoute([]ids.InternalNodeID{nodes[1], nodes[2], nodes[3]})
	require.NoError(t, err)
	require.Len(t, ways, 2)
	require.Equal(t, ids.WayID(0), ways[0])
	require.Equal(t, ids.WayID(0), ways[1])
}

func TestAnnotator_AnnotateRoute_MissingSegmentIsInvalid(t *testing.T) {
	d, nodes := buildGeoScenario(t)
	a := New(d)

	ways, err := a.AnnotateRoute([]ids.InternalNodeID{nodes[3], nodes[1]})
	require.NoError(t, err)
	require.Equal(t, []ids.WayID{ids.InvalidWayID}, ways)
}

func TestAnnotator_AnnotateRoute_TooShort(t *testing.T) {
	d, nodes := buildGeoScenario(t)
	a := New(d)

	_, err := a.AnnotateRoute([]ids.InternalNodeID{nodes[1]})
	require.ErrorIs(t, err, errs.ErrTooShort)
}

func TestAnnotator_TagAccessors(t *testing.T) {
	d, _ := buildGeoScenario(t)
	a := New(d)

	tr, err := a.GetTagRange(0)
	require.NoError(t, err)
	require.Equal(t, db.TagRange{First: 0, Last: 1}, tr)

	key, err := a.GetTagKey(0)
	require.NoError(t, err)
	require.Equal(t, "highway", string(key))

	val, err := a.GetTagValue(0)
	require.NoError(t, err)
	require.Equal(t, "primary", string(val))

	ext, err := a.GetExternalWayID(0)
	require.NoError(t, err)
	require.Equal(t, ids.ExternalWayID(42), ext)
}
