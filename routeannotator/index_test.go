package routeannotator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tophatmaps/routeannotator/internal/extractor"
	"github.com/tophatmaps/routeannotator/internal/ids"
)

func sampleElements() []extractor.Element {
	return []extractor.Element{
		{Node: &extractor.Node{ID: 1, Point: extractor.Point{Lon: 13.388860, Lat: 52.517037}}},
		{Node: &extractor.Node{ID: 2, Point: extractor.Point{Lon: 13.397634, Lat: 52.529407}}},
		{Node: &extractor.Node{ID: 3, Point: extractor.Point{Lon: 13.428555, Lat: 52.523219}}},
		{Way: &extractor.Way{
			ID:    1001,
			Nodes: []ids.ExternalNodeID{1, 2, 3},
			Tags:  []extractor.Tag{{Key: "highway", Value: "primary"}, {Key: "name", Value: "Bridge St"}},
		}},
	}
}

func TestIndex_BuildAndQuery(t *testing.T) {
	idx := New(WithGeometry(true))
	require.NoError(t, idx.Build(extractor.NewSliceSource(sampleElements())))

	internal1, ok, err := idx.ExternalToInternal(1)
	require.NoError(t, err)
	require.True(t, ok)

	internal2, ok, err := idx.ExternalToInternal(2)
	require.NoError(t, err)
	require.True(t, ok)

	ways, err := idx.AnnotateRoute([]ids.InternalNodeID{internal1, internal2})
	require.NoError(t, err)
	require.Len(t, ways, 1)

	ext, err := idx.GetExternalWayID(ways[0])
	require.NoError(t, err)
	require.Equal(t, ids.ExternalWayID(1001), ext)

	found, ok, err := idx.CoordinateToInternal(13.388860, 52.517037)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, internal1, found)
}

func TestIndex_BuildTwiceFails(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Build(extractor.NewSliceSource(sampleElements())))
	require.Error(t, idx.Build(extractor.NewSliceSource(sampleElements())))
}

func TestIndex_QueryBeforeBuildFails(t *testing.T) {
	idx := New()
	_, _, err := idx.ExternalToInternal(1)
	require.Error(t, err)
}

func TestIndex_HealthReflectsBuildState(t *testing.T) {
	idx := New()

	status, err := idx.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "unhealthy", status.Status)

	require.NoError(t, idx.Build(extractor.NewSliceSource(sampleElements())))

	status, err = idx.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "healthy", status.Status)
}

func TestIndex_SegmentAndWaySpeeds(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Build(extractor.NewSliceSource(sampleElements())))

	dir := t.TempDir()
	segPath := filepath.Join(dir, "segments.csv")
	require.NoError(t, os.WriteFile(segPath, []byte("1,2,50\n"), 0644))
	require.NoError(t, idx.LoadSegmentSpeeds(segPath))

	speed, ok := idx.SegmentSpeed(1, 2)
	require.True(t, ok)
	require.Equal(t, ids.Speed(50), speed)

	wayPath := filepath.Join(dir, "ways.csv")
	require.NoError(t, os.WriteFile(wayPath, []byte("1001,Bridge St,mph,30\n"), 0644))
	require.NoError(t, idx.LoadWaySpeeds(wayPath))

	waySpeed, ok := idx.WaySpeed(1001)
	require.True(t, ok)
	require.Equal(t, ids.Speed(48), waySpeed)
}
