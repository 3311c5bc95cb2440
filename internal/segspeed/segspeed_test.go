package segspeed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tophatmaps/routeannotator/internal/csvstream"
	"github.com/tophatmaps/routeannotator/internal/ids"
)

func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segments.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestMap_LoadCSVAndGet(t *testing.T) {
	path := writeCSV(t, "1,2,50\n2,3,40\n")
	m := New()
	require.NoError(t, m.LoadCSV(path))

	speed, ok := m.Get(1, 2)
	require.True(t, ok)
	require.Equal(t, ids.Speed(50), speed)

	// Reverse direction was never loaded, and is not implied.
	_, ok = m.Get(2, 1)
	require.False(t, ok)
}

func TestMap_GetMany(t *testing.T) {
	path := writeCSV(t, "1,2,50\n2,3,40\n")
	m := New()
	require.NoError(t, m.LoadCSV(path))

	speeds, err := m.GetMany([]ids.ExternalNodeID{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, []ids.Speed{50, 40}, speeds)
}

func TestMap_GetMany_MissingSegmentIsInvalidSpeed(t *testing.T) {
	path := writeCSV(t, "1,2,50\n")
	m := New()
	require.NoError(t, m.LoadCSV(path))

	speeds, err := m.GetMany([]ids.ExternalNodeID{1, 2, 99})
	require.NoError(t, err)
	require.Equal(t, []ids.Speed{50, ids.InvalidSpeed}, speeds)
}

func TestMap_GetMany_TooShort(t *testing.T) {
	m := New()
	_, err := m.GetMany([]ids.ExternalNodeID{1})
	require.Error(t, err)
}

func TestMap_LoadCSV_FailurePreservesPreviousContents(t *testing.T) {
	good := writeCSV(t, "1,2,50\n2,3,40\n")
	m := New()
	require.NoError(t, m.LoadCSV(good))
	require.Equal(t, 2, m.Len())

	bad := writeCSV(t, "1,2,50\n2,3,40\nnot,a,valid,row\n4,5,60\n")
	require.Error(t, m.LoadCSV(bad))

	// The map keeps serving its last-good snapshot.
	require.Equal(t, 2, m.Len())
	speed, ok := m.Get(1, 2)
	require.True(t, ok)
	require.Equal(t, ids.Speed(50), speed)
}

func TestMap_LoadCSVToleratesTrailingColumns(t *testing.T) {
	path := writeCSV(t, "1,2,50,extra,cols\n")
	m := New()
	require.NoError(t, m.LoadCSV(path))

	speed, ok := m.Get(1, 2)
	require.True(t, ok)
	require.Equal(t, ids.Speed(50), speed)
}

func TestMap_LoadCSV_ReportsLineNumberOfBadRow(t *testing.T) {
	bad := writeCSV(t, "1,2,50\n2,3,40\nnot,a,row\nbad\n5,6,70\n")
	m := New()
	err := m.LoadCSV(bad)
	require.Error(t, err)

	var parseErr *csvstream.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, 3, parseErr.Line)
}
