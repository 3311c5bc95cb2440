package stringpool

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_AddDedup(t *testing.T) {
	p := New()

	id1, err := p.AddString("highway")
	require.NoError(t, err)

	id2, err := p.AddString("highway")
	require.NoError(t, err)

	require.Equal(t, id1, id2)
	require.Equal(t, 1, p.Len())
}

func TestPool_RoundTrip(t *testing.T) {
	p := New()

	id, err := p.AddString("primary")
	require.NoError(t, err)

	got, err := p.Get(id)
	require.NoError(t, err)
	require.Equal(t, "primary", string(got))
}

func TestPool_ClampsTo255Bytes(t *testing.T) {
	p := New()

	long := strings.Repeat("a", 300)
	id, err := p.AddString(long)
	require.NoError(t, err)

	got, err := p.Get(id)
	require.NoError(t, err)
	require.Len(t, got, 255)
	require.Equal(t, strings.Repeat("a", 255), string(got))

	// A second insert of the same (longer) string returns the same id,
	// because both clamp to the same first 255 bytes.
	id2, err := p.AddString(long)
	require.NoError(t, err)
	require.Equal(t, id, id2)
}

func TestPool_GetOutOfRange(t *testing.T) {
	p := New()
	_, err := p.Get(0)
	require.Error(t, err)
}

func TestPool_SealIsIdempotentAndPreservesReads(t *testing.T) {
	p := New()
	id, err := p.AddString("residential")
	require.NoError(t, err)

	p.Seal()
	p.Seal()

	got, err := p.Get(id)
	require.NoError(t, err)
	require.Equal(t, "residential", string(got))
}

func TestPool_AddAfterSealFails(t *testing.T) {
	p := New()
	p.Seal()

	_, err := p.AddString("x")
	require.Error(t, err)
}
