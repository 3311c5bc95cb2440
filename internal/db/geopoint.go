package db

import (
	"github.com/dhconnelly/rtreego"

	"github.com/tophatmaps/routeannotator/internal/ids"
)

// rtreeEpsilon gives every indexed node a vanishingly small but non-zero
// bounding box; rtreego rejects zero-length rectangle dimensions.
const rtreeEpsilon = 1e-10

// geoNode is the R-tree payload: one indexed node's location plus its
// internal id.
type geoNode struct {
	internal ids.InternalNodeID
	lon, lat float64
}

// Bounds implements rtreego.Spatial.
func (n *geoNode) Bounds() *rtreego.Rect {
	rect, err := rtreego.NewRect(rtreego.Point{n.lon, n.lat}, []float64{rtreeEpsilon, rtreeEpsilon})
	if err != nil {
		// Only possible if rtreeEpsilon were non-positive, which it never is.
		panic(err)
	}
	return rect
}
