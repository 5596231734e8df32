package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/motorsim/drivetrain/internal/model/core"
)

// PathFromLocal builds a 3857 LineString from sampled local-frame
// positions, for storing a run's driven path.
func (a Anchor) PathFromLocal(points []core.Vec3) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("path must have at least 2 points, got %d", len(points))
	}

	flatCoords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flatCoords = append(flatCoords, a.X+p.X, a.Y+p.Y)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ls := geom.NewLineString(seq)

	return ls, nil
}
