package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/motorsim/drivetrain/internal/model/core"
)

// GEO POINTS
// Positions are always stored as EPSG:3857, because SQLite has no spatial
// awareness and we need to be able to interpret point data from strings
// during migrations using the inherent Scan function. The simulation works
// in a local metric frame, so an Anchor maps local metres onto 3857 around
// a configured WGS84 origin.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Anchor is the EPSG:3857 origin of the local simulation frame.
type Anchor struct {
	X float64
	Y float64
}

// NewAnchor projects a WGS84 longitude/latitude into 3857 and uses it as
// the local frame origin.
func NewAnchor(longitude, latitude float64) Anchor {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return Anchor{X: x, Y: y}
}

// AnchorFromString parses a "long,lat" string into an Anchor.
func AnchorFromString(coords string) (Anchor, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return Anchor{}, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return Anchor{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return Anchor{}, ErrInvalidCoordinates
	}
	return NewAnchor(long, lat), nil
}

// PointFromLocal maps a local-frame position in metres to a 3857 point.
// Web Mercator units are metres at the equator, which is close enough for
// track-scale offsets around the anchor.
func (a Anchor) PointFromLocal(pos core.Vec3) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: a.X + pos.X, Y: a.Y + pos.Y},
			Z:    pos.Z,
			Type: geom.CoordinatesType(geom.DimXYZ),
		},
	)
}

// Coord3857FromString parses a string in the format "long,lat" or
// "long,lat,elev" into a 3857 point, and returns the elevation.
func Coord3857FromString(
	coords string,
) (
	point geom.Point,
	elev float64,
	err error,
) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(coordsSplit[0], 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(coordsSplit[1], 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
	}
	if len(coordsSplit) > 2 {
		elev, err = strconv.ParseFloat(coordsSplit[2], 64)
		if err != nil {
			return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
		}
	}
	point = geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: long, Y: lat},
			Z:    elev,
			Type: geom.CoordinatesType(geom.DimXYZ),
		},
	)
	return point, elev, nil
}
