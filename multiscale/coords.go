package multiscale

import "github.com/clbarnes/multiscale-read/msread"

// Coordinates builds the world-space positions of extent samples along one
// axis: element k is translation + k*scale.  A non-positive extent is a
// ValueError.
func Coordinates(extent int64, scale, translation float64) ([]float64, error) {
	if extent < 1 {
		return nil, msread.ValueErrorf("coordinate vector needs positive extent, got %d", extent)
	}
	out := make([]float64, extent)
	for k := range out {
		out[k] = translation + float64(k)*scale
	}
	return out, nil
}

// BuildCoords applies Coordinates to every axis of an array shape, pairing
// axis i with extent shape[i].
func BuildCoords(axes []Axis, shape []int64) ([]Coordinate, error) {
	if len(axes) != len(shape) {
		return nil, msread.SchemaErrorf("%d axis descriptors for a %d-dimensional array", len(axes), len(shape))
	}
	coords := make([]Coordinate, len(axes))
	for i, ax := range axes {
		if err := ax.Validate(); err != nil {
			return nil, err
		}
		values, err := Coordinates(shape[i], ax.Scale, ax.Translation)
		if err != nil {
			return nil, err
		}
		coords[i] = Coordinate{
			Name:   ax.Name,
			Unit:   ax.Unit,
			Values: values,
		}
	}
	return coords, nil
}
